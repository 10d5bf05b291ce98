package journal

import (
	"context"
	"time"
)

const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Entry is one dispatch outcome, written after the sink delivery
// attempt settled.
type Entry struct {
	RecordID     string        `json:"record_id"`
	Topic        string        `json:"topic"`
	Status       string        `json:"status"`
	Error        string        `json:"error,omitempty"`
	Attempt      int           `json:"attempt"`
	Latency      time.Duration `json:"latency"`
	DispatchedAt time.Time     `json:"dispatched_at"`
}

// Store persists journal entries in batches.
type Store interface {
	InsertMany(ctx context.Context, entries []*Entry) error
}
