package dispatch

import (
	"encoding/json"
	"time"

	"github.com/dispatchd/dispatchd/internal/idgen"
)

// Message kinds understood by the dispatch pipeline. The daemon core
// treats kind as an opaque tag; these constants give it meaning here.
const (
	KindEvent  = 0
	KindAudit  = 1
	KindSystem = 2
)

func TopicForKind(kind int) string {
	switch kind {
	case KindAudit:
		return "audit"
	case KindSystem:
		return "system"
	default:
		return "event"
	}
}

// Record is the unit of work flowing through the dispatcher: a sink- and
// journal-serializable envelope around arbitrary JSON data.
type Record struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Data      json.RawMessage `json:"data"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewRecord(kind int, data json.RawMessage) *Record {
	return &Record{
		ID:        idgen.RecordID(),
		Topic:     TopicForKind(kind),
		Data:      data,
		CreatedAt: time.Now(),
	}
}
