package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/dispatchd/dispatchd/internal/redis"
)

const defaultJournalStream = "dispatchd:journal"

// RedisStore appends entries to a Redis stream, one XADD per entry,
// pipelined per batch.
type RedisStore struct {
	client redis.Client
	stream string
}

var _ Store = &RedisStore{}

func NewRedisStore(client redis.Client, stream string) *RedisStore {
	if stream == "" {
		stream = defaultJournalStream
	}
	return &RedisStore{
		client: client,
		stream: stream,
	}
}

func (s *RedisStore) Stream() string {
	return s.stream
}

func (s *RedisStore) InsertMany(ctx context.Context, entries []*Entry) error {
	pipe := s.client.Pipeline()

	for _, entry := range entries {
		values := map[string]interface{}{
			"record_id":     entry.RecordID,
			"topic":         entry.Topic,
			"status":        entry.Status,
			"attempt":       entry.Attempt,
			"latency_ms":    entry.Latency.Milliseconds(),
			"dispatched_at": entry.DispatchedAt.Format(time.RFC3339Nano),
		}
		if entry.Error != "" {
			values["error"] = entry.Error
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			Values: values,
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("journal stream append: %w", err)
	}
	return nil
}
