package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/dispatchd/dispatchd/internal/dispatch"
	"github.com/dispatchd/dispatchd/internal/redis"
)

const defaultRedisStreamPrefix = "dispatchd"

// RedisSink appends each record to a Redis stream named after its topic,
// "<prefix>:<topic>". The sink owns the client and closes it on Close.
type RedisSink struct {
	client redis.Client
	prefix string
}

var _ dispatch.Sink = (*RedisSink)(nil)

func NewRedisSink(client redis.Client, prefix string) *RedisSink {
	if prefix == "" {
		prefix = defaultRedisStreamPrefix
	}
	return &RedisSink{client: client, prefix: prefix}
}

func (s *RedisSink) Name() string {
	return "redis"
}

func (s *RedisSink) StreamForTopic(topic string) string {
	return s.prefix + ":" + topic
}

func (s *RedisSink) Deliver(ctx context.Context, record *dispatch.Record) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.StreamForTopic(record.Topic),
		Values: map[string]interface{}{
			"record_id":  record.ID,
			"attempt":    record.Attempt,
			"created_at": record.CreatedAt.Format(time.RFC3339Nano),
			"data":       string(record.Data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis stream append %s: %w", record.ID, err)
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
