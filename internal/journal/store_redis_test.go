package journal_test

import (
	"context"
	"testing"
	"time"

	"github.com/dispatchd/dispatchd/internal/journal"
	"github.com/dispatchd/dispatchd/internal/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_InsertMany(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := testutil.CreateTestRedisClient(t)
	store := journal.NewRedisStore(client, "test:journal")

	entries := []*journal.Entry{
		{
			RecordID:     "rec-1",
			Topic:        "event",
			Status:       journal.StatusDelivered,
			Attempt:      1,
			Latency:      42 * time.Millisecond,
			DispatchedAt: time.Now(),
		},
		{
			RecordID:     "rec-2",
			Topic:        "audit",
			Status:       journal.StatusFailed,
			Error:        "connection refused",
			Attempt:      3,
			DispatchedAt: time.Now(),
		},
	}

	require.NoError(t, store.InsertMany(ctx, entries))

	messages, err := client.XRange(ctx, "test:journal", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, "rec-1", messages[0].Values["record_id"])
	assert.Equal(t, "event", messages[0].Values["topic"])
	assert.Equal(t, journal.StatusDelivered, messages[0].Values["status"])
	assert.NotContains(t, messages[0].Values, "error")

	assert.Equal(t, "rec-2", messages[1].Values["record_id"])
	assert.Equal(t, journal.StatusFailed, messages[1].Values["status"])
	assert.Equal(t, "connection refused", messages[1].Values["error"])
}

func TestRedisStore_DefaultStream(t *testing.T) {
	t.Parallel()

	store := journal.NewRedisStore(nil, "")
	assert.Equal(t, "dispatchd:journal", store.Stream())
}

func TestRedisStore_EmptyBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := testutil.CreateTestRedisClient(t)
	store := journal.NewRedisStore(client, "test:journal:empty")

	require.NoError(t, store.InsertMany(ctx, nil))

	exists, err := client.Exists(ctx, "test:journal:empty").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}
