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

func TestWriter_FlushOnItemThreshold(t *testing.T) {
	t.Parallel()

	store := journal.NewMemoryStore()
	logger := testutil.CreateTestLogger(t)

	w, err := journal.NewWriter(context.Background(), logger, store, journal.WriterConfig{
		ItemCountThreshold: 2,
		DelayThreshold:     time.Minute,
	})
	require.NoError(t, err)
	defer w.Shutdown()

	w.Add(&journal.Entry{RecordID: "rec-1", Topic: "event", Status: journal.StatusDelivered})
	w.Add(&journal.Entry{RecordID: "rec-2", Topic: "event", Status: journal.StatusDelivered})

	require.Eventually(t, func() bool {
		return len(store.Entries()) == 2
	}, time.Second, 5*time.Millisecond, "batch should flush once the item threshold is hit")
}

func TestWriter_FlushOnDelay(t *testing.T) {
	t.Parallel()

	store := journal.NewMemoryStore()
	logger := testutil.CreateTestLogger(t)

	w, err := journal.NewWriter(context.Background(), logger, store, journal.WriterConfig{
		ItemCountThreshold: 100,
		DelayThreshold:     50 * time.Millisecond,
	})
	require.NoError(t, err)
	defer w.Shutdown()

	w.Add(&journal.Entry{RecordID: "rec-1", Topic: "audit", Status: journal.StatusFailed, Error: "boom"})

	require.Eventually(t, func() bool {
		return len(store.Entries()) == 1
	}, time.Second, 5*time.Millisecond, "batch should flush after the delay threshold")

	entry := store.Entries()[0]
	assert.Equal(t, "rec-1", entry.RecordID)
	assert.Equal(t, journal.StatusFailed, entry.Status)
	assert.Equal(t, "boom", entry.Error)
}

func TestWriter_ShutdownFlushes(t *testing.T) {
	t.Parallel()

	store := journal.NewMemoryStore()
	logger := testutil.CreateTestLogger(t)

	w, err := journal.NewWriter(context.Background(), logger, store, journal.WriterConfig{
		ItemCountThreshold: 100,
		DelayThreshold:     time.Minute,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		w.Add(&journal.Entry{RecordID: testutil.RandomString(8), Topic: "event", Status: journal.StatusDelivered})
	}

	w.Shutdown()

	assert.Len(t, store.Entries(), 3, "pending entries must be flushed on shutdown")
}
