package journal

import (
	"context"
	"time"

	"github.com/dispatchd/dispatchd/internal/logging"
	"github.com/mikestefanello/batcher"
	"go.uber.org/zap"
)

// WriterConfig configures batching thresholds. Zero values fall back to
// defaults.
type WriterConfig struct {
	ItemCountThreshold int
	DelayThreshold     time.Duration
}

// Writer batches journal entries and writes them to the store off the
// dispatch path.
type Writer struct {
	ctx     context.Context
	logger  *logging.Logger
	store   Store
	batcher *batcher.Batcher[*Entry]
}

func NewWriter(ctx context.Context, logger *logging.Logger, store Store, cfg WriterConfig) (*Writer, error) {
	if cfg.ItemCountThreshold == 0 {
		cfg.ItemCountThreshold = 100
	}
	if cfg.DelayThreshold == 0 {
		cfg.DelayThreshold = time.Second
	}

	w := &Writer{
		ctx:    ctx,
		logger: logger,
		store:  store,
	}

	b, err := batcher.NewBatcher(batcher.Config[*Entry]{
		GroupCountThreshold: 2,
		ItemCountThreshold:  cfg.ItemCountThreshold,
		DelayThreshold:      cfg.DelayThreshold,
		NumGoroutines:       1,
		Processor:           w.flush,
	})
	if err != nil {
		return nil, err
	}

	w.batcher = b
	return w, nil
}

// Add queues an entry for the next batch write. It never blocks the
// dispatch path.
func (w *Writer) Add(entry *Entry) {
	w.batcher.Add("", entry)
}

// Shutdown flushes pending entries and stops the batcher.
func (w *Writer) Shutdown() {
	w.batcher.Shutdown()
}

func (w *Writer) flush(_ string, entries []*Entry) {
	logger := w.logger.Ctx(w.ctx)

	if err := w.store.InsertMany(w.ctx, entries); err != nil {
		logger.Error("journal batch insert failed",
			zap.Error(err),
			zap.Int("entry_count", len(entries)))
		return
	}

	logger.Debug("journal batch written", zap.Int("entry_count", len(entries)))
}
