package dispatch

import (
	"context"
	"time"

	"github.com/dispatchd/dispatchd/internal/backoff"
	"github.com/dispatchd/dispatchd/internal/daemon"
	"github.com/dispatchd/dispatchd/internal/logging"
	"go.uber.org/zap"
)

// RetryHandler wraps a handler with bounded in-place retries. Retries
// run inline on the worker goroutine, so they delay every message
// queued behind the failing one; schedules should stay short.
type RetryHandler[T any] struct {
	next        daemon.Handler[T]
	maxAttempts int
	backoff     backoff.Backoff
	logger      *logging.Logger
}

var _ daemon.Handler[int] = &RetryHandler[int]{}

func NewRetryHandler[T any](next daemon.Handler[T], maxAttempts int, bo backoff.Backoff, logger *logging.Logger) *RetryHandler[T] {
	if next == nil {
		panic("dispatch: nil handler")
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if bo == nil {
		bo = &backoff.ConstantBackoff{Interval: time.Second}
	}
	return &RetryHandler[T]{
		next:        next,
		maxAttempts: maxAttempts,
		backoff:     bo,
		logger:      logger,
	}
}

func (h *RetryHandler[T]) Handle(ctx context.Context, msg daemon.Message[T]) error {
	var err error
	for attempt := 0; attempt < h.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := h.backoff.Duration(attempt - 1)
			if h.logger != nil {
				h.logger.Ctx(ctx).Warn("retrying message",
					zap.Int("attempt", attempt+1),
					zap.Int("max_attempts", h.maxAttempts),
					zap.Int("kind", msg.Kind),
					zap.Duration("delay", delay),
					zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err = h.next.Handle(ctx, msg); err == nil {
			return nil
		}
	}
	return err
}
