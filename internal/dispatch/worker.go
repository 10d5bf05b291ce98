package dispatch

import (
	"context"
	"errors"

	"github.com/dispatchd/dispatchd/internal/daemon"
	"github.com/dispatchd/dispatchd/internal/logging"
	"github.com/dispatchd/dispatchd/internal/worker"
	"go.uber.org/zap"
)

// DaemonWorker runs a daemon under the worker supervisor: Start on Run,
// block until the context ends, then stop and drain.
type DaemonWorker[T any] struct {
	daemon *daemon.Daemon[T]
	logger *logging.Logger
}

func NewDaemonWorker[T any](d *daemon.Daemon[T], logger *logging.Logger) worker.Worker {
	return &DaemonWorker[T]{
		daemon: d,
		logger: logger,
	}
}

func (w *DaemonWorker[T]) Name() string {
	return w.daemon.Name()
}

// Run starts the daemon and blocks until the context is cancelled or
// the daemon dies on its own.
func (w *DaemonWorker[T]) Run(ctx context.Context) error {
	logger := w.logger.Ctx(ctx)
	logger.Info("daemon worker starting", zap.String("name", w.Name()))

	if err := w.daemon.Start(); err != nil {
		logger.Error("error starting daemon", zap.String("name", w.Name()), zap.Error(err))
		return err
	}

	select {
	case <-ctx.Done():
		w.daemon.Stop()
		logger.Info("daemon worker drained", zap.String("name", w.Name()))
		return nil
	case <-w.daemon.Done():
		// The daemon only terminates on its own if the worker goroutine
		// crashed; a supervisor restart will not help a poisoned queue,
		// so report it as fatal.
		return errors.New("daemon terminated unexpectedly")
	}
}
