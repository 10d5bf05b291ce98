package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Logger is the slice of a zap-style logger the supervisor needs.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// Supervisor runs registered workers in their own goroutines and tracks
// their health. A failed worker never terminates its siblings; the health
// tracker reports it while the rest of the process keeps serving.
type Supervisor struct {
	workers         []Worker
	names           map[string]struct{}
	health          *HealthTracker
	logger          Logger
	shutdownTimeout time.Duration
}

type SupervisorOption func(*Supervisor)

// WithShutdownTimeout bounds how long Run waits for workers to stop after
// the context is cancelled. Zero waits indefinitely.
func WithShutdownTimeout(timeout time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.shutdownTimeout = timeout
	}
}

func NewSupervisor(logger Logger, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		names:  make(map[string]struct{}),
		health: NewHealthTracker(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a worker. Names must be unique; Register panics on a
// duplicate. Workers start in registration order.
func (s *Supervisor) Register(w Worker) {
	if _, exists := s.names[w.Name()]; exists {
		panic(fmt.Sprintf("worker %s already registered", w.Name()))
	}
	s.names[w.Name()] = struct{}{}
	s.workers = append(s.workers, w)
	s.logger.Debug("worker registered", zap.String("worker", w.Name()))
}

func (s *Supervisor) HealthTracker() *HealthTracker {
	return s.health
}

// Run starts every registered worker and blocks until the context is
// cancelled or all workers have exited on their own.
//
// On cancellation it waits for the workers to stop, bounded by the
// shutdown timeout when one is set, and returns ctx.Err(). All workers
// exiting without a cancellation is a fault and returns an error.
func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.workers) == 0 {
		s.logger.Warn("no workers registered")
		return errors.New("no workers registered")
	}

	s.logger.Info("starting workers", zap.Int("count", len(s.workers)))

	var wg sync.WaitGroup
	for _, w := range s.workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			s.runWorker(ctx, w)
		}(w)
	}

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down workers")
		if s.shutdownTimeout > 0 {
			return s.waitWithTimeout(&wg, s.shutdownTimeout)
		}
		wg.Wait()
		return ctx.Err()
	case <-waitDone(&wg):
		s.logger.Warn("all workers have exited")
		return errors.New("all workers have exited unexpectedly")
	}
}

func (s *Supervisor) runWorker(ctx context.Context, w Worker) {
	s.health.MarkHealthy(w.Name())
	s.logger.Info("worker starting", zap.String("worker", w.Name()))

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("worker failed",
			zap.String("worker", w.Name()),
			zap.Error(err))
		s.health.MarkFailed(w.Name())
		return
	}
	s.logger.Info("worker stopped", zap.String("worker", w.Name()))
}

func (s *Supervisor) waitWithTimeout(wg *sync.WaitGroup, timeout time.Duration) error {
	select {
	case <-waitDone(wg):
		s.logger.Info("all workers stopped")
		return nil
	case <-time.After(timeout):
		s.logger.Warn("shutdown timeout exceeded",
			zap.Duration("timeout", timeout))
		return fmt.Errorf("shutdown timeout exceeded (%v)", timeout)
	}
}

// waitDone adapts WaitGroup.Wait to a channel usable in a select.
func waitDone(wg *sync.WaitGroup) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}
