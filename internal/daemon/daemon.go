package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ErrTerminated is returned by Start once a daemon has terminated;
// restart is not supported.
var ErrTerminated = errors.New("daemon terminated")

// Daemon owns a priority queue and a single worker goroutine that
// serially hands queued messages to its handler, lowest Priority value
// first. Producers may enqueue from any goroutine; all processing
// happens on the worker.
//
// The worker blocks until one of three things holds: the queue is
// non-empty, shutdown was requested, or a sleep request is pending.
// All three flags and the queue are guarded by one mutex, and the wake
// predicate is evaluated under that same mutex.
type Daemon[T any] struct {
	options
	handler Handler[T]
	tracer  trace.Tracer

	mu    sync.Mutex
	cond  *sync.Cond
	queue queue[T]
	// pendingSleep is the not-yet-honored sleep request, consumed and
	// reset only by the worker. Guarded by mu so it participates in the
	// wake predicate.
	pendingSleep time.Duration

	state     atomic.Int32
	sleeping  atomic.Bool
	lastDelay atomic.Duration
	done      chan struct{}
}

// New builds a daemon around handler. The worker does not start until
// Start is called. Panics on a nil handler.
func New[T any](handler Handler[T], opts ...Option) *Daemon[T] {
	if handler == nil {
		panic("daemon: nil handler")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	d := &Daemon[T]{
		options: o,
		handler: handler,
		tracer:  otel.GetTracerProvider().Tracer("github.com/dispatchd/dispatchd/internal/daemon"),
		done:    make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Start spawns the worker goroutine. Calling it while the daemon is
// already running is a no-op; calling it after termination returns
// ErrTerminated.
func (d *Daemon[T]) Start() error {
	if d.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		if d.logger != nil {
			d.logger.Debug("daemon starting", zap.String("name", d.name))
		}
		go d.run()
		return nil
	}
	if State(d.state.Load()) == StateTerminated {
		return ErrTerminated
	}
	return nil
}

// Stop requests shutdown and blocks until the worker has drained its
// queue and terminated. Stopping an unstarted daemon is a no-op.
func (d *Daemon[T]) Stop() {
	_ = d.Shutdown(context.Background())
}

// Shutdown is Stop with a deadline: it requests shutdown and waits for
// the worker until ctx is done. On timeout the worker keeps draining in
// the background and Shutdown returns the context error.
func (d *Daemon[T]) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	switch State(d.state.Load()) {
	case StateIdle:
		d.mu.Unlock()
		return nil
	case StateRunning:
		d.state.Store(int32(StateDraining))
	}
	d.mu.Unlock()
	d.cond.Signal()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue pushes a message and wakes the worker. It never fails and
// never blocks beyond the critical section. Messages enqueued after
// termination are accepted but never processed.
func (d *Daemon[T]) Enqueue(msg Message[T]) {
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now()
	}
	d.mu.Lock()
	d.queue.push(msg)
	d.mu.Unlock()
	d.cond.Signal()
}

// Dequeue pops the highest-priority message without blocking. ok is
// false on an empty queue; that is a normal result, not an error. It is
// safe on a never-started daemon, which is how a backlog can be drained
// manually.
func (d *Daemon[T]) Dequeue() (Message[T], bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.pop()
}

// Drain dequeues and handles messages until the queue is empty or ctx
// is done, returning the number handled. It is the default AfterLoop
// behavior and may also be called from a custom AfterLoop or on a
// never-started daemon.
func (d *Daemon[T]) Drain(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil {
		msg, ok := d.Dequeue()
		if !ok {
			break
		}
		d.handle(ctx, msg)
		n++
	}
	return n
}

// Sleep asks the worker to pause for dur before its next dequeue. The
// request is dropped (returning false) while a previous one is actively
// being honored, so delays never stack; a pending, not-yet-honored
// request is overwritten. A request made while the daemon is idle or
// draining is remembered but only honored if the loop runs again.
func (d *Daemon[T]) Sleep(dur time.Duration) bool {
	if dur <= 0 || d.sleeping.Load() {
		return false
	}
	d.mu.Lock()
	d.pendingSleep = dur
	d.mu.Unlock()
	d.cond.Signal()
	return true
}

// State reports the lifecycle phase. Safe from any goroutine.
func (d *Daemon[T]) State() State { return State(d.state.Load()) }

// Running reports whether the worker loop is live.
func (d *Daemon[T]) Running() bool { return d.State() == StateRunning }

// Sleeping reports whether the worker is currently honoring a sleep
// request.
func (d *Daemon[T]) Sleeping() bool { return d.sleeping.Load() }

// LastDelay is the enqueue-to-handled latency of the most recently
// processed message. Written only by the worker, readable anywhere.
func (d *Daemon[T]) LastDelay() time.Duration { return d.lastDelay.Load() }

// Len is the current queue depth.
func (d *Daemon[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.len()
}

// Done closes once the worker has fully terminated.
func (d *Daemon[T]) Done() <-chan struct{} { return d.done }

func (d *Daemon[T]) Name() string { return d.name }

// wakeLocked is the three-way wake predicate. Caller holds mu. The
// worker may proceed when one of these holds:
// a) the queue is non-empty;
// b) shutdown was requested;
// c) a sleep request is pending.
func (d *Daemon[T]) wakeLocked() bool {
	return d.queue.len() > 0 || State(d.state.Load()) != StateRunning || d.pendingSleep > 0
}

func (d *Daemon[T]) run() {
	// Handlers and hooks run detached from Stop's caller; shutdown must
	// not cancel the message currently being handled.
	ctx := context.Background()

	defer close(d.done)
	defer d.state.Store(int32(StateTerminated))
	defer func() {
		if r := recover(); r != nil {
			if d.logger != nil {
				d.logger.Error("daemon worker crashed",
					zap.String("name", d.name),
					zap.Any("panic", r))
			}
		}
	}()

	if d.hooks.BeforeLoop != nil {
		d.hooks.BeforeLoop(ctx)
	}

	for State(d.state.Load()) == StateRunning {
		d.mu.Lock()
		for !d.wakeLocked() {
			d.cond.Wait()
		}
		sleep := d.pendingSleep
		d.pendingSleep = 0
		d.mu.Unlock()

		if sleep > 0 {
			d.sleeping.Store(true)
			time.Sleep(sleep)
			d.sleeping.Store(false)
			continue
		}

		if d.hooks.BeforeEach != nil {
			d.hooks.BeforeEach(ctx)
		}

		if msg, ok := d.Dequeue(); ok {
			d.handle(ctx, msg)
			d.lastDelay.Store(time.Since(msg.EnqueuedAt))
		}

		if d.hooks.AfterEach != nil {
			d.hooks.AfterEach(ctx)
		}
	}

	if d.hooks.AfterLoop != nil {
		d.hooks.AfterLoop(ctx)
	} else {
		d.Drain(ctx)
	}

	if d.logger != nil {
		d.logger.Debug("daemon terminated", zap.String("name", d.name))
	}
}

// handle runs one message through the handler, isolating errors and
// panics so a bad message cannot kill the worker.
func (d *Daemon[T]) handle(ctx context.Context, msg Message[T]) {
	handlerCtx, span := d.tracer.Start(ctx, d.actionWithName("Daemon.Handle"))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			if d.logger != nil {
				d.logger.Ctx(handlerCtx).Error("daemon handler panic",
					zap.String("name", d.name),
					zap.Int("kind", msg.Kind),
					zap.Int("priority", msg.Priority),
					zap.Any("panic", r))
			}
		}
	}()

	if err := d.handler.Handle(handlerCtx, msg); err != nil {
		span.RecordError(err)
		if d.logger != nil {
			d.logger.Ctx(handlerCtx).Error("daemon handler error",
				zap.String("name", d.name),
				zap.Int("kind", msg.Kind),
				zap.Int("priority", msg.Priority),
				zap.Error(err))
		}
	}
}

func (d *Daemon[T]) actionWithName(action string) string {
	if d.name == "" {
		return action
	}
	return d.name + "." + action
}
