package daemon

import "context"

// Handler processes one dequeued message on the worker goroutine. A
// returned error is logged and the worker moves on to the next message;
// it never stops the loop. Handle should not block indefinitely: there
// is exactly one worker, so its latency delays every message behind it.
type Handler[T any] interface {
	Handle(ctx context.Context, msg Message[T]) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc[T any] func(ctx context.Context, msg Message[T]) error

func (f HandlerFunc[T]) Handle(ctx context.Context, msg Message[T]) error {
	return f(ctx, msg)
}

// Hooks are optional extension points, all invoked on the worker
// goroutine, never from producers. BeforeEach and AfterEach run every
// iteration, including those where the queue came up empty. AfterLoop
// replaces the default shutdown drain when set; a custom AfterLoop that
// still wants the drain calls (*Daemon).Drain itself.
type Hooks struct {
	BeforeLoop func(ctx context.Context)
	BeforeEach func(ctx context.Context)
	AfterEach  func(ctx context.Context)
	AfterLoop  func(ctx context.Context)
}
