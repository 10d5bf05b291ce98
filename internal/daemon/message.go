package daemon

import "time"

// Message carries one unit of work through the queue. Priority orders
// dequeues, lowest value first. Kind is an opaque tag for the handler to
// switch on; the daemon never interprets it. A message is immutable once
// enqueued, only its queue position changes.
type Message[T any] struct {
	Priority   int
	Kind       int
	Payload    T
	EnqueuedAt time.Time
}

// NewMessage stamps the enqueue time at construction. Enqueue stamps it
// anyway when left zero, so building a Message literal works too.
func NewMessage[T any](priority, kind int, payload T) Message[T] {
	return Message[T]{
		Priority:   priority,
		Kind:       kind,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}
}
