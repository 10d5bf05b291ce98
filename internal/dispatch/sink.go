package dispatch

import "context"

// Sink is the external target a dispatched record is written to.
// Implementations live in internal/sink; the interface sits on the
// consumer side so implementations can depend on the Record type
// without an import cycle.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, record *Record) error
	Close() error
}
