package worker

import "context"

// Worker is a long-running unit of the process, executed and supervised
// in its own goroutine.
//
// Run must block until the context is cancelled or a fatal error occurs.
// Returning nil or context.Canceled counts as a graceful stop; any other
// error marks the worker failed.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}
