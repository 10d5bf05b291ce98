package daemon

import "github.com/dispatchd/dispatchd/internal/logging"

type options struct {
	name   string
	logger *logging.Logger
	hooks  Hooks
}

type Option func(*options)

// WithName labels the daemon in logs and trace span names.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithHooks(hooks Hooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}
