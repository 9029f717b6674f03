package interop

import (
	"context"
	"log/slog"
	"time"
)

// DefaultReleaseTimeout bounds the remote release performed by Close.
const DefaultReleaseTimeout = 5 * time.Second

// Option configures a Module or a callback handle.
type Option func(*options)

type options struct {
	ctx            context.Context
	logger         *slog.Logger
	releaseTimeout time.Duration
}

// WithContext sets the parent context of a Module's background load.
// Cancelling it abandons the load; waiters then observe a LoadError.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithReleaseTimeout bounds the remote release performed by Module.Close.
func WithReleaseTimeout(d time.Duration) Option {
	return func(o *options) {
		o.releaseTimeout = d
	}
}

func resolveOptions(opts []Option) options {
	o := options{
		ctx:            context.Background(),
		logger:         slog.Default(),
		releaseTimeout: DefaultReleaseTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
