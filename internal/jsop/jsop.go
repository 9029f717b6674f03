// Package jsop is a typed façade over the built-in script module: console
// logging, alerts, event listeners, downloads, script and stylesheet
// inclusion with dedup, and a handful of element operations.
//
// A Bridge owns exactly one interop.Module for its whole lifetime and holds
// no other state. Every method waits for the module to load, then issues one
// named call. Remote failures are returned unchanged.
package jsop

import (
	"context"
	"log/slog"
	"time"

	"github.com/joeycumines/jsinterop/internal/interop"
)

// Runtime is what a Bridge needs from the script side.
type Runtime interface {
	interop.Importer
	interop.CallbackRegistrar
}

type options struct {
	locator        string
	logger         *slog.Logger
	ctx            context.Context
	releaseTimeout time.Duration
}

// Option configures a Bridge.
type Option func(*options)

// WithLocator overrides the locator of the built-in module.
func WithLocator(locator string) Option {
	return func(o *options) { o.locator = locator }
}

// WithLogger sets the logger for the Bridge, its module and the callbacks it
// creates.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithContext bounds the background module load.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithReleaseTimeout bounds the module release performed by Close.
func WithReleaseTimeout(d time.Duration) Option {
	return func(o *options) { o.releaseTimeout = d }
}

// Bridge is the typed operation surface. It is safe for concurrent use.
type Bridge struct {
	rt     Runtime
	module *interop.Module
	logger *slog.Logger
}

// New creates a Bridge and starts loading its module. It returns at once;
// a load failure is reported by the first operation (or Wait).
func New(rt Runtime, opts ...Option) *Bridge {
	o := options{
		locator:        Locator,
		logger:         slog.Default(),
		ctx:            context.Background(),
		releaseTimeout: interop.DefaultReleaseTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Bridge{
		rt: rt,
		module: interop.Import(rt, o.locator,
			interop.WithContext(o.ctx),
			interop.WithLogger(o.logger),
			interop.WithReleaseTimeout(o.releaseTimeout)),
		logger: o.logger,
	}
}

// Module returns the underlying module handle.
func (b *Bridge) Module() *interop.Module {
	return b.module
}

// Wait blocks until the module has loaded, or fails to.
func (b *Bridge) Wait(ctx context.Context) error {
	return b.module.Wait(ctx)
}

// Close releases the module. It is idempotent; operations afterwards fail
// with interop.ErrClosed.
func (b *Bridge) Close() error {
	return b.module.Close()
}

func (b *Bridge) callVoid(ctx context.Context, op Op, args ...any) error {
	b.logger.Debug("jsop call", slog.String("op", op.String()))
	return b.module.InvokeVoid(ctx, op.String(), args...)
}

func call[T any](ctx context.Context, b *Bridge, op Op, args ...any) (T, error) {
	b.logger.Debug("jsop call", slog.String("op", op.String()))
	return interop.Call[T](ctx, b.module, op.String(), args...)
}

// Log prints data on the remote console. Strings are printed as is, other
// values as JSON.
func (b *Bridge) Log(ctx context.Context, data any) error {
	return b.callVoid(ctx, OpLog, data)
}

// LogLine prints an empty line on the remote console.
func (b *Bridge) LogLine(ctx context.Context) error {
	return b.Log(ctx, "\n")
}

// Alert shows msg through window.alert.
func (b *Bridge) Alert(ctx context.Context, msg string) error {
	return b.callVoid(ctx, OpAlert, msg)
}
