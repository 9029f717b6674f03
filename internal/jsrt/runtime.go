package jsrt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/jsinterop/internal/goroutineid"
	"github.com/joeycumines/jsinterop/internal/interop"
)

// DefaultSyncTimeout is the maximum duration RunOnLoopSync waits for.
const DefaultSyncTimeout = 5 * time.Second

// Runtime owns a goja runtime and the event loop that serializes access to
// it. It is the only way the rest of the module touches goja.
//
// Lifecycle: NewRuntime starts the loop; Close stops it. The context passed
// to NewRuntime only triggers Close, the runtime keeps its own lifecycle
// context so shutdown is clean regardless of the parent.
type Runtime struct {
	loop     *eventloop.EventLoop
	registry *require.Registry
	logger   *slog.Logger
	loader   SourceLoader
	printer  console.Printer

	// loopID is captured once the loop starts, see TryRunOnLoopSync.
	loopID atomic.Int64

	mu         sync.RWMutex
	started    bool
	stopped    bool
	timeout    time.Duration
	converters []Converter

	callbacks callbackTable

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger for runtime diagnostics. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

// WithLoader sets the loader Import fetches module source through.
func WithLoader(loader SourceLoader) Option {
	return func(rt *Runtime) { rt.loader = loader }
}

// WithRegistry shares an existing require registry with the runtime.
func WithRegistry(registry *require.Registry) Option {
	return func(rt *Runtime) { rt.registry = registry }
}

// WithSyncTimeout sets the RunOnLoopSync timeout. Zero disables it.
func WithSyncTimeout(d time.Duration) Option {
	return func(rt *Runtime) { rt.timeout = d }
}

// WithConsole routes the script side console to p. By default console
// output goes to the runtime logger.
func WithConsole(p console.Printer) Option {
	return func(rt *Runtime) { rt.printer = p }
}

// WithConverter adds an argument converter, consulted before the built-in
// conversions.
func WithConverter(c Converter) Option {
	return func(rt *Runtime) { rt.converters = append(rt.converters, c) }
}

// NewRuntime creates a Runtime and starts its event loop. Canceling ctx
// closes the runtime.
func NewRuntime(ctx context.Context, opts ...Option) (*Runtime, error) {
	lifecycle, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		logger:  slog.Default(),
		timeout: DefaultSyncTimeout,
		ctx:     lifecycle,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.registry == nil {
		rt.registry = require.NewRegistry()
	}
	if rt.loader == nil {
		rt.loader = Router{}
	}
	if rt.printer == nil {
		rt.printer = LogPrinter{Logger: rt.logger}
	}
	rt.callbacks.entries = make(map[string]interop.Receiver)
	rt.registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(rt.printer))

	rt.loop = eventloop.NewEventLoop(
		eventloop.WithRegistry(rt.registry),
		eventloop.EnableConsole(false),
	)
	rt.loop.Start()
	rt.mu.Lock()
	rt.started = true
	rt.mu.Unlock()

	errCh := make(chan error, 1)
	ok := rt.loop.RunOnLoop(func(vm *goja.Runtime) {
		rt.loopID.Store(goroutineid.Get())
		errCh <- vm.Set("console", require.Require(vm, console.ModuleName))
	})
	if !ok {
		cancel()
		return nil, ErrNotRunning
	}
	if err := <-errCh; err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("jsrt: initialize runtime: %w", err)
	}

	if ctx.Done() != nil {
		context.AfterFunc(ctx, func() { _ = rt.Close() })
	}
	return rt, nil
}

// Registry returns the require registry for native module registration.
func (rt *Runtime) Registry() *require.Registry {
	return rt.registry
}

// Loader returns the loader used for module and script source.
func (rt *Runtime) Loader() SourceLoader {
	return rt.loader
}

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger {
	return rt.logger
}

// Context returns the runtime lifecycle context, canceled by Close.
func (rt *Runtime) Context() context.Context {
	return rt.ctx
}

// Done returns a channel closed when the runtime is stopped.
func (rt *Runtime) Done() <-chan struct{} {
	return rt.ctx.Done()
}

// IsRunning reports whether the loop is started and not stopped.
func (rt *Runtime) IsRunning() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.started && !rt.stopped
}

// SetTimeout sets the RunOnLoopSync timeout. Zero disables it.
func (rt *Runtime) SetTimeout(timeout time.Duration) {
	rt.mu.Lock()
	rt.timeout = timeout
	rt.mu.Unlock()
}

// Timeout returns the RunOnLoopSync timeout.
func (rt *Runtime) Timeout() time.Duration {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.timeout
}

// RegisterConverter adds an argument converter after construction.
func (rt *Runtime) RegisterConverter(c Converter) {
	rt.mu.Lock()
	rt.converters = append(rt.converters, c)
	rt.mu.Unlock()
}

// Close stops the event loop. It is safe to call more than once. Pending
// waiters are released with ErrNotRunning.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	if rt.stopped {
		rt.mu.Unlock()
		return nil
	}
	rt.stopped = true
	rt.mu.Unlock()

	rt.cancel()
	rt.loop.Stop()
	return nil
}

// OnLoop reports whether the caller is running on the loop goroutine.
func (rt *Runtime) OnLoop() bool {
	id := rt.loopID.Load()
	return id > 0 && goroutineid.Get() == id
}

// RunOnLoop schedules fn on the loop. It reports false if the loop is not
// running. The *goja.Runtime must not escape fn.
func (rt *Runtime) RunOnLoop(fn func(*goja.Runtime)) bool {
	if !rt.IsRunning() {
		return false
	}
	return rt.loop.RunOnLoop(fn)
}

// RunOnLoopSync runs fn on the loop and waits for it, bounded by the
// runtime timeout. Calling it from the loop goroutine returns ErrOnLoop.
func (rt *Runtime) RunOnLoopSync(fn func(*goja.Runtime) error) error {
	ctx := context.Background()
	if timeout := rt.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := rt.Do(ctx, fn)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("jsrt: operation timed out after %v: %w", rt.Timeout(), err)
	}
	return err
}

// TryRunOnLoopSync runs fn directly when already on the loop goroutine,
// using vm, and otherwise behaves like RunOnLoopSync.
func (rt *Runtime) TryRunOnLoopSync(vm *goja.Runtime, fn func(*goja.Runtime) error) error {
	if !rt.IsRunning() {
		return ErrNotRunning
	}
	if vm != nil && rt.OnLoop() {
		return fn(vm)
	}
	return rt.RunOnLoopSync(fn)
}

// Do runs fn on the loop and waits for it or for ctx.
func (rt *Runtime) Do(ctx context.Context, fn func(*goja.Runtime) error) error {
	return rt.await(ctx, func(vm *goja.Runtime, settle func(error)) {
		settle(fn(vm))
	})
}

// await schedules start on the loop and blocks until start, or something it
// scheduled, calls settle. Only the first settle counts.
func (rt *Runtime) await(ctx context.Context, start func(vm *goja.Runtime, settle func(error))) error {
	if rt.OnLoop() {
		return ErrOnLoop
	}
	done := make(chan error, 1)
	var once sync.Once
	settle := func(err error) {
		once.Do(func() { done <- err })
	}
	if !rt.RunOnLoop(func(vm *goja.Runtime) { start(vm, settle) }) {
		return ErrNotRunning
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-rt.Done():
		return ErrNotRunning
	}
}

// LoadScript compiles and runs code as a classic script.
func (rt *Runtime) LoadScript(name, code string) error {
	return rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		prg, err := goja.Compile(name, code, false)
		if err != nil {
			return fmt.Errorf("jsrt: compile %s: %w", name, err)
		}
		if _, err := vm.RunProgram(prg); err != nil {
			return fmt.Errorf("jsrt: run %s: %w", name, remoteError(err))
		}
		return nil
	})
}

// SetGlobal sets a global variable.
func (rt *Runtime) SetGlobal(name string, value any) error {
	return rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		return vm.Set(name, value)
	})
}

// GetGlobal returns the exported value of a global variable, or nil if it
// is undefined or null.
func (rt *Runtime) GetGlobal(name string) (any, error) {
	var result any
	err := rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		if v := vm.Get(name); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
			result = v.Export()
		}
		return nil
	})
	return result, err
}

// Eval evaluates expr and decodes its JSON serialization into result, which
// may be nil. Promises are awaited.
func (rt *Runtime) Eval(ctx context.Context, expr string, result any) error {
	var payload interop.Payload
	err := rt.await(ctx, func(vm *goja.Runtime, settle func(error)) {
		v, err := vm.RunString(expr)
		if err != nil {
			settle(remoteError(err))
			return
		}
		rt.settleValue(vm, v, func(v goja.Value, err error) {
			if err == nil {
				payload, err = stringify(vm, v)
			}
			settle(err)
		})
	})
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	return payload.Decode(result)
}

var (
	_ interop.Importer          = (*Runtime)(nil)
	_ interop.CallbackRegistrar = (*Runtime)(nil)
)
