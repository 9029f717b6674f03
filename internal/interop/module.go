package interop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Module is an asynchronously loaded proxy for a script module.
//
// The load starts in [Import] and completes in the background. Calls made
// through the Module wait until the load has settled, then forward to the
// underlying module. Waiting never blocks the script runtime, only the calling
// goroutine.
//
// The underlying reference is owned exclusively by the Module. It is set if
// and only if the load succeeded and the Module has not been closed.
type Module struct {
	locator string
	logger  *slog.Logger

	// ready is closed once the load has settled, successfully or not.
	ready chan struct{}
	// done is closed by the first Close.
	done chan struct{}

	cancel         context.CancelFunc
	releaseTimeout time.Duration

	mu     sync.Mutex
	ref    ObjectReference
	err    error
	closed bool
}

// Invoker is implemented by anything that forwards named calls to the script
// side, e.g. *Module and ObjectReference.
type Invoker interface {
	Invoke(ctx context.Context, identifier string, result any, args ...any) error
}

// Import creates a Module for locator and starts loading it. It returns
// immediately and never fails; a load failure is reported by [Module.Wait]
// and by every call made through the Module.
func Import(importer Importer, locator string, opts ...Option) *Module {
	o := resolveOptions(opts)
	ctx, cancel := context.WithCancel(o.ctx)
	m := &Module{
		locator:        locator,
		logger:         o.logger.With(slog.String("module", locator)),
		ready:          make(chan struct{}),
		done:           make(chan struct{}),
		cancel:         cancel,
		releaseTimeout: o.releaseTimeout,
	}
	go m.load(ctx, importer)
	return m
}

func (m *Module) load(ctx context.Context, importer Importer) {
	defer close(m.ready)

	ref, err := importer.Import(ctx, m.locator)

	m.mu.Lock()
	if err != nil {
		m.err = &LoadError{Locator: m.locator, Err: err}
		closed := m.closed
		m.mu.Unlock()
		if closed {
			m.logger.Debug("module load abandoned", slog.Any("error", err))
		} else {
			m.logger.Error("module load failed", slog.Any("error", err))
		}
		return
	}
	if m.closed {
		m.mu.Unlock()
		// closed mid-load, the reference was never published
		m.release(ref)
		return
	}
	m.ref = ref
	m.mu.Unlock()

	m.logger.Debug("module ready")
}

// Locator returns the locator the Module was imported from.
func (m *Module) Locator() string {
	return m.locator
}

// Ready returns a channel that is closed once the load has settled.
// It does not distinguish success from failure; use Wait for that.
func (m *Module) Ready() <-chan struct{} {
	return m.ready
}

// IsReady reports whether the module loaded successfully and is not closed.
func (m *Module) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ref != nil
}

// Wait blocks until the load has settled, the Module is closed, or ctx is
// done. It returns nil only if the module is loaded and usable.
func (m *Module) Wait(ctx context.Context) error {
	_, err := m.acquire(ctx)
	return err
}

func (m *Module) acquire(ctx context.Context) (ObjectReference, error) {
	select {
	case <-m.ready:
	case <-m.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.closed:
		return nil, ErrClosed
	case m.err != nil:
		return nil, m.err
	}
	return m.ref, nil
}

// Invoke waits for the module to be ready, then calls identifier on it.
// Failures from the script side are returned unchanged.
func (m *Module) Invoke(ctx context.Context, identifier string, result any, args ...any) error {
	ref, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	return ref.Invoke(ctx, identifier, result, args...)
}

// InvokeVoid is Invoke without a result.
func (m *Module) InvokeVoid(ctx context.Context, identifier string, args ...any) error {
	return m.Invoke(ctx, identifier, nil, args...)
}

// Close releases the underlying module. It is idempotent: only the first
// call does any work, later calls return nil.
//
// Callers must not race Close against calls that are already in flight on
// the script side; the outcome of such calls is unspecified. Callers still
// waiting for readiness receive ErrClosed.
func (m *Module) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	ref := m.ref
	m.ref = nil
	m.mu.Unlock()

	close(m.done)
	m.cancel()

	if ref == nil {
		return nil
	}
	return m.release(ref)
}

func (m *Module) release(ref ObjectReference) error {
	ctx := context.Background()
	if m.releaseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.releaseTimeout)
		defer cancel()
	}
	if err := ref.Release(ctx); err != nil {
		m.logger.Warn("module release failed", slog.Any("error", err))
		return fmt.Errorf("interop: release module %q: %w", m.locator, err)
	}
	m.logger.Debug("module released")
	return nil
}

// Call invokes identifier through inv and decodes the result as T.
func Call[T any](ctx context.Context, inv Invoker, identifier string, args ...any) (T, error) {
	var out T
	if err := inv.Invoke(ctx, identifier, &out, args...); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
