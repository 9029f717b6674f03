package interop

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// handle is the reference + latch shared by both callback flavours.
type handle struct {
	ref    CallbackReference
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

func (h *handle) register(r CallbackRegistrar, recv Receiver, opts []Option) error {
	o := resolveOptions(opts)
	ref, err := r.RegisterCallback(recv)
	if err != nil {
		return fmt.Errorf("interop: register callback: %w", err)
	}
	h.ref = ref
	h.logger = o.logger.With(slog.String("callback", ref.ID()))
	return nil
}

func (h *handle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *handle) close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.ref.Release()
	h.logger.Debug("callback released")
	return nil
}

// Callback is a host-side action the script side can invoke by reference,
// without a payload.
//
// After Close, the reference is released. The script side must not keep
// using it: invoking a released reference raises an error on the script side
// and is logged on the host, it is never silently treated as a no-op.
type Callback struct {
	handle
	action atomic.Pointer[func()]
}

// NewCallback allocates a Callback and its reference. The action starts unset.
func NewCallback(r CallbackRegistrar, opts ...Option) (*Callback, error) {
	c := new(Callback)
	if err := c.register(r, callbackReceiver{c}, opts); err != nil {
		return nil, err
	}
	return c, nil
}

// SetCallback replaces the action. The last write wins; nothing is invoked.
func (c *Callback) SetCallback(fn func()) {
	c.action.Store(&fn)
}

// Invoke runs the action if one is set. With no action it does nothing.
func (c *Callback) Invoke() {
	if fn := c.action.Load(); fn != nil && *fn != nil {
		(*fn)()
	}
}

// Reference returns the reference to hand to the script side.
func (c *Callback) Reference() CallbackReference {
	return c.ref
}

// Close releases the reference. It is idempotent.
func (c *Callback) Close() error {
	return c.close()
}

type callbackReceiver struct{ c *Callback }

func (r callbackReceiver) Receive(Payload) (func(), error) {
	if r.c.isClosed() {
		return nil, ErrClosed
	}
	return r.c.Invoke, nil
}

// PayloadCallback is a Callback whose action receives one value of type T,
// decoded from the payload the script side passes.
type PayloadCallback[T any] struct {
	handle
	action atomic.Pointer[func(T)]
}

// NewPayloadCallback allocates a PayloadCallback and its reference.
func NewPayloadCallback[T any](r CallbackRegistrar, opts ...Option) (*PayloadCallback[T], error) {
	c := new(PayloadCallback[T])
	if err := c.register(r, payloadReceiver[T]{c}, opts); err != nil {
		return nil, err
	}
	return c, nil
}

// SetCallback replaces the action. The last write wins; nothing is invoked.
func (c *PayloadCallback[T]) SetCallback(fn func(T)) {
	c.action.Store(&fn)
}

// Invoke runs the action with v if one is set. With no action it does nothing.
func (c *PayloadCallback[T]) Invoke(v T) {
	if fn := c.action.Load(); fn != nil && *fn != nil {
		(*fn)(v)
	}
}

// Reference returns the reference to hand to the script side.
func (c *PayloadCallback[T]) Reference() CallbackReference {
	return c.ref
}

// Close releases the reference. It is idempotent.
func (c *PayloadCallback[T]) Close() error {
	return c.close()
}

type payloadReceiver[T any] struct{ c *PayloadCallback[T] }

func (r payloadReceiver[T]) Receive(p Payload) (func(), error) {
	if r.c.isClosed() {
		return nil, ErrClosed
	}
	var v T
	if err := p.Decode(&v); err != nil {
		return nil, fmt.Errorf("interop: decode callback payload as %T: %w", v, err)
	}
	return func() { r.c.Invoke(v) }, nil
}

// WithCallback creates a Callback, passes it to use, and closes it on every
// exit path. The error from use takes precedence; a close error is joined.
func WithCallback(r CallbackRegistrar, use func(*Callback) error, opts ...Option) (err error) {
	c, err := NewCallback(r, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return use(c)
}
