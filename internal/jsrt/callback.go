package jsrt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/joeycumines/jsinterop/internal/interop"
)

type callbackTable struct {
	mu      sync.Mutex
	entries map[string]interop.Receiver
}

func (t *callbackTable) get(id string) (interop.Receiver, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.entries[id]
	return r, ok
}

// LiveCallbacks returns the number of live callback references.
func (rt *Runtime) LiveCallbacks() int {
	rt.callbacks.mu.Lock()
	defer rt.callbacks.mu.Unlock()
	return len(rt.callbacks.entries)
}

// RegisterCallback mints a reference for r. The script side receives it as
// an object with an id and an invoke(payload) method.
func (rt *Runtime) RegisterCallback(r interop.Receiver) (interop.CallbackReference, error) {
	if r == nil {
		return nil, errors.New("jsrt: nil receiver")
	}
	if !rt.IsRunning() {
		return nil, ErrNotRunning
	}
	id := uuid.NewString()
	rt.callbacks.mu.Lock()
	rt.callbacks.entries[id] = r
	rt.callbacks.mu.Unlock()
	return &callbackRef{rt: rt, id: id}, nil
}

type callbackRef struct {
	rt *Runtime
	id string
}

func (c *callbackRef) ID() string { return c.id }

func (c *callbackRef) Release() {
	c.rt.callbacks.mu.Lock()
	delete(c.rt.callbacks.entries, c.id)
	c.rt.callbacks.mu.Unlock()
}

// callbackProxy builds the script side view of a callback reference.
// invoke serializes its argument with JSON.stringify, hands it to the
// receiver and returns a promise that settles once the host action has run
// on its own goroutine. Invoking a released reference throws.
func (rt *Runtime) callbackProxy(vm *goja.Runtime, id string) goja.Value {
	obj := vm.NewObject()
	_ = obj.Set("id", id)
	_ = obj.Set("invoke", func(call goja.FunctionCall) goja.Value {
		recv, ok := rt.callbacks.get(id)
		if !ok {
			panic(rt.disposedCallback(vm, id))
		}
		payload, err := stringify(vm, call.Argument(0))
		if err != nil {
			panic(vm.NewGoError(err))
		}
		run, err := recv.Receive(payload)
		if errors.Is(err, interop.ErrClosed) {
			panic(rt.disposedCallback(vm, id))
		}
		if err != nil {
			panic(vm.NewGoError(err))
		}

		p, resolve, reject := vm.NewPromise()
		go func() {
			var failure error
			func() {
				defer func() {
					if r := recover(); r != nil {
						failure = fmt.Errorf("jsrt: callback %s panicked: %v", id, r)
					}
				}()
				run()
			}()
			rt.RunOnLoop(func(vm *goja.Runtime) {
				if failure != nil {
					rt.logger.Error("callback action failed", slog.String("callback", id), slog.Any("error", failure))
					_ = reject(vm.NewGoError(failure))
					return
				}
				_ = resolve(goja.Undefined())
			})
		}()
		return vm.ToValue(p)
	})
	return obj
}

func (rt *Runtime) disposedCallback(vm *goja.Runtime, id string) *goja.Object {
	rt.logger.Warn("disposed callback invoked", slog.String("callback", id))
	return vm.NewGoError(fmt.Errorf("callback %s has been disposed: %w", id, interop.ErrClosed))
}
