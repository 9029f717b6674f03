package jsrt

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dop251/goja"
	"github.com/joeycumines/jsinterop/internal/interop"
)

// Import loads locator through the runtime loader and evaluates it as a
// CommonJS module. The source is fetched off the loop; only evaluation runs
// on it. The returned reference wraps module.exports.
func (rt *Runtime) Import(ctx context.Context, locator string) (interop.ObjectReference, error) {
	if rt.OnLoop() {
		return nil, ErrOnLoop
	}
	src, err := rt.loader.Load(ctx, locator)
	if err != nil {
		return nil, err
	}

	var exports *goja.Object
	err = rt.Do(ctx, func(vm *goja.Runtime) error {
		exports, err = evalModule(vm, locator, src)
		return err
	})
	if err != nil {
		return nil, err
	}
	rt.logger.Debug("module imported", slog.String("locator", locator))
	return &objectRef{rt: rt, locator: locator, obj: exports}, nil
}

// evalModule runs src with the usual CommonJS bindings and returns
// module.exports. It must be called on the loop.
func evalModule(vm *goja.Runtime, locator string, src []byte) (*goja.Object, error) {
	prg, err := goja.Compile(locator, "(function(exports, module, require) {"+string(src)+"\n})", false)
	if err != nil {
		return nil, err
	}
	wrapper, err := vm.RunProgram(prg)
	if err != nil {
		return nil, remoteError(err)
	}
	fn, ok := goja.AssertFunction(wrapper)
	if !ok {
		return nil, fmt.Errorf("jsrt: module %s did not compile to a function", locator)
	}

	module := vm.NewObject()
	exports := vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, err
	}
	if _, err := fn(goja.Undefined(), exports, module, vm.Get("require")); err != nil {
		return nil, remoteError(err)
	}

	v := module.Get("exports")
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, fmt.Errorf("jsrt: module %s has no exports", locator)
	}
	return v.ToObject(vm), nil
}

// objectRef is an interop.ObjectReference backed by a script object.
// obj is only touched on the loop.
type objectRef struct {
	rt       *Runtime
	locator  string
	obj      *goja.Object
	released atomic.Bool
}

// Invoke calls the function property identifier with this as the object.
// A returned promise is awaited; the settled value is serialized with
// JSON.stringify and decoded into result.
func (o *objectRef) Invoke(ctx context.Context, identifier string, result any, args ...any) error {
	if o.released.Load() {
		return ErrReleased
	}
	var payload interop.Payload
	err := o.rt.await(ctx, func(vm *goja.Runtime, settle func(error)) {
		if o.released.Load() {
			settle(ErrReleased)
			return
		}
		fn, ok := goja.AssertFunction(o.obj.Get(identifier))
		if !ok {
			settle(fmt.Errorf("jsrt: %s: %q is not a function", o.locator, identifier))
			return
		}
		values, err := o.rt.convertArgs(vm, args)
		if err != nil {
			settle(err)
			return
		}
		v, err := fn(o.obj, values...)
		if err != nil {
			settle(remoteError(err))
			return
		}
		o.rt.settleValue(vm, v, func(v goja.Value, err error) {
			if err == nil && result != nil {
				payload, err = stringify(vm, v)
			}
			settle(err)
		})
	})
	if err != nil || result == nil {
		return err
	}
	return payload.Decode(result)
}

// Release drops the runtime's hold on the object. Later calls return
// ErrReleased.
func (o *objectRef) Release(ctx context.Context) error {
	if o.released.Swap(true) {
		return nil
	}
	return o.rt.Do(ctx, func(*goja.Runtime) error {
		o.obj = nil
		return nil
	})
}

// settleValue reports v, following it if it is a promise. It must be called
// on the loop; done runs on the loop.
func (rt *Runtime) settleValue(vm *goja.Runtime, v goja.Value, done func(goja.Value, error)) {
	p, ok := exportPromise(v)
	if !ok {
		done(v, nil)
		return
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		done(p.Result(), nil)
		return
	case goja.PromiseStateRejected:
		done(nil, reasonError(p.Result()))
		return
	}
	then, _ := goja.AssertFunction(v.ToObject(vm).Get("then"))
	onFulfilled := func(call goja.FunctionCall) goja.Value {
		done(call.Argument(0), nil)
		return goja.Undefined()
	}
	onRejected := func(call goja.FunctionCall) goja.Value {
		done(nil, reasonError(call.Argument(0)))
		return goja.Undefined()
	}
	if _, err := then(v, vm.ToValue(onFulfilled), vm.ToValue(onRejected)); err != nil {
		done(nil, remoteError(err))
	}
}

func exportPromise(v goja.Value) (*goja.Promise, bool) {
	if v == nil {
		return nil, false
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	p, ok := obj.Export().(*goja.Promise)
	return p, ok
}

// stringify serializes v with the script side JSON.stringify. Undefined and
// functions yield an empty payload.
func stringify(vm *goja.Runtime, v goja.Value) (interop.Payload, error) {
	if v == nil || goja.IsUndefined(v) {
		return nil, nil
	}
	json := vm.Get("JSON").ToObject(vm)
	fn, _ := goja.AssertFunction(json.Get("stringify"))
	s, err := fn(json, v)
	if err != nil {
		return nil, fmt.Errorf("jsrt: serialize result: %w", remoteError(err))
	}
	if goja.IsUndefined(s) {
		return nil, nil
	}
	return interop.Payload(s.String()), nil
}
