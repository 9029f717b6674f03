package jsrt

import (
	"fmt"
	"io"

	"github.com/dop251/goja"
	"github.com/joeycumines/jsinterop/internal/interop"
	"github.com/segmentio/encoding/json"
)

// Converter maps a host argument to a script value. It reports ok=false
// for arguments it does not handle. Converters run on the loop.
type Converter func(vm *goja.Runtime, arg any) (v goja.Value, ok bool, err error)

// convertArgs turns host arguments into script values. Registered
// converters win; then callback and stream references; anything else must
// be JSON compatible and crosses as JSON.
func (rt *Runtime) convertArgs(vm *goja.Runtime, args []any) ([]goja.Value, error) {
	rt.mu.RLock()
	converters := rt.converters
	rt.mu.RUnlock()

	values := make([]goja.Value, len(args))
next:
	for i, arg := range args {
		for _, c := range converters {
			v, ok, err := c(vm, arg)
			if err != nil {
				return nil, fmt.Errorf("jsrt: argument %d: %w", i, err)
			}
			if ok {
				values[i] = v
				continue next
			}
		}
		v, err := rt.convertArg(vm, arg)
		if err != nil {
			return nil, fmt.Errorf("jsrt: argument %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}

func (rt *Runtime) convertArg(vm *goja.Runtime, arg any) (goja.Value, error) {
	switch a := arg.(type) {
	case nil:
		return goja.Null(), nil
	case goja.Value:
		return a, nil
	case interop.CallbackReference:
		return rt.callbackProxy(vm, a.ID()), nil
	case interop.StreamReference:
		return rt.streamProxy(vm, a.Reader), nil
	case *interop.StreamReference:
		if a == nil {
			return goja.Null(), nil
		}
		return rt.streamProxy(vm, a.Reader), nil
	}
	return parseJSON(vm, arg)
}

// parseJSON encodes v on the host and decodes it with JSON.parse, so the
// script side only ever sees plain JSON values.
func parseJSON(vm *goja.Runtime, v any) (goja.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	obj := vm.Get("JSON").ToObject(vm)
	parse, _ := goja.AssertFunction(obj.Get("parse"))
	out, err := parse(obj, vm.ToValue(string(b)))
	if err != nil {
		return nil, remoteError(err)
	}
	return out, nil
}

// streamProxy exposes r as an object whose arrayBuffer() resolves with the
// whole stream. The read happens off the loop.
func (rt *Runtime) streamProxy(vm *goja.Runtime, r io.Reader) goja.Value {
	obj := vm.NewObject()
	var consumed bool
	_ = obj.Set("arrayBuffer", func(call goja.FunctionCall) goja.Value {
		p, resolve, reject := vm.NewPromise()
		if consumed {
			_ = reject(vm.NewTypeError("stream already consumed"))
			return vm.ToValue(p)
		}
		consumed = true
		go func() {
			var (
				data []byte
				err  error
			)
			if r != nil {
				data, err = io.ReadAll(r)
			}
			rt.RunOnLoop(func(vm *goja.Runtime) {
				if err != nil {
					_ = reject(vm.NewGoError(err))
					return
				}
				_ = resolve(vm.NewArrayBuffer(data))
			})
		}()
		return vm.ToValue(p)
	})
	return obj
}
