package jsrt

import (
	"errors"

	"github.com/dop251/goja"
	"github.com/joeycumines/jsinterop/internal/interop"
)

var (
	// ErrNotRunning is returned when work is scheduled on a runtime that has
	// not started or has been closed.
	ErrNotRunning = errors.New("jsrt: event loop not running")

	// ErrOnLoop is returned by blocking operations called from the loop
	// goroutine, where waiting would deadlock.
	ErrOnLoop = errors.New("jsrt: blocking call from the event loop goroutine")

	// ErrReleased is returned by calls on a released object reference.
	ErrReleased = errors.New("jsrt: object reference released")
)

// remoteError converts a thrown or rejected script value into an
// *interop.RemoteError. Go errors thrown through the runtime are unwrapped
// and returned as is.
func remoteError(err error) error {
	var ex *goja.Exception
	if !errors.As(err, &ex) {
		return err
	}
	if inner := ex.Unwrap(); inner != nil {
		return inner
	}
	return reasonError(ex.Value())
}

func reasonError(v goja.Value) error {
	re := &interop.RemoteError{}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		re.Message = "undefined"
		return re
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		re.Message = v.String()
		return re
	}
	if name := obj.Get("name"); name != nil && name.String() == "GoError" {
		if val := obj.Get("value"); val != nil {
			if gerr, ok := val.Export().(error); ok {
				return gerr
			}
		}
	}
	if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
		re.Message = msg.String()
		if name := obj.Get("name"); name != nil && !goja.IsUndefined(name) {
			re.Name = name.String()
		}
		if stack := obj.Get("stack"); stack != nil && !goja.IsUndefined(stack) {
			re.Stack = stack.String()
		}
		return re
	}
	re.Message = v.String()
	return re
}
