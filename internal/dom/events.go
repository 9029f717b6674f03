package dom

import (
	"log/slog"
	"time"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

const (
	stopFlag      = "__stop"
	stopNowFlag   = "__stopNow"
	preventedFlag = "defaultPrevented"
)

// eventConstructor backs both Event and CustomEvent.
func (d *Document) eventConstructor(call goja.ConstructorCall, vm *goja.Runtime) *goja.Object {
	this := call.This
	typ := call.Argument(0)
	if goja.IsUndefined(typ) {
		panic(vm.NewTypeError("Event: type argument is required"))
	}
	var bubbles, cancelable bool
	detail := goja.Null()
	if init, ok := call.Argument(1).(*goja.Object); ok {
		if v := init.Get("bubbles"); v != nil {
			bubbles = v.ToBoolean()
		}
		if v := init.Get("cancelable"); v != nil {
			cancelable = v.ToBoolean()
		}
		if v := init.Get("detail"); v != nil && !goja.IsUndefined(v) {
			detail = v
		}
	}
	_ = this.Set("type", typ.String())
	_ = this.Set("bubbles", bubbles)
	_ = this.Set("cancelable", cancelable)
	_ = this.Set("detail", detail)
	_ = this.Set(preventedFlag, false)
	_ = this.Set("target", goja.Null())
	_ = this.Set("currentTarget", goja.Null())
	_ = this.Set("timeStamp", time.Now().UnixMilli())
	_ = this.Set("preventDefault", func(goja.FunctionCall) goja.Value {
		if this.Get("cancelable").ToBoolean() {
			_ = this.Set(preventedFlag, true)
		}
		return goja.Undefined()
	})
	_ = this.Set("stopPropagation", func(goja.FunctionCall) goja.Value {
		_ = this.DefineDataProperty(stopFlag, vm.ToValue(true), goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE)
		return goja.Undefined()
	})
	_ = this.Set("stopImmediatePropagation", func(goja.FunctionCall) goja.Value {
		_ = this.DefineDataProperty(stopFlag, vm.ToValue(true), goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE)
		_ = this.DefineDataProperty(stopNowFlag, vm.ToValue(true), goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE)
		return goja.Undefined()
	})
	return nil
}

// newEvent creates a cancelable event the way the engine itself would.
func (d *Document) newEvent(vm *goja.Runtime, typ string, bubbles bool) *goja.Object {
	init := vm.NewObject()
	_ = init.Set("bubbles", bubbles)
	_ = init.Set("cancelable", true)
	evt, err := vm.New(d.eventCtor, vm.ToValue(typ), init)
	if err != nil {
		panic(err)
	}
	return evt
}

func flag(evt *goja.Object, name string) bool {
	v := evt.Get(name)
	return v != nil && v.ToBoolean()
}

func (d *Document) addListener(n *html.Node, typ string, fn goja.Value) {
	if !callable(fn) {
		return
	}
	m := d.listeners[n]
	if m == nil {
		m = make(map[string][]goja.Value)
		d.listeners[n] = m
	}
	m[typ] = appendListener(m[typ], fn)
}

func (d *Document) removeListener(n *html.Node, typ string, fn goja.Value) {
	if m := d.listeners[n]; m != nil {
		m[typ] = removeListener(m[typ], fn)
	}
}

func callable(fn goja.Value) bool {
	if _, ok := goja.AssertFunction(fn); ok {
		return true
	}
	if obj, ok := fn.(*goja.Object); ok {
		_, ok = goja.AssertFunction(obj.Get("handleEvent"))
		return ok
	}
	return false
}

// appendListener adds fn unless the same listener is already present.
func appendListener(list []goja.Value, fn goja.Value) []goja.Value {
	for _, l := range list {
		if l.StrictEquals(fn) {
			return list
		}
	}
	return append(list, fn)
}

func removeListener(list []goja.Value, fn goja.Value) []goja.Value {
	for i, l := range list {
		if l.StrictEquals(fn) {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

// dispatch fires evt at n, then bubbles through its ancestors and the
// window if evt.bubbles. Listener failures are logged and do not stop
// dispatch. It reports whether the default action was not prevented.
func (d *Document) dispatch(vm *goja.Runtime, n *html.Node, evt *goja.Object) bool {
	_ = evt.Set("target", d.wrap(vm, n))
	bubbles := flag(evt, "bubbles")
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		d.invokeListeners(vm, d.wrap(vm, cur), d.listeners[cur], d.expando[cur], evt)
		if !bubbles || flag(evt, stopFlag) {
			return !flag(evt, preventedFlag)
		}
	}
	if d.connected(n) {
		d.invokeListeners(vm, vm.GlobalObject(), d.window, nil, evt)
	}
	return !flag(evt, preventedFlag)
}

// dispatchWindow fires evt at the window only.
func (d *Document) dispatchWindow(vm *goja.Runtime, evt *goja.Object) bool {
	_ = evt.Set("target", vm.GlobalObject())
	d.invokeListeners(vm, vm.GlobalObject(), d.window, nil, evt)
	return !flag(evt, preventedFlag)
}

func (d *Document) invokeListeners(vm *goja.Runtime, target goja.Value, listeners map[string][]goja.Value, expando map[string]goja.Value, evt *goja.Object) {
	typ := evt.Get("type").String()
	_ = evt.Set("currentTarget", target)

	// snapshot, listeners may add or remove listeners
	list := append([]goja.Value(nil), listeners[typ]...)
	if h, ok := expando["on"+typ]; ok && callable(h) {
		list = append(list, h)
	}
	for _, l := range list {
		d.call(vm, target, l, evt)
		if flag(evt, stopNowFlag) {
			return
		}
	}
}

func (d *Document) call(vm *goja.Runtime, this, listener goja.Value, evt *goja.Object) {
	fn, ok := goja.AssertFunction(listener)
	if !ok {
		obj := listener.ToObject(vm)
		fn, ok = goja.AssertFunction(obj.Get("handleEvent"))
		if !ok {
			return
		}
		this = obj
	}
	if _, err := fn(this, evt); err != nil {
		d.logger.Error("event listener failed",
			slog.String("event", evt.Get("type").String()),
			slog.Any("error", err))
	}
}
