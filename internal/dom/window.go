package dom

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	"github.com/google/uuid"
)

// install sets up the globals. It runs on the loop.
func (d *Document) install(vm *goja.Runtime) error {
	global := vm.GlobalObject()

	d.eventCtor = vm.ToValue(d.eventConstructor).(*goja.Object)
	d.docObj = vm.NewDynamicObject(&document{d: d, vm: vm})

	globals := map[string]any{
		"window":      global,
		"self":        global,
		"document":    d.docObj,
		"Event":       d.eventCtor,
		"CustomEvent": d.eventCtor,
		"Blob":        d.blobConstructor,
		"URL":         d.urlObject(vm),
		"alert": func(call goja.FunctionCall) goja.Value {
			msg := ""
			if len(call.Arguments) > 0 {
				msg = call.Argument(0).String()
			}
			if d.alert != nil {
				d.alert(msg)
			} else {
				d.logger.Info("alert", slog.String("message", msg))
			}
			return goja.Undefined()
		},
		"getComputedStyle": func(call goja.FunctionCall) goja.Value {
			n, ok := d.unwrap(call.Argument(0))
			if !ok {
				panic(vm.NewTypeError("getComputedStyle: argument is not an element"))
			}
			return vm.NewDynamicObject(&computedStyle{vm: vm, n: n})
		},
		"addEventListener": func(call goja.FunctionCall) goja.Value {
			if fn := call.Argument(1); callable(fn) {
				typ := call.Argument(0).String()
				d.window[typ] = appendListener(d.window[typ], fn)
			}
			return goja.Undefined()
		},
		"removeEventListener": func(call goja.FunctionCall) goja.Value {
			typ := call.Argument(0).String()
			d.window[typ] = removeListener(d.window[typ], call.Argument(1))
			return goja.Undefined()
		},
		"dispatchEvent": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(d.dispatchWindow(vm, call.Argument(0).ToObject(vm)))
		},
	}
	for name, v := range globals {
		if err := global.Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

// document is the goja.DynamicObject behind the document global.
type document struct {
	d  *Document
	vm *goja.Runtime
}

func (o *document) Get(key string) goja.Value {
	d, vm := o.d, o.vm
	switch key {
	case "head":
		return d.wrap(vm, d.head())
	case "body":
		return d.wrap(vm, d.body())
	case "documentElement":
		return d.wrap(vm, firstElement(d.root))
	case "activeElement":
		if d.active != nil && d.connected(d.active) {
			return d.wrap(vm, d.active)
		}
		return d.wrap(vm, d.body())
	case "title":
		if nodes := d.byTag("title"); len(nodes) > 0 {
			return vm.ToValue(strings.TrimSpace(textContent(nodes[0])))
		}
		return vm.ToValue("")
	case "readyState":
		return vm.ToValue("complete")
	case "createElement":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			tag := call.Argument(0).String()
			if tag == "" || strings.ContainsAny(tag, " <>/") {
				panic(vm.NewTypeError("createElement: invalid tag name %q", tag))
			}
			return d.wrap(vm, newElement(tag))
		})
	case "getElementById":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return d.wrap(vm, d.byID(call.Argument(0).String()))
		})
	case "getElementsByTagName":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return d.wrapAll(vm, d.byTag(call.Argument(0).String()))
		})
	case "querySelector":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return d.querySelector(vm, d.root, call.Argument(0).String())
		})
	case "querySelectorAll":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return d.querySelectorAll(vm, d.root, call.Argument(0).String())
		})
	case "addEventListener", "removeEventListener", "dispatchEvent":
		// document level listeners share the window's table
		return vm.GlobalObject().Get(key)
	}
	return nil
}

func (o *document) Set(string, goja.Value) bool { return false }
func (o *document) Has(key string) bool         { return o.Get(key) != nil }
func (o *document) Delete(string) bool          { return false }
func (o *document) Keys() []string              { return nil }

// blob is the host side of a Blob object.
type blob struct {
	data []byte
	mime string
}

const blobSlot = "__blob"

func (d *Document) blobConstructor(call goja.ConstructorCall, vm *goja.Runtime) *goja.Object {
	b := &blob{}
	if parts, ok := call.Argument(0).(*goja.Object); ok {
		length := int(parts.Get("length").ToInteger())
		for i := 0; i < length; i++ {
			b.data = append(b.data, blobPart(vm, parts.Get(strconv.Itoa(i)))...)
		}
	}
	if opts, ok := call.Argument(1).(*goja.Object); ok {
		if t := opts.Get("type"); t != nil && !goja.IsUndefined(t) {
			b.mime = strings.ToLower(t.String())
		}
	}
	this := call.This
	_ = this.Set("size", len(b.data))
	_ = this.Set("type", b.mime)
	_ = this.DefineDataProperty(blobSlot, vm.ToValue(b), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	_ = this.Set("text", func(goja.FunctionCall) goja.Value {
		p, resolve, _ := vm.NewPromise()
		_ = resolve(string(b.data))
		return vm.ToValue(p)
	})
	_ = this.Set("arrayBuffer", func(goja.FunctionCall) goja.Value {
		p, resolve, _ := vm.NewPromise()
		_ = resolve(vm.NewArrayBuffer(append([]byte(nil), b.data...)))
		return vm.ToValue(p)
	})
	return nil
}

// blobPart reads one Blob constructor part: a Blob, an ArrayBuffer, a
// typed array or view, or anything else as its string form.
func blobPart(vm *goja.Runtime, v goja.Value) []byte {
	obj, ok := v.(*goja.Object)
	if !ok {
		return []byte(v.String())
	}
	if b, ok := blobOf(obj); ok {
		return b.data
	}
	if ab, ok := obj.Export().(goja.ArrayBuffer); ok {
		return ab.Bytes()
	}
	if buf := obj.Get("buffer"); buf != nil {
		if ab, ok := buf.Export().(goja.ArrayBuffer); ok {
			off := int(obj.Get("byteOffset").ToInteger())
			n := int(obj.Get("byteLength").ToInteger())
			return ab.Bytes()[off : off+n]
		}
	}
	return []byte(v.String())
}

func blobOf(obj *goja.Object) (*blob, bool) {
	v := obj.Get(blobSlot)
	if v == nil {
		return nil, false
	}
	b, ok := v.Export().(*blob)
	return b, ok
}

func (d *Document) urlObject(vm *goja.Runtime) *goja.Object {
	u := vm.NewObject()
	_ = u.Set("createObjectURL", func(call goja.FunctionCall) goja.Value {
		obj, ok := call.Argument(0).(*goja.Object)
		var b *blob
		if ok {
			b, ok = blobOf(obj)
		}
		if !ok {
			panic(vm.NewTypeError("createObjectURL: argument is not a Blob"))
		}
		url := "blob:jsop/" + uuid.NewString()
		d.blobs[url] = b
		return vm.ToValue(url)
	})
	_ = u.Set("revokeObjectURL", func(call goja.FunctionCall) goja.Value {
		delete(d.blobs, call.Argument(0).String())
		return goja.Undefined()
	})
	return u
}
