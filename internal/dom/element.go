package dom

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// reflected maps element properties to the attributes they mirror.
var reflected = map[string]string{
	"id":        "id",
	"src":       "src",
	"href":      "href",
	"rel":       "rel",
	"download":  "download",
	"type":      "type",
	"name":      "name",
	"title":     "title",
	"className": "class",
	"async":     "async",
}

// element is the goja.DynamicObject behind every element object. Unknown
// properties are kept as expandos on the document.
type element struct {
	d  *Document
	vm *goja.Runtime
	n  *html.Node
}

// wrap returns the element object for n, creating it once per node so
// identity holds across lookups.
func (d *Document) wrap(vm *goja.Runtime, n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if obj, ok := d.objects[n]; ok {
		return obj
	}
	obj := vm.NewDynamicObject(&element{d: d, vm: vm, n: n})
	d.objects[n] = obj
	d.nodes[obj] = n
	return obj
}

func (d *Document) wrapAll(vm *goja.Runtime, nodes []*html.Node) goja.Value {
	values := make([]any, len(nodes))
	for i, n := range nodes {
		values[i] = d.wrap(vm, n)
	}
	return vm.NewArray(values...)
}

// unwrap returns the node behind an element object.
func (d *Document) unwrap(v goja.Value) (*html.Node, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	n, ok := d.nodes[obj]
	return n, ok
}

func (e *element) fn(f func(goja.FunctionCall) goja.Value) goja.Value {
	return e.vm.ToValue(f)
}

func (e *element) Get(key string) goja.Value {
	d, vm, n := e.d, e.vm, e.n
	if a, ok := reflected[key]; ok {
		if !hasAttr(n, a) {
			if key == "async" {
				return vm.ToValue(false)
			}
			return vm.ToValue("")
		}
		if key == "async" {
			return vm.ToValue(true)
		}
		return vm.ToValue(attr(n, a))
	}
	switch key {
	case "tagName", "nodeName":
		return vm.ToValue(strings.ToUpper(n.Data))
	case "localName":
		return vm.ToValue(n.Data)
	case "nodeType":
		return vm.ToValue(1)
	case "textContent", "innerText":
		return vm.ToValue(textContent(n))
	case "innerHTML":
		return vm.ToValue(innerHTML(n))
	case "outerHTML":
		var b strings.Builder
		_ = html.Render(&b, n)
		return vm.ToValue(b.String())
	case "value":
		if n.Data == "textarea" {
			return vm.ToValue(textContent(n))
		}
		return vm.ToValue(attr(n, "value"))
	case "style":
		return d.style(vm, n)
	case "parentNode", "parentElement":
		if n.Parent == nil || n.Parent.Type != html.ElementNode {
			return goja.Null()
		}
		return d.wrap(vm, n.Parent)
	case "children":
		var kids []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				kids = append(kids, c)
			}
		}
		return d.wrapAll(vm, kids)
	case "isConnected":
		return vm.ToValue(d.connected(n))
	case "selectionStart", "selectionEnd":
		sel, ok := d.selections[n]
		if !ok {
			return vm.ToValue(0)
		}
		if key == "selectionStart" {
			return vm.ToValue(sel[0])
		}
		return vm.ToValue(sel[1])

	case "getAttribute":
		return e.fn(func(call goja.FunctionCall) goja.Value {
			name := strings.ToLower(call.Argument(0).String())
			if !hasAttr(n, name) {
				return goja.Null()
			}
			return vm.ToValue(attr(n, name))
		})
	case "setAttribute":
		return e.fn(func(call goja.FunctionCall) goja.Value {
			setAttr(n, strings.ToLower(call.Argument(0).String()), call.Argument(1).String())
			return goja.Undefined()
		})
	case "removeAttribute":
		return e.fn(func(call goja.FunctionCall) goja.Value {
			removeAttr(n, strings.ToLower(call.Argument(0).String()))
			return goja.Undefined()
		})
	case "hasAttribute":
		return e.fn(func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(hasAttr(n, strings.ToLower(call.Argument(0).String())))
		})
	case "appendChild":
		return e.fn(func(call goja.FunctionCall) goja.Value {
			child, ok := d.unwrap(call.Argument(0))
			if !ok {
				panic(vm.NewTypeError("appendChild: argument is not an element"))
			}
			if isInclusiveAncestor(child, n) {
				panic(vm.NewTypeError("appendChild: the new child contains the parent"))
			}
			detach(child)
			n.AppendChild(child)
			d.inserted(vm, child)
			return call.Argument(0)
		})
	case "removeChild":
		return e.fn(func(call goja.FunctionCall) goja.Value {
			child, ok := d.unwrap(call.Argument(0))
			if !ok || child.Parent != n {
				panic(vm.NewTypeError("removeChild: not a child of this element"))
			}
			n.RemoveChild(child)
			d.removed(child)
			return call.Argument(0)
		})
	case "remove":
		return e.fn(func(goja.FunctionCall) goja.Value {
			detach(n)
			d.removed(n)
			return goja.Undefined()
		})
	case "click":
		return e.fn(func(goja.FunctionCall) goja.Value {
			d.click(vm, n)
			return goja.Undefined()
		})
	case "focus":
		return e.fn(func(goja.FunctionCall) goja.Value {
			d.focus(vm, n)
			return goja.Undefined()
		})
	case "blur":
		return e.fn(func(goja.FunctionCall) goja.Value {
			if d.active == n {
				d.focus(vm, nil)
			}
			return goja.Undefined()
		})
	case "select":
		return e.fn(func(goja.FunctionCall) goja.Value {
			d.selectText(vm, n)
			return goja.Undefined()
		})
	case "scrollIntoView", "scrollIntoViewIfNeeded":
		ifNeeded := key == "scrollIntoViewIfNeeded"
		return e.fn(func(goja.FunctionCall) goja.Value {
			d.scrolls = append(d.scrolls, Scroll{ID: attr(n, "id"), IfNeeded: ifNeeded})
			return goja.Undefined()
		})
	case "addEventListener":
		return e.fn(func(call goja.FunctionCall) goja.Value {
			d.addListener(n, call.Argument(0).String(), call.Argument(1))
			return goja.Undefined()
		})
	case "removeEventListener":
		return e.fn(func(call goja.FunctionCall) goja.Value {
			d.removeListener(n, call.Argument(0).String(), call.Argument(1))
			return goja.Undefined()
		})
	case "dispatchEvent":
		return e.fn(func(call goja.FunctionCall) goja.Value {
			evt := call.Argument(0).ToObject(vm)
			return vm.ToValue(d.dispatch(vm, n, evt))
		})
	case "querySelector":
		return e.fn(func(call goja.FunctionCall) goja.Value {
			return d.querySelector(vm, n, call.Argument(0).String())
		})
	case "querySelectorAll":
		return e.fn(func(call goja.FunctionCall) goja.Value {
			return d.querySelectorAll(vm, n, call.Argument(0).String())
		})
	case "getElementsByTagName":
		return e.fn(func(call goja.FunctionCall) goja.Value {
			return d.wrapAll(vm, d.find(n, strings.ToLower(call.Argument(0).String())).Nodes)
		})
	case "toString":
		return e.fn(func(goja.FunctionCall) goja.Value {
			return vm.ToValue(e.String())
		})
	}
	if v, ok := d.expando[n][key]; ok {
		return v
	}
	return nil
}

func (e *element) String() string {
	if id := attr(e.n, "id"); id != "" {
		return fmt.Sprintf("<%s id=%q>", e.n.Data, id)
	}
	return "<" + e.n.Data + ">"
}

func (e *element) Set(key string, val goja.Value) bool {
	n := e.n
	if a, ok := reflected[key]; ok {
		if key == "async" {
			if val.ToBoolean() {
				setAttr(n, a, "")
			} else {
				removeAttr(n, a)
			}
			return true
		}
		setAttr(n, a, val.String())
		return true
	}
	switch key {
	case "textContent", "innerText":
		setTextContent(n, val.String())
		return true
	case "innerHTML":
		if err := setInnerHTML(n, val.String()); err != nil {
			panic(e.vm.NewGoError(err))
		}
		return true
	case "value":
		if n.Data == "textarea" {
			setTextContent(n, val.String())
		} else {
			setAttr(n, "value", val.String())
		}
		delete(e.d.selections, n)
		return true
	case "style":
		setAttr(n, "style", val.String())
		return true
	case "tagName", "nodeName", "localName", "nodeType", "outerHTML", "parentNode",
		"parentElement", "children", "isConnected", "selectionStart", "selectionEnd":
		return false
	}
	m := e.d.expando[n]
	if m == nil {
		m = make(map[string]goja.Value)
		e.d.expando[n] = m
	}
	m[key] = val
	return true
}

func (e *element) Has(key string) bool {
	return e.Get(key) != nil
}

func (e *element) Delete(key string) bool {
	delete(e.d.expando[e.n], key)
	return true
}

func (e *element) Keys() []string {
	keys := make([]string, 0, len(e.d.expando[e.n]))
	for k := range e.d.expando[e.n] {
		keys = append(keys, k)
	}
	return keys
}

func (d *Document) querySelector(vm *goja.Runtime, scope *html.Node, selector string) goja.Value {
	sel := d.find(scope, selector)
	if sel.Length() == 0 {
		return goja.Null()
	}
	return d.wrap(vm, sel.Get(0))
}

func (d *Document) querySelectorAll(vm *goja.Runtime, scope *html.Node, selector string) goja.Value {
	return d.wrapAll(vm, d.find(scope, selector).Nodes)
}

func (d *Document) focus(vm *goja.Runtime, n *html.Node) {
	prev := d.active
	if prev == n {
		return
	}
	d.active = n
	if prev != nil {
		d.dispatch(vm, prev, d.newEvent(vm, "blur", false))
	}
	if n != nil {
		d.dispatch(vm, n, d.newEvent(vm, "focus", false))
	}
}

func (d *Document) selectText(vm *goja.Runtime, n *html.Node) {
	var value string
	if n.Data == "textarea" {
		value = textContent(n)
	} else {
		value = attr(n, "value")
	}
	d.selections[n] = [2]int{0, len([]rune(value))}
	d.dispatch(vm, n, d.newEvent(vm, "select", true))
}

// removed drops loop state for nodes no longer in the document.
func (d *Document) removed(n *html.Node) {
	if d.active != nil && isInclusiveAncestor(n, d.active) {
		d.active = nil
	}
}
