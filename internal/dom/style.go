package dom

import (
	"strings"
	"unicode"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

type declaration struct {
	name, value string
}

// parseStyle splits an inline style attribute into declarations, keeping
// their order. Later duplicates win.
func parseStyle(s string) []declaration {
	var out []declaration
	for _, part := range strings.Split(s, ";") {
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if name == "" {
			continue
		}
		out = setDeclaration(out, name, value)
	}
	return out
}

func setDeclaration(decls []declaration, name, value string) []declaration {
	for i, d := range decls {
		if d.name == name {
			if value == "" {
				return append(decls[:i], decls[i+1:]...)
			}
			decls[i].value = value
			return decls
		}
	}
	if value == "" {
		return decls
	}
	return append(decls, declaration{name: name, value: value})
}

func formatStyle(decls []declaration) string {
	var b strings.Builder
	for i, d := range decls {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(d.name)
		b.WriteString(": ")
		b.WriteString(d.value)
		b.WriteByte(';')
	}
	return b.String()
}

func styleValue(n *html.Node, name string) (string, bool) {
	for _, d := range parseStyle(attr(n, "style")) {
		if d.name == name {
			return d.value, true
		}
	}
	return "", false
}

func setStyleValue(n *html.Node, name, value string) {
	decls := setDeclaration(parseStyle(attr(n, "style")), name, value)
	if len(decls) == 0 {
		removeAttr(n, "style")
		return
	}
	setAttr(n, "style", formatStyle(decls))
}

// cssName converts a style property as scripts spell it (backgroundColor,
// cssFloat, webkitTransform) into its CSS name. Names that already contain
// a dash are returned lower cased.
func cssName(prop string) string {
	if strings.Contains(prop, "-") {
		return strings.ToLower(prop)
	}
	if prop == "cssFloat" {
		return "float"
	}
	var b strings.Builder
	for _, prefix := range []string{"webkit", "moz", "ms"} {
		if strings.HasPrefix(prop, prefix) && len(prop) > len(prefix) && unicode.IsUpper(rune(prop[len(prefix)])) {
			b.WriteByte('-')
			break
		}
	}
	for _, r := range prop {
		if unicode.IsUpper(r) {
			b.WriteByte('-')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// propName is the inverse of cssName.
func propName(css string) string {
	if css == "float" {
		return "cssFloat"
	}
	css = strings.TrimPrefix(css, "-")
	var b strings.Builder
	upper := false
	for _, r := range css {
		if r == '-' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// inlineStyle is the goja.DynamicObject behind element.style.
type inlineStyle struct {
	vm *goja.Runtime
	n  *html.Node
}

func (d *Document) style(vm *goja.Runtime, n *html.Node) goja.Value {
	if obj, ok := d.styles[n]; ok {
		return obj
	}
	obj := vm.NewDynamicObject(&inlineStyle{vm: vm, n: n})
	d.styles[n] = obj
	return obj
}

func (s *inlineStyle) Get(key string) goja.Value {
	vm, n := s.vm, s.n
	switch key {
	case "cssText":
		return vm.ToValue(formatStyle(parseStyle(attr(n, "style"))))
	case "length":
		return vm.ToValue(len(parseStyle(attr(n, "style"))))
	case "getPropertyValue":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			v, _ := styleValue(n, cssName(call.Argument(0).String()))
			return vm.ToValue(v)
		})
	case "setProperty":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			setStyleValue(n, cssName(call.Argument(0).String()), call.Argument(1).String())
			return goja.Undefined()
		})
	case "removeProperty":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			name := cssName(call.Argument(0).String())
			old, _ := styleValue(n, name)
			setStyleValue(n, name, "")
			return vm.ToValue(old)
		})
	}
	v, _ := styleValue(n, cssName(key))
	return vm.ToValue(v)
}

func (s *inlineStyle) Set(key string, val goja.Value) bool {
	if key == "cssText" {
		decls := parseStyle(val.String())
		if len(decls) == 0 {
			removeAttr(s.n, "style")
		} else {
			setAttr(s.n, "style", formatStyle(decls))
		}
		return true
	}
	value := ""
	if val != nil && !goja.IsNull(val) && !goja.IsUndefined(val) {
		value = strings.TrimSpace(val.String())
	}
	setStyleValue(s.n, cssName(key), value)
	return true
}

func (s *inlineStyle) Has(key string) bool {
	_, ok := styleValue(s.n, cssName(key))
	return ok
}

func (s *inlineStyle) Delete(key string) bool {
	setStyleValue(s.n, cssName(key), "")
	return true
}

func (s *inlineStyle) Keys() []string {
	decls := parseStyle(attr(s.n, "style"))
	keys := make([]string, len(decls))
	for i, d := range decls {
		keys[i] = propName(d.name)
	}
	return keys
}

// blockTags display as block by default; hiddenTags as none. Everything
// else is inline.
var (
	blockTags = map[string]bool{
		"html": true, "body": true, "div": true, "p": true, "section": true,
		"article": true, "header": true, "footer": true, "nav": true, "main": true,
		"aside": true, "form": true, "ul": true, "ol": true, "dl": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"pre": true, "blockquote": true, "fieldset": true, "figure": true,
		"hr": true, "address": true, "details": true, "dialog": true,
	}
	hiddenTags = map[string]bool{
		"head": true, "script": true, "style": true, "link": true, "meta": true,
		"title": true, "template": true, "noscript": true,
	}
	defaultStyle = map[string]string{
		"visibility": "visible",
		"position":   "static",
		"opacity":    "1",
		"float":      "none",
	}
)

func defaultDisplay(n *html.Node) string {
	switch {
	case hiddenTags[n.Data], hasAttr(n, "hidden"):
		return "none"
	case blockTags[n.Data]:
		return "block"
	case n.Data == "li":
		return "list-item"
	case n.Data == "table":
		return "table"
	case n.Data == "tr":
		return "table-row"
	case n.Data == "td", n.Data == "th":
		return "table-cell"
	}
	return "inline"
}

// computed resolves a property for getComputedStyle: the inline
// declaration if any, otherwise the user agent default.
func computed(n *html.Node, name string) string {
	if v, ok := styleValue(n, name); ok {
		return v
	}
	if name == "display" {
		return defaultDisplay(n)
	}
	return defaultStyle[name]
}

// computedStyle is the read-only goja.DynamicObject getComputedStyle
// returns.
type computedStyle struct {
	vm *goja.Runtime
	n  *html.Node
}

func (c *computedStyle) Get(key string) goja.Value {
	if key == "getPropertyValue" {
		return c.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return c.vm.ToValue(computed(c.n, cssName(call.Argument(0).String())))
		})
	}
	return c.vm.ToValue(computed(c.n, cssName(key)))
}

func (c *computedStyle) Set(string, goja.Value) bool { return false }
func (c *computedStyle) Has(key string) bool         { return true }
func (c *computedStyle) Delete(string) bool          { return false }

func (c *computedStyle) Keys() []string {
	keys := []string{"display"}
	for k := range defaultStyle {
		keys = append(keys, propName(k))
	}
	for _, d := range parseStyle(attr(c.n, "style")) {
		keys = append(keys, propName(d.name))
	}
	return keys
}
