// Package dom is a headless document bound into a jsrt runtime. It gives
// script modules the slice of the browser DOM they rely on (elements,
// attributes, inline style, events, script and stylesheet insertion, blobs
// and downloads) backed by a golang.org/x/net/html tree.
//
// The tree is owned by the loop goroutine. Host code inspects it through
// the Document methods, which hop onto the loop.
package dom

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/joeycumines/jsinterop/internal/interop"
	"github.com/joeycumines/jsinterop/internal/jsrt"
	"golang.org/x/net/html"
)

// DefaultHTML is the page a Document starts from unless WithHTML is given.
const DefaultHTML = "<!DOCTYPE html><html><head></head><body></body></html>"

// AlertHandler receives window.alert messages. It runs on the loop and
// must not block.
type AlertHandler func(msg string)

// DownloadHandler receives anchor activations. It runs on its own
// goroutine.
type DownloadHandler func(Download)

// Download describes an activated anchor. For blob URLs Data holds the
// blob contents captured at click time, so revoking the URL afterwards is
// harmless.
type Download struct {
	URL      string
	FileName string
	MIME     string
	Data     []byte
	// Navigate is set when the anchor had no download attribute.
	Navigate bool
}

// Scroll records one scrollIntoView call.
type Scroll struct {
	ID       string
	IfNeeded bool
}

// Document is a headless document attached to a runtime.
type Document struct {
	rt       *jsrt.Runtime
	logger   *slog.Logger
	alert    AlertHandler
	download DownloadHandler
	pending  sync.WaitGroup

	// loop owned
	root       *html.Node
	objects    map[*html.Node]*goja.Object
	nodes      map[*goja.Object]*html.Node
	styles     map[*html.Node]*goja.Object
	expando    map[*html.Node]map[string]goja.Value
	listeners  map[*html.Node]map[string][]goja.Value
	window     map[string][]goja.Value
	selections map[*html.Node][2]int
	started    map[*html.Node]bool
	active     *html.Node
	scrolls    []Scroll
	blobs      map[string]*blob
	eventCtor  *goja.Object
	docObj     *goja.Object
}

type options struct {
	html     string
	logger   *slog.Logger
	alert    AlertHandler
	download DownloadHandler
}

// Option configures a Document.
type Option func(*options)

// WithHTML sets the initial page.
func WithHTML(src string) Option {
	return func(o *options) { o.html = src }
}

// WithLogger sets the logger. Defaults to the runtime logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithAlertHandler handles window.alert. Without one, alerts are logged.
func WithAlertHandler(h AlertHandler) Option {
	return func(o *options) { o.alert = h }
}

// WithDownloadHandler handles anchor activations. Without one, they are
// logged.
func WithDownloadHandler(h DownloadHandler) Option {
	return func(o *options) { o.download = h }
}

// New parses the initial page and installs document, window and friends
// as globals of rt. Element references passed to rt resolve against the
// document from then on.
func New(rt *jsrt.Runtime, opts ...Option) (*Document, error) {
	o := options{html: DefaultHTML}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = rt.Logger()
	}

	root, err := html.Parse(strings.NewReader(o.html))
	if err != nil {
		return nil, fmt.Errorf("dom: parse page: %w", err)
	}

	d := &Document{
		rt:         rt,
		logger:     o.logger,
		alert:      o.alert,
		download:   o.download,
		root:       root,
		objects:    make(map[*html.Node]*goja.Object),
		nodes:      make(map[*goja.Object]*html.Node),
		styles:     make(map[*html.Node]*goja.Object),
		expando:    make(map[*html.Node]map[string]goja.Value),
		listeners:  make(map[*html.Node]map[string][]goja.Value),
		window:     make(map[string][]goja.Value),
		selections: make(map[*html.Node][2]int),
		started:    make(map[*html.Node]bool),
		blobs:      make(map[string]*blob),
	}
	// scripts already in the page are treated as run
	for _, n := range d.byTag("script") {
		d.started[n] = true
	}

	if err := rt.RunOnLoopSync(d.install); err != nil {
		return nil, fmt.Errorf("dom: install globals: %w", err)
	}
	rt.RegisterConverter(d.convert)
	return d, nil
}

// convert resolves element references to element objects.
func (d *Document) convert(vm *goja.Runtime, arg any) (goja.Value, bool, error) {
	var id string
	switch a := arg.(type) {
	case interop.ElementReference:
		id = a.ID
	case *interop.ElementReference:
		if a == nil {
			return goja.Null(), true, nil
		}
		id = a.ID
	default:
		return nil, false, nil
	}
	n := d.byID(id)
	if n == nil {
		return nil, true, fmt.Errorf("dom: no element with id %q", id)
	}
	return d.wrap(vm, n), true, nil
}

// Wait blocks until every download handler started so far has returned.
func (d *Document) Wait() {
	d.pending.Wait()
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return d.rt.RunOnLoopSync(func(*goja.Runtime) error {
		return html.Render(w, d.root)
	})
}

// HTML returns the document as an HTML string.
func (d *Document) HTML() (string, error) {
	var b strings.Builder
	err := d.Render(&b)
	return b.String(), err
}

// ActiveElement returns the id of the focused element, or "" when nothing
// (or an element without an id) has focus.
func (d *Document) ActiveElement() (string, error) {
	var id string
	err := d.rt.RunOnLoopSync(func(*goja.Runtime) error {
		if d.active != nil {
			id = attr(d.active, "id")
		}
		return nil
	})
	return id, err
}

// ScrollHistory returns the scrollIntoView calls made so far, oldest first.
func (d *Document) ScrollHistory() ([]Scroll, error) {
	var out []Scroll
	err := d.rt.RunOnLoopSync(func(*goja.Runtime) error {
		out = append(out, d.scrolls...)
		return nil
	})
	return out, err
}

// Selection returns the text selection of the element with id, as set by
// select(). ok is false if the element has no selection.
func (d *Document) Selection(id string) (start, end int, ok bool, err error) {
	err = d.rt.RunOnLoopSync(func(*goja.Runtime) error {
		n := d.byID(id)
		if n == nil {
			return fmt.Errorf("dom: no element with id %q", id)
		}
		var sel [2]int
		sel, ok = d.selections[n]
		start, end = sel[0], sel[1]
		return nil
	})
	return
}

// ElementInfo is a host snapshot of one element.
type ElementInfo struct {
	Tag   string
	ID    string
	Attrs map[string]string
	Text  string
}

// Find returns snapshots of the elements matching a CSS selector, in
// document order.
func (d *Document) Find(selector string) ([]ElementInfo, error) {
	var out []ElementInfo
	err := d.rt.RunOnLoopSync(func(*goja.Runtime) error {
		goquery.NewDocumentFromNode(d.root).Find(selector).Each(func(_ int, s *goquery.Selection) {
			n := s.Get(0)
			info := ElementInfo{
				Tag:   n.Data,
				ID:    attr(n, "id"),
				Attrs: make(map[string]string, len(n.Attr)),
				Text:  textContent(n),
			}
			for _, a := range n.Attr {
				info.Attrs[a.Key] = a.Val
			}
			out = append(out, info)
		})
		return nil
	})
	return out, err
}

// DispatchEvent fires a bubbling event of type at the element with id, or
// at the window when id is empty. It reports whether the default action
// was not prevented.
func (d *Document) DispatchEvent(ctx context.Context, id, typ string) (bool, error) {
	var notPrevented bool
	err := d.rt.Do(ctx, func(vm *goja.Runtime) error {
		evt := d.newEvent(vm, typ, true)
		if id == "" {
			notPrevented = d.dispatchWindow(vm, evt)
			return nil
		}
		n := d.byID(id)
		if n == nil {
			return fmt.Errorf("dom: no element with id %q", id)
		}
		notPrevented = d.dispatch(vm, n, evt)
		return nil
	})
	return notPrevented, err
}
