package dom

import (
	"log/slog"
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// inserted runs the insertion steps for n and its subtree once it is
// connected: scripts are executed (external ones fetched off the loop) and
// stylesheets report load.
func (d *Document) inserted(vm *goja.Runtime, n *html.Node) {
	if !d.connected(n) {
		return
	}
	for _, el := range elements(n) {
		switch {
		case el.Data == "script" && !d.started[el]:
			d.started[el] = true
			d.runScript(vm, el)
		case el.Data == "link" && strings.EqualFold(attr(el, "rel"), "stylesheet") && hasAttr(el, "href"):
			d.queueEvent(el, "load")
		}
	}
}

// queueEvent fires a non-bubbling event at n on a later loop turn.
func (d *Document) queueEvent(n *html.Node, typ string) {
	d.rt.RunOnLoop(func(vm *goja.Runtime) {
		d.dispatch(vm, n, d.newEvent(vm, typ, false))
	})
}

func (d *Document) runScript(vm *goja.Runtime, el *html.Node) {
	if t := attr(el, "type"); t != "" && t != "text/javascript" && t != "application/javascript" {
		return
	}
	if !hasAttr(el, "src") {
		d.execute(vm, "inline-script", textContent(el))
		return
	}

	src := attr(el, "src")
	ctx := d.rt.Context()
	loader := d.rt.Loader()
	go func() {
		code, err := loader.Load(ctx, src)
		d.rt.RunOnLoop(func(vm *goja.Runtime) {
			if err != nil {
				d.logger.Warn("script load failed", slog.String("src", src), slog.Any("error", err))
				d.dispatch(vm, el, d.newEvent(vm, "error", false))
				return
			}
			d.execute(vm, src, string(code))
			d.dispatch(vm, el, d.newEvent(vm, "load", false))
		})
	}()
}

// execute runs a classic script. A script that throws is reported, as a
// browser would, and does not affect the element's load event.
func (d *Document) execute(vm *goja.Runtime, name, code string) {
	if _, err := vm.RunScript(name, code); err != nil {
		d.logger.Error("script error", slog.String("script", name), slog.Any("error", err))
	}
}

// click fires a click event at n and runs the anchor activation behavior
// unless a listener prevented it.
func (d *Document) click(vm *goja.Runtime, n *html.Node) {
	if !d.dispatch(vm, n, d.newEvent(vm, "click", true)) {
		return
	}
	if n.Data != "a" || !hasAttr(n, "href") {
		return
	}

	dl := Download{
		URL:      attr(n, "href"),
		FileName: attr(n, "download"),
		Navigate: !hasAttr(n, "download"),
	}
	if b, ok := d.blobs[dl.URL]; ok {
		dl.Data = append([]byte(nil), b.data...)
		dl.MIME = b.mime
	} else if strings.HasPrefix(dl.URL, "blob:") {
		d.logger.Warn("anchor refers to a revoked blob URL", slog.String("url", dl.URL))
		return
	}
	if dl.FileName == "" && !dl.Navigate {
		dl.FileName = fileName(dl.URL)
	}

	if d.download == nil {
		d.logger.Info("download", slog.String("url", dl.URL), slog.String("file", dl.FileName))
		return
	}
	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		d.download(dl)
	}()
}

// fileName guesses a file name from the last path segment of a URL.
func fileName(url string) string {
	if strings.HasPrefix(url, "blob:") {
		return "download"
	}
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndex(url, "/"); i >= 0 {
		url = url[i+1:]
	}
	if url == "" || strings.Contains(url, ":") {
		return "download"
	}
	return url
}
