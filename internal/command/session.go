package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/joeycumines/jsinterop/internal/config"
	"github.com/joeycumines/jsinterop/internal/dom"
	"github.com/joeycumines/jsinterop/internal/jsop"
	"github.com/joeycumines/jsinterop/internal/jsrt"
)

// session is one page run: a runtime, a document on it and a Bridge over
// both.
type session struct {
	logs   *logConfig
	http   *jsrt.HTTPLoader
	rt     *jsrt.Runtime
	doc    *dom.Document
	bridge *jsop.Bridge
}

type sessionOptions struct {
	html     string
	alert    dom.AlertHandler
	download dom.DownloadHandler
	// console receives script console output.
	console io.Writer
	color   bool
	// transport replaces the HTTP transport, for tests.
	transport http.RoundTripper
}

// newSession starts a page. Relative locators load from the loader root,
// http(s) locators over the network, and the built-in module from its
// embedded copy. Canceling ctx tears the runtime down.
func newSession(ctx context.Context, st config.Settings, logs *logConfig, o sessionOptions) (*session, error) {
	httpOpts := []jsrt.HTTPOption{jsrt.WithUserAgent(st.UserAgent)}
	if st.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, jsrt.WithHTTPTimeout(st.HTTPTimeout))
	}
	if o.transport != nil {
		httpOpts = append(httpOpts, jsrt.WithHTTPClient(&http.Client{Transport: o.transport}))
	}
	s := &session{logs: logs, http: jsrt.NewHTTPLoader(httpOpts...)}

	root := st.LoaderRoot
	if root == "" {
		root = "."
	}
	router := &jsrt.Router{Fallback: jsrt.DirLoader(root)}
	router.Handle("https://", s.http)
	router.Handle("http://", s.http)
	jsop.Mount(router)

	console := o.console
	if console == nil {
		console = io.Discard
	}
	recorder := slog.New(jsrt.Tee(logs.console, logs.logger.Handler()))
	rtOpts := []jsrt.Option{
		jsrt.WithLogger(logs.logger),
		jsrt.WithLoader(router),
		jsrt.WithConsole(newConsolePrinter(console, o.color, recorder)),
	}
	if st.SyncTimeout > 0 {
		rtOpts = append(rtOpts, jsrt.WithSyncTimeout(st.SyncTimeout))
	}
	rt, err := jsrt.NewRuntime(ctx, rtOpts...)
	if err != nil {
		return nil, err
	}
	s.rt = rt

	domOpts := []dom.Option{dom.WithLogger(logs.logger)}
	if o.html != "" {
		domOpts = append(domOpts, dom.WithHTML(o.html))
	}
	if o.alert != nil {
		domOpts = append(domOpts, dom.WithAlertHandler(o.alert))
	}
	if o.download != nil {
		domOpts = append(domOpts, dom.WithDownloadHandler(o.download))
	}
	if s.doc, err = dom.New(rt, domOpts...); err != nil {
		_ = rt.Close()
		return nil, err
	}

	locator := st.ModuleLocator
	if locator == "" {
		locator = jsop.Locator
	}
	s.bridge = jsop.New(rt,
		jsop.WithLocator(locator),
		jsop.WithLogger(logs.logger),
		jsop.WithContext(ctx))
	return s, nil
}

// Close releases the module, waits for pending downloads and stops the
// runtime.
func (s *session) Close() error {
	err := s.bridge.Close()
	s.doc.Wait()
	return errors.Join(err, s.rt.Close())
}
