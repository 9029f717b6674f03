package testutil

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/joeycumines/jsinterop/internal/dom"
	"github.com/joeycumines/jsinterop/internal/jsrt"
)

// DefaultTimeout bounds the contexts handed out by Context.
const DefaultTimeout = 10 * time.Second

// Context returns a context canceled when the test ends or after
// DefaultTimeout.
func Context(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	t.Cleanup(cancel)
	return ctx
}

// NewRuntime starts a runtime that is closed when the test ends.
func NewRuntime(t testing.TB, opts ...jsrt.Option) *jsrt.Runtime {
	t.Helper()
	rt, err := jsrt.NewRuntime(context.Background(), opts...)
	if err != nil {
		t.Fatalf("testutil: start runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

// Page is a runtime with a document attached, logging into in-memory
// buffers the test can inspect.
type Page struct {
	Runtime  *jsrt.Runtime
	Document *dom.Document
	// Console holds remote console output.
	Console *jsrt.ConsoleLog
	// Log holds host side records from the runtime and the document.
	Log    *jsrt.ConsoleLog
	Logger *slog.Logger
}

// NewPage starts a runtime that loads sources through loader (which may be
// nil) and attaches a document configured by opts.
func NewPage(t testing.TB, loader jsrt.SourceLoader, opts ...dom.Option) *Page {
	t.Helper()
	p := &Page{
		Console: jsrt.NewConsoleLog(0, slog.LevelDebug),
		Log:     jsrt.NewConsoleLog(0, slog.LevelDebug),
	}
	p.Logger = slog.New(p.Log)

	rtOpts := []jsrt.Option{
		jsrt.WithLogger(p.Logger),
		jsrt.WithConsole(jsrt.LogPrinter{Logger: slog.New(p.Console)}),
	}
	if loader != nil {
		rtOpts = append(rtOpts, jsrt.WithLoader(loader))
	}
	p.Runtime = NewRuntime(t, rtOpts...)

	doc, err := dom.New(p.Runtime, append([]dom.Option{dom.WithLogger(p.Logger)}, opts...)...)
	if err != nil {
		t.Fatalf("testutil: attach document: %v", err)
	}
	p.Document = doc
	return p
}
