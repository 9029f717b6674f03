package jsop

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/joeycumines/jsinterop/internal/interop"
)

// DownloadFromURL hands url to an anchor and clicks it, leaving the fetch
// to the document's download handling.
func (b *Bridge) DownloadFromURL(ctx context.Context, url string) error {
	return b.callVoid(ctx, OpDownloadFromURL, url)
}

// DownloadFromStream offers the contents of r as a file named fileName.
//
// The remote side reads r to the end and holds it in memory before the
// download starts, so r must be bounded.
func (b *Bridge) DownloadFromStream(ctx context.Context, mime, fileName string, r io.Reader) error {
	return b.callVoid(ctx, OpDownloadFromStream, mime, fileName, interop.StreamReference{Reader: r})
}

// ScriptLoad is what the notify callback of AddScriptNotify receives.
type ScriptLoad struct {
	Src string `json:"src"`
	// Error is set if the script could not be loaded.
	Error string `json:"error,omitempty"`
}

// ScriptNotify is the callback AddScriptNotify reports through.
type ScriptNotify = interop.PayloadCallback[ScriptLoad]

// ScriptLoadError reports a script element that fired error.
type ScriptLoadError struct {
	Src    string
	Reason string
}

func (e *ScriptLoadError) Error() string {
	return fmt.Sprintf("jsop: add script %q: %s", e.Src, e.Reason)
}

// IsScriptIncluded reports whether the document has a script element whose
// src attribute is exactly src.
func (b *Bridge) IsScriptIncluded(ctx context.Context, src string) (bool, error) {
	return call[bool](ctx, b, OpIsScriptIncluded, src)
}

// AddScriptNotify includes the script at src unless it already is, and
// reports completion through notify, which may be nil.
//
// If the script is already present, notify is invoked before AddScriptNotify
// returns and nothing is added. Otherwise one script element is appended and
// notify fires once the remote side reports its load (or failure), never
// earlier. The presence check and the insertion are not atomic: concurrent
// callers may both insert, which the document tolerates.
func (b *Bridge) AddScriptNotify(ctx context.Context, src string, notify *ScriptNotify) error {
	included, err := b.IsScriptIncluded(ctx, src)
	if err != nil {
		return err
	}
	if included {
		if notify != nil {
			notify.Invoke(ScriptLoad{Src: src})
		}
		return nil
	}
	var ref any
	if notify != nil {
		ref = notify.Reference()
	}
	return b.callVoid(ctx, OpAddScript, src, ref)
}

// AddScript includes the script at src unless it already is, and returns
// once it has loaded. The notify callback it uses lives exactly as long as
// the call.
func (b *Bridge) AddScript(ctx context.Context, src string) error {
	notify, err := interop.NewPayloadCallback[ScriptLoad](b.rt, interop.WithLogger(b.logger))
	if err != nil {
		return err
	}
	defer func() { _ = notify.Close() }()

	done := make(chan ScriptLoad, 1)
	var once sync.Once
	notify.SetCallback(func(res ScriptLoad) {
		once.Do(func() { done <- res })
	})

	if err := b.AddScriptNotify(ctx, src, notify); err != nil {
		return err
	}
	select {
	case res := <-done:
		if res.Error != "" {
			return &ScriptLoadError{Src: src, Reason: res.Error}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsCSSIncluded reports whether the document links href as a stylesheet.
func (b *Bridge) IsCSSIncluded(ctx context.Context, href string) (bool, error) {
	return call[bool](ctx, b, OpIsCSSIncluded, href)
}

// AddCSS links the stylesheet at href unless it already is.
func (b *Bridge) AddCSS(ctx context.Context, href string) error {
	included, err := b.IsCSSIncluded(ctx, href)
	if err != nil || included {
		return err
	}
	return b.callVoid(ctx, OpAddCSS, href)
}
