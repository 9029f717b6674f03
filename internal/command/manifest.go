package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joeycumines/jsinterop/internal/interop"
	"github.com/joeycumines/jsinterop/internal/jsop"
)

// Manifest describes a page run:
//
//	page = "index.html"
//	output = "out.html"
//
//	[[step]]
//	op = "addScript"
//	src = "https://example.com/lib.js"
//
//	[[step]]
//	op = "setStyle"
//	element = "banner"
//	name = "display"
//	value = "none"
type Manifest struct {
	// Page is an HTML file, relative to the manifest.
	Page   string `toml:"page"`
	Output string `toml:"output"`
	Steps  []Step `toml:"step"`
}

// Step is one Bridge operation. Which fields apply depends on Op.
type Step struct {
	Op      string `toml:"op"`
	Src     string `toml:"src"`
	Href    string `toml:"href"`
	CSS     string `toml:"css"`
	Element string `toml:"element"`
	Name    string `toml:"name"`
	Value   string `toml:"value"`
	Message string `toml:"message"`
	URL     string `toml:"url"`
	Data    any    `toml:"data"`
}

// LoadManifest decodes the manifest at path. Unknown keys are errors and a
// relative Page is resolved against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	var unknown []string
	for _, k := range meta.Undecoded() {
		// anything under a step's data is free form
		if len(k) > 2 && k[0] == "step" && k[1] == "data" {
			continue
		}
		unknown = append(unknown, k.String())
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("load manifest: unknown keys: %s", strings.Join(unknown, ", "))
	}
	if m.Page != "" && !filepath.IsAbs(m.Page) {
		m.Page = filepath.Join(filepath.Dir(path), m.Page)
	}
	for i, s := range m.Steps {
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("load manifest: step %d: %w", i+1, err)
		}
	}
	return &m, nil
}

func (s Step) validate() error {
	need := func(field, v string) error {
		if v == "" {
			return fmt.Errorf("%s needs %s", s.Op, field)
		}
		return nil
	}
	switch jsop.Op(s.Op) {
	case jsop.OpLog, jsop.OpAlert:
		return nil
	case jsop.OpAddScript:
		return need("src", s.Src)
	case jsop.OpAddCSS:
		return need("href", s.Href)
	case jsop.OpAddStyle:
		return need("css", s.CSS)
	case jsop.OpDownloadFromURL:
		return need("url", s.URL)
	case jsop.OpTriggerClick, jsop.OpFocus, jsop.OpFocusInput, jsop.OpScrollIntoView:
		return need("element", s.Element)
	case jsop.OpSetStyle:
		if err := need("element", s.Element); err != nil {
			return err
		}
		return need("name", s.Name)
	}
	if jsop.Op(s.Op).Valid() {
		return fmt.Errorf("%s cannot be used in a manifest", s.Op)
	}
	return fmt.Errorf("unknown op %q", s.Op)
}

// apply runs the step through b, reporting anything the step returns on
// out.
func (s Step) apply(ctx context.Context, b *jsop.Bridge, out io.Writer) error {
	el := interop.ElementByID(s.Element)
	switch jsop.Op(s.Op) {
	case jsop.OpLog:
		if s.Data != nil {
			return b.Log(ctx, s.Data)
		}
		if s.Message == "" {
			return b.LogLine(ctx)
		}
		return b.Log(ctx, s.Message)
	case jsop.OpAlert:
		return b.Alert(ctx, s.Message)
	case jsop.OpAddScript:
		return b.AddScript(ctx, s.Src)
	case jsop.OpAddCSS:
		return b.AddCSS(ctx, s.Href)
	case jsop.OpAddStyle:
		return b.AddStyle(ctx, s.CSS)
	case jsop.OpDownloadFromURL:
		return b.DownloadFromURL(ctx, s.URL)
	case jsop.OpTriggerClick:
		return b.TriggerClick(ctx, &el)
	case jsop.OpFocus:
		return b.Focus(ctx, el)
	case jsop.OpFocusInput:
		return b.FocusInput(ctx, el)
	case jsop.OpScrollIntoView:
		found, err := b.ScrollIntoView(ctx, s.Element)
		if err == nil && !found {
			_, _ = fmt.Fprintf(out, "scrollIntoView: no element %q\n", s.Element)
		}
		return err
	case jsop.OpSetStyle:
		return b.SetStyle(ctx, el, s.Name, s.Value)
	}
	return fmt.Errorf("unknown op %q", s.Op)
}

// readPage returns the HTML of path, or "" for the default page.
func readPage(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}
	return string(b), nil
}
