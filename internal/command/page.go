package command

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joeycumines/jsinterop/internal/config"
	"github.com/joeycumines/jsinterop/internal/storage"
)

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// PageCommand builds a document, applies operations to it through the
// Bridge and renders the result.
type PageCommand struct {
	*BaseCommand
	config *config.Config

	manifest string
	page     string
	scripts  stringList
	css      stringList
	styles   stringList
	out      string
	dir      string
	logFlags logFlags

	// transport replaces the HTTP transport, for tests.
	transport http.RoundTripper
}

func NewPageCommand(cfg *config.Config) *PageCommand {
	return &PageCommand{
		BaseCommand: NewBaseCommand(
			"page",
			"Apply scripts, stylesheets and manifest steps to a page and print its HTML",
			"page [--manifest m.toml] [--page index.html] [--script url]... [--css url]... [--style css]... [--out file]",
		),
		config: cfg,
	}
}

func (c *PageCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.manifest, "manifest", "", "TOML manifest of steps (overrides [page] manifest)")
	fs.StringVar(&c.page, "page", "", "HTML file to start from (overrides the manifest)")
	fs.Var(&c.scripts, "script", "Script to include, once (repeatable)")
	fs.Var(&c.css, "css", "Stylesheet to include, once (repeatable)")
	fs.Var(&c.styles, "style", "CSS text to append in a style element (repeatable)")
	fs.StringVar(&c.out, "out", "", "Write the page here instead of stdout (overrides [page] output)")
	fs.StringVar(&c.dir, "dir", "", "Directory for downloads the page triggers (overrides download.dir)")
	c.logFlags.register(fs)
}

func (c *PageCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return errors.New("unexpected arguments")
	}

	schema := config.DefaultSchema()
	st, err := schema.ResolveSettings(c.config)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logs, err := resolveLogConfig(c.logFlags, st, stderr)
	if err != nil {
		return err
	}
	defer logs.Close()

	m := &Manifest{}
	manifestPath := c.manifest
	if manifestPath == "" {
		manifestPath = schema.ResolveIn(c.config, "page", "manifest")
	}
	if manifestPath != "" {
		if m, err = LoadManifest(manifestPath); err != nil {
			return err
		}
	}
	pagePath := m.Page
	if c.page != "" {
		pagePath = c.page
	}
	html, err := readPage(pagePath)
	if err != nil {
		return err
	}
	out := c.out
	if out == "" {
		out = m.Output
	}
	if out == "" {
		out = schema.ResolveIn(c.config, "page", "output")
	}
	if c.dir != "" {
		st.DownloadDir = c.dir
	}

	ctx := context.Background()
	if st.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.Timeout)
		defer cancel()
	}

	sink := newDownloadSink(ctx, st.DownloadDir, logs.logger, stderr)
	color := colorEnabled(st.Color, stderr)
	s, err := newSession(ctx, st, logs, sessionOptions{
		html:      html,
		alert:     func(msg string) { _, _ = fmt.Fprintf(stderr, "alert: %s\n", msg) },
		download:  sink.handle,
		console:   stderr,
		color:     color,
		transport: c.transport,
	})
	if err != nil {
		return err
	}
	sink.client = s.http.Client()
	defer s.Close()

	if err := c.apply(ctx, s, m.Steps, stderr); err != nil {
		reportConsole(logs, stderr)
		return err
	}
	s.doc.Wait()
	if err := sink.err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := s.doc.Render(&buf); err != nil {
		return err
	}
	if out == "" || out == "-" {
		_, err = stdout.Write(buf.Bytes())
		return err
	}
	if err := storage.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return err
	}
	logs.logger.Info("page written", slog.String("path", out), slog.Int("bytes", buf.Len()))
	return nil
}

// apply runs the manifest steps, then the flag operations, stopping at the
// first failure.
func (c *PageCommand) apply(ctx context.Context, s *session, steps []Step, stderr io.Writer) error {
	if err := s.bridge.Wait(ctx); err != nil {
		return fmt.Errorf("load bridge module: %w", err)
	}
	for i, step := range steps {
		if err := step.apply(ctx, s.bridge, stderr); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
	}
	for _, src := range c.scripts {
		if err := s.bridge.AddScript(ctx, src); err != nil {
			return fmt.Errorf("add script %s: %w", src, err)
		}
	}
	for _, href := range c.css {
		if err := s.bridge.AddCSS(ctx, href); err != nil {
			return fmt.Errorf("add stylesheet %s: %w", href, err)
		}
	}
	for _, css := range c.styles {
		if err := s.bridge.AddStyle(ctx, css); err != nil {
			return fmt.Errorf("add style: %w", err)
		}
	}
	return nil
}

// reportConsole prints the tail of the script console, which usually
// explains a failed step.
func reportConsole(logs *logConfig, w io.Writer) {
	recent := logs.console.Recent(10)
	if len(recent) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, "recent console output:")
	for _, e := range recent {
		_, _ = fmt.Fprintf(w, "  %s %s\n", e.Level, e.Message)
	}
}
