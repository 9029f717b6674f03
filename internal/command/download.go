package command

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"
	"github.com/joeycumines/jsinterop/internal/config"
	"github.com/joeycumines/jsinterop/internal/dom"
	"github.com/joeycumines/jsinterop/internal/storage"
)

// downloadSink saves the downloads a document produces. Blob downloads
// are written from the captured data; anything else is fetched.
type downloadSink struct {
	ctx    context.Context
	dir    string
	logger *slog.Logger
	report io.Writer
	client *resty.Client
	// name, if set, replaces the file name of every download.
	name string
	// stdout, if set, receives the content instead of dir.
	stdout io.Writer

	mu     sync.Mutex
	saved  []string
	errors []error
}

func newDownloadSink(ctx context.Context, dir string, logger *slog.Logger, report io.Writer) *downloadSink {
	if dir == "" {
		dir = "."
	}
	return &downloadSink{ctx: ctx, dir: dir, logger: logger, report: report}
}

// handle is the dom.DownloadHandler. It runs on its own goroutine.
func (s *downloadSink) handle(d dom.Download) {
	target, n, err := s.save(d)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Error("download failed", slog.String("url", d.URL), slog.Any("error", err))
		s.errors = append(s.errors, fmt.Errorf("download %s: %w", d.URL, err))
		return
	}
	s.saved = append(s.saved, target)
	s.logger.Info("download saved", slog.String("url", d.URL), slog.String("path", target), slog.Int64("bytes", n))
	if s.stdout == nil {
		_, _ = fmt.Fprintf(s.report, "saved %s (%d bytes)\n", target, n)
	}
}

func (s *downloadSink) save(d dom.Download) (string, int64, error) {
	name := s.name
	if name == "" {
		name = d.FileName
	}
	if name == "" {
		name = nameFromURL(d.URL)
	}
	name = safeName(name)

	var body io.Reader
	if d.Data != nil || strings.HasPrefix(d.URL, "blob:") {
		body = bytes.NewReader(d.Data)
	} else {
		rc, err := s.fetch(d.URL)
		if err != nil {
			return "", 0, err
		}
		defer rc.Close()
		body = rc
	}

	if s.stdout != nil {
		n, err := io.Copy(s.stdout, body)
		return "-", n, err
	}
	target := filepath.Join(s.dir, name)
	n, err := storage.WriteFrom(target, body, 0o644)
	return target, n, err
}

func (s *downloadSink) fetch(rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if s.client == nil {
		return nil, errors.New("no HTTP client")
	}
	resp, err := s.client.R().SetContext(s.ctx).SetDoNotParseResponse(true).Get(rawURL)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		_ = resp.RawBody().Close()
		return nil, fmt.Errorf("fetch: %s", resp.Status())
	}
	return resp.RawBody(), nil
}

// err returns every failure recorded so far.
func (s *downloadSink) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.errors...)
}

func (s *downloadSink) files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.saved...)
}

// nameFromURL takes the last path segment of rawURL.
func nameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "download"
	}
	name := path.Base(strings.TrimSuffix(u.Path, "/"))
	if name == "." || name == "/" {
		return "download"
	}
	return name
}

// safeName keeps a downloaded file inside the target directory.
func safeName(name string) string {
	name = filepath.Base(filepath.Clean(strings.ReplaceAll(name, "\\", "/")))
	if name == "." || name == ".." || name == string(filepath.Separator) || name == "" {
		return "download"
	}
	return name
}

// DownloadCommand downloads a URL, or offers a local file for download,
// through the Bridge.
type DownloadCommand struct {
	*BaseCommand
	config *config.Config

	dir      string
	name     string
	mimeType string
	force    bool
	logFlags logFlags
}

func NewDownloadCommand(cfg *config.Config) *DownloadCommand {
	return &DownloadCommand{
		BaseCommand: NewBaseCommand(
			"download",
			"Download a URL, or stream a local file, through the page download path",
			"download [--dir d] [--name n] [--mime m] <url | file | ->",
		),
		config: cfg,
	}
}

func (c *DownloadCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.dir, "dir", "", "Directory to save into, or - for stdout (overrides download.dir)")
	fs.StringVar(&c.name, "name", "", "File name to save as")
	fs.StringVar(&c.mimeType, "mime", "", "MIME type of a streamed file (guessed from the name by default)")
	fs.BoolVar(&c.force, "force", false, "Write to stdout even if it is a terminal")
	c.logFlags.register(fs)
}

func (c *DownloadCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		_, _ = fmt.Fprintf(stderr, "Usage: jsop %s\n", c.Usage())
		return errors.New("expected exactly one URL or file")
	}
	source := args[0]

	st, err := config.DefaultSchema().ResolveSettings(c.config)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.dir != "" {
		st.DownloadDir = c.dir
	}
	toStdout := st.DownloadDir == "-"
	if toStdout && isTerminal(stdout) && !c.force {
		return errors.New("refusing to write a download to a terminal; use --force or --dir")
	}

	logs, err := resolveLogConfig(c.logFlags, st, stderr)
	if err != nil {
		return err
	}
	defer logs.Close()

	var input io.Reader
	remote := isURL(source)
	if !remote {
		if source == "-" {
			if isTerminal(os.Stdin) {
				return errors.New("refusing to read a download from a terminal")
			}
			input = os.Stdin
		} else {
			f, err := os.Open(source)
			if err != nil {
				return err
			}
			defer f.Close()
			input = f
		}
	}

	ctx := context.Background()
	if st.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.Timeout)
		defer cancel()
	}

	sink := newDownloadSink(ctx, st.DownloadDir, logs.logger, stderr)
	sink.name = c.name
	if toStdout {
		sink.stdout = stdout
	}
	s, err := newSession(ctx, st, logs, sessionOptions{
		download: sink.handle,
		console:  stderr,
		color:    colorEnabled(st.Color, stderr),
	})
	if err != nil {
		return err
	}
	sink.client = s.http.Client()
	defer s.Close()

	if remote {
		err = s.bridge.DownloadFromURL(ctx, source)
	} else {
		name := c.name
		if name == "" {
			name = safeName(source)
			if source == "-" {
				name = "download"
			}
		}
		mimeType := c.mimeType
		if mimeType == "" {
			mimeType = mime.TypeByExtension(filepath.Ext(name))
		}
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		err = s.bridge.DownloadFromStream(ctx, mimeType, name, input)
	}
	if err != nil {
		reportConsole(logs, stderr)
		return err
	}
	s.doc.Wait()
	if err := sink.err(); err != nil {
		return err
	}
	if len(sink.files()) == 0 {
		return errors.New("the page produced no download")
	}
	return nil
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
