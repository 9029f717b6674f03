package command

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/joeycumines/jsinterop/internal/config"
	"github.com/segmentio/encoding/json"
)

// LogCommand prints the JSON log file written by page runs, optionally
// following it.
type LogCommand struct {
	*BaseCommand
	config *config.Config

	follow bool
	lines  int
	file   string
	level  string
	raw    bool
}

func NewLogCommand(cfg *config.Config) *LogCommand {
	return &LogCommand{
		BaseCommand: NewBaseCommand("log", "View and follow the log file", "log [tail] [-n N] [-f] [--level l] [--raw]"),
		config:      cfg,
		lines:       10,
	}
}

func (c *LogCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.follow, "f", false, "Follow the log file (like tail -f)")
	fs.BoolVar(&c.follow, "follow", false, "Follow the log file (like tail -f)")
	fs.IntVar(&c.lines, "n", 10, "Number of records to show from the end of the file")
	fs.StringVar(&c.file, "file", "", "Path to log file (overrides log.file)")
	fs.StringVar(&c.level, "level", "", "Only show records at or above this level")
	fs.BoolVar(&c.raw, "raw", false, "Print records as stored, without formatting")
}

func (c *LogCommand) Execute(args []string, stdout, stderr io.Writer) error {
	// "log tail" is "log --follow".
	if len(args) > 0 && args[0] == "tail" {
		c.follow = true
		args = args[1:]
	}
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unknown subcommand: %s\n", args[0])
		return fmt.Errorf("unknown subcommand: %s", args[0])
	}

	logPath := c.file
	if logPath == "" {
		logPath = config.DefaultSchema().Resolve(c.config, "log.file")
	}
	if logPath == "" {
		_, _ = fmt.Fprintln(stderr, "No log file configured. Use --file or set log.file in config.")
		return errors.New("no log file configured")
	}

	f, err := newRecordFormatter(c.level, c.raw)
	if err != nil {
		return err
	}
	emit := func(line string) {
		if out, ok := f.format(line); ok {
			_, _ = fmt.Fprintln(stdout, out)
		}
	}

	if !c.follow {
		file, err := os.Open(logPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				_, _ = fmt.Fprintf(stderr, "Log file does not exist: %s\n", logPath)
				return fmt.Errorf("log file not found: %s", logPath)
			}
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer file.Close()
		for _, line := range readLastNLines(file, c.lines, f.keep) {
			emit(line)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = c.tailFollow(ctx, logPath, f, emit, stderr)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *LogCommand) tailFollow(ctx context.Context, logPath string, f *recordFormatter, emit func(string), stderr io.Writer) error {
	file, err := os.Open(logPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		_, _ = fmt.Fprintf(stderr, "Waiting for log file: %s\n", logPath)
		if file, err = waitForFile(ctx, logPath); err != nil {
			return err
		}
	}
	for _, line := range readLastNLines(file, c.lines, f.keep) {
		emit(line)
	}
	pos, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to seek to end: %w", err)
	}
	return followFile(ctx, file, logPath, pos, emit, stderr)
}

// readLastNLines returns the last n lines of r that keep accepts, holding
// at most n lines in memory.
func readLastNLines(r io.Reader, n int, keep func(string) bool) []string {
	if n <= 0 {
		return nil
	}
	ring := make([]string, n)
	count := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if keep != nil && !keep(line) {
			continue
		}
		ring[count%n] = line
		count++
	}
	total := min(count, n)
	result := make([]string, total)
	start := count - total
	for i := range total {
		result[i] = ring[(start+i)%n]
	}
	return result
}

const followInterval = 200 * time.Millisecond

// followFile emits lines appended to f until ctx is done. A file that
// shrinks was rotated and is reopened from the start; a file that
// disappears is waited for.
func followFile(ctx context.Context, f *os.File, logPath string, pos int64, emit func(string), stderr io.Writer) error {
	reader := bufio.NewReader(f)
	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()
	defer func() { _ = f.Close() }()

	var partial string
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		rotated, err := detectRotation(logPath, pos)
		if err != nil {
			_ = f.Close()
			_, _ = fmt.Fprintln(stderr, "Log file rotated, waiting for new file...")
			nf, err := waitForFile(ctx, logPath)
			if err != nil {
				return err
			}
			f, reader, pos, partial = nf, bufio.NewReader(nf), 0, ""
			continue
		}
		if rotated {
			nf, err := os.Open(logPath)
			if err != nil {
				continue
			}
			_ = f.Close()
			f, reader, pos, partial = nf, bufio.NewReader(nf), 0, ""
		}

		for {
			chunk, err := reader.ReadString('\n')
			pos += int64(len(chunk))
			partial += chunk
			if err != nil {
				break
			}
			emit(strings.TrimSuffix(partial, "\n"))
			partial = ""
		}
	}
}

// detectRotation reports whether the file at logPath is now shorter than
// pos. An error means the file is gone.
func detectRotation(logPath string, pos int64) (bool, error) {
	info, err := os.Stat(logPath)
	if err != nil {
		return false, err
	}
	return info.Size() < pos, nil
}

// waitForFile polls until path can be opened, ctx is done, or a generous
// deadline passes.
func waitForFile(ctx context.Context, path string) (*os.File, error) {
	const (
		maxWait      = 30 * time.Second
		pollInterval = 500 * time.Millisecond
	)
	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()
	for {
		f, err := os.Open(path)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("timed out waiting for log file: %s", path)
			}
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// recordFormatter renders JSON log records as
// "15:04:05.000 LEVEL message key=value ...". Lines that are not records
// pass through unchanged and are never filtered.
type recordFormatter struct {
	min    slog.Level
	filter bool
	raw    bool
}

func newRecordFormatter(level string, raw bool) (*recordFormatter, error) {
	f := &recordFormatter{raw: raw}
	if level != "" {
		if err := f.min.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level: %s", level)
		}
		f.filter = true
	}
	return f, nil
}

type record struct {
	time  string
	level slog.Level
	msg   string
	attrs map[string]any
}

func parseRecord(line string) (record, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil || m == nil {
		return record{}, false
	}
	var r record
	lv, _ := m[slog.LevelKey].(string)
	if lv == "" || r.level.UnmarshalText([]byte(lv)) != nil {
		return record{}, false
	}
	r.time, _ = m[slog.TimeKey].(string)
	r.msg, _ = m[slog.MessageKey].(string)
	delete(m, slog.TimeKey)
	delete(m, slog.LevelKey)
	delete(m, slog.MessageKey)
	r.attrs = m
	return r, true
}

func (f *recordFormatter) keep(line string) bool {
	if !f.filter {
		return true
	}
	r, ok := parseRecord(line)
	return !ok || r.level >= f.min
}

func (f *recordFormatter) format(line string) (string, bool) {
	if !f.keep(line) {
		return "", false
	}
	if f.raw {
		return line, true
	}
	r, ok := parseRecord(line)
	if !ok {
		return line, true
	}
	var b strings.Builder
	if t, err := time.Parse(time.RFC3339Nano, r.time); err == nil {
		b.WriteString(t.Local().Format("15:04:05.000"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s %s", r.level, r.msg)
	keys := make([]string, 0, len(r.attrs))
	for k := range r.attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatAttr(r.attrs[k]))
	}
	return b.String(), true
}

func formatAttr(v any) string {
	switch v := v.(type) {
	case string:
		if strings.ContainsAny(v, " \t\"=") || v == "" {
			return fmt.Sprintf("%q", v)
		}
		return v
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}
