package command

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joeycumines/jsinterop/internal/config"
	"github.com/joeycumines/jsinterop/internal/jsrt"
)

// logFlags are the logging flags shared by commands that run a page.
type logFlags struct {
	level string
	file  string
}

func (f *logFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.level, "log-level", "", "Log level: debug, info, warn, error (overrides log.level)")
	fs.StringVar(&f.file, "log-file", "", "JSON log file (overrides log.file)")
}

// logConfig is the resolved logging setup. Close releases the log file.
type logConfig struct {
	logger *slog.Logger
	// console keeps the most recent remote console records.
	console *jsrt.ConsoleLog
	closer  io.Closer
}

func (lc *logConfig) Close() error {
	if lc.closer == nil {
		return nil
	}
	return lc.closer.Close()
}

// resolveLogConfig builds the host logger. Flags win over settings. With a
// log file, records are JSON lines in a rotating file; otherwise they are
// text on stderr.
func resolveLogConfig(flags logFlags, st config.Settings, stderr io.Writer) (*logConfig, error) {
	level := st.LogLevel
	if flags.level != "" {
		if err := level.UnmarshalText([]byte(strings.TrimSpace(flags.level))); err != nil {
			return nil, fmt.Errorf("invalid log level: %s", flags.level)
		}
	}
	bufferSize := st.LogBufferSize
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	lc := &logConfig{console: jsrt.NewConsoleLog(bufferSize, slog.LevelDebug)}
	opts := &slog.HandlerOptions{Level: level}

	path := flags.file
	if path == "" {
		path = st.LogFile
	}
	var handler slog.Handler
	if path != "" {
		w, err := jsrt.NewRotatingFileWriter(path, st.LogMaxSizeMB, st.LogMaxFiles)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		lc.closer = w
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(stderr, opts)
	}
	lc.logger = slog.New(handler)
	return lc, nil
}
