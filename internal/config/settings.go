package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Settings are the effective values of the global options, after
// environment overrides and defaults.
type Settings struct {
	LogFile       string
	LogLevel      slog.Level
	LogMaxSizeMB  int
	LogMaxFiles   int
	LogBufferSize int

	Timeout time.Duration
	Color   string

	SyncTimeout   time.Duration
	ModuleLocator string
	LoaderRoot    string
	HTTPTimeout   time.Duration
	UserAgent     string
	DownloadDir   string
}

// ResolveSettings resolves the global options of c (which may be nil)
// against s. Unlike loading, it fails on values that do not parse.
func (s *ConfigSchema) ResolveSettings(c *Config) (Settings, error) {
	r := resolver{schema: s, config: c}
	out := Settings{
		LogFile:       r.str("log.file"),
		LogMaxSizeMB:  r.int("log.max-size-mb"),
		LogMaxFiles:   r.int("log.max-files"),
		LogBufferSize: r.int("log.buffer-size"),
		Timeout:       r.duration("timeout"),
		Color:         strings.ToLower(r.str("color")),
		SyncTimeout:   r.duration("runtime.sync-timeout"),
		ModuleLocator: r.str("module.locator"),
		LoaderRoot:    r.str("loader.root"),
		HTTPTimeout:   r.duration("loader.http-timeout"),
		UserAgent:     r.str("loader.user-agent"),
		DownloadDir:   r.str("download.dir"),
	}
	if err := out.LogLevel.UnmarshalText([]byte(r.str("log.level"))); err != nil && r.err == nil {
		r.err = fmt.Errorf("log.level: %w", err)
	}
	if opt := s.Lookup("", "color"); opt != nil && r.err == nil {
		if err := opt.check(out.Color); err != nil {
			r.err = fmt.Errorf("color: %w", err)
		}
	}
	return out, r.err
}

// resolver keeps the first parse failure.
type resolver struct {
	schema *ConfigSchema
	config *Config
	err    error
}

func (r *resolver) str(key string) string {
	return r.schema.Resolve(r.config, key)
}

func (r *resolver) int(key string) int {
	v := r.str(key)
	if v == "" {
		return 0
	}
	i, err := strconv.Atoi(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: expected int, got %q", key, v)
	}
	return i
}

func (r *resolver) duration(key string) time.Duration {
	v := r.str(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: expected duration, got %q", key, v)
	}
	return d
}
