package jsrt

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogPrinter forwards script console output to a logger. It implements
// the goja_nodejs console.Printer interface.
type LogPrinter struct {
	Logger *slog.Logger
}

func (p LogPrinter) Log(s string)   { p.print(slog.LevelInfo, s) }
func (p LogPrinter) Warn(s string)  { p.print(slog.LevelWarn, s) }
func (p LogPrinter) Error(s string) { p.print(slog.LevelError, s) }

func (p LogPrinter) print(level slog.Level, s string) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(context.Background(), level, s, slog.String("source", "console"))
}

// ConsoleEntry is one record held by a ConsoleLog.
type ConsoleEntry struct {
	Time    time.Time         `json:"time"`
	Level   slog.Level        `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// ConsoleLog is a slog.Handler that keeps the most recent records in
// memory, oldest first. It backs console capture for page runs and tests.
type ConsoleLog struct {
	state *consoleState
	attrs []slog.Attr
	group string
}

type consoleState struct {
	mu      sync.RWMutex
	entries []ConsoleEntry
	max     int
	level   slog.Leveler
}

// NewConsoleLog creates a ConsoleLog holding at most maxEntries records
// (1000 if not positive) at or above level.
func NewConsoleLog(maxEntries int, level slog.Leveler) *ConsoleLog {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if level == nil {
		level = slog.LevelDebug
	}
	return &ConsoleLog{state: &consoleState{
		entries: make([]ConsoleEntry, 0, maxEntries),
		max:     maxEntries,
		level:   level,
	}}
}

func (h *ConsoleLog) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.state.level.Level()
}

func (h *ConsoleLog) Handle(ctx context.Context, record slog.Record) error {
	attrs := make(map[string]string, len(h.attrs)+record.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.String()
	}
	record.Attrs(func(a slog.Attr) bool {
		attrs[h.key(a.Key)] = a.Value.String()
		return true
	})

	s := h.state
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, ConsoleEntry{
		Time:    record.Time,
		Level:   record.Level,
		Message: record.Message,
		Attrs:   attrs,
	})
	if len(s.entries) > s.max {
		s.entries = s.entries[len(s.entries)-s.max:]
	}
	return nil
}

func (h *ConsoleLog) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

func (h *ConsoleLog) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		c.attrs = append(c.attrs, slog.Attr{Key: h.key(a.Key), Value: a.Value})
	}
	return &c
}

func (h *ConsoleLog) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.group = h.key(name)
	return &c
}

// Entries returns a copy of all held records.
func (h *ConsoleLog) Entries() []ConsoleEntry {
	s := h.state
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ConsoleEntry(nil), s.entries...)
}

// Recent returns the newest n records, or all of them if n is out of range.
func (h *ConsoleLog) Recent(n int) []ConsoleEntry {
	s := h.state
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.entries) {
		n = len(s.entries)
	}
	return append([]ConsoleEntry(nil), s.entries[len(s.entries)-n:]...)
}

// Search returns the records whose message or attributes contain query,
// case-insensitively.
func (h *ConsoleLog) Search(query string) []ConsoleEntry {
	s := h.state
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(query)
	var matches []ConsoleEntry
	for _, e := range s.entries {
		if strings.Contains(strings.ToLower(e.Message), query) {
			matches = append(matches, e)
			continue
		}
		for k, v := range e.Attrs {
			if strings.Contains(strings.ToLower(k), query) || strings.Contains(strings.ToLower(v), query) {
				matches = append(matches, e)
				break
			}
		}
	}
	return matches
}

// Clear drops all held records.
func (h *ConsoleLog) Clear() {
	s := h.state
	s.mu.Lock()
	s.entries = s.entries[:0]
	s.mu.Unlock()
}

// Tee returns a handler that sends each record to every handler in hs.
func Tee(hs ...slog.Handler) slog.Handler {
	return teeHandler(hs)
}

type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
