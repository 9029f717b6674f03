package jsrt

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConsoleLog_RingBuffer(t *testing.T) {
	t.Parallel()

	h := NewConsoleLog(3, slog.LevelInfo)
	logger := slog.New(h)
	logger.Debug("dropped")
	for _, msg := range []string{"one", "two", "three", "four"} {
		logger.Info(msg)
	}

	entries := h.Entries()
	require.Len(t, entries, 3)
	require.Equal(t, "two", entries[0].Message)
	require.Equal(t, "four", entries[2].Message)

	recent := h.Recent(1)
	require.Len(t, recent, 1)
	require.Equal(t, "four", recent[0].Message)
	require.Len(t, h.Recent(0), 3)

	h.Clear()
	require.Empty(t, h.Entries())
}

func TestConsoleLog_AttrsAndSearch(t *testing.T) {
	t.Parallel()

	h := NewConsoleLog(0, nil)
	logger := slog.New(h).With(slog.String("module", "./jsop.js")).WithGroup("call")
	logger.Warn("slow call", slog.String("identifier", "AddScript"))
	slog.New(h).Info("unrelated")

	matches := h.Search("addscript")
	require.Len(t, matches, 1)
	require.Equal(t, slog.LevelWarn, matches[0].Level)
	require.Equal(t, "./jsop.js", matches[0].Attrs["module"])
	require.Equal(t, "AddScript", matches[0].Attrs["call.identifier"])

	require.Len(t, h.Search("SLOW"), 1)
	require.Empty(t, h.Search("absent"))
}

func TestLogPrinter(t *testing.T) {
	t.Parallel()

	h := NewConsoleLog(10, slog.LevelDebug)
	p := LogPrinter{Logger: slog.New(h)}
	p.Log("a")
	p.Warn("b")
	p.Error("c")

	entries := h.Entries()
	require.Len(t, entries, 3)
	require.Equal(t, []slog.Level{slog.LevelInfo, slog.LevelWarn, slog.LevelError},
		[]slog.Level{entries[0].Level, entries[1].Level, entries[2].Level})
	require.Equal(t, "console", entries[0].Attrs["source"])
}

func TestTee(t *testing.T) {
	t.Parallel()

	all := NewConsoleLog(10, slog.LevelDebug)
	errs := NewConsoleLog(10, slog.LevelError)
	logger := slog.New(Tee(all, errs))

	logger.Info("info")
	logger.Error("error")
	require.Len(t, all.Entries(), 2)
	require.Len(t, errs.Entries(), 1)
	require.True(t, Tee(all, errs).Enabled(context.Background(), slog.LevelDebug))
	require.False(t, Tee(errs).Enabled(context.Background(), slog.LevelWarn))
}
