package command

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"charm.land/lipgloss/v2"
	"github.com/joeycumines/jsinterop/internal/jsrt"
	"golang.org/x/term"
)

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// colorEnabled applies the color setting to w: "always", "never", or
// "auto" for terminals only, honoring NO_COLOR.
func colorEnabled(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	return os.Getenv("NO_COLOR") == "" && isTerminal(w)
}

var (
	consolePlain  = lipgloss.NewStyle()
	consolePrefix = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	consoleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	consoleError  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// consolePrinter shows script console output on a writer, tinted by level
// when color is on, and records it through record.
type consolePrinter struct {
	mu     sync.Mutex
	w      io.Writer
	color  bool
	record jsrt.LogPrinter
}

func newConsolePrinter(w io.Writer, color bool, record *slog.Logger) *consolePrinter {
	return &consolePrinter{w: w, color: color, record: jsrt.LogPrinter{Logger: record}}
}

func (p *consolePrinter) Log(s string) {
	p.record.Log(s)
	p.print(s, consolePlain)
}

func (p *consolePrinter) Warn(s string) {
	p.record.Warn(s)
	p.print(s, consoleWarn)
}

func (p *consolePrinter) Error(s string) {
	p.record.Error(s)
	p.print(s, consoleError)
}

func (p *consolePrinter) print(s string, style lipgloss.Style) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prefix := "console> "
	if p.color {
		prefix = consolePrefix.Render(prefix)
		s = style.Render(s)
	}
	_, _ = fmt.Fprintln(p.w, prefix+s)
}
