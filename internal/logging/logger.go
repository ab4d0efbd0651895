// SPDX-License-Identifier: EPL-2.0

package logging

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
)

// SuccessLevel sits between info and warn so quiet mode (warn and above)
// hides it together with info.
const SuccessLevel = log.InfoLevel + 1

var (
	colorSuccess = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B")
	colorInfo    = lipgloss.Color("#3B82F6")
	colorDebug   = lipgloss.Color("#9CA3AF")
)

type (
	// Logger is the logging capability handed to every layermake component.
	Logger interface {
		Debug(msg string, keyvals ...any)
		Info(msg string, keyvals ...any)
		Success(msg string, keyvals ...any)
		Warn(msg string, keyvals ...any)
		Error(msg string, keyvals ...any)
		// Status starts a scoped progress indicator. Callers must call Done.
		Status(msg string) Status
	}

	// Status is a scoped progress indicator.
	Status interface {
		Update(msg string)
		Done()
	}

	// Options configures a Console.
	Options struct {
		Verbose bool
		Quiet   bool
		// Spinner forces the status spinner on or off. When nil the spinner
		// is shown only if the output is a terminal.
		Spinner *bool
	}

	// Console is the terminal Logger built on charmbracelet/log.
	Console struct {
		mu      sync.Mutex
		out     io.Writer
		log     *log.Logger
		quiet   bool
		spinner bool
		active  *spinnerStatus
	}
)

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer, opts Options) *Console {
	l := log.NewWithOptions(w, log.Options{Prefix: "layermake"})
	l.SetStyles(styles())

	switch {
	case opts.Quiet:
		l.SetLevel(log.WarnLevel)
	case opts.Verbose:
		l.SetLevel(log.DebugLevel)
	default:
		l.SetLevel(log.InfoLevel)
	}

	spinner := isTerminal(w)
	if opts.Spinner != nil {
		spinner = *opts.Spinner
	}

	return &Console{
		out:     w,
		log:     l,
		quiet:   opts.Quiet,
		spinner: spinner && !opts.Quiet,
	}
}

func styles() *log.Styles {
	st := log.DefaultStyles()
	st.Levels[log.DebugLevel] = st.Levels[log.DebugLevel].Foreground(colorDebug)
	st.Levels[log.InfoLevel] = st.Levels[log.InfoLevel].Foreground(colorInfo)
	st.Levels[SuccessLevel] = lipgloss.NewStyle().
		SetString("DONE").
		Bold(true).
		MaxWidth(4).
		Foreground(colorSuccess)
	st.Levels[log.WarnLevel] = st.Levels[log.WarnLevel].Foreground(colorWarning)
	st.Levels[log.ErrorLevel] = st.Levels[log.ErrorLevel].Foreground(colorError)
	return st
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *Console) Debug(msg string, keyvals ...any) { c.emit(log.DebugLevel, msg, keyvals) }

func (c *Console) Info(msg string, keyvals ...any) { c.emit(log.InfoLevel, msg, keyvals) }

func (c *Console) Success(msg string, keyvals ...any) { c.emit(SuccessLevel, msg, keyvals) }

func (c *Console) Warn(msg string, keyvals ...any) { c.emit(log.WarnLevel, msg, keyvals) }

func (c *Console) Error(msg string, keyvals ...any) { c.emit(log.ErrorLevel, msg, keyvals) }

// emit writes one record. While a spinner is active it is cleared before the
// record and redrawn one frame later, so every streamed line advances it.
func (c *Console) emit(level log.Level, msg string, keyvals []any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		c.log.Log(level, msg, keyvals...)
		return
	}

	if level >= c.log.GetLevel() {
		c.active.clear()
		c.log.Log(level, msg, keyvals...)
	}
	c.active.tick()
}

// Status starts a spinner on terminals. Elsewhere it logs msg at info level
// and later updates at debug level.
func (c *Console) Status(msg string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.spinner || c.active != nil {
		c.log.Info(msg)
		return &plainStatus{console: c}
	}

	c.active = newSpinnerStatus(c, msg)
	return c.active
}

// Verbose reports whether debug records are written.
func (c *Console) Verbose() bool {
	return c.log.GetLevel() <= log.DebugLevel
}

// Quiet reports whether the console suppresses info output.
func (c *Console) Quiet() bool {
	return c.quiet
}

type plainStatus struct {
	console *Console
}

func (s *plainStatus) Update(msg string) { s.console.Debug(msg) }

func (s *plainStatus) Done() {}

// Nop discards everything. It is the logger used by tests.
type Nop struct{}

// NewNop returns a Logger that discards all output.
func NewNop() Logger { return Nop{} }

func (Nop) Debug(string, ...any)   {}
func (Nop) Info(string, ...any)    {}
func (Nop) Success(string, ...any) {}
func (Nop) Warn(string, ...any)    {}
func (Nop) Error(string, ...any)   {}
func (Nop) Status(string) Status   { return nopStatus{} }

type nopStatus struct{}

func (nopStatus) Update(string) {}
func (nopStatus) Done()         {}
