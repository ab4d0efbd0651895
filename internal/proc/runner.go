// SPDX-License-Identifier: MPL-2.0

package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"slices"
	"strings"
	"sync"

	"github.com/layermake/layermake/internal/logging"
)

// ErrUnexpectedExit is the sentinel wrapped by ExitCodeError.
var ErrUnexpectedExit = errors.New("unexpected exit code")

type (
	// ExecCommandFunc creates an exec.Cmd. Tests swap it for a helper process.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Option configures a Runner.
	Option func(*Runner)

	// Runner runs external processes to completion and streams their output
	// to a Logger line by line.
	Runner struct {
		execCommand ExecCommandFunc
		log         logging.Logger
	}

	// Command describes one process invocation.
	Command struct {
		Name string
		Args []string
		Dir  string
		// Prefix is prepended to every streamed output line.
		Prefix string
		// ExpectedCodes lists acceptable exit codes. Empty means only 0.
		ExpectedCodes []int
		// Capture keeps stdout in Result.Stdout in addition to streaming it.
		Capture bool
		// Stdout and Stderr receive raw output in addition to the log stream.
		Stdout io.Writer
		Stderr io.Writer
	}

	// Result is the outcome of a completed process.
	Result struct {
		ExitCode int
		Stdout   string
	}

	// ExitCodeError reports a process that exited with an unexpected code.
	ExitCodeError struct {
		Command string
		Code    int
	}
)

// Error implements the error interface.
func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
}

// Unwrap returns ErrUnexpectedExit for errors.Is.
func (e *ExitCodeError) Unwrap() error { return ErrUnexpectedExit }

// WithExecCommand overrides how commands are created.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(r *Runner) {
		r.execCommand = fn
	}
}

// NewRunner creates a Runner that logs through log.
func NewRunner(log logging.Logger, opts ...Option) *Runner {
	r := &Runner{
		execCommand: exec.CommandContext,
		log:         log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes c and blocks until it exits. Output lines are logged at debug
// level as they arrive. An exit code outside ExpectedCodes yields a Result
// together with an *ExitCodeError; failing to start yields only an error.
func (r *Runner) Run(ctx context.Context, c Command) (*Result, error) {
	cmd := r.execCommand(ctx, c.Name, c.Args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}

	var captured bytes.Buffer
	var mu sync.Mutex
	stdoutLines := &lineWriter{emit: r.emitter(c.Prefix), mu: &mu}
	stderrLines := &lineWriter{emit: r.emitter(c.Prefix), mu: &mu}

	stdout := []io.Writer{stdoutLines}
	if c.Capture {
		stdout = append(stdout, &captured)
	}
	if c.Stdout != nil {
		stdout = append(stdout, c.Stdout)
	}
	stderr := []io.Writer{stderrLines}
	if c.Stderr != nil {
		stderr = append(stderr, c.Stderr)
	}
	cmd.Stdout = io.MultiWriter(stdout...)
	cmd.Stderr = io.MultiWriter(stderr...)

	err := cmd.Run()
	stdoutLines.Flush()
	stderrLines.Flush()

	result := &Result{Stdout: captured.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to run %s: %w", c.String(), err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	expected := c.ExpectedCodes
	if len(expected) == 0 {
		expected = []int{0}
	}
	if !slices.Contains(expected, result.ExitCode) {
		return result, &ExitCodeError{Command: c.String(), Code: result.ExitCode}
	}
	return result, nil
}

func (r *Runner) emitter(prefix string) func(string) {
	return func(line string) {
		r.log.Debug(prefix + line)
	}
}

// String renders the command line for messages.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// lineWriter splits a byte stream into lines. exec copies stdout and stderr
// from separate goroutines, so writers that share a sink share mu.
type lineWriter struct {
	mu   *sync.Mutex
	buf  []byte
	emit func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(strings.TrimRight(string(w.buf[:i]), "\r"))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush emits a trailing partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.emit(strings.TrimRight(string(w.buf), "\r"))
		w.buf = nil
	}
}
