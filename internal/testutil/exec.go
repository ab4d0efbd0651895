// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
)

type (
	// MockCommandRecorder records process invocations and answers them with
	// a re-executed test binary (the TestHelperProcess pattern). Every test
	// package using it must declare:
	//
	//	func TestHelperProcess(t *testing.T) { testutil.RunHelperProcess() }
	MockCommandRecorder struct {
		mu          sync.Mutex
		Invocations []MockInvocation
		// Default answers invocations without a specific response.
		Default   MockResponse
		responses map[string]MockResponse
	}

	// MockInvocation is one recorded call.
	MockInvocation struct {
		Name string
		Args []string
	}

	// MockResponse is what the helper process prints and returns.
	MockResponse struct {
		ExitCode int
		Stdout   string
		Stderr   string
	}
)

// NewMockCommandRecorder returns a recorder whose default answer is a silent success.
func NewMockCommandRecorder() *MockCommandRecorder {
	return &MockCommandRecorder{responses: make(map[string]MockResponse)}
}

// On sets the response for invocations whose first argument is subcommand
// (for example "build" or "run").
func (m *MockCommandRecorder) On(subcommand string, resp MockResponse) *MockCommandRecorder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[subcommand] = resp
	return m
}

// CommandFunc returns a replacement for exec.CommandContext.
func (m *MockCommandRecorder) CommandFunc(t testing.TB) func(ctx context.Context, name string, args ...string) *exec.Cmd {
	t.Helper()
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		m.mu.Lock()
		m.Invocations = append(m.Invocations, MockInvocation{Name: name, Args: slices.Clone(args)})
		resp := m.Default
		if len(args) > 0 {
			if r, ok := m.responses[args[0]]; ok {
				resp = r
			}
		}
		m.mu.Unlock()

		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		//nolint:gosec // re-executes the test binary
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			"GO_HELPER_EXIT_CODE=" + strconv.Itoa(resp.ExitCode),
			"GO_HELPER_STDOUT=" + resp.Stdout,
			"GO_HELPER_STDERR=" + resp.Stderr,
		}
		return cmd
	}
}

// LastInvocation returns the most recent invocation, or nil.
func (m *MockCommandRecorder) LastInvocation() *MockInvocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Invocations) == 0 {
		return nil
	}
	inv := m.Invocations[len(m.Invocations)-1]
	return &inv
}

// Find returns the first invocation whose first argument is subcommand.
func (m *MockCommandRecorder) Find(subcommand string) *MockInvocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.Invocations {
		if len(inv.Args) > 0 && inv.Args[0] == subcommand {
			return &inv
		}
	}
	return nil
}

// AssertInvocationCount fails the test unless exactly n calls were recorded.
func (m *MockCommandRecorder) AssertInvocationCount(t testing.TB, n int) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Invocations) != n {
		t.Errorf("expected %d invocations, got %d: %v", n, len(m.Invocations), m.Invocations)
	}
}

// AssertArgsContain fails the test unless the last invocation's joined
// arguments contain want.
func (m *MockCommandRecorder) AssertArgsContain(t testing.TB, want string) {
	t.Helper()
	inv := m.LastInvocation()
	if inv == nil {
		t.Errorf("expected args to contain %q but nothing was invoked", want)
		return
	}
	if !strings.Contains(strings.Join(inv.Args, " "), want) {
		t.Errorf("expected args to contain %q, got: %v", want, inv.Args)
	}
}

// HasArgPair reports whether args contain flag immediately followed by value.
func (inv *MockInvocation) HasArgPair(flag, value string) bool {
	for i := 0; i < len(inv.Args)-1; i++ {
		if inv.Args[i] == flag && inv.Args[i+1] == value {
			return true
		}
	}
	return false
}

// RunHelperProcess is the body of a package's TestHelperProcess. It does
// nothing unless the binary was re-executed by a MockCommandRecorder.
func RunHelperProcess() {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	if s := os.Getenv("GO_HELPER_STDOUT"); s != "" {
		fmt.Fprint(os.Stdout, s)
	}
	if s := os.Getenv("GO_HELPER_STDERR"); s != "" {
		fmt.Fprint(os.Stderr, s)
	}
	code, _ := strconv.Atoi(os.Getenv("GO_HELPER_EXIT_CODE"))
	os.Exit(code)
}
