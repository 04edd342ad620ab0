// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/user/proxyswitch/internal/command"
)

// FakeRunner is a scripted command.Runner. Responses are keyed by the
// space-joined argv; the longest registered prefix wins so a test can stub a
// whole tool with its name alone.
type FakeRunner struct {
	mu        sync.Mutex
	missing   map[string]bool
	responses map[string]fakeResponse
	calls     [][]string
}

type fakeResponse struct {
	res command.Result
	err error
}

// NewFakeRunner returns a runner where every tool exists and succeeds with
// empty output.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		missing:   make(map[string]bool),
		responses: make(map[string]fakeResponse),
	}
}

// Missing marks tools as not installed.
func (f *FakeRunner) Missing(names ...string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range names {
		f.missing[n] = true
	}
	return f
}

// Respond registers stdout for an argv prefix.
func (f *FakeRunner) Respond(prefix, stdout string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = fakeResponse{res: command.Result{Stdout: stdout}}
	return f
}

// Fail makes an argv prefix exit non-zero.
func (f *FakeRunner) Fail(prefix, stderr string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	argv := strings.Fields(prefix)
	f.responses[prefix] = fakeResponse{
		res: command.Result{ExitCode: 1, Stderr: stderr},
		err: &command.ExitError{Argv: argv, Code: 1, Stderr: stderr},
	}
	return f
}

// Calls returns every argv run so far.
func (f *FakeRunner) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallLines returns Calls joined with spaces, convenient for assertions.
func (f *FakeRunner) CallLines() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = strings.Join(c, " ")
	}
	return out
}

var _ command.Runner = (*FakeRunner)(nil)

func (f *FakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[name] {
		return "", fmt.Errorf("%s: %w", name, command.ErrNotFound)
	}
	return "/usr/bin/" + name, nil
}

func (f *FakeRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (command.Result, error) {
	if _, err := f.LookPath(name); err != nil {
		return command.Result{ExitCode: -1}, err
	}
	if err := ctx.Err(); err != nil {
		return command.Result{ExitCode: -1}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	call := append([]string{name}, args...)
	f.calls = append(f.calls, call)

	line := strings.Join(call, " ")
	best := ""
	found := false
	for prefix := range f.responses {
		if (line == prefix || strings.HasPrefix(line, prefix+" ")) && len(prefix) >= len(best) {
			best, found = prefix, true
		}
	}
	if !found {
		return command.Result{}, nil
	}
	r := f.responses[best]
	return r.res, r.err
}
