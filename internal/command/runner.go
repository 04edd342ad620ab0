// Package command runs short-lived external OS tools with a bounded timeout.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a configuration command.
const DefaultTimeout = 5 * time.Second

var (
	// ErrNotFound means the tool is not installed or not on PATH.
	ErrNotFound = errors.New("command not found")
	// ErrTimeout means the tool did not finish within its timeout.
	ErrTimeout = errors.New("command timed out")
)

// Result is what a finished command produced.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Argv   []string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "no output"
	}
	return fmt.Sprintf("%s exited with status %d (%s)", strings.Join(e.Argv, " "), e.Code, msg)
}

// Runner is the child-process capability handed to adapters.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error)
	LookPath(name string) (string, error)
}

// Exec runs real processes.
type Exec struct {
	// Env, when non-nil, is appended to the inherited environment.
	Env []string
}

// LookPath resolves name on PATH, mapping a miss to ErrNotFound.
func (e Exec) LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return path, nil
}

// Run executes name with args. A zero timeout means DefaultTimeout.
func (e Exec) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	path, err := e.LookPath(name)
	if err != nil {
		return Result{ExitCode: -1}, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, args...)
	if e.Env != nil {
		cmd.Env = append(cmd.Environ(), e.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if ctx.Err() == context.DeadlineExceeded {
		res.ExitCode = -1
		return res, fmt.Errorf("%s after %s: %w", argv(name, args), timeout, ErrTimeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, &ExitError{Argv: append([]string{name}, args...), Code: res.ExitCode, Stderr: res.Stderr}
		}
		res.ExitCode = -1
		return res, fmt.Errorf("failed to run %s: %w", argv(name, args), err)
	}
	return res, nil
}

func argv(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}
