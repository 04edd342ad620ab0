// Package sysproxy points individual configuration surfaces at a proxy
// target and clears them again. Each surface is one Adapter.
package sysproxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/proxyswitch/internal/command"
	"github.com/user/proxyswitch/internal/target"
)

// Adapter names.
const (
	NameEnvironment    = "environment"
	NameShellProfile   = "shell-profile"
	NameDesktop        = "desktop"
	NameRegistry       = "registry"
	NameNetworkService = "network-service"
	NameProxyChains    = "proxychains"
	NameNetworkManager = "network-manager"
)

// Adapter applies a target to one configuration surface. The returned detail
// is a short human-readable note. A soft error (see IsSoft) means the surface
// is absent or inapplicable and counts as success.
type Adapter interface {
	Name() string
	Apply(ctx context.Context, t target.ProxyTarget) (string, error)
	Remove(ctx context.Context) (string, error)
}

// Snapshotter is implemented by adapters that can describe the current
// setting of their surface before it is changed.
type Snapshotter interface {
	Snapshot(ctx context.Context) (string, error)
}

// tool runs external commands for an adapter with a bounded timeout and maps
// failures onto the adapter error taxonomy.
type tool struct {
	adapter string
	runner  command.Runner
	timeout time.Duration
	log     *slog.Logger
}

func newTool(adapter string, runner command.Runner, timeout time.Duration, log *slog.Logger) tool {
	if runner == nil {
		runner = command.Exec{}
	}
	if timeout <= 0 || timeout > command.DefaultTimeout {
		timeout = command.DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return tool{
		adapter: adapter,
		runner:  runner,
		timeout: timeout,
		log:     log.With("component", "sysproxy", "adapter", adapter),
	}
}

// has reports whether name is installed.
func (t tool) has(name string) bool {
	_, err := t.runner.LookPath(name)
	return err == nil
}

// run executes one command and returns its trimmed stdout.
func (t tool) run(ctx context.Context, op, name string, args ...string) (string, error) {
	res, err := t.runner.Run(ctx, t.timeout, name, args...)
	if err != nil {
		t.log.Debug("command failed", "argv", strings.Join(append([]string{name}, args...), " "), "error", err)
		return "", t.wrap(op, err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// runAll executes commands in order and stops at the first failure.
func (t tool) runAll(ctx context.Context, op string, cmds [][]string) error {
	for _, c := range cmds {
		if _, err := t.run(ctx, op, c[0], c[1:]...); err != nil {
			return err
		}
	}
	return nil
}

func (t tool) wrap(op string, err error) error {
	kind := CommandFailed
	if errors.Is(err, command.ErrNotFound) {
		kind = ToolUnavailable
	}
	return &Error{Adapter: t.adapter, Op: op, Kind: kind, Err: err}
}

func (t tool) soft(op, format string, args ...any) error {
	return &Error{Adapter: t.adapter, Op: op, Kind: ToolUnavailable, Err: fmt.Errorf(format, args...)}
}
