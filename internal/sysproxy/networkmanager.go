package sysproxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/user/proxyswitch/internal/command"
	"github.com/user/proxyswitch/internal/target"
)

// NetworkManager sets the proxy of the active NetworkManager connection.
// NetworkManager only expresses proxies as PAC, so a manual endpoint is
// written as a one-line PAC script. The change takes effect the next time the
// connection is activated.
type NetworkManager struct {
	tool
}

func NewNetworkManager(runner command.Runner, timeout time.Duration, log *slog.Logger) *NetworkManager {
	return &NetworkManager{tool: newTool(NameNetworkManager, runner, timeout, log)}
}

func (m *NetworkManager) Name() string { return NameNetworkManager }

// PACScript renders the script that sends every request through t.
func PACScript(t target.ProxyTarget) string {
	return fmt.Sprintf("function FindProxyForURL(url, host) { return %s; }", strconv.Quote("PROXY "+t.Addr()))
}

// activeConnection parses `nmcli -t -f NAME,TYPE connection show --active`.
func (m *NetworkManager) activeConnection(ctx context.Context, op string) (string, error) {
	out, err := m.run(ctx, op, "nmcli", "-t", "-f", "NAME,TYPE", "connection", "show", "--active")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Terse output escapes ':' inside fields as '\:'; TYPE is last.
		i := strings.LastIndex(line, ":")
		if i <= 0 {
			continue
		}
		name, kind := strings.ReplaceAll(line[:i], `\:`, ":"), line[i+1:]
		if kind == "loopback" || name == "lo" {
			continue
		}
		return name, nil
	}
	return "", m.soft(op, "no active connection")
}

func (m *NetworkManager) Apply(ctx context.Context, t target.ProxyTarget) (string, error) {
	if t.Kind().IsSOCKS() {
		return "", &Error{Adapter: NameNetworkManager, Op: "apply", Kind: Unsupported,
			Err: errors.New("SOCKS proxies are not supported by NetworkManager, environment variables cover it")}
	}
	conn, err := m.activeConnection(ctx, "apply")
	if err != nil {
		return "", err
	}
	cmds := [][]string{
		{"nmcli", "connection", "modify", conn, "proxy.method", "auto", "proxy.pac-script", PACScript(t)},
	}
	if err := m.runAll(ctx, "apply", cmds); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s: proxy %s", conn, t.Addr()), nil
}

func (m *NetworkManager) Remove(ctx context.Context) (string, error) {
	conn, err := m.activeConnection(ctx, "remove")
	if err != nil {
		return "", err
	}
	cmds := [][]string{
		{"nmcli", "connection", "modify", conn, "proxy.method", "none", "proxy.pac-script", ""},
	}
	if err := m.runAll(ctx, "remove", cmds); err != nil {
		return "", err
	}
	return conn + ": proxy none", nil
}

func (m *NetworkManager) Snapshot(ctx context.Context) (string, error) {
	conn, err := m.activeConnection(ctx, "snapshot")
	if err != nil {
		return "", err
	}
	out, err := m.run(ctx, "snapshot", "nmcli", "-g", "proxy.method", "connection", "show", conn)
	if err != nil {
		return "", err
	}
	return conn + ": proxy.method=" + out, nil
}
