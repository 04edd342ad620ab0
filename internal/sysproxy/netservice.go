package sysproxy

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/user/proxyswitch/internal/bypass"
	"github.com/user/proxyswitch/internal/command"
	"github.com/user/proxyswitch/internal/target"
)

// NetworkService configures the proxy of the first enabled macOS network
// service through networksetup.
type NetworkService struct {
	tool
	bypass bypass.List
}

func NewNetworkService(runner command.Runner, timeout time.Duration, bp bypass.List, log *slog.Logger) *NetworkService {
	return &NetworkService{
		tool:   newTool(NameNetworkService, runner, timeout, log),
		bypass: bp,
	}
}

func (n *NetworkService) Name() string { return NameNetworkService }

// services returns the enabled network services in system order.
func (n *NetworkService) services(ctx context.Context, op string) ([]string, error) {
	out, err := n.run(ctx, op, "networksetup", "-listallnetworkservices")
	if err != nil {
		return nil, err
	}

	services := make([]string, 0)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		// Skip empty lines and the header line
		if line == "" || strings.HasPrefix(line, "An asterisk") {
			continue
		}
		// Skip disabled services (marked with *)
		if strings.HasPrefix(line, "*") {
			continue
		}
		services = append(services, line)
	}
	return services, nil
}

// service returns the single service that is configured, or a soft error.
func (n *NetworkService) service(ctx context.Context, op string) (string, error) {
	services, err := n.services(ctx, op)
	if err != nil {
		return "", err
	}
	if len(services) == 0 {
		return "", n.soft(op, "no network service found")
	}
	return services[0], nil
}

func (n *NetworkService) Apply(ctx context.Context, t target.ProxyTarget) (string, error) {
	service, err := n.service(ctx, "apply")
	if err != nil {
		return "", err
	}
	host, port := t.Host(), strconv.Itoa(t.Port())

	var cmds [][]string
	if t.Kind().IsSOCKS() {
		cmds = [][]string{
			{"networksetup", "-setsocksfirewallproxy", service, host, port},
			{"networksetup", "-setsocksfirewallproxystate", service, "on"},
			{"networksetup", "-setwebproxystate", service, "off"},
			{"networksetup", "-setsecurewebproxystate", service, "off"},
		}
	} else {
		cmds = [][]string{
			{"networksetup", "-setwebproxy", service, host, port},
			{"networksetup", "-setsecurewebproxy", service, host, port},
			{"networksetup", "-setwebproxystate", service, "on"},
			{"networksetup", "-setsecurewebproxystate", service, "on"},
			{"networksetup", "-setsocksfirewallproxystate", service, "off"},
		}
	}
	bypassArgs := append([]string{"networksetup", "-setproxybypassdomains", service}, n.bypass.NetworkSetup()...)
	cmds = append(cmds, bypassArgs)

	if err := n.runAll(ctx, "apply", cmds); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s: %s proxy %s", service, t.Kind().Label(), t.Addr()), nil
}

func (n *NetworkService) Remove(ctx context.Context) (string, error) {
	service, err := n.service(ctx, "remove")
	if err != nil {
		return "", err
	}
	cmds := [][]string{
		{"networksetup", "-setwebproxystate", service, "off"},
		{"networksetup", "-setsecurewebproxystate", service, "off"},
		{"networksetup", "-setsocksfirewallproxystate", service, "off"},
	}
	if err := n.runAll(ctx, "remove", cmds); err != nil {
		return "", err
	}
	return service + ": proxies off", nil
}

// Snapshot records the web and secure-web proxy of the configured service.
func (n *NetworkService) Snapshot(ctx context.Context) (string, error) {
	service, err := n.service(ctx, "snapshot")
	if err != nil {
		return "", err
	}
	parts := []string{"service=" + service}
	for _, flag := range []string{"-getwebproxy", "-getsecurewebproxy", "-getsocksfirewallproxy"} {
		out, err := n.run(ctx, "snapshot", "networksetup", flag, service)
		if err != nil {
			continue
		}
		parts = append(parts, strings.TrimPrefix(flag, "-get")+"{"+strings.Join(strings.Fields(strings.ReplaceAll(out, "\n", "; ")), " ")+"}")
	}
	return strings.Join(parts, " "), nil
}
