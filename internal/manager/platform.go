package manager

import (
	"log/slog"
	"time"

	"github.com/user/proxyswitch/internal/bypass"
	"github.com/user/proxyswitch/internal/command"
	"github.com/user/proxyswitch/internal/envport"
	"github.com/user/proxyswitch/internal/sysproxy"
)

// Mandatory is the adapter set whose success decides an apply.
var Mandatory = []string{sysproxy.NameEnvironment}

// Deps are the capabilities handed to adapters.
type Deps struct {
	Runner         command.Runner
	Env            envport.Port
	Bypass         bypass.List
	CommandTimeout time.Duration
	// ShellProfiles and ProxyChains default to the well-known paths under Home.
	Home          string
	ShellProfiles []string
	ProxyChains   []string
	// Registry and Notifier default to the system implementations.
	Registry sysproxy.RegistryStore
	Notifier sysproxy.Notifier
	Logger   *slog.Logger
}

// AdaptersFor assembles the ordered adapter list for goos. Environment is
// always first.
func AdaptersFor(goos string, d Deps) []sysproxy.Adapter {
	if d.Runner == nil {
		d.Runner = command.Exec{}
	}
	if d.Env == nil {
		d.Env = envport.OS{}
	}
	if d.ShellProfiles == nil {
		d.ShellProfiles = sysproxy.DefaultShellProfiles(d.Home)
	}
	if d.ProxyChains == nil {
		d.ProxyChains = sysproxy.DefaultProxyChainsPaths(d.Home)
	}

	env := sysproxy.NewEnvironment(d.Env)
	shell := sysproxy.NewShellProfile(d.ShellProfiles, d.Bypass)
	chains := sysproxy.NewProxyChains(d.ProxyChains)

	switch goos {
	case "linux":
		return []sysproxy.Adapter{
			env,
			shell,
			sysproxy.NewDesktop(d.Runner, d.CommandTimeout, d.Bypass, d.Notifier, d.Logger),
			sysproxy.NewNetworkManager(d.Runner, d.CommandTimeout, d.Logger),
			chains,
		}
	case "darwin":
		return []sysproxy.Adapter{
			env,
			shell,
			sysproxy.NewNetworkService(d.Runner, d.CommandTimeout, d.Bypass, d.Logger),
			chains,
		}
	case "windows":
		return []sysproxy.Adapter{
			env,
			sysproxy.NewRegistry(d.Registry, d.Bypass, d.Logger),
		}
	default:
		return []sysproxy.Adapter{env, shell}
	}
}
