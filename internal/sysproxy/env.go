package sysproxy

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/proxyswitch/internal/envport"
	"github.com/user/proxyswitch/internal/target"
)

// ProxyVars are the canonical variable names, upper case first.
var ProxyVars = []string{
	"HTTP_PROXY", "http_proxy",
	"HTTPS_PROXY", "https_proxy",
	"ALL_PROXY", "all_proxy",
}

// legacyVars were written by older releases and are cleared on remove.
var legacyVars = []string{"SOCKS_PROXY", "socks_proxy"}

// Environment sets the proxy variables of the current process so that child
// processes inherit them.
type Environment struct {
	env envport.Port
}

func NewEnvironment(env envport.Port) *Environment {
	if env == nil {
		env = envport.OS{}
	}
	return &Environment{env: env}
}

func (e *Environment) Name() string { return NameEnvironment }

func (e *Environment) Apply(_ context.Context, t target.ProxyTarget) (string, error) {
	url := t.URL()
	for _, k := range ProxyVars {
		if err := e.env.Set(k, url); err != nil {
			return "", &Error{Adapter: NameEnvironment, Op: "apply", Kind: CommandFailed, Err: fmt.Errorf("set %s: %w", k, err)}
		}
	}
	for _, k := range legacyVars {
		if err := e.env.Unset(k); err != nil {
			return "", &Error{Adapter: NameEnvironment, Op: "apply", Kind: CommandFailed, Err: fmt.Errorf("unset %s: %w", k, err)}
		}
	}
	return fmt.Sprintf("%d variables set to %s", len(ProxyVars), url), nil
}

func (e *Environment) Remove(_ context.Context) (string, error) {
	var failed []string
	for _, k := range append(append([]string(nil), ProxyVars...), legacyVars...) {
		if err := e.env.Unset(k); err != nil {
			failed = append(failed, k)
		}
	}
	if len(failed) > 0 {
		return "", &Error{Adapter: NameEnvironment, Op: "remove", Kind: CommandFailed, Err: fmt.Errorf("could not unset %s", strings.Join(failed, ", "))}
	}
	return "proxy variables cleared", nil
}

// Snapshot lists the proxy variables that are currently set.
func (e *Environment) Snapshot(_ context.Context) (string, error) {
	var set []string
	for _, k := range append(append([]string(nil), ProxyVars...), legacyVars...) {
		if v, ok := e.env.Lookup(k); ok {
			set = append(set, k+"="+v)
		}
	}
	if len(set) == 0 {
		return "unset", nil
	}
	return strings.Join(set, " "), nil
}
