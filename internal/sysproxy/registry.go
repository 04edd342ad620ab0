package sysproxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/user/proxyswitch/internal/bypass"
	"github.com/user/proxyswitch/internal/target"
)

// ErrNoRegistry is returned by the registry store on systems without one.
var ErrNoRegistry = errors.New("windows registry not available on this system")

// RegistryValues are the WinINet proxy values under
// HKCU\Software\Microsoft\Windows\CurrentVersion\Internet Settings.
type RegistryValues struct {
	Enable   bool
	Server   string
	Override string
}

// RegistryStore reads and writes the WinINet proxy values.
type RegistryStore interface {
	Read() (RegistryValues, error)
	Write(v RegistryValues) error
	SetEnable(enable bool) error
	// Notify tells WinINet clients to reload the settings.
	Notify() error
}

// Registry configures the per-user WinINet proxy.
type Registry struct {
	store  RegistryStore
	bypass bypass.List
	log    *slog.Logger
}

// NewRegistry uses the system store when store is nil.
func NewRegistry(store RegistryStore, bp bypass.List, log *slog.Logger) *Registry {
	if store == nil {
		store = NewSystemRegistry()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		store:  store,
		bypass: bp,
		log:    log.With("component", "sysproxy", "adapter", NameRegistry),
	}
}

func (r *Registry) Name() string { return NameRegistry }

// ProxyServerValue renders the ProxyServer string for t.
func ProxyServerValue(t target.ProxyTarget) string {
	if t.Kind().IsSOCKS() {
		return "socks=" + t.Addr()
	}
	return t.Addr()
}

func (r *Registry) Apply(_ context.Context, t target.ProxyTarget) (string, error) {
	v := RegistryValues{
		Enable:   true,
		Server:   ProxyServerValue(t),
		Override: r.bypass.WindowsOverride(),
	}
	if err := r.store.Write(v); err != nil {
		return "", r.wrap("apply", err)
	}
	return "ProxyServer=" + v.Server + r.notify(), nil
}

func (r *Registry) Remove(_ context.Context) (string, error) {
	if err := r.store.SetEnable(false); err != nil {
		return "", r.wrap("remove", err)
	}
	return "ProxyEnable=0" + r.notify(), nil
}

func (r *Registry) Snapshot(_ context.Context) (string, error) {
	v, err := r.store.Read()
	if err != nil {
		return "", err
	}
	enable := 0
	if v.Enable {
		enable = 1
	}
	return fmt.Sprintf("ProxyEnable=%d ProxyServer=%s ProxyOverride=%s", enable, v.Server, v.Override), nil
}

func (r *Registry) notify() string {
	if err := r.store.Notify(); err != nil {
		r.log.Warn("failed to broadcast proxy settings change", "error", err)
		return " (settings-changed notification failed)"
	}
	return ""
}

func (r *Registry) wrap(op string, err error) error {
	kind := CommandFailed
	if errors.Is(err, ErrNoRegistry) {
		kind = ToolUnavailable
	}
	return &Error{Adapter: NameRegistry, Op: op, Kind: kind, Err: err}
}
