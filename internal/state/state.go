// Package state holds the connection state shared by every command and the
// best-effort record of what the proxy settings were before a connect.
package state

import (
	"time"

	"github.com/user/proxyswitch/internal/target"
)

// ConnectionState says whether the proxy is applied and to what.
type ConnectionState struct {
	Target  *target.Spec `yaml:"target,omitempty" json:"target,omitempty"`
	Active  bool         `yaml:"active" json:"active"`
	Session string       `yaml:"session,omitempty" json:"session,omitempty"`
	Since   time.Time    `yaml:"since,omitempty" json:"since,omitempty"`
}

// Disconnected is the initial state.
func Disconnected() ConnectionState {
	return ConnectionState{}
}

// Connected records t as applied under the given session id.
func Connected(t target.ProxyTarget, session string, now time.Time) ConnectionState {
	spec := t.Spec()
	return ConnectionState{
		Target:  &spec,
		Active:  true,
		Session: session,
		Since:   now.UTC(),
	}
}

// ProxyTarget returns the validated target of an active state.
func (s ConnectionState) ProxyTarget() (target.ProxyTarget, bool) {
	if !s.Active || s.Target == nil {
		return target.ProxyTarget{}, false
	}
	t, err := s.Target.Target()
	if err != nil {
		return target.ProxyTarget{}, false
	}
	return t, true
}

func (s ConnectionState) String() string {
	if t, ok := s.ProxyTarget(); ok {
		return "connected to " + t.String()
	}
	return "disconnected"
}

// Snapshot maps adapter names to an opaque description of the setting each
// adapter found before the last connect. It is informational and never
// replayed.
type Snapshot struct {
	Session string            `yaml:"session" json:"session"`
	TakenAt time.Time         `yaml:"taken_at" json:"taken_at"`
	Values  map[string]string `yaml:"values" json:"values"`
}
