package probe

import (
	"context"
	"errors"
	"time"

	"github.com/user/proxyswitch/internal/target"
)

// Report is the result of Run. Skipped says why the protocol probe did not
// run for a kind that has one.
type Report struct {
	Target    target.Spec   `json:"target"`
	Reachable bool          `json:"reachable"`
	Protocol  string        `json:"protocol,omitempty"`
	Skipped   string        `json:"skipped,omitempty"`
	Snippet   string        `json:"snippet,omitempty"`
	Origin    string        `json:"origin,omitempty"`
	Duration  time.Duration `json:"duration"`

	SocketError   string `json:"socket_error,omitempty"`
	ProtocolError string `json:"protocol_error,omitempty"`

	SocketErr   error `json:"-"`
	ProtocolErr error `json:"-"`
}

// Passed reports whether every probe that ran succeeded.
func (r Report) Passed() bool {
	return r.Reachable && r.ProtocolError == ""
}

// Run probes the socket first and, when it is open, the protocol matching
// the target's kind. SOCKS4 targets only get the socket probe.
func (v *Verifier) Run(ctx context.Context, t target.ProxyTarget) Report {
	start := time.Now()
	r := Report{Target: t.Spec()}

	log := v.logger()
	if err := v.Socket(ctx, t); err != nil {
		log.Info("socket probe failed", "target", t.Addr(), "error", err)
		r.SocketErr, r.SocketError = err, err.Error()
		r.Duration = time.Since(start)
		return r
	}
	r.Reachable = true

	var snippet string
	var err error
	switch t.Kind() {
	case target.HTTPHTTPS:
		r.Protocol = "http"
		snippet, err = v.HTTP(ctx, t)
	case target.SOCKS5:
		r.Protocol = "socks5"
		snippet, err = v.SOCKS5(ctx, t)
	default:
		err = ErrNotApplicable
	}
	if errors.Is(err, ErrNotApplicable) {
		if err != ErrNotApplicable {
			log.Info("protocol probe skipped", "target", t.Addr(), "protocol", r.Protocol, "reason", err)
			r.Protocol, r.Skipped = "", err.Error()
		}
		r.Duration = time.Since(start)
		return r
	}
	r.Snippet = snippet
	r.Origin = Origin(snippet)
	if err != nil {
		log.Info("protocol probe failed", "target", t.Addr(), "protocol", r.Protocol, "error", err)
		r.ProtocolErr, r.ProtocolError = err, err.Error()
	}
	r.Duration = time.Since(start)
	return r
}
