// Package probe checks that a proxy endpoint is reachable and, where the
// protocol allows, that it actually relays traffic. Probes never change any
// configuration.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/net/proxy"

	"github.com/user/proxyswitch/internal/bypass"
	"github.com/user/proxyswitch/internal/target"
)

const (
	DefaultSocketTimeout = 5 * time.Second
	DefaultHTTPTimeout   = 10 * time.Second
	DefaultEchoURL       = "http://httpbin.org/ip"

	// snippetLimit caps how much of the echo response is kept.
	snippetLimit = 100
)

// ErrNotApplicable is returned when a protocol probe does not fit the
// target's kind, or when the echo host would not be proxied anyway.
var ErrNotApplicable = errors.New("protocol test not applicable")

// Error reports a failed probe. Op is one of "connect", "request", "read"
// or "status".
type Error struct {
	Op  string
	Err error
}

var _ error = (*Error)(nil)

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Verifier runs connectivity probes against a target.
type Verifier struct {
	SocketTimeout time.Duration
	HTTPTimeout   time.Duration
	EchoURL       string
	// An echo host matching Bypass would not be proxied by configured
	// clients, so the protocol probe is skipped for it.
	Bypass bypass.List
	Logger *slog.Logger
}

// New returns a Verifier with the default timeouts and echo endpoint.
func New(bp bypass.List) *Verifier {
	return &Verifier{
		SocketTimeout: DefaultSocketTimeout,
		HTTPTimeout:   DefaultHTTPTimeout,
		EchoURL:       DefaultEchoURL,
		Bypass:        bp,
	}
}

func (v *Verifier) socketTimeout() time.Duration {
	if v.SocketTimeout <= 0 {
		return DefaultSocketTimeout
	}
	return v.SocketTimeout
}

func (v *Verifier) httpTimeout() time.Duration {
	if v.HTTPTimeout <= 0 {
		return DefaultHTTPTimeout
	}
	return v.HTTPTimeout
}

func (v *Verifier) echoURL() string {
	if v.EchoURL == "" {
		return DefaultEchoURL
	}
	return v.EchoURL
}

// checkEcho rejects an echo URL whose host is in the bypass list. The probe
// itself always goes through the proxy.
func (v *Verifier) checkEcho() error {
	u, err := url.Parse(v.echoURL())
	if err != nil {
		return &Error{Op: "request", Err: err}
	}
	if host := u.Hostname(); v.Bypass.Matches(host) {
		return fmt.Errorf("%w: echo host %s is in the bypass list", ErrNotApplicable, host)
	}
	return nil
}

func (v *Verifier) logger() *slog.Logger {
	if v.Logger == nil {
		return slog.Default().With("component", "probe")
	}
	return v.Logger.With("component", "probe")
}

// Socket opens and immediately closes a TCP connection to the target. It
// proves the port accepts connections, not that it speaks the protocol.
func (v *Verifier) Socket(ctx context.Context, t target.ProxyTarget) error {
	d := net.Dialer{Timeout: v.socketTimeout()}
	conn, err := d.DialContext(ctx, "tcp", t.Addr())
	if err != nil {
		return &Error{Op: "connect", Err: err}
	}
	return conn.Close()
}

// HTTP fetches the echo URL through an HTTP proxy target and returns the
// start of the response body.
func (v *Verifier) HTTP(ctx context.Context, t target.ProxyTarget) (string, error) {
	if t.Kind() != target.HTTPHTTPS {
		return "", ErrNotApplicable
	}
	if err := v.checkEcho(); err != nil {
		return "", err
	}
	proxyURL, err := url.Parse(t.URL())
	if err != nil {
		return "", &Error{Op: "request", Err: err}
	}
	transport := &http.Transport{
		Proxy:             http.ProxyURL(proxyURL),
		DisableKeepAlives: true,
	}
	return v.fetch(ctx, transport)
}

// SOCKS5 fetches the echo URL through a SOCKS5 target.
func (v *Verifier) SOCKS5(ctx context.Context, t target.ProxyTarget) (string, error) {
	if t.Kind() != target.SOCKS5 {
		return "", ErrNotApplicable
	}
	if err := v.checkEcho(); err != nil {
		return "", err
	}
	direct := &net.Dialer{Timeout: v.socketTimeout()}
	dialer, err := proxy.SOCKS5("tcp", t.Addr(), nil, direct)
	if err != nil {
		return "", &Error{Op: "connect", Err: err}
	}
	viaProxy, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return "", &Error{Op: "connect", Err: errors.New("SOCKS5 dialer does not support contexts")}
	}
	transport := &http.Transport{
		DialContext:       viaProxy.DialContext,
		DisableKeepAlives: true,
	}
	return v.fetch(ctx, transport)
}

func (v *Verifier) fetch(ctx context.Context, transport *http.Transport) (string, error) {
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport, Timeout: v.httpTimeout()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.echoURL(), nil)
	if err != nil {
		return "", &Error{Op: "request", Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &Error{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, snippetLimit))
	if err != nil {
		return "", &Error{Op: "read", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return string(body), &Error{Op: "status", Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return string(body), nil
}

// Origin extracts the "origin" field from an IP-echo response, or "".
func Origin(snippet string) string {
	if !gjson.Valid(snippet) {
		return ""
	}
	return gjson.Get(snippet, "origin").String()
}
