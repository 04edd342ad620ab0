// Package target describes the external proxy endpoint that every
// configuration surface is pointed at.
package target

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Kind is the protocol spoken by the proxy endpoint.
type Kind string

const (
	HTTPHTTPS Kind = "http"
	SOCKS4    Kind = "socks4"
	SOCKS5    Kind = "socks5"
)

// Scheme returns the URL scheme used in proxy environment variables.
func (k Kind) Scheme() string {
	return string(k)
}

// IsSOCKS reports whether the kind is one of the SOCKS variants.
func (k Kind) IsSOCKS() bool {
	return k == SOCKS4 || k == SOCKS5
}

// Label returns the name shown to users.
func (k Kind) Label() string {
	switch k {
	case SOCKS4:
		return "SOCKS4"
	case SOCKS5:
		return "SOCKS5"
	default:
		return "HTTP/HTTPS"
	}
}

// ParseKind accepts the spellings users and config files commonly use.
// An empty value means HTTP/HTTPS.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "http", "https", "http/https", "http_https", "http-https":
		return HTTPHTTPS, nil
	case "socks4":
		return SOCKS4, nil
	case "socks5", "socks":
		return SOCKS5, nil
	default:
		return "", &ValidationError{Field: "kind", Value: raw, Reason: "must be one of http, socks4, socks5"}
	}
}

// ValidationError is returned when a target cannot be constructed.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid proxy %s %q: %s", e.Field, e.Value, e.Reason)
}

// ProxyTarget is an immutable, validated (host, port, kind) triple.
type ProxyTarget struct {
	host string
	port int
	kind Kind
}

// Parse validates raw user input. It never touches the network.
func Parse(hostRaw, portRaw, kindRaw string) (ProxyTarget, error) {
	portRaw = strings.TrimSpace(portRaw)
	if portRaw == "" {
		return ProxyTarget{}, &ValidationError{Field: "port", Value: portRaw, Reason: "is required"}
	}
	port, err := strconv.Atoi(portRaw)
	if err != nil {
		return ProxyTarget{}, &ValidationError{Field: "port", Value: portRaw, Reason: "is not a number"}
	}
	kind, err := ParseKind(kindRaw)
	if err != nil {
		return ProxyTarget{}, err
	}
	return New(hostRaw, port, kind)
}

// New builds a target from already-typed values. The host must be an IP
// literal ("[::1]" is accepted as well as "::1") or a DNS hostname.
func New(host string, port int, kind Kind) (ProxyTarget, error) {
	raw := host
	host = strings.TrimSpace(host)
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if host == "" {
		return ProxyTarget{}, &ValidationError{Field: "host", Value: raw, Reason: "is required"}
	}
	if net.ParseIP(host) == nil && !validHostname(host) {
		return ProxyTarget{}, &ValidationError{Field: "host", Value: raw, Reason: "must be an IP address or a hostname of letters, digits, '-' and '.'"}
	}
	if port < 1 || port > 65535 {
		return ProxyTarget{}, &ValidationError{Field: "port", Value: strconv.Itoa(port), Reason: "must be between 1 and 65535"}
	}
	switch kind {
	case HTTPHTTPS, SOCKS4, SOCKS5:
	default:
		return ProxyTarget{}, &ValidationError{Field: "kind", Value: string(kind), Reason: "must be one of http, socks4, socks5"}
	}
	return ProxyTarget{host: host, port: port, kind: kind}, nil
}

// validHostname checks RFC 1123 syntax: dot-separated labels of 1 to 63
// letters, digits and hyphens, not starting or ending with a hyphen.
func validHostname(host string) bool {
	if len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			switch {
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			default:
				return false
			}
		}
	}
	return true
}

func (t ProxyTarget) Host() string { return t.host }
func (t ProxyTarget) Port() int    { return t.port }
func (t ProxyTarget) Kind() Kind   { return t.kind }

// IsZero reports whether t was never constructed.
func (t ProxyTarget) IsZero() bool {
	return t.host == ""
}

// Addr returns host:port, bracketing IPv6 literals.
func (t ProxyTarget) Addr() string {
	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

// URL returns the scheme-prefixed form used by proxy environment variables,
// e.g. "socks5://10.0.0.5:1080".
func (t ProxyTarget) URL() string {
	return t.kind.Scheme() + "://" + t.Addr()
}

func (t ProxyTarget) String() string {
	return fmt.Sprintf("%s (%s)", t.Addr(), t.kind.Label())
}

// Spec is the serialisable form of a target used in config, state and API
// payloads.
type Spec struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	Kind Kind   `json:"kind" yaml:"kind"`
}

// Spec converts t to its wire form.
func (t ProxyTarget) Spec() Spec {
	return Spec{Host: t.host, Port: t.port, Kind: t.kind}
}

// Target validates s. The kind is re-parsed so hand-edited files may use any
// accepted spelling.
func (s Spec) Target() (ProxyTarget, error) {
	kind, err := ParseKind(string(s.Kind))
	if err != nil {
		return ProxyTarget{}, err
	}
	return New(s.Host, s.Port, kind)
}
