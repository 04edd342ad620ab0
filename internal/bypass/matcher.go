package bypass

import (
	"net"
	"strings"
)

// Matcher decides whether a host should skip the proxy.
type Matcher interface {
	Match(host string) bool
	Pattern() string
}

// ExactMatcher matches a domain and all its subdomains
type ExactMatcher struct {
	domain string
}

// NewExactMatcher creates a new exact domain matcher
func NewExactMatcher(domain string) *ExactMatcher {
	return &ExactMatcher{
		domain: normalizeHost(domain),
	}
}

// Match checks the exact domain and any subdomain
func (m *ExactMatcher) Match(host string) bool {
	host = normalizeHost(host)
	if host == m.domain {
		return true
	}
	// "www.example.com" matches "example.com"
	return strings.HasSuffix(host, "."+m.domain)
}

func (m *ExactMatcher) Pattern() string {
	return m.domain
}

// PrefixWildcardMatcher matches patterns like "*.example.com"
type PrefixWildcardMatcher struct {
	pattern string
	suffix  string
}

// NewPrefixWildcardMatcher creates a new prefix wildcard matcher
func NewPrefixWildcardMatcher(pattern string) *PrefixWildcardMatcher {
	pattern = normalizeHost(pattern)
	suffix := ""
	if strings.HasPrefix(pattern, "*.") {
		suffix = pattern[1:] // keep the dot: ".example.com"
	}
	return &PrefixWildcardMatcher{
		pattern: pattern,
		suffix:  suffix,
	}
}

// Match: "*.example.com" matches "sub.example.com" but not "example.com"
func (m *PrefixWildcardMatcher) Match(host string) bool {
	host = normalizeHost(host)
	if m.suffix == "" {
		return false
	}
	return strings.HasSuffix(host, m.suffix) && host != m.suffix[1:]
}

func (m *PrefixWildcardMatcher) Pattern() string {
	return m.pattern
}

// SuffixWildcardMatcher matches patterns like "corp.*"
type SuffixWildcardMatcher struct {
	pattern string
	prefix  string
}

// NewSuffixWildcardMatcher creates a new suffix wildcard matcher
func NewSuffixWildcardMatcher(pattern string) *SuffixWildcardMatcher {
	pattern = normalizeHost(pattern)
	prefix := ""
	if strings.HasSuffix(pattern, ".*") {
		prefix = pattern[:len(pattern)-1] // keep the dot: "corp."
	}
	return &SuffixWildcardMatcher{
		pattern: pattern,
		prefix:  prefix,
	}
}

// Match: "corp.*" matches "corp.lan", "corp.example" and "git.corp.lan"
func (m *SuffixWildcardMatcher) Match(host string) bool {
	host = normalizeHost(host)
	if m.prefix == "" {
		return false
	}
	if strings.HasPrefix(host, m.prefix) {
		return len(host) > len(m.prefix)
	}
	return strings.Contains(host, "."+m.prefix)
}

func (m *SuffixWildcardMatcher) Pattern() string {
	return m.pattern
}

// DoubleWildcardMatcher matches patterns like "*.internal.*"
type DoubleWildcardMatcher struct {
	pattern string
	middle  string
}

// NewDoubleWildcardMatcher creates a new double wildcard matcher
func NewDoubleWildcardMatcher(pattern string) *DoubleWildcardMatcher {
	pattern = normalizeHost(pattern)
	middle := ""
	if strings.HasPrefix(pattern, "*.") && strings.HasSuffix(pattern, ".*") {
		middle = pattern[1 : len(pattern)-1] // ".internal."
	}
	return &DoubleWildcardMatcher{
		pattern: pattern,
		middle:  middle,
	}
}

func (m *DoubleWildcardMatcher) Match(host string) bool {
	host = normalizeHost(host)
	if m.middle == "" {
		return false
	}
	return strings.Contains(host, m.middle)
}

func (m *DoubleWildcardMatcher) Pattern() string {
	return m.pattern
}

// NetworkMatcher matches IP literals inside a CIDR range. A bare IP is a
// single-address range.
type NetworkMatcher struct {
	pattern string
	network *net.IPNet
}

// NewNetworkMatcher parses "10.0.0.0/8", "::1" or "192.168.1.10". It returns
// nil when pattern is neither.
func NewNetworkMatcher(pattern string) *NetworkMatcher {
	pattern = strings.TrimSpace(pattern)
	if _, network, err := net.ParseCIDR(pattern); err == nil {
		return &NetworkMatcher{pattern: pattern, network: network}
	}
	ip := net.ParseIP(strings.Trim(pattern, "[]"))
	if ip == nil {
		return nil
	}
	bits := 128
	if ip.To4() != nil {
		ip = ip.To4()
		bits = 32
	}
	return &NetworkMatcher{
		pattern: pattern,
		network: &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)},
	}
}

func (m *NetworkMatcher) Match(host string) bool {
	ip := net.ParseIP(strings.Trim(normalizeHost(host), "[]"))
	if ip == nil {
		return false
	}
	return m.network.Contains(ip)
}

func (m *NetworkMatcher) Pattern() string {
	return m.pattern
}

// CreateMatcher picks the matcher for a pattern
func CreateMatcher(pattern string) Matcher {
	pattern = strings.TrimSpace(pattern)

	if m := NewNetworkMatcher(pattern); m != nil {
		return m
	}

	hasPrefix := strings.HasPrefix(pattern, "*.")
	hasSuffix := strings.HasSuffix(pattern, ".*")

	if hasPrefix && hasSuffix {
		return NewDoubleWildcardMatcher(pattern)
	}
	if hasPrefix {
		return NewPrefixWildcardMatcher(pattern)
	}
	if hasSuffix {
		return NewSuffixWildcardMatcher(pattern)
	}
	return NewExactMatcher(pattern)
}

// normalizeHost lowercases and strips an optional port.
func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return host
}
