// Package bypass holds the hosts that must not go through the proxy and
// renders them for each configuration surface.
package bypass

import (
	"net"
	"strconv"
	"strings"
)

// Defaults are used when no bypass list is configured.
var Defaults = []string{"localhost", "127.0.0.0/8", "::1"}

// List is an ordered, de-duplicated set of bypass patterns.
type List struct {
	patterns []string
	matchers []Matcher
}

// New builds a List from raw patterns. Blank and repeated entries are dropped.
func New(patterns []string) List {
	var l List
	seen := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		key := strings.ToLower(p)
		if p == "" || seen[key] {
			continue
		}
		seen[key] = true
		l.patterns = append(l.patterns, p)
		l.matchers = append(l.matchers, CreateMatcher(p))
	}
	return l
}

// Patterns returns a copy of the patterns in order.
func (l List) Patterns() []string {
	return append([]string(nil), l.patterns...)
}

func (l List) Len() int { return len(l.patterns) }

// Matches reports whether host (optionally with a port) is bypassed.
func (l List) Matches(host string) bool {
	for _, m := range l.matchers {
		if m.Match(host) {
			return true
		}
	}
	return false
}

// GSettings renders a GVariant string array for org.gnome.system.proxy ignore-hosts.
func (l List) GSettings() string {
	quoted := make([]string, 0, len(l.patterns))
	for _, p := range l.patterns {
		p = strings.ReplaceAll(p, `\`, `\\`)
		p = strings.ReplaceAll(p, `'`, `\'`)
		quoted = append(quoted, "'"+p+"'")
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// WindowsOverride renders the ProxyOverride registry value. WinINet knows no
// CIDR syntax, so octet-aligned IPv4 ranges become wildcards and other ranges
// are dropped. "<local>" is always last.
func (l List) WindowsOverride() string {
	out := make([]string, 0, len(l.patterns)+1)
	for _, p := range l.patterns {
		if strings.EqualFold(p, "<local>") {
			continue
		}
		if strings.Contains(p, "/") {
			w, ok := octetWildcard(p)
			if !ok {
				continue
			}
			p = w
		}
		out = append(out, p)
	}
	out = append(out, "<local>")
	return strings.Join(out, ";")
}

// NetworkSetup returns the arguments for networksetup -setproxybypassdomains.
// An empty list is spelled "Empty" by the tool.
func (l List) NetworkSetup() []string {
	var out []string
	for _, p := range l.patterns {
		if p == "<local>" {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return []string{"Empty"}
	}
	return out
}

// NoProxy renders the curl-style NO_PROXY value. "*.example.com" becomes
// ".example.com"; trailing wildcards have no equivalent and are dropped.
func (l List) NoProxy() string {
	out := make([]string, 0, len(l.patterns))
	for _, p := range l.patterns {
		switch {
		case p == "<local>", strings.HasSuffix(p, ".*"):
			continue
		case strings.HasPrefix(p, "*."):
			out = append(out, p[1:])
		default:
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}

// octetWildcard turns 10.0.0.0/8 into 10.*, 192.168.0.0/16 into 192.168.*.
func octetWildcard(cidr string) (string, bool) {
	ip, network, err := net.ParseCIDR(cidr)
	if err != nil || ip.To4() == nil {
		return "", false
	}
	ones, _ := network.Mask.Size()
	if ones%8 != 0 || ones == 0 {
		return "", false
	}
	if ones == 32 {
		return network.IP.String(), true
	}
	v4 := network.IP.To4()
	parts := make([]string, 0, 4)
	for i := 0; i < ones/8; i++ {
		parts = append(parts, strconv.Itoa(int(v4[i])))
	}
	return strings.Join(parts, ".") + ".*", true
}
