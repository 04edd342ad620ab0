package bypass

import (
	"testing"
)

func TestSuffixWildcardMatcher(t *testing.T) {
	matcher := NewSuffixWildcardMatcher("corp.*")

	tests := []struct {
		host     string
		expected bool
	}{
		{"corp.lan", true},
		{"corp.example", true},
		{"git.corp.lan", true},
		{"CORP.LAN:8443", true},
		{"notcorp.lan", false},
		{"corp", false},
	}

	for _, tt := range tests {
		result := matcher.Match(tt.host)
		if result != tt.expected {
			t.Errorf("Match(%q) = %v, want %v", tt.host, result, tt.expected)
		}
	}
}

func TestDoubleWildcardMatcher(t *testing.T) {
	matcher := NewDoubleWildcardMatcher("*.internal.*")

	tests := []struct {
		host     string
		expected bool
	}{
		{"build.internal.lan", true},
		{"a.b.internal.example.com", true},
		{"internal.lan", false}, // no label before the middle
		{"notinternal.lan", false},
	}

	for _, tt := range tests {
		result := matcher.Match(tt.host)
		if result != tt.expected {
			t.Errorf("Match(%q) = %v, want %v", tt.host, result, tt.expected)
		}
	}
}

func TestExactMatcher(t *testing.T) {
	matcher := NewExactMatcher("localhost")

	tests := []struct {
		host     string
		expected bool
	}{
		{"localhost", true},
		{"LocalHost", true},
		{"localhost:8080", true},
		{"api.localhost", true},
		{"notlocalhost", false},
		{"localhost.example.com", false},
	}

	for _, tt := range tests {
		result := matcher.Match(tt.host)
		if result != tt.expected {
			t.Errorf("Match(%q) = %v, want %v", tt.host, result, tt.expected)
		}
	}
}

func TestPrefixWildcardMatcher(t *testing.T) {
	matcher := NewPrefixWildcardMatcher("*.example.com")

	tests := []struct {
		host     string
		expected bool
	}{
		{"www.example.com", true},
		{"a.b.example.com", true},
		{"example.com", false},
		{"badexample.com", false},
	}

	for _, tt := range tests {
		result := matcher.Match(tt.host)
		if result != tt.expected {
			t.Errorf("Match(%q) = %v, want %v", tt.host, result, tt.expected)
		}
	}
}

func TestNetworkMatcher(t *testing.T) {
	tests := []struct {
		pattern  string
		host     string
		expected bool
	}{
		{"127.0.0.0/8", "127.0.0.1", true},
		{"127.0.0.0/8", "127.255.1.2", true},
		{"127.0.0.0/8", "128.0.0.1", false},
		{"10.0.0.0/8", "localhost", false},
		{"::1", "::1", true},
		{"::1", "[::1]", true},
		{"192.168.1.10", "192.168.1.10", true},
		{"192.168.1.10", "192.168.1.11", false},
		{"fd00::/8", "fd12::1", true},
	}

	for _, tt := range tests {
		m := NewNetworkMatcher(tt.pattern)
		if m == nil {
			t.Fatalf("NewNetworkMatcher(%q) = nil", tt.pattern)
		}
		if got := m.Match(tt.host); got != tt.expected {
			t.Errorf("%s Match(%q) = %v, want %v", tt.pattern, tt.host, got, tt.expected)
		}
	}

	if NewNetworkMatcher("example.com") != nil {
		t.Error("hostname must not parse as a network")
	}
}

func TestCreateMatcher(t *testing.T) {
	tests := []struct {
		pattern string
		kind    string
	}{
		{"example.com", "*bypass.ExactMatcher"},
		{"*.example.com", "*bypass.PrefixWildcardMatcher"},
		{"corp.*", "*bypass.SuffixWildcardMatcher"},
		{"*.internal.*", "*bypass.DoubleWildcardMatcher"},
		{"10.0.0.0/8", "*bypass.NetworkMatcher"},
		{"::1", "*bypass.NetworkMatcher"},
	}

	for _, tt := range tests {
		var got string
		switch CreateMatcher(tt.pattern).(type) {
		case *ExactMatcher:
			got = "*bypass.ExactMatcher"
		case *PrefixWildcardMatcher:
			got = "*bypass.PrefixWildcardMatcher"
		case *SuffixWildcardMatcher:
			got = "*bypass.SuffixWildcardMatcher"
		case *DoubleWildcardMatcher:
			got = "*bypass.DoubleWildcardMatcher"
		case *NetworkMatcher:
			got = "*bypass.NetworkMatcher"
		}
		if got != tt.kind {
			t.Errorf("CreateMatcher(%q) = %s, want %s", tt.pattern, got, tt.kind)
		}
	}
}
