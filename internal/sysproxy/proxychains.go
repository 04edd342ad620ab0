package sysproxy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/user/proxyswitch/internal/target"
	"github.com/user/proxyswitch/internal/textblock"
)

// ChainMarker tags the managed entry in a proxychains config.
const ChainMarker = "# ProxySwitch Proxy"

const proxyListHeader = "[ProxyList]"

var chainEntry = regexp.MustCompile(`^(http|socks4|socks5)\s+\S+\s+\d+`)

// DefaultProxyChainsPaths returns candidate configs, most specific first.
func DefaultProxyChainsPaths(home string) []string {
	return []string{
		filepath.Join(home, ".proxychains", "proxychains.conf"),
		"/etc/proxychains4.conf",
		"/etc/proxychains.conf",
	}
}

func chainBlock(body []string) textblock.Block {
	return textblock.Block{
		Begin: ChainMarker,
		Body:  body,
		Continues: func(line string) bool {
			l := strings.TrimSpace(line)
			return l == proxyListHeader || chainEntry.MatchString(l)
		},
	}
}

// ChainEntry renders the [ProxyList] line for t.
func ChainEntry(t target.ProxyTarget) string {
	return t.Kind().Scheme() + " " + t.Host() + " " + strconv.Itoa(t.Port())
}

// ProxyChains points the first proxychains config found at the target.
type ProxyChains struct {
	candidates []string
}

func NewProxyChains(candidates []string) *ProxyChains {
	return &ProxyChains{candidates: candidates}
}

func (p *ProxyChains) Name() string { return NameProxyChains }

func (p *ProxyChains) Apply(_ context.Context, t target.ProxyTarget) (string, error) {
	path, ok := p.config()
	if !ok {
		return "", &Error{Adapter: NameProxyChains, Op: "apply", Kind: ToolUnavailable, Err: fmt.Errorf("no proxychains config found")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &Error{Adapter: NameProxyChains, Op: "apply", Kind: IOError, Err: err}
	}

	body := []string{ChainEntry(t)}
	foreign, _ := textblock.Excise(string(data), chainBlock(nil))
	if !hasProxyList(foreign) {
		body = append([]string{proxyListHeader}, body...)
	}

	outcome, err := textblock.Apply(path, chainBlock(body))
	if err != nil {
		return "", &Error{Adapter: NameProxyChains, Op: "apply", Kind: IOError, Err: err}
	}
	return fmt.Sprintf("%s: %s %s", path, body[len(body)-1], outcome), nil
}

func (p *ProxyChains) Remove(_ context.Context) (string, error) {
	path, ok := p.config()
	if !ok {
		return "", &Error{Adapter: NameProxyChains, Op: "remove", Kind: ToolUnavailable, Err: fmt.Errorf("no proxychains config found")}
	}
	outcome, err := textblock.Remove(path, chainBlock(nil))
	if err != nil {
		return "", &Error{Adapter: NameProxyChains, Op: "remove", Kind: IOError, Err: err}
	}
	return fmt.Sprintf("%s: %s", path, outcome), nil
}

func (p *ProxyChains) Snapshot(_ context.Context) (string, error) {
	path, ok := p.config()
	if !ok {
		return "", fmt.Errorf("no proxychains config found")
	}
	lines, err := textblock.Read(path, chainBlock(nil))
	if err != nil {
		return "", err
	}
	if lines == nil {
		return path + ": no managed entry", nil
	}
	return path + ": " + strings.Join(lines[1:], "; "), nil
}

func (p *ProxyChains) config() (string, bool) {
	for _, c := range p.candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, true
		}
	}
	return "", false
}

func hasProxyList(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == proxyListHeader {
			return true
		}
	}
	return false
}
