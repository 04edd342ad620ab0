// Package browser starts a Chromium-family browser pinned to a proxy with
// --proxy-server, independent of any system setting.
package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"

	"github.com/user/proxyswitch/internal/command"
	"github.com/user/proxyswitch/internal/target"
)

// Candidates are looked up on PATH in order.
var Candidates = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"}

// platformPaths are tried when nothing is on PATH.
var platformPaths = map[string][]string{
	"darwin": {
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
	},
	"windows": {
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
	},
}

var (
	// ErrNotFound means no supported browser is installed.
	ErrNotFound = errors.New("chrome/chromium not found in PATH")
	// ErrNotConnected means there is no active proxy to pin the browser to.
	ErrNotConnected = errors.New("connect to a proxy first")
)

// ProxyServerArg is the --proxy-server value for t. Chrome treats a bare
// host:port as an HTTP proxy.
func ProxyServerArg(t target.ProxyTarget) string {
	if t.Kind().IsSOCKS() {
		return t.URL()
	}
	return t.Addr()
}

// Launcher finds and starts the browser.
type Launcher struct {
	Runner command.Runner
	GOOS   string
	// Start runs the browser without waiting for it.
	Start func(path string, args ...string) error
	// exists reports whether an absolute path is present.
	exists func(path string) bool
	log    *slog.Logger
}

func NewLauncher(runner command.Runner, log *slog.Logger) *Launcher {
	if log == nil {
		log = slog.Default()
	}
	return &Launcher{
		Runner: runner,
		GOOS:   runtime.GOOS,
		Start:  startDetached,
		exists: fileExists,
		log:    log.With("component", "browser"),
	}
}

// Find returns the first usable browser executable.
func (l *Launcher) Find() (string, error) {
	for _, name := range Candidates {
		if path, err := l.Runner.LookPath(name); err == nil {
			return path, nil
		}
	}
	for _, path := range platformPaths[l.GOOS] {
		if l.exists(path) {
			return path, nil
		}
	}
	return "", ErrNotFound
}

// Launch opens a new browser window that uses t. active must be true.
func (l *Launcher) Launch(t target.ProxyTarget, active bool) (string, error) {
	if !active || t.IsZero() {
		return "", ErrNotConnected
	}
	path, err := l.Find()
	if err != nil {
		return "", err
	}
	proxy := ProxyServerArg(t)
	l.log.Info("launching browser", "path", path, "proxy", proxy)
	if err := l.Start(path, "--proxy-server="+proxy, "--new-window"); err != nil {
		return "", fmt.Errorf("failed to start %s: %w", path, err)
	}
	return path, nil
}

func startDetached(path string, args ...string) error {
	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
