package manager

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/user/proxyswitch/internal/probe"
	"github.com/user/proxyswitch/internal/state"
	"github.com/user/proxyswitch/internal/target"
)

var (
	// ErrBusy is returned while another connect or disconnect is running.
	ErrBusy = errors.New("another proxy operation is in progress")
	// ErrNotConnected is returned by Reconnect when no target is applied.
	ErrNotConnected = errors.New("not connected")
)

// TestReport is the result of TestConnection.
type TestReport struct {
	probe.Report
	Lines []string `json:"lines,omitempty"`
}

// Options configures a Manager.
type Options struct {
	// Sink receives every progress line as it is written.
	Sink   func(line string)
	Logger *slog.Logger
}

// Manager is the entry point for user-facing shells: it runs one operation
// at a time and narrates it as progress lines.
type Manager struct {
	busy     sync.Mutex
	router   *Router
	verifier *probe.Verifier
	sink     func(string)
	log      *slog.Logger
	now      func() time.Time
}

func New(router *Router, verifier *probe.Verifier, opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		router:   router,
		verifier: verifier,
		sink:     opts.Sink,
		log:      log.With("component", "manager"),
		now:      time.Now,
	}
}

func (m *Manager) journal() *Journal {
	j := NewJournal(m.sink)
	j.now = m.now
	return j
}

// Connect applies t on every surface.
func (m *Manager) Connect(ctx context.Context, t target.ProxyTarget) (Report, error) {
	if !m.busy.TryLock() {
		return Report{}, ErrBusy
	}
	defer m.busy.Unlock()
	return m.connect(ctx, t), nil
}

func (m *Manager) connect(ctx context.Context, t target.ProxyTarget) Report {
	j := m.journal()
	if prev := m.router.State(); prev.Active {
		j.Printf("Re-applying proxy settings (was %s)", prev)
	}
	j.Printf("Connecting to proxy %s", t)

	report := m.router.Apply(ctx, t, journalObserver(j))
	if report.OK {
		j.Printf("Connected to %s", t.Addr())
		j.Printf("Restart running browsers so they pick up the new proxy")
	} else {
		j.Printf("Failed to configure proxy, see the entries above")
	}
	report.Lines = j.Lines()
	return report
}

// Reconnect re-applies the current target, repairing surfaces that drifted.
func (m *Manager) Reconnect(ctx context.Context) (Report, error) {
	if !m.busy.TryLock() {
		return Report{}, ErrBusy
	}
	defer m.busy.Unlock()

	t, ok := m.router.State().ProxyTarget()
	if !ok {
		return Report{}, ErrNotConnected
	}
	return m.connect(ctx, t), nil
}

// Disconnect clears every surface. It runs even when no connection is
// recorded so that leftovers from a crashed session are cleaned up.
func (m *Manager) Disconnect(ctx context.Context) (Report, error) {
	if !m.busy.TryLock() {
		return Report{}, ErrBusy
	}
	defer m.busy.Unlock()

	j := m.journal()
	if !m.router.State().Active {
		j.Printf("No active connection recorded, clearing proxy settings anyway")
	}
	j.Printf("Disconnecting from proxy")

	report := m.router.Remove(ctx, journalObserver(j))
	if report.OK {
		j.Printf("Disconnected")
	} else {
		j.Printf("Some proxy settings could not be cleared, see the entries above")
	}
	report.Lines = j.Lines()
	return report, nil
}

// TestConnection probes t. It is read-only and may run at any time.
func (m *Manager) TestConnection(ctx context.Context, t target.ProxyTarget) TestReport {
	j := m.journal()
	j.Printf("Testing connection to %s", t)

	r := m.verifier.Run(ctx, t)
	if !r.Reachable {
		j.Printf("✗ Socket test failed: %s", r.SocketError)
		j.Printf("Check that the proxy server is running and reachable")
		return TestReport{Report: r, Lines: j.Lines()}
	}
	j.Printf("✓ Socket test passed")

	switch {
	case r.Skipped != "":
		j.Printf("No protocol test: %s", r.Skipped)
	case r.Protocol == "":
		j.Printf("No protocol test for %s proxies", t.Kind().Label())
	case r.ProtocolError != "":
		j.Printf("✗ %s proxy test failed: %s", r.Protocol, r.ProtocolError)
		j.Printf("The proxy accepts connections but did not relay the test request")
	default:
		j.Printf("✓ %s proxy test passed", r.Protocol)
		if r.Origin != "" {
			j.Printf("  Exit address: %s", r.Origin)
		} else {
			j.Printf("  Response: %s", r.Snippet)
		}
	}
	return TestReport{Report: r, Lines: j.Lines()}
}

// Status returns the connection state.
func (m *Manager) Status() state.ConnectionState {
	return m.router.State()
}

// Snapshot returns the settings recorded before the current connection.
func (m *Manager) Snapshot() *state.Snapshot {
	return m.router.Snapshot()
}

// Adapters lists the surfaces managed on this platform in run order.
func (m *Manager) Adapters() []string {
	return m.router.Adapters()
}

func journalObserver(j *Journal) Observer {
	return func(op string, r AdapterResult) {
		switch r.Outcome {
		case Success:
			j.Printf("✓ %s: %s", r.Adapter, r.Detail)
		case Soft:
			j.Printf("- %s: skipped (%s)", r.Adapter, r.Error)
		default:
			j.Printf("✗ %s: %s", r.Adapter, r.Error)
		}
	}
}
