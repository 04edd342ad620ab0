// Package manager applies and removes a proxy target across every
// configuration surface of the running platform and keeps the connection
// state.
package manager

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/proxyswitch/internal/state"
	"github.com/user/proxyswitch/internal/sysproxy"
	"github.com/user/proxyswitch/internal/target"
)

// Outcome of one adapter call.
type Outcome string

const (
	Success Outcome = "success"
	// Soft means the surface was absent or inapplicable; it counts as success.
	Soft    Outcome = "soft"
	Failure Outcome = "failure"
)

// AdapterResult is one line of a Report.
type AdapterResult struct {
	Adapter string  `json:"adapter"`
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail,omitempty"`
	Error   string  `json:"error,omitempty"`
	Err     error   `json:"-"`
}

// Succeeded reports whether the result counts towards success.
func (r AdapterResult) Succeeded() bool {
	return r.Outcome != Failure
}

// Report is the result of an apply or remove.
type Report struct {
	Op      string          `json:"op"`
	Target  *target.Spec    `json:"target,omitempty"`
	Session string          `json:"session,omitempty"`
	Results []AdapterResult `json:"results"`
	// OK is true when every mandatory adapter succeeded.
	OK    bool     `json:"ok"`
	Lines []string `json:"lines,omitempty"`
}

// Result returns the entry for adapter.
func (r Report) Result(adapter string) (AdapterResult, bool) {
	for _, res := range r.Results {
		if res.Adapter == adapter {
			return res, true
		}
	}
	return AdapterResult{}, false
}

// Observer is told about each adapter result as soon as it is known.
type Observer func(op string, r AdapterResult)

// ErrZeroTarget is returned for a target that was never validated.
var ErrZeroTarget = errors.New("proxy target is empty")

// RouterOptions configures a Router.
type RouterOptions struct {
	// Mandatory adapters decide the overall outcome. Defaults to environment.
	Mandatory []string
	Recorder  *state.Recorder
	// Store, when set, persists state across processes.
	Store  *state.Store
	Logger *slog.Logger
}

// Router runs a fixed, ordered adapter list and owns the connection state.
type Router struct {
	mu        sync.Mutex
	adapters  []sysproxy.Adapter
	mandatory map[string]bool
	recorder  *state.Recorder
	store     *state.Store
	log       *slog.Logger
	now       func() time.Time

	state    state.ConnectionState
	snapshot *state.Snapshot
}

// NewRouter loads any persisted state from opts.Store.
func NewRouter(adapters []sysproxy.Adapter, opts RouterOptions) *Router {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "router")

	mandatory := opts.Mandatory
	if len(mandatory) == 0 {
		mandatory = Mandatory
	}
	r := &Router{
		adapters:  adapters,
		mandatory: make(map[string]bool, len(mandatory)),
		recorder:  opts.Recorder,
		store:     opts.Store,
		log:       log,
		now:       time.Now,
	}
	for _, name := range mandatory {
		r.mandatory[name] = true
	}
	if r.recorder == nil {
		r.recorder = state.NewRecorder(log)
	}
	if r.store != nil {
		f, err := r.store.Load()
		if err != nil {
			log.Warn("ignoring unreadable state file", "path", r.store.Path(), "error", err)
		} else {
			r.state, r.snapshot = f.State, f.Snapshot
		}
	}
	return r
}

// Adapters returns the adapter names in run order.
func (r *Router) Adapters() []string {
	names := make([]string, len(r.adapters))
	for i, a := range r.adapters {
		names[i] = a.Name()
	}
	return names
}

// State returns the current connection state.
func (r *Router) State() state.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Snapshot returns the settings recorded before the last successful apply.
func (r *Router) Snapshot() *state.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshot == nil {
		return nil
	}
	s := *r.snapshot
	return &s
}

// Apply points every adapter at t. Adapter failures are collected, never
// returned; the state becomes connected only when Report.OK is true.
func (r *Router) Apply(ctx context.Context, t target.ProxyTarget, observers ...Observer) Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	spec := t.Spec()
	report := Report{Op: "apply", Target: &spec, Session: uuid.NewString()}
	if t.IsZero() {
		report.Results = []AdapterResult{{Adapter: "router", Outcome: Failure, Error: ErrZeroTarget.Error(), Err: ErrZeroTarget}}
		return report
	}

	snap := r.recorder.Take(ctx, report.Session, r.adapters)
	r.log.Debug("recorded previous settings", "session", report.Session, "adapters", len(snap.Values))

	for _, a := range r.adapters {
		detail, err := a.Apply(ctx, t)
		res := r.result(a.Name(), "apply", detail, err)
		report.Results = append(report.Results, res)
		notify(observers, "apply", res)
	}
	report.OK = r.mandatoryOK(report.Results)

	if report.OK {
		r.state = state.Connected(t, report.Session, r.now())
		r.snapshot = &snap
		r.log.Info("proxy applied", "target", t.String(), "session", report.Session)
	} else {
		r.state = state.Disconnected()
		r.log.Warn("proxy apply failed on a mandatory surface", "target", t.String())
	}
	r.persist()
	return report
}

// Remove clears every adapter. The state is always disconnected afterwards
// and the snapshot is discarded.
func (r *Router) Remove(ctx context.Context, observers ...Observer) Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := Report{Op: "remove", Session: r.state.Session, Target: r.state.Target}
	for _, a := range r.adapters {
		detail, err := a.Remove(ctx)
		res := r.result(a.Name(), "remove", detail, err)
		report.Results = append(report.Results, res)
		notify(observers, "remove", res)
	}
	report.OK = r.mandatoryOK(report.Results)

	r.state = state.Disconnected()
	r.snapshot = nil
	r.log.Info("proxy removed", "ok", report.OK)
	r.persist()
	return report
}

func (r *Router) result(name, op, detail string, err error) AdapterResult {
	res := AdapterResult{Adapter: name, Outcome: Success, Detail: detail}
	switch {
	case err == nil:
	case sysproxy.IsSoft(err):
		res.Outcome = Soft
		res.Error, res.Err = err.Error(), err
		r.log.Debug("adapter skipped", "adapter", name, "op", op, "reason", err)
	default:
		res.Outcome = Failure
		res.Error, res.Err = err.Error(), err
		r.log.Warn("adapter failed", "adapter", name, "op", op, "error", err)
	}
	return res
}

func (r *Router) mandatoryOK(results []AdapterResult) bool {
	seen := 0
	for _, res := range results {
		if !r.mandatory[res.Adapter] {
			continue
		}
		if !res.Succeeded() {
			return false
		}
		seen++
	}
	return seen == len(r.mandatory)
}

func (r *Router) persist() {
	if r.store == nil {
		return
	}
	if err := r.store.Save(state.File{State: r.state, Snapshot: r.snapshot}); err != nil {
		r.log.Warn("failed to save state", "path", r.store.Path(), "error", err)
	}
}

func notify(observers []Observer, op string, res AdapterResult) {
	for _, o := range observers {
		o(op, res)
	}
}
