package state

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/proxyswitch/internal/sysproxy"
)

// Recorder captures the pre-change setting of every adapter that can
// describe it.
type Recorder struct {
	log *slog.Logger
	now func() time.Time
}

func NewRecorder(log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{log: log.With("component", "state"), now: time.Now}
}

// Take never fails: an adapter whose probe errors is left out of the result.
func (r *Recorder) Take(ctx context.Context, session string, adapters []sysproxy.Adapter) Snapshot {
	snap := Snapshot{
		Session: session,
		TakenAt: r.now().UTC(),
		Values:  make(map[string]string),
	}
	for _, a := range adapters {
		s, ok := a.(sysproxy.Snapshotter)
		if !ok {
			continue
		}
		value, err := r.probe(ctx, s)
		if err != nil {
			r.log.Debug("snapshot skipped", "adapter", a.Name(), "error", err)
			continue
		}
		snap.Values[a.Name()] = value
	}
	return snap
}

func (r *Recorder) probe(ctx context.Context, s sysproxy.Snapshotter) (value string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("snapshot panicked: %v", p)
		}
	}()
	return s.Snapshot(ctx)
}
