package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/proxyswitch/internal/sysproxy"
	"github.com/user/proxyswitch/internal/target"
)

type stubAdapter struct {
	name  string
	value string
	err   error
	panic bool
}

func (s *stubAdapter) Name() string { return s.name }
func (s *stubAdapter) Apply(context.Context, target.ProxyTarget) (string, error) {
	return "", nil
}
func (s *stubAdapter) Remove(context.Context) (string, error) { return "", nil }
func (s *stubAdapter) Snapshot(context.Context) (string, error) {
	if s.panic {
		panic("boom")
	}
	return s.value, s.err
}

// plainAdapter cannot snapshot.
type plainAdapter struct{}

func (plainAdapter) Name() string { return "network-manager" }
func (plainAdapter) Apply(context.Context, target.ProxyTarget) (string, error) {
	return "", nil
}
func (plainAdapter) Remove(context.Context) (string, error) { return "", nil }

func TestRecorderIsBestEffort(t *testing.T) {
	r := NewRecorder(nil)
	r.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	adapters := []sysproxy.Adapter{
		&stubAdapter{name: "environment", value: "unset"},
		&stubAdapter{name: "desktop", err: errors.New("gsettings not found")},
		&stubAdapter{name: "registry", panic: true},
		plainAdapter{},
		&stubAdapter{name: "proxychains", value: "/etc/proxychains.conf: no managed entry"},
	}
	snap := r.Take(context.Background(), "s-1", adapters)

	assert.Equal(t, "s-1", snap.Session)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), snap.TakenAt)
	assert.Equal(t, map[string]string{
		"environment": "unset",
		"proxychains": "/etc/proxychains.conf: no managed entry",
	}, snap.Values)
}

func TestConnectedState(t *testing.T) {
	tg, err := target.New("10.0.0.5", 1080, target.SOCKS5)
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	s := Connected(tg, "session-1", now)
	assert.True(t, s.Active)
	assert.Equal(t, "session-1", s.Session)
	assert.Equal(t, now.UTC(), s.Since)

	got, ok := s.ProxyTarget()
	require.True(t, ok)
	assert.Equal(t, tg, got)
	assert.Equal(t, "connected to 10.0.0.5:1080 (SOCKS5)", s.String())

	_, ok = Disconnected().ProxyTarget()
	assert.False(t, ok)
	assert.Equal(t, "disconnected", Disconnected().String())
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nested", "state.yaml"))

	f, err := store.Load()
	require.NoError(t, err)
	assert.False(t, f.State.Active)
	assert.Nil(t, f.Snapshot)

	tg, err := target.New("127.0.0.1", 8080, target.HTTPHTTPS)
	require.NoError(t, err)
	want := File{
		State: Connected(tg, "abc", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		Snapshot: &Snapshot{
			Session: "abc",
			TakenAt: time.Date(2024, 5, 1, 11, 59, 0, 0, time.UTC),
			Values:  map[string]string{"desktop": "mode='none'"},
		},
	}
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear(), "clearing twice is fine")
	got, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, File{}, got)
}
