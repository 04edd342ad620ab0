package sysproxy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/proxyswitch/internal/bypass"
	"github.com/user/proxyswitch/internal/target"
)

type fakeRegistry struct {
	values    RegistryValues
	err       error
	notifyErr error
	notified  int
}

func (f *fakeRegistry) Read() (RegistryValues, error) { return f.values, f.err }

func (f *fakeRegistry) Write(v RegistryValues) error {
	if f.err != nil {
		return f.err
	}
	f.values = v
	return nil
}

func (f *fakeRegistry) SetEnable(enable bool) error {
	if f.err != nil {
		return f.err
	}
	f.values.Enable = enable
	return nil
}

func (f *fakeRegistry) Notify() error {
	f.notified++
	return f.notifyErr
}

func TestRegistryApplyRemove(t *testing.T) {
	ctx := context.Background()
	store := &fakeRegistry{}
	r := NewRegistry(store, bypass.New(bypass.Defaults), discardLogger())

	_, err := r.Apply(ctx, mustTarget(t, "1.2.3.4", 8080, target.HTTPHTTPS))
	require.NoError(t, err)
	assert.Equal(t, RegistryValues{Enable: true, Server: "1.2.3.4:8080", Override: "localhost;127.*;::1;<local>"}, store.values)
	assert.Equal(t, 1, store.notified)

	detail, err := r.Apply(ctx, mustTarget(t, "10.0.0.5", 1080, target.SOCKS5))
	require.NoError(t, err)
	assert.Equal(t, "ProxyServer=socks=10.0.0.5:1080", detail)

	_, err = r.Remove(ctx)
	require.NoError(t, err)
	assert.False(t, store.values.Enable)
	assert.Equal(t, "socks=10.0.0.5:1080", store.values.Server)

	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ProxyEnable=0 ProxyServer=socks=10.0.0.5:1080 ProxyOverride=localhost;127.*;::1;<local>", snap)
}

func TestRegistryNotifyFailureIsNotFatal(t *testing.T) {
	store := &fakeRegistry{notifyErr: errors.New("wininet unavailable")}
	r := NewRegistry(store, bypass.New(nil), discardLogger())

	detail, err := r.Apply(context.Background(), mustTarget(t, "1.2.3.4", 8080, target.HTTPHTTPS))
	require.NoError(t, err)
	assert.Contains(t, detail, "notification failed")
	assert.True(t, store.values.Enable)
}

func TestRegistryErrors(t *testing.T) {
	r := NewRegistry(&fakeRegistry{err: ErrNoRegistry}, bypass.New(nil), discardLogger())
	_, err := r.Apply(context.Background(), mustTarget(t, "1.2.3.4", 8080, target.HTTPHTTPS))
	assert.True(t, IsSoft(err))

	r = NewRegistry(&fakeRegistry{err: errors.New("access denied")}, bypass.New(nil), discardLogger())
	_, err = r.Remove(context.Background())
	require.Error(t, err)
	assert.Equal(t, CommandFailed, KindOf(err))
}
