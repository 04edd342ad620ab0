package sysproxy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/proxyswitch/internal/bypass"
	"github.com/user/proxyswitch/internal/command/commandtest"
	"github.com/user/proxyswitch/internal/target"
)

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) ReparseKIO() error {
	f.calls++
	return f.err
}

func TestDesktopGnomeHTTP(t *testing.T) {
	runner := commandtest.NewFakeRunner()
	n := &fakeNotifier{}
	d := NewDesktop(runner, 0, bypass.New(bypass.Defaults), n, discardLogger())

	detail, err := d.Apply(context.Background(), mustTarget(t, "1.2.3.4", 8080, target.HTTPHTTPS))
	require.NoError(t, err)
	assert.Contains(t, detail, "gsettings")

	calls := runner.CallLines()
	assert.Contains(t, calls, "gsettings set org.gnome.system.proxy mode 'manual'")
	assert.Contains(t, calls, "gsettings set org.gnome.system.proxy.http host '1.2.3.4'")
	assert.Contains(t, calls, "gsettings set org.gnome.system.proxy.https port 8080")
	assert.Contains(t, calls, "gsettings set org.gnome.system.proxy.ftp host '1.2.3.4'")
	assert.Contains(t, calls, "gsettings set org.gnome.system.proxy.socks host ''")
	assert.Contains(t, calls, "gsettings set org.gnome.system.proxy ignore-hosts ['localhost', '127.0.0.0/8', '::1']")
	assert.Zero(t, n.calls)
}

func TestDesktopGnomeSOCKS(t *testing.T) {
	runner := commandtest.NewFakeRunner()
	d := NewDesktop(runner, 0, bypass.New(nil), &fakeNotifier{}, discardLogger())

	_, err := d.Apply(context.Background(), mustTarget(t, "10.0.0.5", 1080, target.SOCKS5))
	require.NoError(t, err)

	calls := runner.CallLines()
	assert.Contains(t, calls, "gsettings set org.gnome.system.proxy.socks host '10.0.0.5'")
	assert.Contains(t, calls, "gsettings set org.gnome.system.proxy.socks port 1080")
	assert.Contains(t, calls, "gsettings set org.gnome.system.proxy.http host '10.0.0.5'")
	assert.NotContains(t, calls, "gsettings set org.gnome.system.proxy.ftp host '10.0.0.5'")
}

func TestDesktopFallsBackToKDE(t *testing.T) {
	runner := commandtest.NewFakeRunner().Missing("gsettings", "kwriteconfig6")
	n := &fakeNotifier{}
	d := NewDesktop(runner, 0, bypass.New(bypass.Defaults), n, discardLogger())

	detail, err := d.Apply(context.Background(), mustTarget(t, "1.2.3.4", 8080, target.HTTPHTTPS))
	require.NoError(t, err)
	assert.Contains(t, detail, "kwriteconfig5")
	assert.Equal(t, 1, n.calls)

	calls := runner.CallLines()
	assert.Contains(t, calls, "kwriteconfig5 --file kioslaverc --group Proxy Settings --key ProxyType 1")
	assert.Contains(t, calls, "kwriteconfig5 --file kioslaverc --group Proxy Settings --key httpProxy http://1.2.3.4 8080")
	assert.Contains(t, calls, "kwriteconfig5 --file kioslaverc --group Proxy Settings --key NoProxyFor localhost,127.0.0.0/8,::1")

	detail, err = d.Remove(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "kwriteconfig5: ProxyType 0", detail)
	assert.Equal(t, 2, n.calls)
}

func TestDesktopGnomeFailureFallsBack(t *testing.T) {
	runner := commandtest.NewFakeRunner().
		Missing("kwriteconfig5").
		Fail("gsettings set org.gnome.system.proxy mode", "No such schema")
	d := NewDesktop(runner, 0, bypass.New(nil), &fakeNotifier{}, discardLogger())

	_, err := d.Apply(context.Background(), mustTarget(t, "10.0.0.5", 1080, target.SOCKS4))
	require.NoError(t, err)

	assert.Contains(t, runner.CallLines(), "kwriteconfig6 --file kioslaverc --group Proxy Settings --key socksProxy socks://10.0.0.5 1080")
}

func TestDesktopNoToolIsSoft(t *testing.T) {
	runner := commandtest.NewFakeRunner().Missing("gsettings", "kwriteconfig6", "kwriteconfig5")
	d := NewDesktop(runner, 0, bypass.New(nil), &fakeNotifier{}, discardLogger())

	_, err := d.Apply(context.Background(), mustTarget(t, "1.2.3.4", 8080, target.HTTPHTTPS))
	require.Error(t, err)
	assert.True(t, IsSoft(err))

	_, err = d.Remove(context.Background())
	assert.True(t, IsSoft(err))
}

func TestDesktopKDEFailureIsHard(t *testing.T) {
	runner := commandtest.NewFakeRunner().
		Missing("gsettings", "kwriteconfig6").
		Fail("kwriteconfig5", "cannot write")
	d := NewDesktop(runner, 0, bypass.New(nil), &fakeNotifier{}, discardLogger())

	_, err := d.Apply(context.Background(), mustTarget(t, "1.2.3.4", 8080, target.HTTPHTTPS))
	require.Error(t, err)
	assert.False(t, IsSoft(err))
	assert.Equal(t, CommandFailed, KindOf(err))
}

func TestDesktopNotifyFailureIsLoggedOnly(t *testing.T) {
	runner := commandtest.NewFakeRunner().Missing("gsettings")
	d := NewDesktop(runner, 0, bypass.New(nil), &fakeNotifier{err: errors.New("no session bus")}, discardLogger())

	detail, err := d.Apply(context.Background(), mustTarget(t, "1.2.3.4", 8080, target.HTTPHTTPS))
	require.NoError(t, err)
	assert.Contains(t, detail, "reload signal failed")
}

func TestDesktopSnapshot(t *testing.T) {
	runner := commandtest.NewFakeRunner().Respond("gsettings get org.gnome.system.proxy mode", "'none'\n")
	d := NewDesktop(runner, 0, bypass.New(nil), &fakeNotifier{}, discardLogger())

	snap, err := d.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mode='none'", snap)
}
