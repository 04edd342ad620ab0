package sysproxy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/proxyswitch/internal/bypass"
	"github.com/user/proxyswitch/internal/command/commandtest"
	"github.com/user/proxyswitch/internal/target"
)

const serviceList = `An asterisk (*) denotes that a network service is disabled.
*Bluetooth PAN
Wi-Fi
Thunderbolt Bridge
`

func TestNetworkServiceHTTP(t *testing.T) {
	runner := commandtest.NewFakeRunner().Respond("networksetup -listallnetworkservices", serviceList)
	n := NewNetworkService(runner, 0, bypass.New(bypass.Defaults), discardLogger())

	detail, err := n.Apply(context.Background(), mustTarget(t, "1.2.3.4", 8080, target.HTTPHTTPS))
	require.NoError(t, err)
	assert.Equal(t, "Wi-Fi: HTTP/HTTPS proxy 1.2.3.4:8080", detail)

	assert.Equal(t, []string{
		"networksetup -listallnetworkservices",
		"networksetup -setwebproxy Wi-Fi 1.2.3.4 8080",
		"networksetup -setsecurewebproxy Wi-Fi 1.2.3.4 8080",
		"networksetup -setwebproxystate Wi-Fi on",
		"networksetup -setsecurewebproxystate Wi-Fi on",
		"networksetup -setsocksfirewallproxystate Wi-Fi off",
		"networksetup -setproxybypassdomains Wi-Fi localhost 127.0.0.0/8 ::1",
	}, runner.CallLines())
}

func TestNetworkServiceSOCKSAndRemove(t *testing.T) {
	runner := commandtest.NewFakeRunner().Respond("networksetup -listallnetworkservices", serviceList)
	n := NewNetworkService(runner, 0, bypass.New(nil), discardLogger())

	_, err := n.Apply(context.Background(), mustTarget(t, "10.0.0.5", 1080, target.SOCKS5))
	require.NoError(t, err)
	calls := runner.CallLines()
	assert.Contains(t, calls, "networksetup -setsocksfirewallproxy Wi-Fi 10.0.0.5 1080")
	assert.Contains(t, calls, "networksetup -setwebproxystate Wi-Fi off")
	assert.Contains(t, calls, "networksetup -setproxybypassdomains Wi-Fi Empty")
	for _, c := range calls {
		assert.NotContains(t, c, "Thunderbolt", "only the first service is configured")
	}

	_, err = n.Remove(context.Background())
	require.NoError(t, err)
	calls = runner.CallLines()
	assert.Equal(t, []string{
		"networksetup -setwebproxystate Wi-Fi off",
		"networksetup -setsecurewebproxystate Wi-Fi off",
		"networksetup -setsocksfirewallproxystate Wi-Fi off",
	}, calls[len(calls)-3:])
}

func TestNetworkServiceNoServiceIsSoft(t *testing.T) {
	runner := commandtest.NewFakeRunner().Respond("networksetup -listallnetworkservices",
		"An asterisk (*) denotes that a network service is disabled.\n*Wi-Fi\n")
	n := NewNetworkService(runner, 0, bypass.New(nil), discardLogger())

	_, err := n.Apply(context.Background(), mustTarget(t, "1.2.3.4", 8080, target.HTTPHTTPS))
	assert.True(t, IsSoft(err))
	assert.Len(t, runner.Calls(), 1)
}

func TestNetworkServiceMissingTool(t *testing.T) {
	n := NewNetworkService(commandtest.NewFakeRunner().Missing("networksetup"), 0, bypass.New(nil), discardLogger())
	_, err := n.Apply(context.Background(), mustTarget(t, "1.2.3.4", 8080, target.HTTPHTTPS))
	assert.True(t, IsSoft(err))
}

func TestNetworkServiceCommandFailure(t *testing.T) {
	runner := commandtest.NewFakeRunner().
		Respond("networksetup -listallnetworkservices", serviceList).
		Fail("networksetup -setwebproxy", "** Error: insufficient privileges")
	n := NewNetworkService(runner, 0, bypass.New(nil), discardLogger())

	_, err := n.Apply(context.Background(), mustTarget(t, "1.2.3.4", 8080, target.HTTPHTTPS))
	require.Error(t, err)
	assert.Equal(t, CommandFailed, KindOf(err))
}

func TestNetworkServiceSnapshot(t *testing.T) {
	runner := commandtest.NewFakeRunner().
		Respond("networksetup -listallnetworkservices", serviceList).
		Respond("networksetup -getwebproxy", "Enabled: No\nServer: \nPort: 0\n")
	n := NewNetworkService(runner, 0, bypass.New(nil), discardLogger())

	snap, err := n.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Contains(t, snap, "service=Wi-Fi")
	assert.Contains(t, snap, "webproxy{Enabled: No; Server: ; Port: 0}")
}
