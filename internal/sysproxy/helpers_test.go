package sysproxy

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/proxyswitch/internal/target"
)

func mustTarget(t *testing.T, host string, port int, kind target.Kind) target.ProxyTarget {
	t.Helper()
	tg, err := target.New(host, port, kind)
	require.NoError(t, err)
	return tg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
