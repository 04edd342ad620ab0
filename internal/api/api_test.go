package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/proxyswitch/internal/bypass"
	"github.com/user/proxyswitch/internal/envport"
	"github.com/user/proxyswitch/internal/manager"
	"github.com/user/proxyswitch/internal/probe"
	"github.com/user/proxyswitch/internal/sysproxy"
	"github.com/user/proxyswitch/internal/target"
)

func newTestServer(t *testing.T) (*Server, *envport.Map) {
	t.Helper()
	env := envport.NewMap(nil)
	r := manager.NewRouter(
		[]sysproxy.Adapter{sysproxy.NewEnvironment(env)},
		manager.RouterOptions{Mandatory: manager.Mandatory},
	)
	v := probe.New(bypass.New(nil))
	v.SocketTimeout = time.Second
	return NewServer(manager.New(r, v, manager.Options{}), nil), env
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func closedAddr(t *testing.T) (string, int) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)
	require.NoError(t, l.Close())
	return addr.IP.String(), addr.Port
}

func TestConnectStatusDisconnect(t *testing.T) {
	s, env := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/connect", `{"host":"127.0.0.1","port":8080,"kind":"http"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report manager.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.OK)
	assert.Equal(t, "http://127.0.0.1:8080", envport.Get(env, "HTTP_PROXY"))

	rec = do(t, h, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.State.Active)
	require.NotNil(t, status.State.Target)
	assert.Equal(t, "127.0.0.1", status.State.Target.Host)
	assert.Equal(t, []string{sysproxy.NameEnvironment}, status.Adapters)

	rec = do(t, h, http.MethodPost, "/api/disconnect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, ok := env.Lookup("HTTP_PROXY")
	assert.False(t, ok)
	assert.False(t, s.mgr.Status().Active)
}

func TestConnectRejectsBadTargets(t *testing.T) {
	s, env := newTestServer(t)
	h := s.Handler()

	for name, body := range map[string]string{
		"empty body":   "",
		"not json":     "{",
		"bad port":     `{"host":"127.0.0.1","port":0,"kind":"http"}`,
		"unknown kind": `{"host":"127.0.0.1","port":1080,"kind":"socks6"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/connect", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var e errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
			assert.NotEmpty(t, e.Error)
		})
	}
	assert.Empty(t, env.Keys())
}

func TestTestEndpointFallsBackToConfiguredTarget(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/test", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no body, no connection, no fallback")

	host, port := closedAddr(t)
	s.Fallback = func() (target.ProxyTarget, bool) {
		tg, err := target.New(host, port, target.SOCKS4)
		return tg, err == nil
	}
	rec = do(t, h, http.MethodPost, "/api/test", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report manager.TestReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.False(t, report.Reachable)
	assert.NotEmpty(t, report.SocketError)
	assert.NotEmpty(t, report.Lines)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ListenAndServe(ctx, "127.0.0.1:0", s.Handler()) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestPostRequiresJSONContentType(t *testing.T) {
	s, env := newTestServer(t)
	h := s.Handler()

	for _, ct := range []string{"", "text/plain", "application/x-www-form-urlencoded", "multipart/form-data; boundary=x"} {
		req := httptest.NewRequest(http.MethodPost, "/api/connect", strings.NewReader(`{"host":"127.0.0.1","port":8080,"kind":"http"}`))
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code, ct)
	}
	_, ok := env.Lookup("HTTP_PROXY")
	assert.False(t, ok)
	assert.False(t, s.mgr.Status().Active)

	req := httptest.NewRequest(http.MethodPost, "/api/connect", strings.NewReader(`{"host":"127.0.0.1","port":8080,"kind":"http"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
