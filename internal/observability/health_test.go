package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHealthManager_Healthz(t *testing.T) {
	hm := NewHealthManager(zap.NewNop().Sugar())
	hm.AddHealthChecker(NewFuncChecker("gate", func(context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	hm.HealthzHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	require.Len(t, resp.Components, 1)
	assert.Equal(t, "gate", resp.Components[0].Name)
}

func TestHealthManager_ReadyzFailure(t *testing.T) {
	hm := NewHealthManager(zap.NewNop().Sugar())
	hm.AddReadinessChecker(NewFuncChecker("ok", func(context.Context) error { return nil }))
	hm.AddReadinessChecker(NewFuncChecker("upstream", func(context.Context) error { return errors.New("connection refused") }))

	rec := httptest.NewRecorder()
	hm.ReadyzHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "not_ready", resp.Status)
	require.Len(t, resp.Components, 2)
	assert.Equal(t, "ready", resp.Components[0].Status)
	assert.Equal(t, "not_ready", resp.Components[1].Status)
	assert.Equal(t, "connection refused", resp.Components[1].Error)
	assert.False(t, hm.IsReady(context.Background()))
}

func TestHealthManager_NoCheckersIsHealthy(t *testing.T) {
	hm := NewHealthManager(zap.NewNop().Sugar())
	assert.True(t, hm.IsHealthy(context.Background()))
	assert.True(t, hm.IsReady(context.Background()))
}

func TestUpstreamChecker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	up, err := url.Parse("http://" + ln.Addr().String())
	require.NoError(t, err)
	assert.NoError(t, NewUpstreamChecker("upstream", up).ReadinessCheck(context.Background()))

	// Grab a free port and close it so nothing listens there.
	dead, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadURL, err := url.Parse("http://" + dead.Addr().String())
	require.NoError(t, err)
	require.NoError(t, dead.Close())
	assert.Error(t, NewUpstreamChecker("upstream", deadURL).ReadinessCheck(context.Background()))

	assert.Error(t, NewUpstreamChecker("upstream", nil).ReadinessCheck(context.Background()))
}

func TestHostPortDefaults(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"http://example.com", "example.com:80"},
		{"https://example.com/api", "example.com:443"},
		{"http://example.com:8080", "example.com:8080"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		require.NoError(t, err)
		assert.Equal(t, tt.want, hostPort(u), tt.raw)
	}
}
