package ginchaos

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-mcp-proxy/chaosgate/internal/chaos"
)

func newEngine(g *chaos.Gate, calls *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(g))
	r.GET("/accounts", func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func TestMiddleware_ErrorRateOneAbortsChain(t *testing.T) {
	calls := 0
	r := newEngine(chaos.New(chaos.Config{ErrorRate: 1}), &calls)

	for i := 0; i < 100; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/accounts", nil))

		require.Equal(t, http.StatusInternalServerError, w.Code)
		require.JSONEq(t, `{"error":"Simulated chaos error"}`, w.Body.String())
	}
	assert.Zero(t, calls)
}

func TestMiddleware_ErrorRateZeroReachesHandler(t *testing.T) {
	calls := 0
	r := newEngine(chaos.New(chaos.Config{}), &calls)

	for i := 0; i < 100; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/accounts", nil))

		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	}
	assert.Equal(t, 100, calls)
}

func TestMiddleware_AbortedRequestStopsChain(t *testing.T) {
	calls := 0
	r := newEngine(chaos.New(chaos.Config{LatencyMs: 1000, ErrorRate: 1}), &calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/accounts", nil).WithContext(ctx))

	assert.Zero(t, calls)
	assert.Equal(t, chaos.StatusClientClosedRequest, w.Code)
	assert.Empty(t, w.Body.String())
}
