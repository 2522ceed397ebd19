package chaos

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-mcp-proxy/chaosgate/internal/testutil"
)

func newChaosServer(t *testing.T, cfg Config, calls *atomic.Int64) *testutil.HTTPClient {
	t.Helper()
	srv := httptest.NewServer(New(cfg).Middleware(okHandler(calls)))
	client := testutil.NewHTTPClient(srv.URL)
	t.Cleanup(func() {
		client.Close()
		srv.Close()
	})
	return client
}

func TestE2E_LatencyWithoutErrors(t *testing.T) {
	if testing.Short() {
		t.Skip("uses the wall clock")
	}
	ctx := testutil.Context(t, testutil.WaitShort)
	var calls atomic.Int64
	client := newChaosServer(t, Config{LatencyMs: 100, ErrorRate: 0}, &calls)

	resp, err := client.Get(ctx, "/accounts")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body)
	assert.GreaterOrEqual(t, resp.Elapsed, 100*time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())
}

func TestE2E_ImmediateFailure(t *testing.T) {
	ctx := testutil.Context(t, testutil.WaitShort)
	var calls atomic.Int64
	client := newChaosServer(t, Config{LatencyMs: 0, ErrorRate: 1}, &calls)

	resp, err := client.Get(ctx, "/accounts")
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, `{"error":"Simulated chaos error"}`, resp.Body)
	assert.Less(t, resp.Elapsed, time.Second)
	assert.Zero(t, calls.Load())
}

func TestE2E_ConcurrentRequestsDoNotSerialize(t *testing.T) {
	if testing.Short() {
		t.Skip("uses the wall clock")
	}
	ctx := testutil.Context(t, testutil.WaitShort)
	var calls atomic.Int64
	client := newChaosServer(t, Config{LatencyMs: 200}, &calls)

	var wg sync.WaitGroup
	elapsed := make([]time.Duration, 2)
	errs := make([]error, 2)
	start := time.Now()
	for i := range elapsed {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := client.Get(ctx, "/accounts")
			errs[i] = err
			if err == nil {
				elapsed[i] = resp.Elapsed
			}
		}(i)
	}
	wg.Wait()
	total := time.Since(start)

	for i := range elapsed {
		require.NoError(t, errs[i])
		assert.GreaterOrEqual(t, elapsed[i], 200*time.Millisecond)
	}
	// Serialized delays would take at least 400ms.
	assert.Less(t, total, 400*time.Millisecond)
	assert.EqualValues(t, 2, calls.Load())
}
