package chaos

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/smart-mcp-proxy/chaosgate/internal/testutil"
)

// fixedSampler always returns the same sample.
func fixedSampler(v float64) Sampler {
	return SamplerFunc(func() float64 { return v })
}

type decision struct {
	outcome Outcome
	err     error
}

type recordingObserver struct {
	mu        sync.Mutex
	decisions []Outcome
	delays    []time.Duration
}

func (o *recordingObserver) ObserveDecision(outcome Outcome, delay time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decisions = append(o.decisions, outcome)
	o.delays = append(o.delays, delay)
}

func okHandler(calls *atomic.Int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}

func TestMiddleware_ErrorRateZeroAlwaysForwards(t *testing.T) {
	var calls atomic.Int64
	g := New(Config{LatencyMs: 0, ErrorRate: 0})
	h := g.Middleware(okHandler(&calls))

	for i := 0; i < 1000; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/accounts", nil))
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}
	assert.EqualValues(t, 1000, calls.Load())
}

func TestMiddleware_ErrorRateOneAlwaysFails(t *testing.T) {
	var calls atomic.Int64
	g := New(Config{LatencyMs: 0, ErrorRate: 1})
	h := g.Middleware(okHandler(&calls))

	for i := 0; i < 1000; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/token", nil))
		require.Equal(t, http.StatusInternalServerError, w.Code, "request %d", i)
		require.JSONEq(t, `{"error":"Simulated chaos error"}`, w.Body.String())
		require.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	}
	assert.Zero(t, calls.Load())
}

func TestWriteFailure_WireFormat(t *testing.T) {
	w := httptest.NewRecorder()
	WriteFailure(w)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, `{"error":"Simulated chaos error"}`, w.Body.String())
	assert.Equal(t, FailureResponse{Error: "Simulated chaos error"}, Failure())
}

// The failure fraction converges to the configured rate within a 5 sigma
// binomial interval.
func TestDecide_FailureRateConverges(t *testing.T) {
	const trials = 20000

	for i, p := range []float64{0.05, 0.25, 0.5, 0.9} {
		g := New(Config{ErrorRate: p}, WithSampler(NewSeededSampler(uint64(i+1))))

		failed := 0
		for n := 0; n < trials; n++ {
			outcome, err := g.Decide(context.Background())
			require.NoError(t, err)
			if outcome == OutcomeFailed {
				failed++
			}
		}

		sigma := math.Sqrt(p * (1 - p) / trials)
		assert.InDelta(t, p, float64(failed)/trials, 5*sigma, "error rate %v", p)
	}
}

func TestDecide_SampleStrictlyBelowRateFails(t *testing.T) {
	tests := []struct {
		name   string
		rate   float64
		sample float64
		want   Outcome
	}{
		{"below", 0.5, 0.49, OutcomeFailed},
		{"equal forwards", 0.5, 0.5, OutcomeForwarded},
		{"above", 0.5, 0.51, OutcomeForwarded},
		{"rate one fails zero sample", 1, 0, OutcomeFailed},
		{"rate one fails top sample", 1, math.Nextafter(1, 0), OutcomeFailed},
		{"rate zero forwards zero sample", 0, 0, OutcomeForwarded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(Config{ErrorRate: tt.rate}, WithSampler(fixedSampler(tt.sample)))
			outcome, err := g.Decide(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, outcome)
		})
	}
}

func TestDecide_ZeroRateDrawsNoSample(t *testing.T) {
	drawn := 0
	g := New(Config{}, WithSampler(SamplerFunc(func() float64 {
		drawn++
		return 0
	})))

	outcome, err := g.Decide(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeForwarded, outcome)
	assert.Zero(t, drawn)
}

func TestDecide_WaitsExactlyTheLatency(t *testing.T) {
	for _, latency := range []time.Duration{time.Millisecond, 100 * time.Millisecond, 2 * time.Second} {
		t.Run(latency.String(), func(t *testing.T) {
			ctx := testutil.Context(t, testutil.WaitShort)
			mClock := quartz.NewMock(t)
			trap := mClock.Trap().NewTimer(ClockTag, DelayTag)
			defer trap.Close()

			obs := &recordingObserver{}
			g := New(Config{LatencyMs: int(latency / time.Millisecond)},
				WithClock(mClock), WithObserver(obs))

			done := make(chan decision, 1)
			go func() {
				outcome, err := g.Decide(ctx)
				done <- decision{outcome, err}
			}()

			call := trap.MustWait(ctx)
			assert.Equal(t, latency, call.Duration)
			call.MustRelease(ctx)

			mClock.Advance(latency - time.Millisecond/2).MustWait(ctx)
			testutil.RequireNotReady(t, done)

			mClock.Advance(time.Millisecond / 2).MustWait(ctx)
			got := testutil.RequireReceive(ctx, t, done)
			require.NoError(t, got.err)
			assert.Equal(t, OutcomeForwarded, got.outcome)

			obs.mu.Lock()
			defer obs.mu.Unlock()
			assert.Equal(t, []Outcome{OutcomeForwarded}, obs.decisions)
			assert.Equal(t, []time.Duration{latency}, obs.delays)
		})
	}
}

func TestDecide_ConcurrentDelaysAreIndependent(t *testing.T) {
	ctx := testutil.Context(t, testutil.WaitShort)
	mClock := quartz.NewMock(t)
	trap := mClock.Trap().NewTimer(ClockTag, DelayTag)
	defer trap.Close()

	g := New(Config{LatencyMs: 200}, WithClock(mClock))

	done := make(chan decision, 2)
	for i := 0; i < 2; i++ {
		go func() {
			outcome, err := g.Decide(ctx)
			done <- decision{outcome, err}
		}()
	}

	// Both timers are armed before either fires.
	trap.MustWait(ctx).MustRelease(ctx)
	trap.MustWait(ctx).MustRelease(ctx)

	mClock.Advance(200 * time.Millisecond).MustWait(ctx)
	for i := 0; i < 2; i++ {
		got := testutil.RequireReceive(ctx, t, done)
		require.NoError(t, got.err)
		assert.Equal(t, OutcomeForwarded, got.outcome)
	}
}

func TestDecide_CancelDuringDelayAborts(t *testing.T) {
	ctx := testutil.Context(t, testutil.WaitShort)
	mClock := quartz.NewMock(t)
	trap := mClock.Trap().NewTimer(ClockTag, DelayTag)
	defer trap.Close()

	obs := &recordingObserver{}
	g := New(Config{LatencyMs: 500, ErrorRate: 1}, WithClock(mClock), WithObserver(obs))

	reqCtx, cancel := context.WithCancel(ctx)
	done := make(chan decision, 1)
	go func() {
		outcome, err := g.Decide(reqCtx)
		done <- decision{outcome, err}
	}()

	trap.MustWait(ctx).MustRelease(ctx)
	mClock.Advance(100 * time.Millisecond).MustWait(ctx)
	cancel()

	got := testutil.RequireReceive(ctx, t, done)
	assert.Equal(t, OutcomeAborted, got.outcome)
	assert.ErrorIs(t, got.err, context.Canceled)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, []Outcome{OutcomeAborted}, obs.decisions)
}

func TestMiddleware_AbortedRequestNeitherForwardsNorFails(t *testing.T) {
	ctx := testutil.Context(t, testutil.WaitShort)
	mClock := quartz.NewMock(t)
	trap := mClock.Trap().NewTimer(ClockTag, DelayTag)
	defer trap.Close()

	var calls atomic.Int64
	h := New(Config{LatencyMs: 1000, ErrorRate: 0.5}, WithClock(mClock)).Middleware(okHandler(&calls))

	reqCtx, cancel := context.WithCancel(ctx)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(reqCtx)

	done := make(chan struct{}, 1)
	go func() {
		h.ServeHTTP(w, req)
		done <- struct{}{}
	}()

	trap.MustWait(ctx).MustRelease(ctx)
	cancel()
	testutil.RequireReceive(ctx, t, done)

	assert.Zero(t, calls.Load())
	assert.Empty(t, w.Body.String())
	assert.False(t, w.Flushed)
}

func TestHandle_ExactlyOnce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rate := rapid.Float64Range(0, 1).Draw(t, "rate")
		sample := rapid.Float64Range(0, math.Nextafter(1, 0)).Draw(t, "sample")

		g := New(Config{ErrorRate: rate}, WithSampler(fixedSampler(sample)))

		var emitted, continued int
		var body FailureResponse
		outcome := g.Handle(context.Background(),
			func(resp FailureResponse) {
				emitted++
				body = resp
			},
			func() { continued++ },
		)

		if emitted+continued != 1 {
			t.Fatalf("emitted=%d continued=%d, want exactly one", emitted, continued)
		}
		wantFailed := sample < rate
		if (outcome == OutcomeFailed) != wantFailed || (emitted == 1) != wantFailed {
			t.Fatalf("rate=%v sample=%v outcome=%v emitted=%d", rate, sample, outcome, emitted)
		}
		if emitted == 1 && body.Error != FailureMessage {
			t.Fatalf("unexpected failure body %+v", body)
		}
	})
}

func TestHandle_AbortedCallsNeither(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := New(Config{LatencyMs: 50, ErrorRate: 1})
	outcome := g.Handle(ctx,
		func(FailureResponse) { t.Fatal("emit called") },
		func() { t.Fatal("next called") },
	)
	assert.Equal(t, OutcomeAborted, outcome)
}

func TestNew_InvalidConfigIsSanitized(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	g := New(Config{LatencyMs: -10, ErrorRate: 3}, WithLogger(zap.New(core)))

	assert.Equal(t, Config{}, g.Config())
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "Invalid chaos configuration")

	var calls atomic.Int64
	w := httptest.NewRecorder()
	g.Middleware(okHandler(&calls)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "forwarded", OutcomeForwarded.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "aborted", OutcomeAborted.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}

func TestSeededSamplerIsDeterministic(t *testing.T) {
	a, b := NewSeededSampler(7), NewSeededSampler(7)
	for i := 0; i < 100; i++ {
		x := a.Float64()
		require.Equal(t, x, b.Float64())
		require.GreaterOrEqual(t, x, 0.0)
		require.Less(t, x, 1.0)
	}
}
