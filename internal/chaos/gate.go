package chaos

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/quartz"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/smart-mcp-proxy/chaosgate/internal/reqcontext"
)

// FailureMessage is the error text of the synthetic failure response.
const FailureMessage = "Simulated chaos error"

// Timer tags, used by tests to trap the delay timer on a mock clock.
const (
	ClockTag = "chaos"
	DelayTag = "delay"
)

// failureBody is the wire-exact encoding of Failure().
var failureBody = []byte(`{"error":"Simulated chaos error"}`)

// StatusClientClosedRequest is nginx's status for a request the client
// abandoned before a response was written. It is what an aborted decision
// is reported as.
const StatusClientClosedRequest = 499

// FailureResponse is the JSON body of the synthetic failure.
type FailureResponse struct {
	Error string `json:"error"`
}

// Failure returns the synthetic failure body.
func Failure() FailureResponse {
	return FailureResponse{Error: FailureMessage}
}

// WriteFailure writes the synthetic 500 response to w.
func WriteFailure(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write(failureBody)
}

// Observer is notified of every decision the gate makes.
type Observer interface {
	ObserveDecision(outcome Outcome, delay time.Duration)
}

// Gate decides per request whether to delay and fail it. A Gate is safe for
// concurrent use; its configuration never changes after New.
type Gate struct {
	cfg      Config
	clock    quartz.Clock
	sampler  Sampler
	logger   *zap.Logger
	observer Observer
}

// Option customizes a Gate.
type Option func(*Gate)

// WithClock sets the clock used for the injected delay.
func WithClock(clock quartz.Clock) Option {
	return func(g *Gate) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithSampler sets the random source used for the failure decision.
func WithSampler(sampler Sampler) Option {
	return func(g *Gate) {
		if sampler != nil {
			g.sampler = sampler
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger.Named("chaos")
		}
	}
}

// WithObserver registers an observer for decisions.
func WithObserver(observer Observer) Option {
	return func(g *Gate) {
		g.observer = observer
	}
}

// New creates a Gate. It never fails: an out-of-range field in cfg is reset
// to its inert default and a warning is logged.
func New(cfg Config, opts ...Option) *Gate {
	g := &Gate{
		cfg:     cfg,
		clock:   quartz.NewReal(),
		sampler: DefaultSampler(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if err := cfg.Validate(); err != nil {
		g.cfg = cfg.sanitized()
		g.logger.Warn("Invalid chaos configuration, using inert defaults for offending fields",
			zap.Error(err),
			zap.Stringer("effective", g.cfg))
	}

	return g
}

// Config returns the effective configuration.
func (g *Gate) Config() Config {
	return g.cfg
}

// Decide suspends the caller for the configured latency and then draws the
// failure decision. If ctx ends while the delay is pending the timer is
// stopped and OutcomeAborted is returned with the context error.
func (g *Gate) Decide(ctx context.Context) (Outcome, error) {
	start := g.clock.Now()

	if err := g.wait(ctx); err != nil {
		g.record(ctx, OutcomeAborted, g.clock.Since(start))
		return OutcomeAborted, err
	}

	outcome := OutcomeForwarded
	if g.cfg.ErrorRate > 0 && g.sampler.Float64() < g.cfg.ErrorRate {
		outcome = OutcomeFailed
	}

	g.record(ctx, outcome, g.clock.Since(start))
	return outcome, nil
}

func (g *Gate) wait(ctx context.Context) error {
	if g.cfg.LatencyMs == 0 {
		return nil
	}

	timer := g.clock.NewTimer(g.cfg.Latency(), ClockTag, DelayTag)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (g *Gate) record(ctx context.Context, outcome Outcome, delay time.Duration) {
	if g.observer != nil {
		g.observer.ObserveDecision(outcome, delay)
	}

	trace.SpanFromContext(ctx).AddEvent("chaos.decision", trace.WithAttributes(
		attribute.String("chaos.outcome", outcome.String()),
		attribute.Int64("chaos.delay_ms", delay.Milliseconds()),
	))

	if ce := g.logger.Check(zap.DebugLevel, "Chaos decision"); ce != nil {
		ce.Write(
			zap.String("outcome", outcome.String()),
			zap.Duration("delay", delay),
			zap.String("request_id", reqcontext.GetRequestID(ctx)))
	}
}

// Handle runs the gate in continuation style. Exactly one of emit or next is
// called, except when the request is aborted, in which case neither is.
func (g *Gate) Handle(ctx context.Context, emit func(FailureResponse), next func()) Outcome {
	outcome, _ := g.Decide(ctx)
	switch outcome {
	case OutcomeFailed:
		if emit != nil {
			emit(Failure())
		}
	case OutcomeForwarded:
		if next != nil {
			next()
		}
	}
	return outcome
}

// Middleware wraps next with the gate for net/http and chi routers.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outcome, err := g.Decide(r.Context())
		switch outcome {
		case OutcomeFailed:
			WriteFailure(w)
		case OutcomeForwarded:
			next.ServeHTTP(w, r)
		default:
			g.logger.Debug("Request ended during chaos delay",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err))
		}
	})
}
