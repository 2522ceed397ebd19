package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/smart-mcp-proxy/chaosgate/internal/chaos"
)

// routeUnmatched labels requests that no chi route pattern was recorded for
const routeUnmatched = "other"

// MetricsManager manages Prometheus metrics
type MetricsManager struct {
	logger   *zap.SugaredLogger
	registry *prometheus.Registry

	uptime       prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	chaosDecisions *prometheus.CounterVec
	chaosDelay     prometheus.Histogram
	chaosLatency   prometheus.Gauge
	chaosErrorRate prometheus.Gauge
}

// NewMetricsManager creates a new metrics manager with its own registry
func NewMetricsManager(logger *zap.SugaredLogger) *MetricsManager {
	mm := &MetricsManager{
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	mm.initMetrics()
	mm.registerMetrics()

	return mm
}

// initMetrics initializes all Prometheus metrics
func (mm *MetricsManager) initMetrics() {
	mm.uptime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chaosgate_uptime_seconds",
		Help: "Time since the application started",
	})

	mm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaosgate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	mm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chaosgate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds, including injected delay",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)

	mm.chaosDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaosgate_decisions_total",
			Help: "Total number of chaos gate decisions by outcome",
		},
		[]string{"outcome"},
	)

	mm.chaosDelay = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chaosgate_injected_delay_seconds",
		Help:    "Delay injected by the chaos gate before each decision",
		Buckets: []float64{0, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	mm.chaosLatency = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chaosgate_config_latency_seconds",
		Help: "Configured chaos latency",
	})

	mm.chaosErrorRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chaosgate_config_error_rate",
		Help: "Configured chaos error rate",
	})
}

// registerMetrics registers all metrics with the registry
func (mm *MetricsManager) registerMetrics() {
	mm.registry.MustRegister(
		mm.uptime,
		mm.httpRequests,
		mm.httpDuration,
		mm.chaosDecisions,
		mm.chaosDelay,
		mm.chaosLatency,
		mm.chaosErrorRate,
	)

	mm.registry.MustRegister(collectors.NewGoCollector())
	mm.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler returns an HTTP handler for the /metrics endpoint
func (mm *MetricsManager) Handler() http.Handler {
	return promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (mm *MetricsManager) Registry() *prometheus.Registry {
	return mm.registry
}

// SetUptime sets the uptime metric
func (mm *MetricsManager) SetUptime(startTime time.Time) {
	mm.uptime.Set(time.Since(startTime).Seconds())
}

// SetChaosConfig publishes the effective chaos configuration
func (mm *MetricsManager) SetChaosConfig(cfg chaos.Config) {
	mm.chaosLatency.Set(cfg.Latency().Seconds())
	mm.chaosErrorRate.Set(cfg.ErrorRate)
}

// ObserveDecision records one gate decision. It implements chaos.Observer.
func (mm *MetricsManager) ObserveDecision(outcome chaos.Outcome, delay time.Duration) {
	mm.chaosDecisions.WithLabelValues(outcome.String()).Inc()
	mm.chaosDelay.Observe(delay.Seconds())
}

// RecordHTTPRequest records an HTTP request
func (mm *MetricsManager) RecordHTTPRequest(method, route string, code int, duration time.Duration) {
	status := strconv.Itoa(code)
	mm.httpRequests.WithLabelValues(method, route, status).Inc()
	mm.httpDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// HTTPMiddleware returns middleware that records HTTP metrics. Requests are
// labelled by chi route pattern so proxied paths do not explode cardinality.
func (mm *MetricsManager) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			mm.RecordHTTPRequest(r.Method, routePattern(r), ww.status(r), time.Since(start))
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return routeUnmatched
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// status is the code to report for r. A request whose client went away
// before anything was written is reported as 499 rather than the implicit 200.
func (rw *statusRecorder) status(r *http.Request) int {
	if !rw.wroteHeader && r.Context().Err() != nil {
		return chaos.StatusClientClosedRequest
	}
	return rw.statusCode
}

// Unwrap lets http.ResponseController reach the underlying writer
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
