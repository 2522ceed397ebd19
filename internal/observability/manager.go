package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/smart-mcp-proxy/chaosgate/internal/chaos"
	"github.com/smart-mcp-proxy/chaosgate/internal/config"
)

// Config holds configuration for observability features
type Config struct {
	Health  HealthConfig  `json:"health"`
	Metrics MetricsConfig `json:"metrics"`
	Tracing TracingConfig `json:"tracing"`
}

// HealthConfig holds configuration for health checks
type HealthConfig struct {
	Enabled bool          `json:"enabled"`
	Timeout time.Duration `json:"timeout"`
}

// MetricsConfig holds configuration for metrics
type MetricsConfig struct {
	Enabled bool `json:"enabled"`
}

// FromConfig derives the observability settings from the host configuration
func FromConfig(cfg *config.Config, version string) Config {
	return Config{
		Health: HealthConfig{
			Enabled: true,
			Timeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: cfg.Metrics.Enabled,
		},
		Tracing: TracingConfig{
			Enabled:        cfg.Tracing.Enabled,
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: version,
			OTLPEndpoint:   cfg.Tracing.Endpoint,
			SampleRate:     cfg.Tracing.SampleRate,
		},
	}
}

// Manager coordinates all observability features
type Manager struct {
	logger  *zap.SugaredLogger
	config  Config
	health  *HealthManager
	metrics *MetricsManager
	tracing *TracingManager

	startTime time.Time
}

// NewManager creates a new observability manager
func NewManager(logger *zap.SugaredLogger, config Config) (*Manager, error) {
	manager := &Manager{
		logger:    logger,
		config:    config,
		startTime: time.Now(),
	}

	if config.Health.Enabled {
		manager.health = NewHealthManager(logger)
		manager.health.SetTimeout(config.Health.Timeout)
		logger.Debug("Health checks enabled")
	}

	if config.Metrics.Enabled {
		manager.metrics = NewMetricsManager(logger)
		logger.Debug("Prometheus metrics enabled")
	}

	if config.Tracing.Enabled {
		var err error
		manager.tracing, err = NewTracingManager(logger, config.Tracing)
		if err != nil {
			return nil, err
		}
	}

	return manager, nil
}

// Health returns the health manager
func (m *Manager) Health() *HealthManager {
	return m.health
}

// Metrics returns the metrics manager
func (m *Manager) Metrics() *MetricsManager {
	return m.metrics
}

// Tracing returns the tracing manager
func (m *Manager) Tracing() *TracingManager {
	return m.tracing
}

// Observer returns the chaos decision observer, or nil when metrics are off
func (m *Manager) Observer() chaos.Observer {
	if m.metrics == nil {
		return nil
	}
	return m.metrics
}

// PublishChaosConfig exposes the effective chaos configuration as gauges
func (m *Manager) PublishChaosConfig(cfg chaos.Config) {
	if m.metrics != nil {
		m.metrics.SetChaosConfig(cfg)
	}
}

// RegisterHealthChecker registers a health checker
func (m *Manager) RegisterHealthChecker(checker HealthChecker) {
	if m.health != nil {
		m.health.AddHealthChecker(checker)
	}
}

// RegisterReadinessChecker registers a readiness checker
func (m *Manager) RegisterReadinessChecker(checker ReadinessChecker) {
	if m.health != nil {
		m.health.AddReadinessChecker(checker)
	}
}

// SetupHTTPHandlers mounts /healthz, /readyz and /metrics on r
func (m *Manager) SetupHTTPHandlers(r chi.Router) {
	if m.health != nil {
		r.Get("/healthz", m.health.HealthzHandler())
		r.Get("/readyz", m.health.ReadyzHandler())
	}

	if m.metrics != nil {
		r.Handle("/metrics", m.metricsHandler())
	}
}

// metricsHandler refreshes the uptime gauge before each scrape
func (m *Manager) metricsHandler() http.Handler {
	h := m.metrics.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.UpdateMetrics()
		h.ServeHTTP(w, r)
	})
}

// HTTPMiddleware returns combined HTTP middleware for observability
func (m *Manager) HTTPMiddleware() func(http.Handler) http.Handler {
	middlewares := make([]func(http.Handler) http.Handler, 0, 2)

	if m.metrics != nil {
		middlewares = append(middlewares, m.metrics.HTTPMiddleware())
	}

	if m.tracing != nil {
		middlewares = append(middlewares, m.tracing.HTTPMiddleware())
	}

	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// MetricsMiddleware returns only the metrics middleware, for handlers that
// bring their own tracing
func (m *Manager) MetricsMiddleware() func(http.Handler) http.Handler {
	if m.metrics == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return m.metrics.HTTPMiddleware()
}

// UpdateMetrics refreshes gauges that are derived from process state
func (m *Manager) UpdateMetrics() {
	if m.metrics == nil {
		return
	}
	m.metrics.SetUptime(m.startTime)
}

// Close gracefully shuts down observability components
func (m *Manager) Close(ctx context.Context) error {
	if m.tracing != nil {
		if err := m.tracing.Close(ctx); err != nil {
			m.logger.Errorw("Failed to close tracing manager", "error", err)
			return err
		}
	}
	return nil
}

// IsHealthy returns true if all health checks pass
func (m *Manager) IsHealthy(ctx context.Context) bool {
	if m.health == nil {
		return true
	}
	return m.health.IsHealthy(ctx)
}

// IsReady returns true if all readiness checks pass
func (m *Manager) IsReady(ctx context.Context) bool {
	if m.health == nil {
		return true
	}
	return m.health.IsReady(ctx)
}
