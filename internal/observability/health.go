// Package observability provides health checks, metrics, and tracing for the
// chaosgate host process.
package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusReady     = "ready"
	statusNotReady  = "not_ready"
)

// HealthChecker defines an interface for components that can report their health status
type HealthChecker interface {
	// HealthCheck returns nil if healthy, error if unhealthy
	HealthCheck(ctx context.Context) error
	Name() string
}

// ReadinessChecker defines an interface for components that can report their readiness status
type ReadinessChecker interface {
	// ReadinessCheck returns nil if ready, error if not ready
	ReadinessCheck(ctx context.Context) error
	Name() string
}

// HealthStatus represents the status of a single component
type HealthStatus struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthResponse is the body of /healthz and /readyz
type HealthResponse struct {
	Status     string         `json:"status"`
	Timestamp  time.Time      `json:"timestamp"`
	Components []HealthStatus `json:"components"`
}

// HealthManager manages health and readiness checks
type HealthManager struct {
	logger            *zap.SugaredLogger
	healthCheckers    []HealthChecker
	readinessCheckers []ReadinessChecker
	timeout           time.Duration
}

// NewHealthManager creates a new health manager
func NewHealthManager(logger *zap.SugaredLogger) *HealthManager {
	return &HealthManager{
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// AddHealthChecker registers a health checker
func (hm *HealthManager) AddHealthChecker(checker HealthChecker) {
	hm.healthCheckers = append(hm.healthCheckers, checker)
}

// AddReadinessChecker registers a readiness checker
func (hm *HealthManager) AddReadinessChecker(checker ReadinessChecker) {
	hm.readinessCheckers = append(hm.readinessCheckers, checker)
}

// SetTimeout sets the timeout for a round of checks
func (hm *HealthManager) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		hm.timeout = timeout
	}
}

// HealthzHandler returns an HTTP handler for the /healthz endpoint
func (hm *HealthManager) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), hm.timeout)
		defer cancel()

		hm.writeJSONResponse(w, hm.CheckHealth(ctx), statusHealthy)
	}
}

// ReadyzHandler returns an HTTP handler for the /readyz endpoint
func (hm *HealthManager) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), hm.timeout)
		defer cancel()

		hm.writeJSONResponse(w, hm.CheckReadiness(ctx), statusReady)
	}
}

// CheckHealth runs every health checker
func (hm *HealthManager) CheckHealth(ctx context.Context) HealthResponse {
	checks := make([]namedCheck, 0, len(hm.healthCheckers))
	for _, c := range hm.healthCheckers {
		checks = append(checks, namedCheck{name: c.Name(), run: c.HealthCheck})
	}
	return hm.run(ctx, checks, statusHealthy, statusUnhealthy, "Health check failed")
}

// CheckReadiness runs every readiness checker
func (hm *HealthManager) CheckReadiness(ctx context.Context) HealthResponse {
	checks := make([]namedCheck, 0, len(hm.readinessCheckers))
	for _, c := range hm.readinessCheckers {
		checks = append(checks, namedCheck{name: c.Name(), run: c.ReadinessCheck})
	}
	return hm.run(ctx, checks, statusReady, statusNotReady, "Readiness check failed")
}

type namedCheck struct {
	name string
	run  func(context.Context) error
}

func (hm *HealthManager) run(ctx context.Context, checks []namedCheck, okStatus, failStatus, failMsg string) HealthResponse {
	response := HealthResponse{
		Status:     okStatus,
		Timestamp:  time.Now(),
		Components: make([]HealthStatus, 0, len(checks)),
	}

	for _, check := range checks {
		start := time.Now()
		status := HealthStatus{Name: check.name, Status: okStatus}

		if err := check.run(ctx); err != nil {
			status.Status = failStatus
			status.Error = err.Error()
			response.Status = failStatus
			hm.logger.Warnw(failMsg, "component", check.name, "error", err)
		}

		status.Latency = time.Since(start).String()
		response.Components = append(response.Components, status)
	}

	return response
}

func (hm *HealthManager) writeJSONResponse(w http.ResponseWriter, response HealthResponse, okStatus string) {
	statusCode := http.StatusOK
	if response.Status != okStatus {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		hm.logger.Errorw("Failed to encode health response", "error", err)
	}
}

// IsHealthy returns true if all health checks pass
func (hm *HealthManager) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, hm.timeout)
	defer cancel()
	return hm.CheckHealth(ctx).Status == statusHealthy
}

// IsReady returns true if all readiness checks pass
func (hm *HealthManager) IsReady(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, hm.timeout)
	defer cancel()
	return hm.CheckReadiness(ctx).Status == statusReady
}
