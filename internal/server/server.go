// Package server runs the chaosgate HTTP listener and owns its lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/smart-mcp-proxy/chaosgate/internal/chaos"
	"github.com/smart-mcp-proxy/chaosgate/internal/config"
	"github.com/smart-mcp-proxy/chaosgate/internal/httpapi"
	"github.com/smart-mcp-proxy/chaosgate/internal/observability"
)

// Server phases
const (
	PhaseStarting = "Starting"
	PhaseReady    = "Ready"
	PhaseStopped  = "Stopped"
	PhaseError    = "Error"
)

// Status represents the current status of the server
type Status struct {
	Phase       string       `json:"phase"`
	Message     string       `json:"message"`
	Listen      string       `json:"listen"`
	Chaos       chaos.Config `json:"chaos"`
	LastUpdated time.Time    `json:"last_updated"`
}

// Server wraps the gated HTTP handler with its listener and observability
type Server struct {
	config        *config.Config
	logger        *zap.Logger
	gate          *chaos.Gate
	observability *observability.Manager
	handler       http.Handler

	httpServer *http.Server
	listener   net.Listener
	running    bool
	shutdown   bool
	mu         sync.RWMutex

	// baseCtx parents every request context. It is cancelled when graceful
	// shutdown times out so requests still sleeping in the gate abort.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	status   Status
	statusMu sync.RWMutex

	obsCloseOnce sync.Once
	obsCloseErr  error
}

// NewServer creates a server for cfg with the resolved chaos configuration
func NewServer(cfg *config.Config, chaosCfg chaos.Config, logger *zap.Logger, version string) (*Server, error) {
	obs, err := observability.NewManager(logger.Sugar(), observability.FromConfig(cfg, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	gate := chaos.New(chaosCfg,
		chaos.WithLogger(logger),
		chaos.WithObserver(obs.Observer()))
	obs.PublishChaosConfig(gate.Config())

	var upstream *url.URL
	if cfg.Upstream != "" {
		upstream, err = url.Parse(cfg.Upstream)
		if err != nil {
			return nil, fmt.Errorf("invalid upstream %q: %w", cfg.Upstream, err)
		}
		obs.RegisterReadinessChecker(observability.NewUpstreamChecker("upstream", upstream))
	}

	api, err := httpapi.NewServer(gate, logger, obs, httpapi.Options{
		Engine:      cfg.Engine,
		Upstream:    upstream,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		return nil, err
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	s := &Server{
		config:        cfg,
		logger:        logger,
		gate:          gate,
		observability: obs,
		handler:       api,
		baseCtx:       baseCtx,
		baseCancel:    baseCancel,
	}

	obs.RegisterHealthChecker(observability.NewFuncChecker("http-server", func(context.Context) error {
		if !s.IsRunning() {
			return errors.New("HTTP server is not serving")
		}
		return nil
	}))

	s.updateStatus(PhaseStarting, "Server is initializing")
	return s, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Gate returns the chaos gate in front of the forwarded traffic
func (s *Server) Gate() *chaos.Gate {
	return s.gate
}

// Start binds the listener and serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Listen binds the configured address without serving yet
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("server is already listening on %s", s.listener.Addr())
	}

	ln, err := listen(s.config.Listen)
	if err != nil {
		s.updateStatus(PhaseError, err.Error())
		return err
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or "" before Listen
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve accepts connections on the bound listener until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.listener == nil {
		s.mu.Unlock()
		return errors.New("server is not listening")
	}
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
		ErrorLog:          zap.NewStdLog(s.logger.Named("http")),
	}
	s.running = true
	ln := s.listener
	httpServer := s.httpServer
	s.mu.Unlock()

	chaosCfg := s.gate.Config()
	s.logger.Info("Starting chaosgate HTTP server",
		zap.String("address", ln.Addr().String()),
		zap.String("engine", s.config.Engine),
		zap.String("upstream", s.config.Upstream),
		zap.Int("latency_ms", chaosCfg.LatencyMs),
		zap.Float64("error_rate", chaosCfg.ErrorRate),
		zap.Bool("chaos_enabled", chaosCfg.Enabled()))
	s.updateStatus(PhaseReady, "Serving on "+ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Error("HTTP server error", zap.Error(err))
		s.baseCancel()
		if closeErr := s.closeObservability(); closeErr != nil {
			s.logger.Warn("Failed to close observability", zap.Error(closeErr))
		}
		s.updateStatus(PhaseError, fmt.Sprintf("Server failed: %v", err))
		return err
	case <-ctx.Done():
		s.logger.Info("Shutdown requested", zap.Error(context.Cause(ctx)))
	}

	err := s.Shutdown()
	<-errCh
	return err
}

// Shutdown stops accepting connections and waits up to the configured
// timeout for in-flight requests. Requests still pending after that are
// aborted.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	httpServer := s.httpServer
	ln := s.listener
	s.mu.Unlock()

	defer s.baseCancel()

	var shutdownErr error
	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			s.logger.Warn("Graceful shutdown timed out, aborting pending requests", zap.Error(err))
			s.baseCancel()
			shutdownErr = httpServer.Close()
		}
	} else if ln != nil {
		shutdownErr = ln.Close()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if err := s.closeObservability(); err != nil && shutdownErr == nil {
		shutdownErr = err
	}

	s.updateStatus(PhaseStopped, "Server stopped")
	s.logger.Info("HTTP server stopped")
	return shutdownErr
}

// closeObservability flushes the tracing exporter once, whichever path stops
// the server first.
func (s *Server) closeObservability() error {
	s.obsCloseOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.obsCloseErr = s.observability.Close(ctx)
	})
	return s.obsCloseErr
}

// IsRunning reports whether the HTTP server is accepting connections
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// GetStatus returns the current server status
func (s *Server) GetStatus() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

func (s *Server) updateStatus(phase, message string) {
	s.statusMu.Lock()
	s.status = Status{
		Phase:       phase,
		Message:     message,
		Listen:      s.config.Listen,
		Chaos:       s.gate.Config(),
		LastUpdated: time.Now(),
	}
	s.statusMu.Unlock()

	s.logger.Debug("Status updated", zap.String("phase", phase), zap.String("message", message))
}
