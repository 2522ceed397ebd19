package httpapi

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/smart-mcp-proxy/chaosgate/internal/chaos"
	"github.com/smart-mcp-proxy/chaosgate/internal/config"
	"github.com/smart-mcp-proxy/chaosgate/internal/ginchaos"
	"github.com/smart-mcp-proxy/chaosgate/internal/observability"
)

// Options configures the HTTP surface of the host process
type Options struct {
	// Engine selects the router the gate is mounted on: config.EngineChi or
	// config.EngineGin
	Engine string
	// Upstream is the reverse proxy target. Nil serves the echo handler.
	Upstream *url.URL
	// ServiceName names the gin tracing middleware
	ServiceName string
}

// Server routes probe and metrics endpoints directly and every other
// request through the chaos gate
type Server struct {
	gate          *chaos.Gate
	logger        *zap.Logger
	observability *observability.Manager
	opts          Options
	router        *chi.Mux
	forward       http.Handler
}

// NewServer creates the HTTP handler. obs may be nil.
func NewServer(gate *chaos.Gate, logger *zap.Logger, obs *observability.Manager, opts Options) (*Server, error) {
	if opts.Engine == "" {
		opts.Engine = config.EngineChi
	}
	if opts.Engine != config.EngineChi && opts.Engine != config.EngineGin {
		return nil, fmt.Errorf("unknown engine %q", opts.Engine)
	}

	s := &Server{
		gate:          gate,
		logger:        logger,
		observability: obs,
		opts:          opts,
		router:        chi.NewRouter(),
		forward:       EchoHandler(),
	}
	if opts.Upstream != nil {
		s.forward = NewUpstreamProxy(opts.Upstream, logger)
	}

	s.setupRoutes()
	return s, nil
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestIDLoggerMiddleware(s.logger))
	s.router.Use(LoggingMiddleware)

	// Probes and metrics are never delayed or failed.
	if s.observability != nil {
		s.observability.SetupHTTPHandlers(s.router)
	} else {
		s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		})
	}

	s.router.Group(func(r chi.Router) {
		switch s.opts.Engine {
		case config.EngineGin:
			if s.observability != nil {
				r.Use(s.observability.MetricsMiddleware())
			}
			r.Handle("/*", s.ginEngine())
		default:
			if s.observability != nil {
				r.Use(s.observability.HTTPMiddleware())
			}
			r.Use(s.gate.Middleware)
			r.Handle("/*", s.forward)
		}
	})

	s.logger.Debug("HTTP routes configured",
		zap.String("engine", s.opts.Engine),
		zap.Bool("upstream", s.opts.Upstream != nil))
}

// ginEngine mounts the gate on a gin engine that owns the gated traffic.
// Tracing comes from otelgin so the span carries gin's route.
func (s *Server) ginEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	if s.observability != nil && s.observability.Tracing() != nil {
		engine.Use(otelgin.Middleware(s.opts.ServiceName))
	}
	engine.Use(ginchaos.Middleware(s.gate))
	engine.Any("/*path", gin.WrapH(s.forward))
	return engine
}
