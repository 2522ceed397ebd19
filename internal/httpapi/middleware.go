package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/smart-mcp-proxy/chaosgate/internal/chaos"
	"github.com/smart-mcp-proxy/chaosgate/internal/reqcontext"
)

// RequestIDMiddleware extracts or generates a request ID for each request.
// A valid client X-Request-Id is kept, anything else is replaced with a new
// UUID. The ID is stored in the request context and echoed in the response
// header before the next handler runs, so it is present even on chaos
// failures.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := reqcontext.ResolveRequestID(r.Header.Get(reqcontext.RequestIDHeader))

		w.Header().Set(reqcontext.RequestIDHeader, requestID)
		ctx := reqcontext.WithRequestID(r.Context(), requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDLoggerMiddleware creates a logger with the request ID field and adds it to context.
// This middleware should be registered AFTER RequestIDMiddleware.
func RequestIDLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestLogger := logger.With(zap.String("request_id", reqcontext.GetRequestID(ctx)))
			next.ServeHTTP(w, r.WithContext(WithLogger(ctx, requestLogger)))
		})
	}
}

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, reqcontext.LoggerKey, logger)
}

// GetLogger retrieves the logger from context, or returns a nop logger if not found
func GetLogger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return zap.NewNop()
	}
	if logger, ok := ctx.Value(reqcontext.LoggerKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return zap.NewNop()
}

// LoggingMiddleware writes one access log line per request using the
// request-scoped logger. Server errors, including synthetic chaos failures,
// are logged at warn level.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(ww, r)

		status := ww.statusCode
		if r.Context().Err() != nil && !ww.wroteHeader {
			status = chaos.StatusClientClosedRequest
		}

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("query", r.URL.RawQuery),
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("user_agent", r.UserAgent()),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		}

		logger := GetLogger(r.Context())
		switch {
		case status == chaos.StatusClientClosedRequest:
			logger.Debug("HTTP request abandoned by client", fields...)
		case status >= http.StatusInternalServerError:
			logger.Warn("HTTP request completed with server error", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher interface by delegating to the underlying ResponseWriter
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
