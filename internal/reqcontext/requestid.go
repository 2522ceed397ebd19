// Package reqcontext carries per-request metadata through a context.
package reqcontext

import (
	"context"
	"regexp"

	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the HTTP header carrying the request ID in both
	// directions
	RequestIDHeader = "X-Request-Id"

	// MaxRequestIDLength is the longest client-supplied ID that is accepted
	MaxRequestIDLength = 128
)

// ContextKey is the type for context keys to avoid collisions
type ContextKey string

const (
	// RequestIDKey is the context key for request IDs
	RequestIDKey ContextKey = "request_id"

	// LoggerKey is the context key for the request-scoped logger
	LoggerKey ContextKey = "logger"
)

var requestIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidRequestID reports whether a client-supplied ID may be echoed back.
// Only alphanumerics, dashes and underscores are allowed, so the value is
// safe to place in headers and log lines.
func IsValidRequestID(id string) bool {
	if id == "" || len(id) > MaxRequestIDLength {
		return false
	}
	return requestIDPattern.MatchString(id)
}

// NewRequestID returns a fresh UUID v4 request ID
func NewRequestID() string {
	return uuid.NewString()
}

// ResolveRequestID keeps a valid client ID and replaces anything else with a
// fresh one.
func ResolveRequestID(provided string) string {
	if IsValidRequestID(provided) {
		return provided
	}
	return NewRequestID()
}

// WithRequestID stores the request ID in ctx
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID returns the request ID stored in ctx, or "" when absent
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
