package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.uber.org/zap"

	"github.com/smart-mcp-proxy/chaosgate/internal/reqcontext"
)

// EchoResponse is the body returned by the built-in handler when no
// upstream is configured
type EchoResponse struct {
	Status    string `json:"status"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	RequestID string `json:"request_id"`
}

// EchoHandler answers every forwarded request with 200 and a short JSON
// description of the request
func EchoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, EchoResponse{
			Status:    "ok",
			Method:    r.Method,
			Path:      r.URL.Path,
			RequestID: reqcontext.GetRequestID(r.Context()),
		})
	})
}

// UpstreamError is the body written when the upstream cannot be reached
type UpstreamError struct {
	Error string `json:"error"`
}

// NewUpstreamProxy returns a reverse proxy that forwards requests to target.
// The request ID travels upstream in the X-Request-Id header.
func NewUpstreamProxy(target *url.URL, logger *zap.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			if id := reqcontext.GetRequestID(pr.In.Context()); id != "" {
				pr.Out.Header.Set(reqcontext.RequestIDHeader, id)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if errors.Is(err, context.Canceled) {
				GetLogger(r.Context()).Debug("Client went away before upstream replied", zap.Error(err))
				return
			}
			GetLogger(r.Context()).Warn("Upstream request failed",
				zap.String("upstream", target.Redacted()),
				zap.Error(err))
			writeJSON(w, http.StatusBadGateway, UpstreamError{Error: "Upstream unavailable"})
		},
		ErrorLog: zap.NewStdLog(logger.Named("proxy")),
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
