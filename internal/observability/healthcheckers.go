package observability

import (
	"context"
	"fmt"
	"net"
	"net/url"
)

// UpstreamChecker reports readiness by opening a TCP connection to the
// upstream that forwarded requests are proxied to
type UpstreamChecker struct {
	name   string
	target *url.URL
	dialer net.Dialer
}

// NewUpstreamChecker creates a readiness checker for the given upstream URL
func NewUpstreamChecker(name string, target *url.URL) *UpstreamChecker {
	return &UpstreamChecker{
		name:   name,
		target: target,
	}
}

// Name returns the name of the checker
func (uc *UpstreamChecker) Name() string {
	return uc.name
}

// ReadinessCheck dials the upstream host
func (uc *UpstreamChecker) ReadinessCheck(ctx context.Context) error {
	if uc.target == nil || uc.target.Host == "" {
		return fmt.Errorf("upstream is not configured")
	}

	conn, err := uc.dialer.DialContext(ctx, "tcp", hostPort(uc.target))
	if err != nil {
		return fmt.Errorf("upstream %s unreachable: %w", uc.target.Host, err)
	}
	return conn.Close()
}

func hostPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	port := "80"
	if u.Scheme == "https" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// FuncChecker adapts a function to both checker interfaces
type FuncChecker struct {
	name  string
	check func(context.Context) error
}

// NewFuncChecker creates a checker backed by fn
func NewFuncChecker(name string, fn func(context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, check: fn}
}

// Name returns the name of the checker
func (fc *FuncChecker) Name() string {
	return fc.name
}

// HealthCheck runs the wrapped function
func (fc *FuncChecker) HealthCheck(ctx context.Context) error {
	return fc.check(ctx)
}

// ReadinessCheck runs the wrapped function
func (fc *FuncChecker) ReadinessCheck(ctx context.Context) error {
	return fc.check(ctx)
}
