package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Context returns a context that is canceled after timeout or when the test
// ends, whichever comes first.
func Context(t testing.TB, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// WaitShort is the default timeout for operations that should finish quickly.
const WaitShort = 10 * time.Second

// RequireReceive receives a value from c, failing the test if ctx expires or
// c is closed first.
//
// Safety: Must only be called from the Go routine that created `t`.
func RequireReceive[A any](ctx context.Context, t testing.TB, c <-chan A) A {
	t.Helper()
	select {
	case <-ctx.Done():
		require.Fail(t, "RequireReceive: context expired")
		var a A
		return a
	case a, ok := <-c:
		if !ok {
			require.Fail(t, "RequireReceive: channel closed")
		}
		return a
	}
}

// RequireNotReady fails the test if c already holds a value.
func RequireNotReady[A any](t testing.TB, c <-chan A) {
	t.Helper()
	select {
	case a := <-c:
		require.Failf(t, "RequireNotReady", "unexpected value %v", a)
	default:
	}
}
