package server

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// PortInUseError indicates that the requested listen address is already occupied.
type PortInUseError struct {
	Address string
	Err     error
}

func (e *PortInUseError) Error() string {
	return fmt.Sprintf("port %s is already in use", e.Address)
}

func (e *PortInUseError) Unwrap() error {
	return e.Err
}

// wsaeAddrInUse is WSAEADDRINUSE, reported by Windows instead of EADDRINUSE
const wsaeAddrInUse = syscall.Errno(10048)

// isAddrInUseError determines whether an error represents an address-in-use condition.
func isAddrInUseError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, syscall.EADDRINUSE) || errors.Is(err, wsaeAddrInUse) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err != err && isAddrInUseError(opErr.Err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "address already in use") ||
		strings.Contains(msg, "only one usage of each socket address")
}

// listen binds addr and maps an occupied port to PortInUseError
func listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if isAddrInUseError(err) {
			return nil, &PortInUseError{Address: addr, Err: err}
		}
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ln, nil
}
