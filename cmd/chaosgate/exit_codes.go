package main

import (
	"errors"

	"github.com/smart-mcp-proxy/chaosgate/internal/server"
)

// Exit codes let supervisors tell a busy port from a bad configuration

const (
	// ExitCodeSuccess indicates normal program termination
	ExitCodeSuccess = 0

	// ExitCodeGeneralError indicates a generic error (default)
	ExitCodeGeneralError = 1

	// ExitCodePortConflict indicates the listen port is already in use
	ExitCodePortConflict = 2

	// ExitCodeConfigError indicates configuration loading or validation failed
	ExitCodeConfigError = 4
)

// exitCodeFor maps a command error to a process exit code
func exitCodeFor(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var portErr *server.PortInUseError
	switch {
	case errors.As(err, &portErr):
		return ExitCodePortConflict
	case isConfigError(err):
		return ExitCodeConfigError
	default:
		return ExitCodeGeneralError
	}
}

// exitCodeDescription returns a human-readable description of the exit code
func exitCodeDescription(code int) string {
	switch code {
	case ExitCodeSuccess:
		return "Success"
	case ExitCodeGeneralError:
		return "General error"
	case ExitCodePortConflict:
		return "Port conflict - address already in use"
	case ExitCodeConfigError:
		return "Configuration error"
	default:
		return "Unknown error"
	}
}
