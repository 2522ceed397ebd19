package logs

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const appName = "chaosgate"

// GetLogDir returns the standard log directory for the current OS
func GetLogDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, appName, "logs"), nil
		}
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Logs", appName), nil
		}
	case "linux":
		// XDG_STATE_HOME, falling back to ~/.local/state
		stateDir := os.Getenv("XDG_STATE_HOME")
		if stateDir == "" {
			if home, err := os.UserHomeDir(); err == nil {
				stateDir = filepath.Join(home, ".local", "state")
			}
		}
		if stateDir != "" {
			return filepath.Join(stateDir, appName, "logs"), nil
		}
	}
	return getDefaultLogDir(), nil
}

// getDefaultLogDir returns a fallback log directory
func getDefaultLogDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName, "logs")
	}
	return filepath.Join(homeDir, "."+appName, "logs")
}

// GetLogFilePathWithDir returns the full path for a log file in logDir,
// creating the directory if needed. An empty logDir selects GetLogDir.
func GetLogFilePathWithDir(logDir, filename string) (string, error) {
	if logDir == "" {
		dir, err := GetLogDir()
		if err != nil {
			return "", err
		}
		logDir = dir
	}

	if strings.HasPrefix(logDir, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		logDir = filepath.Join(homeDir, logDir[2:])
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(logDir, filename), nil
}
