// Package osext wraps the OS specific process handling browserctl needs:
// terminating a stale browser by name and detaching a spawned one.
package osext

import (
	"errors"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrNoProcessName is returned when there is no name to terminate.
var ErrNoProcessName = errors.New("no process name given")

// TerminateByName kills every process running the executable called name.
// Termination is best effort: callers are free to ignore the error, which
// is also returned when no such process is running.
//
// It is a variable so that tests can replace it and keep real browsers
// running.
var TerminateByName = func(name string) error { //nolint:gochecknoglobals
	if strings.TrimSpace(name) == "" {
		return ErrNoProcessName
	}
	return terminateByName(name)
}

// ProcessName returns the name the OS lists a process started from path
// under, e.g. "Google Chrome" or "chrome.exe". On Linux the google-chrome
// launchers are shell scripts that exec a binary named chrome.
func ProcessName(path string) string {
	return processName(path, runtime.GOOS)
}

func processName(path, goos string) string {
	name := filepath.Base(path)
	switch goos {
	case "windows":
		if !strings.HasSuffix(strings.ToLower(name), ".exe") {
			name += ".exe"
		}
	case "darwin":
	default:
		if name == "google-chrome" || strings.HasPrefix(name, "google-chrome-") {
			name = "chrome"
		}
	}
	return name
}
