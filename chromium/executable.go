// Package chromium launches the Chrome browser instance an agent drives,
// bound to the agent's remote debugging port.
package chromium

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/agenttools/browserctl/env"
)

var (
	// ErrChromeNotInstalled is returned when no browser executable is found.
	ErrChromeNotInstalled = errors.New("Chrome/Chromium is not installed")

	// ErrChromeNotFoundAtPath is returned when the configured executable
	// path does not point to an executable.
	ErrChromeNotFoundAtPath = errors.New("Chrome/Chromium not found at path")
)

// executableCandidates returns where the browser is looked for on goos, in
// order of preference.
func executableCandidates(goos string, lookup env.LookupFunc) []string {
	switch goos {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Google Chrome Canary.app/Contents/MacOS/Google Chrome Canary",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"google-chrome",
			"chromium",
		}
	case "windows":
		paths := []string{
			"chrome",
			"chrome.exe", // in case PATHEXT is misconfigured
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
		if dir, ok := lookup("LOCALAPPDATA"); ok && dir != "" {
			paths = append(paths, filepath.Join(dir, `Google\Chrome\Application\chrome.exe`))
		}
		return paths
	default:
		return []string{
			"google-chrome",
			"google-chrome-stable",
			"chromium",
			"chromium-browser",
			"/usr/bin/google-chrome",
			"/snap/bin/chromium",
		}
	}
}

// ExecutablePath returns the browser executable to launch: path when set,
// otherwise the first well-known Chrome or Chromium install found.
func ExecutablePath(path string) (string, error) {
	return executablePath(path, runtime.GOOS, env.Lookup, exec.LookPath)
}

func executablePath(
	path, goos string, lookup env.LookupFunc, lookPath func(string) (string, error),
) (string, error) {
	if path != "" {
		if _, err := lookPath(path); err != nil {
			return "", fmt.Errorf("%w %q: %v", ErrChromeNotFoundAtPath, path, err) //nolint:errorlint
		}
		return path, nil
	}

	for _, p := range executableCandidates(goos, lookup) {
		if _, err := lookPath(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%w: install Google Chrome or set %s", ErrChromeNotInstalled, env.ExecutablePath)
}
