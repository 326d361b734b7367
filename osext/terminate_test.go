package osext

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminateByNameEmpty(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, TerminateByName(""), ErrNoProcessName)
	assert.ErrorIs(t, TerminateByName("  "), ErrNoProcessName)
}

func TestTerminateByNameMissingProcess(t *testing.T) {
	t.Parallel()

	// nothing runs under this name, so termination fails without side effects.
	assert.Error(t, TerminateByName("browserctl-no-such-process"))
}

func TestProcessName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		goos, path, want string
	}{
		{"darwin", "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome", "Google Chrome"},
		{"darwin", "/usr/local/bin/google-chrome", "google-chrome"},
		{"windows", "/Program Files/Google/Chrome/Application/chrome.exe", "chrome.exe"},
		{"windows", "chrome", "chrome.exe"},
		{"linux", "/usr/bin/google-chrome", "chrome"},
		{"linux", "/usr/bin/google-chrome-stable", "chrome"},
		{"linux", "/usr/bin/google-chrome-beta", "chrome"},
		{"linux", "/opt/google/chrome/chrome", "chrome"},
		{"linux", "/usr/bin/chromium", "chromium"},
		{"linux", "/usr/bin/chromium-browser", "chromium-browser"},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.goos+"_"+tc.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, processName(filepath.FromSlash(tc.path), tc.goos))
		})
	}

	want := "Google Chrome"
	if runtime.GOOS == "windows" {
		want += ".exe"
	}
	got := ProcessName(filepath.Join("Applications", "Google Chrome.app", "Contents", "MacOS", "Google Chrome"))
	assert.Equal(t, want, got)
}
