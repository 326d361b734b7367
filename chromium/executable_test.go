package chromium

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/agenttools/browserctl/env"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookPathIn(found ...string) func(string) (string, error) {
	return func(p string) (string, error) {
		for _, f := range found {
			if f == p {
				return p, nil
			}
		}
		return "", errors.New("executable file not found in $PATH")
	}
}

func TestExecutablePath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		path    string
		goos    string
		lookup  env.LookupFunc
		found   []string
		want    string
		wantErr error
	}{
		{
			name:  "configured",
			path:  "/opt/chrome/chrome",
			goos:  "linux",
			found: []string{"/opt/chrome/chrome", "google-chrome"},
			want:  "/opt/chrome/chrome",
		},
		{
			name:    "configured_missing",
			path:    "/opt/chrome/chrome",
			goos:    "linux",
			found:   []string{"google-chrome"},
			wantErr: ErrChromeNotFoundAtPath,
		},
		{
			name:  "linux_preference",
			goos:  "linux",
			found: []string{"chromium-browser", "google-chrome-stable"},
			want:  "google-chrome-stable",
		},
		{
			name:  "darwin",
			goos:  "darwin",
			found: []string{"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"},
			want:  "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		},
		{
			name:   "windows_local_app_data",
			goos:   "windows",
			lookup: env.ConstLookup("LOCALAPPDATA", `C:\Users\u\AppData\Local`),
			found: []string{
				filepath.Join(`C:\Users\u\AppData\Local`, `Google\Chrome\Application\chrome.exe`),
			},
			want: filepath.Join(`C:\Users\u\AppData\Local`, `Google\Chrome\Application\chrome.exe`),
		},
		{
			name:    "not_installed",
			goos:    "linux",
			wantErr: ErrChromeNotInstalled,
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			lookup := tc.lookup
			if lookup == nil {
				lookup = env.EmptyLookup
			}
			got, err := executablePath(tc.path, tc.goos, lookup, lookPathIn(tc.found...))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
