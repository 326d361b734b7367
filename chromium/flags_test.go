package chromium

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareFlags(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		opts    *LaunchOptions
		asRoot  bool
		flag    string
		want    interface{}
		present bool
	}{
		{name: "port", opts: &LaunchOptions{}, flag: "remote-debugging-port", want: "9222", present: true},
		{name: "profile", opts: &LaunchOptions{}, flag: "user-data-dir", want: "/tmp/profile", present: true},
		{name: "no_first_run", opts: &LaunchOptions{}, flag: "no-first-run", want: true, present: true},
		{name: "headful", opts: &LaunchOptions{}, flag: "headless"},
		{name: "headless", opts: &LaunchOptions{Headless: true}, flag: "headless", want: "new", present: true},
		{name: "sandbox", opts: &LaunchOptions{}, flag: "no-sandbox"},
		{name: "root", opts: &LaunchOptions{}, asRoot: true, flag: "no-sandbox", want: true, present: true},
		{
			name: "arg_value", opts: &LaunchOptions{Args: []string{"lang=en-US"}},
			flag: "lang", want: "en-US", present: true,
		},
		{
			name: "arg_switch", opts: &LaunchOptions{Args: []string{"--mute-audio"}},
			flag: "mute-audio", want: true, present: true,
		},
		{
			name: "arg_trim_quotes", opts: &LaunchOptions{Args: []string{`  proxy-server = "http://proxy:3128"  `}},
			flag: "proxy-server", want: "http://proxy:3128", present: true,
		},
		{
			name: "arg_cannot_move_port", opts: &LaunchOptions{Args: []string{"remote-debugging-port=1"}},
			flag: "remote-debugging-port", want: "9222", present: true,
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			flags := prepareFlags(9222, "/tmp/profile", tc.opts, tc.asRoot)
			v, ok := flags[tc.flag]
			require.Equal(t, tc.present, ok)
			if tc.present {
				assert.Equal(t, tc.want, v)
			}
		})
	}
}

func TestParseArgs(t *testing.T) {
	t.Parallel()

	args, err := parseArgs(map[string]interface{}{
		"user-data-dir":         "/tmp/p",
		"remote-debugging-port": "9222",
		"no-first-run":          true,
		"disabled":              false,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--no-first-run",
		"--remote-debugging-port=9222",
		"--user-data-dir=/tmp/p",
		"about:blank",
	}, args)

	_, err = parseArgs(map[string]interface{}{"window-size": 800})
	assert.EqualError(t, err, `invalid browser command line flag: "window-size=800"`)
}
