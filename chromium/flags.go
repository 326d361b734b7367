package chromium

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// LaunchOptions are the browser settings that do not depend on the
// resolved port or the profile.
type LaunchOptions struct {
	ExecutablePath string
	Headless       bool
	// Args are extra browser flags, as "name" or "name=value".
	Args []string
}

// startURL is opened on launch so that the instance has a page target.
const startURL = "about:blank"

// prepareFlags returns the browser flags for an instance listening on port
// with its profile in userDataDir. asRoot adds --no-sandbox, which Chrome
// requires when run by root on Linux.
func prepareFlags(port int, userDataDir string, opts *LaunchOptions, asRoot bool) map[string]interface{} {
	f := map[string]interface{}{
		"remote-debugging-port":    strconv.Itoa(port),
		"user-data-dir":            userDataDir,
		"no-first-run":             true,
		"no-default-browser-check": true,
	}
	if opts.Headless {
		f["headless"] = "new"
	}
	if asRoot {
		f["no-sandbox"] = true
	}
	setFlagsFromArgs(f, opts.Args)

	// The port and profile identify the instance; extra args cannot move them.
	f["remote-debugging-port"] = strconv.Itoa(port)
	f["user-data-dir"] = userDataDir

	return f
}

// setFlagsFromArgs fills flags by parsing the args slice.
func setFlagsFromArgs(flags map[string]interface{}, args []string) {
	for _, arg := range args {
		pair := strings.SplitN(strings.TrimPrefix(strings.TrimSpace(arg), "--"), "=", 2)
		name := strings.TrimSpace(pair[0])
		if name == "" {
			continue
		}
		if len(pair) == 1 {
			flags[name] = true
			continue
		}
		flags[name] = trimQuotes(strings.TrimSpace(pair[1]))
	}
}

func trimQuotes(s string) string {
	if len(s) >= 2 {
		if c := s[len(s)-1]; s[0] == c && (c == '"' || c == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// parseArgs turns flags into command line arguments, sorted by name, with
// the start page last.
func parseArgs(flags map[string]interface{}) ([]string, error) {
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]string, 0, len(flags)+1)
	for _, name := range names {
		switch value := flags[name].(type) {
		case string:
			args = append(args, fmt.Sprintf("--%s=%s", name, value))
		case bool:
			if value {
				args = append(args, "--"+name)
			}
		default:
			return nil, fmt.Errorf(`invalid browser command line flag: "%s=%v"`, name, value)
		}
	}

	return append(args, startURL), nil
}
