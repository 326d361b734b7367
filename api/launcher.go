// Package api holds the interfaces the browserctl commands program against.
package api

import "context"

// Instance is a browser instance that answered on its remote debugging
// port. It is not owned by whoever launched it: there is no way to stop
// it through this package.
type Instance struct {
	// Port is the remote debugging port.
	Port int
	// URL is the loopback HTTP URL of the endpoint, http://localhost:{Port}.
	URL string
	// WsURL is the browser websocket debugger URL.
	WsURL string
	// Browser is the product reported by the endpoint, e.g. Chrome/96.0.4664.45.
	Browser string

	Executable  string
	UserDataDir string
	Pid         int
	Seeded      bool
}

// Launcher starts a fresh browser instance on the resolved port.
type Launcher interface {
	// Launch replaces any running instance with a new one, using a profile
	// seeded from the user's own when seeded is true.
	Launch(ctx context.Context, seeded bool) (*Instance, error)
}
