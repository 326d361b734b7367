// Package cdpport resolves the remote debugging port that identifies this
// agent's browser instance.
//
// Agents running in parallel pick distinct ports through the CDP_PORT
// environment variable:
//
//	CDP_PORT=9222 browserctl start
//	CDP_PORT=9223 browserctl start
//
// The port is resolved once per process. Later changes to the environment
// are not observed.
package cdpport

import (
	"strconv"
	"strings"
	"sync"

	"github.com/agenttools/browserctl/env"
	"github.com/agenttools/browserctl/log"

	null "gopkg.in/guregu/null.v3"
)

const (
	// DefaultPort is used when CDP_PORT is unset or invalid.
	DefaultPort = 9222

	minPort = 1
	maxPort = 65535
)

// Source tells where a resolved port came from.
type Source int

const (
	// SourceDefault means CDP_PORT was not set.
	SourceDefault Source = iota
	// SourceEnv means CDP_PORT held a valid port.
	SourceEnv
	// SourceFallback means CDP_PORT was invalid and DefaultPort was used.
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceEnv:
		return "env"
	case SourceFallback:
		return "fallback"
	}
	return "unknown"
}

// Port is a resolved remote debugging port.
type Port struct {
	Number int
	Source Source
	// Override is the raw CDP_PORT value, invalid when it was not set.
	Override null.String
}

// Valid reports whether the override, if any, was accepted.
func (p Port) Valid() bool {
	return p.Source != SourceFallback
}

// URL returns the loopback HTTP URL of the endpoint on p.
func (p Port) URL() string {
	return URL(p.Number)
}

// URL returns the loopback HTTP URL of a remote debugging endpoint.
func URL(port int) string {
	return "http://localhost:" + strconv.Itoa(port)
}

// Resolver resolves the port on the first query and returns the same
// value for every query after that.
type Resolver struct {
	once   sync.Once
	lookup env.LookupFunc
	logger *log.Logger
	port   Port
}

// NewResolver returns a resolver reading CDP_PORT through lookup.
func NewResolver(lookup env.LookupFunc, logger *log.Logger) *Resolver {
	return &Resolver{
		lookup: lookup,
		logger: logger,
	}
}

// Resolve returns the resolved port, resolving it on the first call.
func (r *Resolver) Resolve() Port {
	r.once.Do(func() {
		r.port = resolve(r.lookup, r.logger)
	})
	return r.port
}

// Port returns the resolved port number.
func (r *Resolver) Port() int {
	return r.Resolve().Number
}

// URL returns the loopback URL of the resolved port.
func (r *Resolver) URL() string {
	return URL(r.Port())
}

func resolve(lookup env.LookupFunc, logger *log.Logger) Port {
	raw, ok := lookup(env.CDPPort)
	if !ok || raw == "" {
		logger.Infof("cdpport", "%s not set, using default port %d", env.CDPPort, DefaultPort)
		return Port{Number: DefaultPort, Source: SourceDefault}
	}

	override := null.StringFrom(raw)
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < minPort || n > maxPort {
		logger.Errorf("cdpport", "invalid %s value: %q, falling back to %d", env.CDPPort, raw, DefaultPort)
		return Port{Number: DefaultPort, Source: SourceFallback, Override: override}
	}

	logger.Infof("cdpport", "using CDP port %d from %s environment variable", n, env.CDPPort)
	return Port{Number: n, Source: SourceEnv, Override: override}
}

var (
	defaultResolver     *Resolver  //nolint:gochecknoglobals
	defaultResolverOnce sync.Once //nolint:gochecknoglobals
)

// Default returns the process wide resolver backed by the real environment.
// The logger given on the first call is the one used for its notices.
func Default(logger *log.Logger) *Resolver {
	defaultResolverOnce.Do(func() {
		defaultResolver = NewResolver(env.Lookup, logger)
	})
	return defaultResolver
}
