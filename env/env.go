// Package env holds the environment variables browserctl reads and helpers
// to look them up.
package env

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	null "gopkg.in/guregu/null.v3"
)

const (
	// CDPPort selects the remote debugging port of this agent's browser.
	CDPPort = "CDP_PORT"

	// ExecutablePath overrides the browser executable lookup.
	ExecutablePath = "BROWSERCTL_EXECUTABLE_PATH"

	// CacheDir is where the browser profile lives.
	CacheDir = "BROWSERCTL_CACHE_DIR"

	// ProfileSource is the user profile copied into CacheDir by
	// `start --profile`.
	ProfileSource = "BROWSERCTL_PROFILE_SOURCE"

	// Headless launches the browser without a window.
	Headless = "BROWSERCTL_HEADLESS"

	// LogLevel sets the log level (e.g. debug).
	LogLevel = "BROWSERCTL_LOG_LEVEL"

	// LogCategoryFilter is a regexp matched against log categories.
	LogCategoryFilter = "BROWSERCTL_LOG_CATEGORY_FILTER"
)

// LookupFunc defines a function to look up a key from the environment.
type LookupFunc func(key string) (string, bool)

// Lookup looks up keys in the process environment.
func Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// EmptyLookup is a LookupFunc that always returns "" and false.
func EmptyLookup(key string) (string, bool) { return "", false }

// ConstLookup is a LookupFunc that returns the given value if the key
// matches the given key.
func ConstLookup(k, v string) LookupFunc {
	return func(key string) (string, bool) {
		if key == k {
			return v, true
		}
		return "", false
	}
}

// MapLookup is a LookupFunc backed by a map.
func MapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// Config is the environment configuration of browserctl. CDP_PORT is not
// part of it; the port resolver reads it lazily on first use.
type Config struct {
	ExecutablePath    null.String `envconfig:"BROWSERCTL_EXECUTABLE_PATH"`
	CacheDir          null.String `envconfig:"BROWSERCTL_CACHE_DIR"`
	ProfileSource     null.String `envconfig:"BROWSERCTL_PROFILE_SOURCE"`
	Headless          null.Bool   `envconfig:"BROWSERCTL_HEADLESS"`
	LogLevel          null.String `envconfig:"BROWSERCTL_LOG_LEVEL"`
	LogCategoryFilter null.String `envconfig:"BROWSERCTL_LOG_CATEGORY_FILTER"`
}

// LoadConfig reads Config from the process environment.
func LoadConfig() (Config, error) {
	var conf Config
	if err := envconfig.Process("", &conf); err != nil {
		return conf, fmt.Errorf("reading environment configuration: %w", err)
	}
	return conf, nil
}
