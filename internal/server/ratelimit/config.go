package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // exact path, or a prefix when it ends in "/"
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// Defaults used when the environment does not override them.
const (
	defaultLimit           = 1000
	defaultWindow          = time.Minute
	defaultCleanupInterval = 5 * time.Minute
	defaultIdleTimeout     = time.Hour

	defaultExtractLimit = 60
	defaultExtractBurst = 10
	defaultDeleteLimit  = 30
	defaultDeleteBurst  = 5
)

// LoadConfig loads rate limiting configuration from RATE_LIMIT_* environment
// variables. Unset or malformed values keep their defaults.
func LoadConfig() *Config {
	return loadConfig(os.LookupEnv)
}

func loadConfig(lookup func(string) (string, bool)) *Config {
	e := env{lookup: lookup}
	if !e.bool("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}

	extractLimit := e.int("RATE_LIMIT_EXTRACT_LIMIT", defaultExtractLimit)
	extractBurst := e.int("RATE_LIMIT_EXTRACT_BURST", defaultExtractBurst)

	return &Config{
		Enabled:         true,
		DefaultLimit:    e.int("RATE_LIMIT_DEFAULT_LIMIT", defaultLimit),
		DefaultWindow:   e.duration("RATE_LIMIT_DEFAULT_WINDOW", defaultWindow),
		CleanupInterval: e.duration("RATE_LIMIT_CLEANUP_INTERVAL", defaultCleanupInterval),
		IdleTimeout:     e.duration("RATE_LIMIT_IDLE_TIMEOUT", defaultIdleTimeout),
		Whitelist:       e.set("RATE_LIMIT_WHITELIST"),
		Blacklist:       e.set("RATE_LIMIT_BLACKLIST"),
		EndpointConfigs: endpointConfigs(extractLimit, extractBurst),
	}
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return endpointConfigs(defaultExtractLimit, defaultExtractBurst)
}

// endpointConfigs limits the routes that run the matcher. The JSON API and
// the form share the extraction limit. Reads use the default limit.
func endpointConfigs(extractLimit, extractBurst int) []EndpointConfig {
	return []EndpointConfig{
		{Path: "/extract", Method: "POST", Limit: extractLimit, Window: time.Minute, Burst: extractBurst},
		{Path: "/", Method: "POST", Limit: extractLimit, Window: time.Minute, Burst: extractBurst},
		{Path: "/extractions/", Method: "DELETE", Limit: defaultDeleteLimit, Window: time.Minute, Burst: defaultDeleteBurst},
	}
}

// env reads typed settings through lookup.
type env struct {
	lookup func(string) (string, bool)
}

func (e env) string(key string) string {
	v, _ := e.lookup(key)
	return strings.TrimSpace(v)
}

func (e env) int(key string, def int) int {
	if n, err := strconv.Atoi(e.string(key)); err == nil && n >= 0 {
		return n
	}
	return def
}

func (e env) bool(key string, def bool) bool {
	if b, err := strconv.ParseBool(e.string(key)); err == nil {
		return b
	}
	return def
}

func (e env) duration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(e.string(key)); err == nil && d > 0 {
		return d
	}
	return def
}

// set parses a comma-separated list of client IPs.
func (e env) set(key string) map[string]bool {
	result := make(map[string]bool)
	for _, item := range strings.Split(e.string(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			result[item] = true
		}
	}
	return result
}
