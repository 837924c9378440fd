package ratelimit

import (
	"net/http"
	"strings"
)

// unlimitedPaths are GET routes never limited: health checks and metrics
// scrapes.
var unlimitedPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// MatchEndpoint returns the configuration that applies to a request, or nil
// when the default limit applies. An exact path wins; otherwise the longest
// prefix ending in "/" does, so "/extractions/" covers "/extractions/{id}".
// Unlimited routes get a config with a zero Limit.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if method == http.MethodGet && unlimitedPaths[path] {
		return &EndpointConfig{Path: path, Method: method}
	}

	var prefix *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if !strings.EqualFold(c.Method, method) {
			continue
		}
		if c.Path == path {
			return c
		}
		if strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) &&
			(prefix == nil || len(c.Path) > len(prefix.Path)) {
			prefix = c
		}
	}
	return prefix
}
