package ratelimit

import (
	"strings"
	"time"

	"github.com/jonathan/talent-pipeline/internal/config"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Route pattern; {name} matches one segment, a trailing "/" matches any suffix
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// FromSettings builds the limiter configuration from the rate_limit config section.
func FromSettings(s config.RateLimitConfig) *Config {
	if !s.Enabled {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    s.DefaultLimit,
		DefaultWindow:   s.DefaultWindow,
		CleanupInterval: s.CleanupInterval,
		Whitelist:       toSet(s.Whitelist),
		Blacklist:       toSet(s.Blacklist),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	write := func(path, method string) EndpointConfig {
		return EndpointConfig{Path: path, Method: method, Limit: 100, Window: time.Minute, Burst: 10}
	}

	return []EndpointConfig{
		// Tier 1: bulk scoring of every active talent
		{Path: "/offres/{uid}/matching", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},

		// Tier 2: write operations
		write("/candidatures", "POST"),
		write("/candidatures/{uid}", "PATCH"),
		write("/candidatures/{uid}", "DELETE"),
		write("/offres/{uid}/candidatures", "POST"),
		write("/shortlists", "POST"),
		write("/shortlists/", "PATCH"),
		write("/shortlists/", "POST"),
		write("/entretiens", "POST"),
		write("/entretiens/{uid}", "PATCH"),
		write("/contrats", "POST"),
		write("/contrats/", "PUT"),
		write("/contrats/", "PATCH"),
		write("/contrats/", "DELETE"),
		write("/factures", "POST"),
		write("/factures/", "PUT"),
		write("/factures/", "PATCH"),
		write("/factures/", "DELETE"),

		// Tier 3: reads use the default limit
		// Tier 4: health check is unlimited, see MatchEndpoint
	}
}

func toSet(list []string) map[string]bool {
	result := make(map[string]bool, len(list))
	for _, item := range list {
		item = strings.TrimSpace(item)
		if item != "" {
			result[item] = true
		}
	}
	return result
}
