package config

import "time"

// RateLimitConfig controls the fixed-window limiter applied to command
// endpoints.  When Enabled is false or no Redis client is available the
// limiter is a pass-through.
type RateLimitConfig struct {
	Enabled bool
	Limit   int           // requests allowed per window, per client and route
	Window  time.Duration // window length
	Prefix  string        // Redis key namespace
}

// LoadRateLimitConfig reads the limiter settings from the environment with
// defaults suitable for development.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled: getenv("RATE_LIMIT_ENABLED", "true") == "true",
		Limit:   envInt("RATE_LIMIT_LIMIT", 60),
		Window:  envDur("RATE_LIMIT_WINDOW", time.Minute),
		Prefix:  getenv("RATE_LIMIT_PREFIX", "rl"),
	}
	if cfg.Limit < 1 {
		cfg.Limit = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return cfg
}
