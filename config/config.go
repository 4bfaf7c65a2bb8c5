package config

import (
	"os"
	"strconv"
)

// Config holds all application configuration, read once at startup.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Proxy     ProxyConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Job       JobConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3000
}

// BrowserConfig controls the rod browser instance and page pool. Only
// Headless and MaxConcurrentPages are read outside this package;
// StealthEnabled, BlockMedia, TimeoutMs and PageLoadTimeoutMs are loaded but
// unused, since the pipelines take stealth, media blocking and timeouts from
// each ScrapeRequest.
type BrowserConfig struct {
	Headless            bool // default: true
	StealthEnabled       bool // default: true
	BlockMedia           bool // default: true
	MaxConcurrentPages   int  // default: 10
	TimeoutMs            int  // default: 300000
	PageLoadTimeoutMs    int  // default: 60000
}

// ProxyConfig is the environment-level proxy fallback consumed by
// proxyresolve.Resolve when a request carries no proxy of its own.
type ProxyConfig struct {
	Server   string
	Username string
	Password string
}

// AuthConfig controls bearer-token authentication.
type AuthConfig struct {
	Token string // empty disables auth entirely
}

// RateLimitConfig sets the per-client-IP token bucket (golang.org/x/time/rate)
// applied to every authenticated route.
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 5
	Burst             int     // default: 10
}

// JobConfig controls the in-memory job store's TTL sweeper.
type JobConfig struct {
	TTLMs             int // default: 600000
	CleanupIntervalMs int // default: 60000
}

// LogConfig controls structured logging via log/slog.
type LogConfig struct {
	Level  string // debug|info|warn|error; default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with the defaults
// named in spec.md §6.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("HOST", "0.0.0.0"),
			Port: envIntOr("PORT", 3000),
		},
		Browser: BrowserConfig{
			Headless:           envBoolOr("HEADLESS", true),
			StealthEnabled:     envBoolOr("STEALTH_ENABLED", true),
			BlockMedia:         envBoolOr("BLOCK_MEDIA", true),
			MaxConcurrentPages: envIntOr("MAX_CONCURRENT_PAGES", 10),
			TimeoutMs:          envIntOr("TIMEOUT_MS", 300000),
			PageLoadTimeoutMs:  envIntOr("PAGE_LOAD_TIMEOUT_MS", 60000),
		},
		Proxy: ProxyConfig{
			Server:   os.Getenv("PROXY_SERVER"),
			Username: os.Getenv("PROXY_USERNAME"),
			Password: os.Getenv("PROXY_PASSWORD"),
		},
		Auth: AuthConfig{
			Token: os.Getenv("AUTH_TOKEN"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("RATE_LIMIT_RPS", 5.0),
			Burst:             envIntOr("RATE_LIMIT_BURST", 10),
		},
		Job: JobConfig{
			TTLMs:             envIntOr("JOB_TTL_MS", 600000),
			CleanupIntervalMs: envIntOr("JOB_CLEANUP_INTERVAL_MS", 60000),
		},
		Log: LogConfig{
			Level:  envOr("LOG_LEVEL", "info"),
			Format: envOr("LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
