// Package config provides application configuration management.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Configuration upper bounds to prevent resource exhaustion.
const (
	maxPoolSize     = 20
	maxRateLimitRPM = 10000 // Maximum requests per minute per IP
	maxNumProxies   = 10
	minAPIKeyLength = 16 // Minimum API key length for security
)

// Config holds all application configuration.
// Configuration is loaded from environment variables at startup.
type Config struct {
	// Server settings
	Host string
	Port int

	// Driver settings
	DriverEndpoint string // CDP control URL of an already-running browser; empty to launch locally
	Headless       bool
	BrowserPath    string

	// Pool settings
	PoolSize    int
	PoolTimeout time.Duration

	// Timeouts
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration

	// Logging
	LogLevel string

	// Profiling
	PProfEnabled  bool
	PProfPort     int
	PProfBindAddr string // Bind address for pprof server (default: localhost only)

	// Security
	RateLimitEnabled   bool
	RateLimitRPM       int      // Requests per minute per IP
	CORSAllowedOrigins []string // Allowed CORS origins (empty = reject all cross-origin requests, with warning)

	// Geolocation
	NumProxies int // trusted reverse-proxy hops for X-Forwarded-For based geolocation

	// API Key Authentication
	APIKeyEnabled bool   // Enable API key authentication
	APIKey        string // Required API key for requests (only used if APIKeyEnabled is true)

	// Selectors settings
	SelectorsPath      string // Path to external selectors override file
	SelectorsHotReload bool   // Enable file watching for hot-reload of selectors
}

// Load loads configuration from environment variables.
// Returns a Config with values from environment or sensible defaults.
func Load() *Config {
	return &Config{
		// Server - default to localhost for security (prevents accidental exposure)
		// Set HOST=0.0.0.0 explicitly to bind to all interfaces
		Host: getEnvString("HOST", "127.0.0.1"),
		Port: getEnvInt("PORT", 8080),

		// Driver
		DriverEndpoint: getEnvString("DRIVER_ENDPOINT", ""),
		Headless:       getEnvBool("HEADLESS", true),
		BrowserPath:    getEnvString("BROWSER_PATH", ""),

		// Pool
		PoolSize:    getEnvInt("POOL_SIZE", 3),
		PoolTimeout: getEnvDuration("POOL_TIMEOUT", 30*time.Second),

		// Timeouts
		DefaultTimeout: getEnvDuration("DEFAULT_TIMEOUT", 10*time.Second),
		MaxTimeout:     getEnvDuration("MAX_TIMEOUT", 60*time.Second),

		// Logging
		LogLevel: getEnvString("LOG_LEVEL", "info"),

		// Profiling - disabled by default for security
		PProfEnabled:  getEnvBool("PPROF_ENABLED", false),
		PProfPort:     getEnvInt("PPROF_PORT", 6060),
		PProfBindAddr: getEnvString("PPROF_BIND_ADDR", "127.0.0.1"), // Localhost only by default

		// Security
		RateLimitEnabled:   getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitRPM:       getEnvInt("RATE_LIMIT_RPM", 60),
		CORSAllowedOrigins: getEnvStringSlice("CORS_ALLOWED_ORIGINS", nil),

		// Geolocation
		NumProxies: getEnvInt("NUM_PROXIES", 0),

		// API Key Authentication
		APIKeyEnabled: getEnvBool("API_KEY_ENABLED", false),
		APIKey:        getEnvString("API_KEY", ""),

		// Selectors settings
		SelectorsPath:      getEnvString("SELECTORS_PATH", ""),
		SelectorsHotReload: getEnvBool("SELECTORS_HOT_RELOAD", false),
	}
}

// Validate checks configuration values and logs warnings for invalid values.
// Invalid values are corrected to sensible defaults.
func (c *Config) Validate() {
	// Port validation - allow 0 for system-assigned ports
	if c.Port < 0 || c.Port > 65535 {
		log.Warn().Int("port", c.Port).Msg("Invalid port, using default 8080")
		c.Port = 8080
	}

	// BrowserPath validation - prevent path traversal attacks
	if c.BrowserPath != "" {
		if strings.Contains(c.BrowserPath, "..") {
			log.Error().
				Str("path", c.BrowserPath).
				Msg("BrowserPath contains path traversal sequence (..), ignoring")
			c.BrowserPath = ""
		} else if !strings.HasPrefix(c.BrowserPath, "/") && !strings.HasPrefix(c.BrowserPath, "C:") && !strings.HasPrefix(c.BrowserPath, "c:") {
			log.Warn().
				Str("path", c.BrowserPath).
				Msg("BrowserPath should be an absolute path")
		}
	}

	// Pool size validation with upper bound
	if c.PoolSize < 1 {
		log.Warn().Int("size", c.PoolSize).Msg("Invalid pool size, using default 3")
		c.PoolSize = 3
	} else if c.PoolSize > maxPoolSize {
		log.Warn().
			Int("size", c.PoolSize).
			Int("max", maxPoolSize).
			Msg("Pool size too large, capping to maximum")
		c.PoolSize = maxPoolSize
	}

	// PoolTimeout validation (minimum 1 second, maximum 5 minutes)
	const minPoolTimeout = 1 * time.Second
	const maxPoolTimeout = 5 * time.Minute
	if c.PoolTimeout < minPoolTimeout {
		log.Warn().
			Dur("timeout", c.PoolTimeout).
			Dur("min", minPoolTimeout).
			Msg("Pool timeout too short, using minimum")
		c.PoolTimeout = minPoolTimeout
	} else if c.PoolTimeout > maxPoolTimeout {
		log.Warn().
			Dur("timeout", c.PoolTimeout).
			Dur("max", maxPoolTimeout).
			Msg("Pool timeout too long, using maximum")
		c.PoolTimeout = maxPoolTimeout
	}

	// Timeout validation with upper bound
	const maxAllowedTimeout = 10 * time.Minute
	if c.MaxTimeout < time.Second {
		log.Warn().Dur("timeout", c.MaxTimeout).Msg("Max timeout too short, using 60s")
		c.MaxTimeout = 60 * time.Second
	}
	if c.MaxTimeout > maxAllowedTimeout {
		log.Warn().
			Dur("timeout", c.MaxTimeout).
			Dur("max", maxAllowedTimeout).
			Msg("Max timeout too high, capping to maximum")
		c.MaxTimeout = maxAllowedTimeout
	}
	if c.DefaultTimeout < time.Second {
		log.Warn().Dur("timeout", c.DefaultTimeout).Msg("Default timeout too short, using 10s")
		c.DefaultTimeout = 10 * time.Second
	}
	if c.DefaultTimeout > c.MaxTimeout {
		log.Warn().
			Dur("default", c.DefaultTimeout).
			Dur("max", c.MaxTimeout).
			Msg("Default timeout exceeds max timeout, adjusting to max")
		c.DefaultTimeout = c.MaxTimeout
	}

	// Rate limit validation with upper bound
	if c.RateLimitEnabled {
		if c.RateLimitRPM < 1 {
			log.Warn().Int("rpm", c.RateLimitRPM).Msg("Invalid rate limit, using 60 RPM")
			c.RateLimitRPM = 60
		} else if c.RateLimitRPM > maxRateLimitRPM {
			log.Warn().
				Int("rpm", c.RateLimitRPM).
				Int("max", maxRateLimitRPM).
				Msg("Rate limit too high, capping to maximum")
			c.RateLimitRPM = maxRateLimitRPM
		}
	}

	// NumProxies validation with upper bound
	if c.NumProxies < 0 {
		log.Warn().Int("num_proxies", c.NumProxies).Msg("Invalid num_proxies, using 0")
		c.NumProxies = 0
	} else if c.NumProxies > maxNumProxies {
		log.Warn().
			Int("num_proxies", c.NumProxies).
			Int("max", maxNumProxies).
			Msg("num_proxies too high, capping to maximum")
		c.NumProxies = maxNumProxies
	}

	// Log level validation
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		log.Warn().Str("level", c.LogLevel).Msg("Invalid log level, using 'info'")
		c.LogLevel = "info"
	}

	// PProf security warning
	if c.PProfEnabled && c.PProfBindAddr != "127.0.0.1" && c.PProfBindAddr != "localhost" {
		log.Warn().
			Str("addr", c.PProfBindAddr).
			Msg("WARNING: pprof exposed on non-localhost address - this is a security risk")
	}

	// CORS security warning
	if len(c.CORSAllowedOrigins) == 0 {
		log.Warn().Msg("CORS_ALLOWED_ORIGINS not set - all cross-origin requests will be rejected")
	}

	// Port conflict validation
	usedPorts := make(map[int]string)
	if c.Port > 0 {
		usedPorts[c.Port] = "PORT"
	}
	if c.PProfEnabled {
		if existingName, exists := usedPorts[c.PProfPort]; exists {
			log.Error().
				Int("port", c.PProfPort).
				Str("conflicts_with", existingName).
				Msg("PPROF_PORT conflicts with another port, adjusting")
			c.PProfPort = 6060
			for usedPorts[c.PProfPort] != "" {
				c.PProfPort++
				if c.PProfPort > 65535 {
					log.Warn().Msg("Could not find available pprof port, disabling")
					c.PProfEnabled = false
					break
				}
			}
		}
	}

	// Selectors path validation
	if c.SelectorsPath != "" {
		if strings.Contains(c.SelectorsPath, "..") {
			log.Error().
				Str("path", c.SelectorsPath).
				Msg("SelectorsPath contains path traversal sequence (..), ignoring")
			c.SelectorsPath = ""
		} else if !strings.HasPrefix(c.SelectorsPath, "/") && !strings.HasPrefix(c.SelectorsPath, "C:") && !strings.HasPrefix(c.SelectorsPath, "c:") {
			log.Warn().
				Str("path", c.SelectorsPath).
				Msg("SelectorsPath should be an absolute path")
		}
		if c.SelectorsHotReload {
			if _, err := os.Stat(c.SelectorsPath); os.IsNotExist(err) {
				log.Warn().
					Str("path", c.SelectorsPath).
					Msg("SelectorsPath does not exist - hot-reload will watch for file creation")
			}
		}
	}

	// Warn if hot-reload is enabled but no path is set
	if c.SelectorsHotReload && c.SelectorsPath == "" {
		log.Warn().Msg("SELECTORS_HOT_RELOAD enabled but SELECTORS_PATH not set - hot-reload disabled")
		c.SelectorsHotReload = false
	}

	// API key validation with minimum length enforcement
	if c.APIKeyEnabled {
		const maxAPIKeyLength = 256
		switch {
		case c.APIKey == "":
			log.Error().Msg("API_KEY_ENABLED is true but API_KEY is empty - authentication will always fail")
		case len(c.APIKey) < minAPIKeyLength:
			log.Error().
				Int("length", len(c.APIKey)).
				Int("min_required", minAPIKeyLength).
				Msg("API_KEY is too short for secure authentication - consider using a longer key")
		default:
			if len(c.APIKey) > maxAPIKeyLength {
				log.Error().
					Int("length", len(c.APIKey)).
					Int("max", maxAPIKeyLength).
					Msg("API_KEY is too long")
			}
			for i, r := range c.APIKey {
				if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
					(r >= '0' && r <= '9') || r == '-' || r == '_') {
					log.Warn().
						Int("position", i).
						Msg("API_KEY contains non-alphanumeric characters (only a-z, A-Z, 0-9, -, _ are recommended)")
					break
				}
			}
		}
	}
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		intValue, err := strconv.ParseInt(value, 10, 32)
		if err == nil {
			if intValue < -2147483648 || intValue > 2147483647 {
				log.Warn().
					Str("key", key).
					Str("value", value).
					Int("default", defaultValue).
					Msg("Integer value out of range in environment variable, using default")
				return defaultValue
			}
			return int(intValue)
		}
		log.Warn().
			Str("key", key).
			Str("value", value).
			Err(err).
			Int("default", defaultValue).
			Msg("Invalid integer in environment variable, using default")
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
		log.Warn().
			Str("key", key).
			Str("value", value).
			Err(err).
			Bool("default", defaultValue).
			Msg("Invalid boolean in environment variable, using default")
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err == nil {
			if duration > 0 {
				return duration
			}
			log.Warn().
				Str("key", key).
				Str("value", value).
				Dur("default", defaultValue).
				Msg("Duration must be positive, using default")
			return defaultValue
		}
		log.Warn().
			Str("key", key).
			Str("value", value).
			Err(err).
			Dur("default", defaultValue).
			Msg("Invalid duration in environment variable, using default")
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
