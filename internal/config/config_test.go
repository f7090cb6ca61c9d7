package config

import (
	"os"
	"testing"
	"time"
)

func clearConfigEnv() {
	envVars := []string{
		"HOST", "PORT", "DRIVER_ENDPOINT", "HEADLESS", "BROWSER_PATH",
		"POOL_SIZE", "POOL_TIMEOUT",
		"DEFAULT_TIMEOUT", "MAX_TIMEOUT",
		"LOG_LEVEL",
		"PPROF_ENABLED", "PPROF_PORT", "PPROF_BIND_ADDR",
		"RATE_LIMIT_ENABLED", "RATE_LIMIT_RPM", "CORS_ALLOWED_ORIGINS",
		"NUM_PROXIES",
		"API_KEY_ENABLED", "API_KEY",
		"SELECTORS_PATH", "SELECTORS_HOT_RELOAD",
	}
	for _, env := range envVars {
		os.Unsetenv(env)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv()

	cfg := Load()

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected default host '127.0.0.1', got %q", cfg.Host)
	}
	if cfg.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Port)
	}
	if !cfg.Headless {
		t.Error("Expected Headless to be true by default")
	}
	if cfg.DriverEndpoint != "" {
		t.Errorf("Expected empty DriverEndpoint by default, got %q", cfg.DriverEndpoint)
	}
	if cfg.PoolSize != 3 {
		t.Errorf("Expected default pool size 3, got %d", cfg.PoolSize)
	}
	if cfg.PoolTimeout != 30*time.Second {
		t.Errorf("Expected default pool timeout 30s, got %v", cfg.PoolTimeout)
	}
	if cfg.DefaultTimeout != 10*time.Second {
		t.Errorf("Expected default timeout 10s, got %v", cfg.DefaultTimeout)
	}
	if cfg.MaxTimeout != 60*time.Second {
		t.Errorf("Expected max timeout 60s, got %v", cfg.MaxTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got %q", cfg.LogLevel)
	}
	if !cfg.RateLimitEnabled {
		t.Error("Expected RateLimitEnabled to be true by default")
	}
	if cfg.RateLimitRPM != 60 {
		t.Errorf("Expected default rate limit 60, got %d", cfg.RateLimitRPM)
	}
	if cfg.NumProxies != 0 {
		t.Errorf("Expected default num_proxies 0, got %d", cfg.NumProxies)
	}
	if cfg.APIKeyEnabled {
		t.Error("Expected APIKeyEnabled to be false by default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearConfigEnv()
	os.Setenv("HOST", "0.0.0.0")
	os.Setenv("PORT", "9000")
	os.Setenv("POOL_SIZE", "5")
	os.Setenv("NUM_PROXIES", "2")
	defer clearConfigEnv()

	cfg := Load()
	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want 0.0.0.0", cfg.Host)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.PoolSize != 5 {
		t.Errorf("PoolSize = %d, want 5", cfg.PoolSize)
	}
	if cfg.NumProxies != 2 {
		t.Errorf("NumProxies = %d, want 2", cfg.NumProxies)
	}
}

func TestInvalidEnvValuesFallBackToDefaults(t *testing.T) {
	clearConfigEnv()
	os.Setenv("PORT", "not_a_number")
	os.Setenv("HEADLESS", "not_a_bool")
	os.Setenv("POOL_TIMEOUT", "not_a_duration")
	defer clearConfigEnv()

	cfg := Load()
	if cfg.Port != 8080 {
		t.Errorf("Expected default port 8080 for invalid value, got %d", cfg.Port)
	}
	if !cfg.Headless {
		t.Error("Expected default Headless (true) for invalid value")
	}
	if cfg.PoolTimeout != 30*time.Second {
		t.Errorf("Expected default pool timeout for invalid value, got %v", cfg.PoolTimeout)
	}
}

func TestValidateClampsPoolSize(t *testing.T) {
	cfg := Load()
	cfg.PoolSize = 0
	cfg.Validate()
	if cfg.PoolSize != 3 {
		t.Errorf("PoolSize = %d, want default 3", cfg.PoolSize)
	}

	cfg.PoolSize = 1000
	cfg.Validate()
	if cfg.PoolSize != maxPoolSize {
		t.Errorf("PoolSize = %d, want capped at %d", cfg.PoolSize, maxPoolSize)
	}
}

func TestValidateClampsNumProxies(t *testing.T) {
	cfg := Load()
	cfg.NumProxies = -1
	cfg.Validate()
	if cfg.NumProxies != 0 {
		t.Errorf("NumProxies = %d, want 0", cfg.NumProxies)
	}

	cfg.NumProxies = 100
	cfg.Validate()
	if cfg.NumProxies != maxNumProxies {
		t.Errorf("NumProxies = %d, want capped at %d", cfg.NumProxies, maxNumProxies)
	}
}

func TestValidateAdjustsDefaultTimeoutExceedingMax(t *testing.T) {
	cfg := Load()
	cfg.MaxTimeout = 30 * time.Second
	cfg.DefaultTimeout = 45 * time.Second
	cfg.Validate()
	if cfg.DefaultTimeout != cfg.MaxTimeout {
		t.Errorf("DefaultTimeout = %v, want adjusted to MaxTimeout %v", cfg.DefaultTimeout, cfg.MaxTimeout)
	}
}

func TestValidateRejectsInvalidLogLevel(t *testing.T) {
	cfg := Load()
	cfg.LogLevel = "verbose"
	cfg.Validate()
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want 'info'", cfg.LogLevel)
	}
}

func TestValidateRejectsPathTraversalInSelectorsPath(t *testing.T) {
	cfg := Load()
	cfg.SelectorsPath = "/etc/../../selectors.yaml"
	cfg.Validate()
	if cfg.SelectorsPath != "" {
		t.Errorf("SelectorsPath = %q, want cleared", cfg.SelectorsPath)
	}
}

func TestValidateDisablesHotReloadWithoutPath(t *testing.T) {
	cfg := Load()
	cfg.SelectorsPath = ""
	cfg.SelectorsHotReload = true
	cfg.Validate()
	if cfg.SelectorsHotReload {
		t.Error("expected SelectorsHotReload to be disabled without a path")
	}
}
