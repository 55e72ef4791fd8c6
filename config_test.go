package goSession

import (
	"testing"
	"time"
)

func TestValidateRequiresBaseURL(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("config without a base URL must not validate")
	}

	cfg.API.BaseURL = "https://api.example.test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejectsBadSkew(t *testing.T) {
	cfg := defaultConfig()
	cfg.API.BaseURL = "https://api.example.test"

	cfg.Token.ExpirySkew = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative skew must not validate")
	}

	cfg.Token.ExpirySkew = time.Hour
	if err := cfg.Validate(); err == nil {
		t.Fatal("oversized skew must not validate")
	}
}

func TestValidateRejectsBadEventBuffer(t *testing.T) {
	cfg := defaultConfig()
	cfg.API.BaseURL = "https://api.example.test"
	cfg.Events.Enabled = true
	cfg.Events.BufferSize = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled events with zero buffer must not validate")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("GOSESSION_API_BASE_URL", "https://api.example.test")
	t.Setenv("GOSESSION_API_TIMEOUT", "3s")
	t.Setenv("GOSESSION_REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("GOSESSION_REDIS_PREFIX", "gym-prod")
	t.Setenv("GOSESSION_STORE_FILE", "/tmp/tokens.json")
	t.Setenv("GOSESSION_METRICS_ENABLED", "true")

	cfg, redisAddr, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("env parse failed: %v", err)
	}

	if cfg.API.BaseURL != "https://api.example.test" {
		t.Fatalf("unexpected base URL %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 3*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.API.Timeout)
	}
	if redisAddr != "127.0.0.1:6379" {
		t.Fatalf("unexpected redis addr %q", redisAddr)
	}
	if cfg.Storage.RedisPrefix != "gym-prod" || cfg.Storage.FilePath != "/tmp/tokens.json" {
		t.Fatalf("unexpected storage config %+v", cfg.Storage)
	}
	if !cfg.Metrics.Enabled {
		t.Fatal("expected metrics enabled")
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("GOSESSION_API_BASE_URL", "https://api.example.test")

	cfg, redisAddr, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("env parse failed: %v", err)
	}
	if cfg.API.Timeout != 15*time.Second {
		t.Fatalf("unexpected default timeout %v", cfg.API.Timeout)
	}
	if redisAddr != "" {
		t.Fatalf("expected empty redis addr, got %q", redisAddr)
	}
	if cfg.Storage.RedisPrefix != "goSession" {
		t.Fatalf("unexpected default prefix %q", cfg.Storage.RedisPrefix)
	}
}
