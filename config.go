package goSession

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config defines the controller's tunables. Configure before Build and treat
// as immutable afterwards; Build works on a private copy.
type Config struct {
	API     APIConfig
	Storage StorageConfig
	Token   TokenConfig
	Events  EventsConfig
	Metrics MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig locates the backend authentication endpoints.
type APIConfig struct {
	BaseURL     string
	LoginPath   string
	RefreshPath string
	Timeout     time.Duration
	UserAgent   string
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig selects the token store backend when none is injected.
// FilePath enables the file store; RedisPrefix namespaces the Redis store.
type StorageConfig struct {
	RedisPrefix string
	FilePath    string
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls structural token handling. ExpirySkew widens the
// expiry check so tokens about to lapse are refreshed before use.
type TokenConfig struct {
	ExpirySkew time.Duration
}

/*
====================================
EVENTS CONFIG
====================================
*/

// EventsConfig controls the async lifecycle event dispatcher.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process counter set.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			LoginPath:   "/auth/login",
			RefreshPath: "/auth/refresh",
			Timeout:     15 * time.Second,
			UserAgent:   "goSession",
		},
		Storage: StorageConfig{
			RedisPrefix: "goSession",
		},
		Token: TokenConfig{
			ExpirySkew: 0,
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 64,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are values; a shallow copy is a deep copy.
	return cfg
}

// Validate checks invariants that Build relies on.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("API.BaseURL is required")
	}
	if c.API.Timeout < 0 {
		return errors.New("API.Timeout must not be negative")
	}
	if c.Token.ExpirySkew < 0 || c.Token.ExpirySkew > 10*time.Minute {
		return errors.New("Token.ExpirySkew must be within [0, 10m]")
	}
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events.BufferSize must be positive when events are enabled")
	}
	return nil
}

type envConfig struct {
	APIBaseURL     string        `env:"GOSESSION_API_BASE_URL"`
	APITimeout     time.Duration `env:"GOSESSION_API_TIMEOUT" envDefault:"15s"`
	RedisAddr      string        `env:"GOSESSION_REDIS_ADDR"`
	RedisPrefix    string        `env:"GOSESSION_REDIS_PREFIX" envDefault:"goSession"`
	StoreFile      string        `env:"GOSESSION_STORE_FILE"`
	MetricsEnabled bool          `env:"GOSESSION_METRICS_ENABLED" envDefault:"false"`
}

// ConfigFromEnv builds a Config from GOSESSION_* environment variables on top
// of the defaults. The Redis address is returned separately so the caller can
// construct the client it prefers.
func ConfigFromEnv() (Config, string, error) {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return Config{}, "", err
	}

	cfg := defaultConfig()
	cfg.API.BaseURL = ec.APIBaseURL
	cfg.API.Timeout = ec.APITimeout
	cfg.Storage.RedisPrefix = ec.RedisPrefix
	cfg.Storage.FilePath = ec.StoreFile
	cfg.Metrics.Enabled = ec.MetricsEnabled

	return cfg, ec.RedisAddr, nil
}
