// Package config loads service settings from PARLEY_* environment variables,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix namespaces every variable, e.g. PARLEY_ADDR.
const Prefix = "PARLEY"

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config holds the settings shared by the serve and mcp commands.
// Command-line flags take precedence over these values.
type Config struct {
	Addr   string `envconfig:"ADDR" default:":8080"`
	Graphs string `envconfig:"GRAPHS" default:"."`

	Store     string `envconfig:"STORE" default:"memory"`
	StorePath string `envconfig:"STORE_PATH" default:".parley/sessions"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"0"`

	// StoreKey enables encryption at rest: a base64 encoded 32-byte AES key.
	// StoreFallbackKeys are previous keys still accepted for reading.
	StoreKey          string   `envconfig:"STORE_KEY"`
	StoreFallbackKeys []string `envconfig:"STORE_FALLBACK_KEYS"`
	// MaskVariables lists regular expressions of variable names never written to the store.
	MaskVariables []string `envconfig:"MASK_VARIABLES"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	StepLimit        int  `envconfig:"STEP_LIMIT" default:"1000"`
	StrictGraphs     bool `envconfig:"STRICT_GRAPHS" default:"false"`
	ValidateRequests bool `envconfig:"VALIDATE_REQUESTS" default:"true"`
}

// Load reads envFiles (default ".env") into the environment without overriding
// variables that are already set, then decodes PARLEY_* into a Config.
// Missing env files are not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("unknown store %q (want memory, file or redis)", c.Store)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	if c.StepLimit < 0 {
		return fmt.Errorf("step limit must not be negative")
	}
	return nil
}
