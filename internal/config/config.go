// Package config loads and validates the collection-server configuration.
//
// DESIGN: All configuration MUST come from YAML files. No defaults for
// required fields. This ensures explicit, auditable configuration for
// production deployments.
//
// FILES:
//   - config.go:     Root Config struct, Load(), Validate()
//   - monitoring.go: Logging and telemetry settings
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the web-vitals collection server.
type Config struct {
	Server     ServerConfig     `yaml:"server"`     // HTTP server settings
	Store      StoreConfig      `yaml:"store"`      // SQLite persistence
	Collection CollectionConfig `yaml:"collection"` // Nonces and client flush timing
	Monitoring MonitoringConfig `yaml:"monitoring"` // Telemetry and logging
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // Port to listen on
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // Max time to read request
	WriteTimeout time.Duration `yaml:"write_timeout"` // Max time to write response
	RateLimit    int           `yaml:"rate_limit"`    // Requests per second per IP, 0 disables
}

// StoreConfig contains persistence settings.
type StoreConfig struct {
	Path string `yaml:"path"` // SQLite database path, ":memory:" for ephemeral
}

// CollectionConfig contains collection-pipeline settings: the anti-forgery
// token parameters and the flush delay the server injects into the page-load
// configuration for clients.
type CollectionConfig struct {
	NonceSecret   string        `yaml:"nonce_secret"`   // HMAC secret for anti-forgery tokens
	NonceLifetime time.Duration `yaml:"nonce_lifetime"` // Token validity window
	FlushDelay    time.Duration `yaml:"flush_delay"`    // Client one-shot flush delay
}

// expandEnvWithDefaults expands environment variables with support for default
// values. Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Load reads configuration from a YAML file.
// Returns an error if the file doesn't exist or is invalid.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes.
// Supports ${VAR:-default} env var expansion, env overrides, and validation.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// This lets deployment tooling redirect paths without editing config files.
func (c *Config) applyEnvOverrides() {
	if envPath := os.Getenv("WEBVITALS_DB"); envPath != "" {
		c.Store.Path = envPath
	}
	if envPath := os.Getenv("WEBVITALS_TELEMETRY_LOG"); envPath != "" {
		c.Monitoring.TelemetryPath = envPath
		c.Monitoring.TelemetryEnabled = true
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout == 0 {
		return fmt.Errorf("server.read_timeout is required")
	}
	if c.Server.WriteTimeout == 0 {
		return fmt.Errorf("server.write_timeout is required")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("invalid server.rate_limit: %d", c.Server.RateLimit)
	}

	// Store validation
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}

	// Collection validation
	if c.Collection.NonceSecret == "" {
		return fmt.Errorf("collection.nonce_secret is required")
	}
	if c.Collection.NonceLifetime <= 0 {
		return fmt.Errorf("collection.nonce_lifetime is required")
	}
	if c.Collection.FlushDelay <= 0 {
		return fmt.Errorf("collection.flush_delay is required")
	}

	return nil
}
