// Package config provides configuration loading and validation for the
// session service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents the service configuration that can be loaded from a JSON
// file. All fields are optional; missing values use defaults or must be
// provided via CLI flags or environment variables.
type Config struct {
	// Server
	Port int `json:"port,omitempty"` // HTTP listen port

	// Storage
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	SessionDir  string `json:"session_dir,omitempty"`  // Directory for the file store (used when database_url is empty)

	// Lifecycle
	SessionTTLHours        int `json:"session_ttl_hours,omitempty"`        // Hours before a session record expires
	CleanupMaxAgeHours     int `json:"cleanup_max_age_hours,omitempty"`    // Retention cutoff for the cleanup sweep
	CleanupIntervalMinutes int `json:"cleanup_interval_minutes,omitempty"` // Minutes between periodic sweeps (0 disables)

	// Tuning
	StoreTimeoutMS int  `json:"store_timeout_ms,omitempty"` // Recovery lookup timeout in milliseconds
	Verbose        bool `json:"verbose,omitempty"`          // Log request completion timings
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}

	// Validate numeric ranges
	if c.SessionTTLHours < 0 {
		return fmt.Errorf("config error: 'session_ttl_hours' must be non-negative")
	}
	if c.CleanupMaxAgeHours < 0 {
		return fmt.Errorf("config error: 'cleanup_max_age_hours' must be non-negative")
	}
	if c.CleanupIntervalMinutes < 0 {
		return fmt.Errorf("config error: 'cleanup_interval_minutes' must be non-negative")
	}
	if c.StoreTimeoutMS < 0 {
		return fmt.Errorf("config error: 'store_timeout_ms' must be non-negative")
	}

	// Validate the session directory exists (if specified)
	if c.SessionDir != "" {
		if _, err := os.Stat(c.SessionDir); os.IsNotExist(err) {
			return fmt.Errorf("config error: session directory not found: %s", c.SessionDir)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with zero-value fields filled from
// defaults. This is used to apply config file values as defaults for CLI
// flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.SessionDir == "" {
		result.SessionDir = defaults.SessionDir
	}

	// Int fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.SessionTTLHours == 0 {
		result.SessionTTLHours = defaults.SessionTTLHours
	}
	if result.CleanupMaxAgeHours == 0 {
		result.CleanupMaxAgeHours = defaults.CleanupMaxAgeHours
	}
	if result.CleanupIntervalMinutes == 0 {
		result.CleanupIntervalMinutes = defaults.CleanupIntervalMinutes
	}
	if result.StoreTimeoutMS == 0 {
		result.StoreTimeoutMS = defaults.StoreTimeoutMS
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// SessionTTL returns the configured TTL as a duration, or zero when unset.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// CleanupMaxAge returns the retention cutoff as a duration, or zero when
// unset.
func (c *Config) CleanupMaxAge() time.Duration {
	return time.Duration(c.CleanupMaxAgeHours) * time.Hour
}

// CleanupInterval returns the sweep interval as a duration, or zero when
// unset.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

// StoreTimeout returns the recovery lookup timeout as a duration, or zero
// when unset.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMS) * time.Millisecond
}
