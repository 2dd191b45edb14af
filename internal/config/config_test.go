package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	// Create temp config file
	content := `{
		"port": 8090,
		"database_url": "postgres://localhost/cvperfect",
		"session_ttl_hours": 24,
		"cleanup_max_age_hours": 48,
		"verbose": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, "postgres://localhost/cvperfect", cfg.DatabaseURL)
	assert.Equal(t, 24, cfg.SessionTTLHours)
	assert.Equal(t, 48, cfg.CleanupMaxAgeHours)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	content := `{ invalid json }`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate_NegativeValues(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative ttl", Config{SessionTTLHours: -1}},
		{"negative max age", Config{CleanupMaxAgeHours: -1}},
		{"negative interval", Config{CleanupIntervalMinutes: -5}},
		{"negative timeout", Config{StoreTimeoutMS: -100}},
		{"port out of range", Config{Port: 70000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "config error")
		})
	}
}

func TestValidate_SessionDirMustExist(t *testing.T) {
	cfg := &Config{SessionDir: "/nonexistent/sessions"}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "session directory not found")

	cfg.SessionDir = t.TempDir()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ZeroConfigIsValid(t *testing.T) {
	cfg := &Config{}
	assert.NoError(t, cfg.Validate())
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := &Config{
		Port:        9000,
		DatabaseURL: "postgres://override/db",
	}

	defaults := Config{
		Port:                   8090,
		DatabaseURL:            "postgres://default/db",
		SessionDir:             "/var/lib/sessions",
		SessionTTLHours:        24,
		CleanupMaxAgeHours:     48,
		CleanupIntervalMinutes: 60,
		StoreTimeoutMS:         5000,
	}

	merged := cfg.MergeWithDefaults(defaults)

	// Explicit values win
	assert.Equal(t, 9000, merged.Port)
	assert.Equal(t, "postgres://override/db", merged.DatabaseURL)

	// Zero values fall back
	assert.Equal(t, "/var/lib/sessions", merged.SessionDir)
	assert.Equal(t, 24, merged.SessionTTLHours)
	assert.Equal(t, 48, merged.CleanupMaxAgeHours)
	assert.Equal(t, 60, merged.CleanupIntervalMinutes)
	assert.Equal(t, 5000, merged.StoreTimeoutMS)
}

func TestDurationAccessors(t *testing.T) {
	cfg := &Config{
		SessionTTLHours:        24,
		CleanupMaxAgeHours:     48,
		CleanupIntervalMinutes: 30,
		StoreTimeoutMS:         5000,
	}

	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
	assert.Equal(t, 48*time.Hour, cfg.CleanupMaxAge())
	assert.Equal(t, 30*time.Minute, cfg.CleanupInterval())
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout())
}
