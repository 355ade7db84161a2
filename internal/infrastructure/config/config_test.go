package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONSOLE_API_BASE_URL", "https://api.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "console", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.False(t, cfg.IsProduction())

	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, "/health", cfg.API.HealthPath)

	assert.Equal(t, 5*time.Minute, cfg.Auth.RefreshInterval)

	assert.True(t, cfg.StateCache.Enabled)
	assert.Equal(t, "console-state.db", cfg.StateCache.Path)

	assert.True(t, cfg.Connectivity.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Connectivity.PollInterval)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "stdout", cfg.Log.Output)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("CONSOLE_API_BASE_URL", "http://localhost:8000")
	t.Setenv("CONSOLE_API_API_KEY", "anon-key")
	t.Setenv("CONSOLE_API_TIMEOUT", "3s")
	t.Setenv("CONSOLE_APP_ENV", "production")
	t.Setenv("CONSOLE_STATE_CACHE_ENABLED", "false")
	t.Setenv("CONSOLE_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, "anon-key", cfg.API.APIKey)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.StateCache.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			API: APIConfig{
				BaseURL: "https://api.example.com",
				Timeout: 15 * time.Second,
			},
			Connectivity: ConnectivityConfig{
				Enabled:      true,
				PollInterval: 30 * time.Second,
			},
		}
	}

	t.Run("valid configuration", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing base url", func(t *testing.T) {
		cfg := valid()
		cfg.API.BaseURL = ""
		assert.ErrorContains(t, cfg.Validate(), "api.base_url is required")
	})

	t.Run("non-http base url", func(t *testing.T) {
		cfg := valid()
		cfg.API.BaseURL = "ftp://api.example.com"
		assert.ErrorContains(t, cfg.Validate(), "http(s)")
	})

	t.Run("non-positive timeout", func(t *testing.T) {
		cfg := valid()
		cfg.API.Timeout = 0
		assert.ErrorContains(t, cfg.Validate(), "api.timeout")
	})

	t.Run("enabled connectivity requires a poll interval", func(t *testing.T) {
		cfg := valid()
		cfg.Connectivity.PollInterval = 0
		assert.ErrorContains(t, cfg.Validate(), "connectivity.poll_interval")
	})

	t.Run("disabled connectivity skips the poll interval check", func(t *testing.T) {
		cfg := valid()
		cfg.Connectivity.Enabled = false
		cfg.Connectivity.PollInterval = 0
		assert.NoError(t, cfg.Validate())
	})
}
