package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	API          APIConfig
	Auth         AuthConfig
	StateCache   StateCacheConfig
	Connectivity ConnectivityConfig
	Log          LogConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// APIConfig holds settings for the remote persistence/identity API
type APIConfig struct {
	BaseURL    string        // e.g. https://api.example.com
	APIKey     string        // publishable key sent with every request
	Timeout    time.Duration // per-request timeout
	HealthPath string        // path probed by the connectivity monitor
}

// AuthConfig holds auth manager settings
type AuthConfig struct {
	RefreshInterval time.Duration // min spacing between background refreshes
}

// StateCacheConfig holds local session cache settings
type StateCacheConfig struct {
	Enabled bool
	Path    string // sqlite file path; ":memory:" for ephemeral
}

// ConnectivityConfig holds reachability monitor settings
type ConnectivityConfig struct {
	Enabled      bool
	PollInterval time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CONSOLE_ prefix (e.g., CONSOLE_API_BASE_URL)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/console")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("CONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		API: APIConfig{
			BaseURL:    v.GetString("api.base_url"),
			APIKey:     v.GetString("api.api_key"),
			Timeout:    v.GetDuration("api.timeout"),
			HealthPath: v.GetString("api.health_path"),
		},
		Auth: AuthConfig{
			RefreshInterval: v.GetDuration("auth.refresh_interval"),
		},
		StateCache: StateCacheConfig{
			Enabled: v.GetBool("state_cache.enabled"),
			Path:    v.GetString("state_cache.path"),
		},
		Connectivity: ConnectivityConfig{
			Enabled:      v.GetBool("connectivity.enabled"),
			PollInterval: v.GetDuration("connectivity.poll_interval"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers built-in defaults
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "console")
	v.SetDefault("app.env", "development")

	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("api.health_path", "/health")

	v.SetDefault("auth.refresh_interval", 5*time.Minute)

	v.SetDefault("state_cache.enabled", true)
	v.SetDefault("state_cache.path", "console-state.db")

	v.SetDefault("connectivity.enabled", true)
	v.SetDefault("connectivity.poll_interval", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
}

// Validate checks that required settings are present
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.Connectivity.Enabled && c.Connectivity.PollInterval <= 0 {
		return fmt.Errorf("connectivity.poll_interval must be positive")
	}
	return nil
}

// IsProduction returns true when running in the production environment
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
