// Package config loads the sync daemon configuration from an optional YAML
// file overridable through CHATERM_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete daemon configuration.
type Config struct {
	ServerURL string `mapstructure:"server_url"`

	// DataDBPath is the SQLite database holding assets and the change log.
	DataDBPath string `mapstructure:"data_db_path"`
	// AuthDBPath is the BoltDB file holding credentials and the device id.
	AuthDBPath string `mapstructure:"auth_db_path"`

	PollInitialInterval time.Duration `mapstructure:"poll_initial_interval"`
	PollMinInterval     time.Duration `mapstructure:"poll_min_interval"`
	PollMaxInterval     time.Duration `mapstructure:"poll_max_interval"`
	PollAdaptive        bool          `mapstructure:"poll_adaptive"`

	FullSyncInterval time.Duration `mapstructure:"full_sync_interval"`

	SmartThreshold int `mapstructure:"smart_threshold"`
	UploadPageSize int `mapstructure:"upload_page_size"`
	DownloadLimit  int `mapstructure:"download_limit"`

	LogLevel string `mapstructure:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ServerURL:           "http://localhost:8080",
		DataDBPath:          "chaterm.db",
		AuthDBPath:          "chaterm-auth.db",
		PollInitialInterval: 30 * time.Second,
		PollMinInterval:     10 * time.Second,
		PollMaxInterval:     5 * time.Minute,
		PollAdaptive:        true,
		FullSyncInterval:    time.Hour,
		SmartThreshold:      100,
		UploadPageSize:      500,
		DownloadLimit:       300,
		LogLevel:            "info",
	}
}

// Load reads configuration from configPath (a directory containing an
// optional config.yaml), applies environment overrides (CHATERM_SERVER_URL
// and friends) and validates the result.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.SetEnvPrefix("CHATERM")
	v.AutomaticEnv()

	for _, key := range []string{
		"server_url", "data_db_path", "auth_db_path",
		"poll_initial_interval", "poll_min_interval", "poll_max_interval",
		"poll_adaptive", "full_sync_interval",
		"smart_threshold", "upload_page_size", "download_limit",
		"log_level",
	} {
		if err := v.BindEnv(key); err != nil {
			return cfg, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus env apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url must be set")
	}
	if c.DataDBPath == "" {
		return fmt.Errorf("data_db_path must be set")
	}
	if c.AuthDBPath == "" {
		return fmt.Errorf("auth_db_path must be set")
	}
	if c.PollMinInterval > c.PollMaxInterval {
		return fmt.Errorf("poll_min_interval %s exceeds poll_max_interval %s",
			c.PollMinInterval, c.PollMaxInterval)
	}
	if c.UploadPageSize <= 0 {
		return fmt.Errorf("upload_page_size must be positive")
	}
	if c.DownloadLimit <= 0 {
		return fmt.Errorf("download_limit must be positive")
	}
	return nil
}
