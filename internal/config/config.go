// Package config loads the client configuration from a TOML file with
// the override chain defaults -> config file -> environment -> CLI flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Default remote hosts.
const (
	DefaultAuthURL = "https://auth.papercloud.io"
	DefaultSyncURL = "https://sync.papercloud.io"
)

// defaultTimeoutSeconds bounds every HTTP request. Prevents a hung
// connection from blocking a CLI command indefinitely.
const defaultTimeoutSeconds = 30

// Config is the effective client configuration.
type Config struct {
	AuthURL        string `toml:"auth_url"`
	SyncURL        string `toml:"sync_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	DataDir        string `toml:"data_dir"`
	UserID         string `toml:"user_id"`
	DeviceDesc     string `toml:"device_desc"`
	LogLevel       string `toml:"log_level"`
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CredentialDBPath is the SQLite credential database location.
func (c *Config) CredentialDBPath() string {
	return filepath.Join(c.DataDir, "credentials.db")
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		AuthURL:        DefaultAuthURL,
		SyncURL:        DefaultSyncURL,
		TimeoutSeconds: defaultTimeoutSeconds,
		DataDir:        defaultDataDir(),
		UserID:         "default",
		DeviceDesc:     "desktop-linux",
		LogLevel:       "info",
	}
}

// DefaultConfigPath returns the default config file location,
// ~/.config/papercloud/config.toml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "papercloud", "config.toml")
}

// defaultDataDir returns ~/.local/share/papercloud.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".local", "share", "papercloud")
}

// Validate checks the resolved configuration for values that would fail
// confusingly at runtime.
func Validate(cfg *Config) error {
	if cfg.AuthURL == "" {
		return errors.New("config: auth_url must not be empty")
	}

	if cfg.SyncURL == "" {
		return errors.New("config: sync_url must not be empty")
	}

	if cfg.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: timeout_seconds must be positive, got %d", cfg.TimeoutSeconds)
	}

	if cfg.UserID == "" {
		return errors.New("config: user_id must not be empty")
	}

	return nil
}
