package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Environment variable names for overrides.
const (
	EnvConfig  = "PAPERCLOUD_CONFIG"
	EnvAuthURL = "PAPERCLOUD_AUTH_URL"
	EnvSyncURL = "PAPERCLOUD_SYNC_URL"
	EnvDataDir = "PAPERCLOUD_DATA_DIR"
	EnvUserID  = "PAPERCLOUD_USER_ID"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string
	AuthURL    string
	SyncURL    string
	DataDir    string
	UserID     string
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		AuthURL:    os.Getenv(EnvAuthURL),
		SyncURL:    os.Getenv(EnvSyncURL),
		DataDir:    os.Getenv(EnvDataDir),
		UserID:     os.Getenv(EnvUserID),
	}
}

// CLIOverrides holds flag values resolved by the CLI layer.
type CLIOverrides struct {
	ConfigPath string
	UserID     string
}

// Load reads and parses a TOML config file and validates it. Unknown keys
// are fatal: silently ignoring a typo in a config file leads to
// hard-to-debug behavior.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: unknown key %q in %s", undecoded[0].String(), path)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// defaults. Supports the zero-config first run.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve applies the override chain: defaults -> config file ->
// environment -> CLI flags. CLI flags always win.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	if env.AuthURL != "" {
		cfg.AuthURL = env.AuthURL
	}

	if env.SyncURL != "" {
		cfg.SyncURL = env.SyncURL
	}

	if env.DataDir != "" {
		cfg.DataDir = env.DataDir
	}

	if env.UserID != "" {
		cfg.UserID = env.UserID
	}

	if cli.UserID != "" {
		cfg.UserID = cli.UserID
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
