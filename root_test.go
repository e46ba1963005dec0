package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRootCmd() binds flags via StringVar/BoolVar, which resets the global
// flag variables to their zero values. Tests that poke globals must do so
// after the command is built, and restore them on cleanup.

func saveFlags(t *testing.T) {
	t.Helper()

	oldVerbose := flagVerbose
	oldQuiet := flagQuiet
	oldCfg := resolvedCfg

	t.Cleanup(func() {
		flagVerbose = oldVerbose
		flagQuiet = oldQuiet
		resolvedCfg = oldCfg
	})
}

func TestBuildLogger_Default(t *testing.T) {
	saveFlags(t)

	flagVerbose = false
	flagQuiet = false
	resolvedCfg = nil

	logger := buildLogger()

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_Verbose(t *testing.T) {
	saveFlags(t)

	flagVerbose = true
	flagQuiet = false
	resolvedCfg = nil

	logger := buildLogger()

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_Quiet(t *testing.T) {
	saveFlags(t)

	flagVerbose = false
	flagQuiet = true
	resolvedCfg = nil

	logger := buildLogger()

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelError))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
}

func TestNewRootCmd_Commands(t *testing.T) {
	cmd := newRootCmd()

	want := []string{"connect", "disconnect", "status", "ls", "get", "put", "mkdir", "watch", "events"}

	found := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		found[sub.Name()] = true
	}

	for _, name := range want {
		assert.True(t, found[name], "missing subcommand %q", name)
	}
}

func TestNewRootCmd_PersistentFlags(t *testing.T) {
	cmd := newRootCmd()

	for _, name := range []string{"config", "user", "json", "verbose", "quiet"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing flag %q", name)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	saveFlags(t)

	oldPath := flagConfigPath
	t.Cleanup(func() { flagConfigPath = oldPath })

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`user_id = "tester"`), 0o600))

	flagConfigPath = path

	require.NoError(t, loadConfig())
	assert.Equal(t, "tester", resolvedCfg.UserID)
}
