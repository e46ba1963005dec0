// Command papercloud is a CLI client for the paper-tablet cloud service:
// pairing, folder provisioning, and PDF transfer.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/papertablet/papercloud-go/internal/cloud"
	"github.com/papertablet/papercloud-go/internal/config"
	"github.com/papertablet/papercloud-go/internal/credstore"
	"github.com/papertablet/papercloud-go/internal/docs"
	"github.com/papertablet/papercloud-go/internal/session"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagUser       string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
var resolvedCfg *config.Config

// newRootCmd builds the fully-assembled root command. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "papercloud",
		Short:   "Paper-tablet cloud client",
		Long:    "A CLI client for the paper-tablet cloud: pairing, folders, and PDF transfer.",
		Version: version,
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagUser, "user", "", "user id (overrides config)")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newConnectCmd())
	cmd.AddCommand(newDisconnectCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newPutCmd())
	cmd.AddCommand(newMkdirCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newEventsCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the override chain
// and stores the result in resolvedCfg for use by subcommands.
func loadConfig() error {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
		UserID:     flagUser,
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved

	return nil
}

// buildLogger creates an slog.Logger from the resolved config and CLI
// flags. Terminals get the text handler; pipes and files get JSON so log
// processors see structured records.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if resolvedCfg != nil {
		switch resolvedCfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	// CLI flags override config.
	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// appContext bundles the wired client stack for one command invocation.
type appContext struct {
	cfg     *config.Config
	store   *credstore.SQLiteStore
	session *session.Manager
	client  *cloud.Client
	service *docs.Service
	logger  *slog.Logger
}

// newAppContext wires config -> credential store -> session manager ->
// cloud client -> docs service. The caller must Close it.
func newAppContext(ctx context.Context) (*appContext, error) {
	logger := buildLogger()

	if err := os.MkdirAll(resolvedCfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	store, err := credstore.NewSQLiteStore(ctx, resolvedCfg.CredentialDBPath(), logger)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: resolvedCfg.Timeout()}
	auth := cloud.NewAuthenticator(resolvedCfg.AuthURL, httpClient, logger)
	sess := session.NewManager(store, auth, resolvedCfg.DeviceDesc, logger)
	client := cloud.NewClient(
		resolvedCfg.SyncURL,
		httpClient,
		sess.TokenSource(resolvedCfg.UserID),
		logger,
	)
	service := docs.NewService(client, sess, resolvedCfg.UserID, logger)

	return &appContext{
		cfg:     resolvedCfg,
		store:   store,
		session: sess,
		client:  client,
		service: service,
		logger:  logger,
	}, nil
}

func (a *appContext) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing credential store", slog.String("error", err.Error()))
	}
}

// exitOnError prints a user-friendly error message to stderr and exits.
// The error classes map to user guidance: reconnect, retry, or fix config.
func exitOnError(err error) {
	switch {
	case errors.Is(err, context.Canceled):
		// Interrupted by the user; no message needed.
		os.Exit(130)
	case errors.Is(err, cloud.ErrNotConnected):
		fmt.Fprintf(os.Stderr, "Error: %v\nRun 'papercloud connect <code>' first.\n", err)
	case errors.Is(err, cloud.ErrAuthentication):
		fmt.Fprintf(os.Stderr, "Error: %v\nReconnect required: run 'papercloud connect <code>'.\n", err)
	case errors.Is(err, cloud.ErrNetwork), errors.Is(err, cloud.ErrTransfer):
		fmt.Fprintf(os.Stderr, "Error: %v\nTransient failure; try again.\n", err)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	os.Exit(1)
}
