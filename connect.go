package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/papertablet/papercloud-go/internal/cloud"
)

func newConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <one-time-code>",
		Short: "Pair this client with your cloud account",
		Long: `Pair this client with your cloud account using a one-time code from
the device pairing page. The code is exchanged for a long-lived device
token; session tokens are refreshed automatically afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: runConnect,
	}
}

func newDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Remove the stored credentials for this account",
		Args:  cobra.NoArgs,
		RunE:  runDisconnect,
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connection status",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runConnect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.session.Connect(ctx, app.cfg.UserID, args[0]); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}

	statusf("Connected as %s\n", app.cfg.UserID)

	return nil
}

func runDisconnect(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	app, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.session.Disconnect(ctx, app.cfg.UserID); err != nil {
		return err
	}

	statusf("Disconnected %s\n", app.cfg.UserID)

	return nil
}

// statusJSONOutput is the JSON output schema for the status command.
type statusJSONOutput struct {
	UserID       string `json:"user_id"`
	Connected    bool   `json:"connected"`
	TokenExpires string `json:"token_expires,omitempty"`
	LastSyncAt   string `json:"last_sync_at,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	app, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	cred, err := app.session.Status(ctx, app.cfg.UserID)
	if err != nil {
		if errors.Is(err, cloud.ErrNotConnected) {
			if flagJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")

				return enc.Encode(statusJSONOutput{UserID: app.cfg.UserID})
			}

			fmt.Printf("Not connected (user %s)\n", app.cfg.UserID)

			return nil
		}

		return err
	}

	if flagJSON {
		out := statusJSONOutput{
			UserID:    cred.UserID,
			Connected: cred.Connected,
		}

		if !cred.UserTokenExpiresAt.IsZero() {
			out.TokenExpires = cred.UserTokenExpiresAt.UTC().Format(time.RFC3339)
		}

		if !cred.LastSyncAt.IsZero() {
			out.LastSyncAt = cred.LastSyncAt.UTC().Format(time.RFC3339)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	}

	fmt.Printf("User:      %s\n", cred.UserID)
	fmt.Printf("Connected: %t\n", cred.Connected)

	if !cred.UserTokenExpiresAt.IsZero() {
		fmt.Printf("Token:     valid until %s\n", cred.UserTokenExpiresAt.UTC().Format("2006-01-02 15:04 UTC"))
	}

	if !cred.LastSyncAt.IsZero() {
		fmt.Printf("Last sync: %s\n", formatTime(cred.LastSyncAt))
	}

	return nil
}
