package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/papertablet/papercloud-go/internal/cloud"
)

// settleInterval is how long a file's size must stay unchanged before it
// is considered fully written and safe to upload.
const settleInterval = 500 * time.Millisecond

// settleAttempts caps how long we wait for a file to stop growing.
const settleAttempts = 20

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <local-dir>",
		Short: "Upload PDFs dropped into a local directory",
		Long: `Watch a local directory and upload every PDF that appears in it to the
configured remote folder. Runs until interrupted. Files are read only
once their size has stopped changing, so partially written files are
not uploaded.`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().StringP("dest", "d", "/", "destination remote folder")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	localDir := args[0]
	ctx := cmd.Context()

	dest, err := cmd.Flags().GetString("dest")
	if err != nil {
		return err
	}

	fi, err := os.Stat(localDir)
	if err != nil {
		return fmt.Errorf("stating %q: %w", localDir, err)
	}

	if !fi.IsDir() {
		return fmt.Errorf("%q is not a directory", localDir)
	}

	app, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	// Provision the destination once up front so the first drop does not
	// pay the folder walk.
	if _, err := app.service.CreateFolder(ctx, dest); err != nil {
		return fmt.Errorf("creating destination %q: %w", dest, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(localDir); err != nil {
		return fmt.Errorf("watching %q: %w", localDir, err)
	}

	statusf("Watching %s -> %s (Ctrl-C to stop)\n", localDir, cloud.CleanPath(dest))

	return watchLoop(ctx, app, watcher, dest)
}

// watchLoop uploads PDFs as create/rename events arrive, until ctx is
// canceled or the watcher fails.
func watchLoop(ctx context.Context, app *appContext, watcher *fsnotify.Watcher, dest string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed")
			}

			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}

			if !strings.EqualFold(filepath.Ext(ev.Name), ".pdf") {
				continue
			}

			handleDroppedFile(ctx, app, ev.Name, dest)

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed")
			}

			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// handleDroppedFile waits for the file to settle, then uploads it.
// Failures are logged rather than terminating the watch: one bad file
// should not stop the drop folder.
func handleDroppedFile(ctx context.Context, app *appContext, path, dest string) {
	if err := waitForSettle(ctx, path); err != nil {
		app.logger.Warn("skipping unsettled file",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return
	}

	id, err := uploadFile(ctx, app, path, dest)
	if err != nil {
		app.logger.Error("upload failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return
	}

	statusf("Uploaded %s (%s)\n", filepath.Base(path), id)
}

// waitForSettle polls the file size until it stays unchanged for one
// interval, meaning the writer has finished.
func waitForSettle(ctx context.Context, path string) error {
	var lastSize int64 = -1

	for range settleAttempts {
		fi, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stating %q: %w", path, err)
		}

		if fi.Size() == lastSize {
			return nil
		}

		lastSize = fi.Size()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settleInterval):
		}
	}

	return fmt.Errorf("file %q did not stop growing", path)
}
