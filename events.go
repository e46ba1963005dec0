package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Stream remote change notifications",
		Long: `Subscribe to the cloud's notification stream and print each document
event as it arrives. Runs until interrupted or the connection drops;
the command does not reconnect on its own.`,
		Args: cobra.NoArgs,
		RunE: runEvents,
	}
}

// eventJSONOutput is the JSON output schema for one notification.
type eventJSONOutput struct {
	Event string `json:"event"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
}

func runEvents(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	app, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	stream, err := app.client.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}
	defer stream.Close()

	statusf("Listening for remote events (Ctrl-C to stop)\n")

	enc := json.NewEncoder(os.Stdout)

	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			return err
		}

		if flagJSON {
			if err := enc.Encode(eventJSONOutput{
				Event: ev.Type,
				ID:    ev.Node.ID,
				Name:  ev.Node.Name,
				Kind:  ev.Node.Kind,
			}); err != nil {
				return err
			}

			continue
		}

		fmt.Printf("%-12s %s (%s)\n", ev.Type, ev.Node.Name, ev.Node.ID)
	}
}
