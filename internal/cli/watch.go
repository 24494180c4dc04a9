package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/histograph-go/internal/events"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream performed actions from a server",
	Long: `Print every action the server performs until interrupted.

Examples:
  histograph watch --server http://localhost:8484`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rb, ok := backend.(*remoteBackend)
		if !ok {
			return errRemoteOnly
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		w := cmd.OutOrStdout()
		err := rb.client.Subscribe(ctx, func(msg events.Message) error {
			if msg.Action == nil {
				return nil
			}
			state := "performed"
			if !msg.Performed {
				state = "not performed"
			}
			fmt.Fprintln(w, defaultTheme.statusStyle().Render(fmt.Sprintf("%s %s by %s %s", msg.Action.ID, msg.Action.Kind, msg.Action.PerformedBy, state)))
			fmt.Fprint(w, formatResults(defaultTheme, msg.Results))
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}
