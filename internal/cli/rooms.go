package cli

import (
	"github.com/spf13/cobra"
)

func newRoomsCmd() *cobra.Command {
	var showQueue bool

	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List rooms on the server",
		Long: `List every room with its members, readiness and progress cursor,
as reported by the server's debug snapshot.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result DebugSnapshot

			if err := client.Get("/debug.json", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result.Rooms)
			if showQueue {
				out.Print(QueueListing(result.Queue))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showQueue, "queue", false, "Also list the matchmaking queue")

	return cmd
}
