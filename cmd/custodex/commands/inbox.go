package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodex/custodex/internal/escrow"
	"github.com/custodex/custodex/internal/inbox"
)

func NewInboxCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List payment offers addressed to you",
		Long: `List conditional payments where you are the receiver.

By default only actionable offers are shown. Use --all to include
completed, declined and locked entries.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Inbox.ForceRefresh(cmd.Context()); err != nil {
				return err
			}

			entries := app.Inbox.Actionable()
			if all {
				entries = app.Inbox.Snapshot()
			}
			if len(entries) == 0 {
				Info("No payment offers found")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.Record.ID,
					e.Record.Type.String(),
					FormatUSDC(e.Record.Amount),
					FormatAddress(e.Record.Sender.Hex()),
					StatusBadge(entryStatus(e)),
					FormatDeadline(e.Record.DeadlineTime()),
				})
			}
			fmt.Println(RenderTable(
				[]string{"ID", "Type", "Amount", "Sender", "Status", "Deadline"},
				rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include non-actionable entries")
	return cmd
}

// entryStatus picks the label shown in the status column. Actionable
// states are more informative than the raw on-chain status.
func entryStatus(e inbox.Entry) string {
	if e.State.State != escrow.NotApplicable {
		return e.State.State.String()
	}
	return e.Record.Status.String()
}
