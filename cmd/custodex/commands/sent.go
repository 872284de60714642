package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewSentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sent",
		Short: "List payments you created",
		Long:  "List conditional payments where you are the sender, newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			records, err := app.Contract.PaymentsForSender(cmd.Context(), app.Viewer)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				Info("No sent payments found")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{
					r.ID,
					r.Type.String(),
					FormatUSDC(r.Amount),
					FormatAddress(r.Receiver.Hex()),
					StatusBadge(r.Status.String()),
					FormatDeadline(r.DeadlineTime()),
				})
			}
			fmt.Println(RenderTable(
				[]string{"ID", "Type", "Amount", "Receiver", "Status", "Deadline"},
				rows))
			return nil
		},
	}
}
