package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewActivityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activity",
		Short: "Recent on-chain escrow activity",
		Long:  "Show recent escrow contract events from the last blocks of chain history.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			if app.Feed == nil {
				Info("Activity feed requires a configured contract")
				return nil
			}

			events, err := app.Feed.Recent(cmd.Context())
			if err != nil {
				return err
			}
			if len(events) == 0 {
				Info("No recent activity")
				return nil
			}

			rows := make([][]string, 0, len(events))
			for _, ev := range events {
				rows = append(rows, []string{
					ev.Time.Format("2006-01-02 15:04"),
					string(ev.Kind),
					ev.PaymentID,
					FormatAddress(ev.TxHash.Hex()),
					fmt.Sprintf("%d", ev.Block),
				})
			}
			fmt.Println(RenderTable(
				[]string{"Time", "Event", "Payment", "Tx", "Block"},
				rows))
			return nil
		},
	}
}
