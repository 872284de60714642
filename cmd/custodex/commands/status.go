package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Wallet and connection status",
		Long:  "Show the configured network, contracts, wallet address and token balance.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			mode := "connected"
			if app.Chain == nil {
				mode = "mock (no contract configured)"
			}

			wallet := "none"
			if app.Wallet != nil {
				wallet = app.Wallet.Address().Hex()
			}

			fields := [][2]string{
				{"Mode", mode},
				{"Network", fmt.Sprintf("chain %d", app.Config.Chain.ChainID)},
				{"RPC", app.Config.Chain.RPCURL},
				{"Escrow", addressOrNone(app.Config.Contracts.Escrow)},
				{"Token", addressOrNone(app.Config.Contracts.Token)},
				{"Wallet", wallet},
			}

			if app.Wallet != nil {
				balance, err := app.Token.BalanceOf(cmd.Context(), app.Viewer)
				if err != nil {
					Warning(fmt.Sprintf("balance lookup failed: %v", err))
				} else {
					fields = append(fields, [2]string{"Balance", FormatUSDC(balance)})
				}
				allowance, err := app.Token.Allowance(cmd.Context(), app.Viewer, app.Contract.Address())
				if err == nil && allowance.Sign() > 0 {
					fields = append(fields, [2]string{"Allowance", FormatUSDC(allowance)})
				}
			}

			fmt.Println(StatusBox("Custodex Status", fields))
			return nil
		},
	}
}

func addressOrNone(addr string) string {
	if addr == "" {
		return "none"
	}
	return FormatAddress(addr)
}
