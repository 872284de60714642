package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/custodex/custodex/internal/dispatch"
	"github.com/custodex/custodex/internal/escrow"
)

func NewCreateCmd() *cobra.Command {
	var (
		payType  string
		receiver string
		arbiter  string
		amount   string
		bond     string
		lock     time.Duration
		terms    string
		deadline time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new conditional payment",
		Long: `Create a new conditional payment offer for a receiver.

Payment types:
  timelocked  Receiver accepts, then claims after the lock period.
  bonded      Receiver deposits a bond before accepting.
  mediated    A third-party arbiter resolves disputes.

Amounts are in USDC, e.g. --amount 12.50.

Examples:
  custodex create --type timelocked --receiver 0xabc... --amount 100 --lock 48h --terms "Deliver the report"
  custodex create --type bonded --receiver 0xabc... --amount 100 --bond 10 --terms "Fix the bug"
  custodex create --type mediated --receiver 0xabc... --arbiter 0xdef... --amount 100 --terms "Design work"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			pt, err := parsePaymentType(payType)
			if err != nil {
				return err
			}

			req := dispatch.CreateRequest{
				Type:     pt,
				Receiver: receiver,
				Arbiter:  arbiter,
				Amount:   amount,
				Bond:     bond,
				Lock:     lock,
				Terms:    terms,
				Token:    common.HexToAddress(app.Config.Contracts.Token),
			}
			if deadline > 0 {
				req.Deadline = time.Now().Add(deadline)
			}

			fmt.Println(StatusBox("New Payment", [][2]string{
				{"Type", pt.String()},
				{"Receiver", FormatAddress(receiver)},
				{"Amount", amount + " USDC"},
			}))
			if !Confirm("Sign and send this transaction?") {
				Info("Aborted")
				return nil
			}

			if err := app.Dispatcher.Create(cmd.Context(), req); err != nil {
				return err
			}
			app.Controller.Wait()
			return nil
		},
	}

	cmd.Flags().StringVar(&payType, "type", "timelocked", "Payment type (timelocked, bonded, mediated)")
	cmd.Flags().StringVar(&receiver, "receiver", "", "Receiver address (required)")
	cmd.Flags().StringVar(&arbiter, "arbiter", "", "Arbiter address (mediated only)")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount in USDC (required)")
	cmd.Flags().StringVar(&bond, "bond", "", "Bond amount in USDC (bonded only)")
	cmd.Flags().DurationVar(&lock, "lock", 0, "Lock period before the receiver can claim (timelocked only)")
	cmd.Flags().StringVar(&terms, "terms", "", "Free-form terms text, hashed on-chain (required)")
	cmd.Flags().DurationVar(&deadline, "deadline", 0, "Acceptance deadline from now (default 24h)")
	cmd.MarkFlagRequired("receiver")
	cmd.MarkFlagRequired("amount")
	cmd.MarkFlagRequired("terms")

	return cmd
}

func parsePaymentType(s string) (escrow.PaymentType, error) {
	switch strings.ToLower(s) {
	case "timelocked":
		return escrow.PaymentTimelocked, nil
	case "bonded":
		return escrow.PaymentBonded, nil
	case "mediated":
		return escrow.PaymentMediated, nil
	default:
		return 0, fmt.Errorf("unknown payment type %q (want timelocked, bonded or mediated)", s)
	}
}
