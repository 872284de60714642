package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodex/custodex/internal/escrow"
)

// runPaymentAction loads the payment, shows a summary, runs the
// dispatcher action and blocks until the transaction lifecycle
// finishes. The notifier has already reported the outcome by then.
func runPaymentAction(ctx context.Context, id string, action func(context.Context, *App, *escrow.PaymentRecord) error) error {
	app, err := NewApp(ctx, true)
	if err != nil {
		return err
	}
	defer app.Close()

	record, err := app.Contract.Payment(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load payment %s: %w", id, err)
	}

	fmt.Println(StatusBox("Payment "+record.ID, [][2]string{
		{"Type", record.Type.String()},
		{"Amount", FormatUSDC(record.Amount)},
		{"Sender", FormatAddress(record.Sender.Hex())},
		{"Status", StatusBadge(record.Status.String())},
		{"Deadline", FormatDeadline(record.DeadlineTime())},
	}))

	if !Confirm("Sign and send this transaction?") {
		Info("Aborted")
		return nil
	}

	if err := action(ctx, app, record); err != nil {
		return err
	}
	app.Controller.Wait()
	return nil
}

func NewAcceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept [payment-id]",
		Short: "Accept a pending payment offer",
		Long: `Accept a pending payment offer addressed to you.

Bonded payments require a bond deposit: the bond amount is approved on
the token contract first, then the acceptance transaction is sent.
Mediated payments need no on-chain acceptance; the arbiter releases
funds once the terms are met.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPaymentAction(cmd.Context(), args[0], func(ctx context.Context, app *App, r *escrow.PaymentRecord) error {
				return app.Dispatcher.Accept(ctx, r)
			})
		},
	}
}

func NewDeclineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decline [payment-id]",
		Short: "Decline a pending payment offer",
		Long: `Decline a pending payment offer, returning funds to the sender.

Declining a mediated payment raises a dispute for the arbiter to
resolve. Bonded payments cannot be declined on-chain.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPaymentAction(cmd.Context(), args[0], func(ctx context.Context, app *App, r *escrow.PaymentRecord) error {
				return app.Dispatcher.Decline(ctx, r)
			})
		},
	}
}

func NewClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim [payment-id]",
		Short: "Claim a matured timelocked payment",
		Long:  "Claim the funds of an accepted timelocked payment whose deadline has passed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPaymentAction(cmd.Context(), args[0], func(ctx context.Context, app *App, r *escrow.PaymentRecord) error {
				return app.Dispatcher.Claim(ctx, r)
			})
		},
	}
}

func NewReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release [payment-id]",
		Short: "Release an accepted payment you sent",
		Long:  "Release the escrowed funds of a payment you created to its receiver.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPaymentAction(cmd.Context(), args[0], func(ctx context.Context, app *App, r *escrow.PaymentRecord) error {
				return app.Dispatcher.Release(ctx, r)
			})
		},
	}
}
