// Package dispatch routes user actions on payments to the contract
// calls that implement them, running each call through the transaction
// lifecycle controller.
package dispatch

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/custodex/custodex/internal/escrow"
	"github.com/custodex/custodex/internal/lifecycle"
	"github.com/custodex/custodex/internal/logging"
	"github.com/custodex/custodex/internal/notify"
)

// DefaultDeadline is applied to new payments when the caller sets none.
const DefaultDeadline = 24 * time.Hour

// Dispatcher maps payment actions to contract calls. It re-derives the
// actionable state before every action so a stale view cannot trigger
// an illegal call.
type Dispatcher struct {
	contract   *escrow.EscrowContract
	token      *escrow.TokenContract
	controller *lifecycle.Controller
	notifier   notify.Notifier
	viewer     common.Address
	now        func() time.Time
}

// NewDispatcher creates a dispatcher acting on behalf of viewer.
func NewDispatcher(contract *escrow.EscrowContract, token *escrow.TokenContract, controller *lifecycle.Controller, notifier notify.Notifier, viewer common.Address) *Dispatcher {
	return &Dispatcher{
		contract:   contract,
		token:      token,
		controller: controller,
		notifier:   notifier,
		viewer:     viewer,
		now:        time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Accept accepts a pending payment. For bonded payments the bond
// approval is confirmed before the accept call is sent; if the
// approval fails the accept never runs. Mediated payments have no
// direct accept path and only produce an informational notification.
func (d *Dispatcher) Accept(ctx context.Context, r *escrow.PaymentRecord) error {
	state := escrow.Classify(r, d.now(), d.viewer)

	if r != nil && r.Type == escrow.PaymentMediated && state.State == escrow.AwaitsArbitration {
		d.notifier.Notify(notify.Notification{
			Kind:    notify.KindInfo,
			Message: "this payment settles through its arbiter; no acceptance is needed",
		})
		return nil
	}
	if state.State != escrow.CanAccept {
		return fmt.Errorf("%w: payment %s is not acceptable (%s)",
			escrow.ErrUnsupportedAction, recordID(r), state.State)
	}

	id := r.ID
	if state.RequiresBondApproval {
		bond := new(big.Int).Set(r.BondAmount)
		return d.controller.Submit(ctx, lifecycle.Intent{
			Action:      "accept",
			Description: fmt.Sprintf("accept bonded payment %s", id),
			Send: func(ctx context.Context) (common.Hash, error) {
				return d.acceptBonded(ctx, id, bond)
			},
			SuccessMessage: fmt.Sprintf("payment %s accepted with bond deposited", id),
		})
	}

	return d.controller.Submit(ctx, lifecycle.Intent{
		Action:      "accept",
		Description: fmt.Sprintf("accept payment %s", id),
		Send: func(ctx context.Context) (common.Hash, error) {
			tx, err := d.contract.AcceptTimelockedPayment(ctx, id)
			return txHash(tx), err
		},
		SuccessMessage: fmt.Sprintf("payment %s accepted", id),
	})
}

// acceptBonded confirms the bond allowance, then accepts. The approval
// is waited on so the contract sees the allowance when the accept call
// executes.
func (d *Dispatcher) acceptBonded(ctx context.Context, id string, bond *big.Int) (common.Hash, error) {
	d.notifier.Notify(notify.Notification{
		Kind:    notify.KindInfo,
		Message: fmt.Sprintf("approving bond of %s for payment %s", escrow.FormatAmount(bond), id),
	})

	if _, err := d.token.ApproveAndWait(ctx, d.contract.Address(), bond); err != nil {
		return common.Hash{}, fmt.Errorf("bond approval failed: %w", err)
	}
	logging.Info("bond approval confirmed", logging.PaymentID(id))

	tx, err := d.contract.AcceptBondedPayment(ctx, id)
	return txHash(tx), err
}

// Decline refuses a pending timelocked payment, or raises a dispute on
// a mediated one. Bonded payments have no on-chain decline path.
func (d *Dispatcher) Decline(ctx context.Context, r *escrow.PaymentRecord) error {
	state := escrow.Classify(r, d.now(), d.viewer)
	if !state.CanDecline {
		return fmt.Errorf("%w: payment %s cannot be declined (%s)",
			escrow.ErrUnsupportedAction, recordID(r), state.State)
	}

	id := r.ID
	switch r.Type {
	case escrow.PaymentTimelocked:
		return d.controller.Submit(ctx, lifecycle.Intent{
			Action:      "decline",
			Description: fmt.Sprintf("decline payment %s", id),
			Send: func(ctx context.Context) (common.Hash, error) {
				tx, err := d.contract.DeclineTimelockedPayment(ctx, id)
				return txHash(tx), err
			},
			SuccessMessage: fmt.Sprintf("payment %s declined", id),
		})
	case escrow.PaymentMediated:
		return d.controller.Submit(ctx, lifecycle.Intent{
			Action:      "dispute",
			Description: fmt.Sprintf("dispute payment %s", id),
			Send: func(ctx context.Context) (common.Hash, error) {
				tx, err := d.contract.DisputePayment(ctx, id)
				return txHash(tx), err
			},
			SuccessMessage: fmt.Sprintf("dispute raised for payment %s", id),
		})
	default:
		return fmt.Errorf("%w: %s payments have no decline call",
			escrow.ErrUnsupportedAction, r.Type)
	}
}

// Claim withdraws an unlocked timelocked payment.
func (d *Dispatcher) Claim(ctx context.Context, r *escrow.PaymentRecord) error {
	state := escrow.Classify(r, d.now(), d.viewer)
	if state.State == escrow.Locked {
		return fmt.Errorf("%w: payment %s is locked until %s",
			escrow.ErrUnsupportedAction, recordID(r), state.LockedUntil.Format(time.RFC3339))
	}
	if state.State != escrow.CanClaim {
		return fmt.Errorf("%w: payment %s is not claimable (%s)",
			escrow.ErrUnsupportedAction, recordID(r), state.State)
	}

	id := r.ID
	return d.controller.Submit(ctx, lifecycle.Intent{
		Action:      "claim",
		Description: fmt.Sprintf("claim payment %s", id),
		Send: func(ctx context.Context) (common.Hash, error) {
			tx, err := d.contract.ClaimTimelockedPayment(ctx, id)
			return txHash(tx), err
		},
		SuccessMessage: fmt.Sprintf("payment %s claimed", id),
	})
}

// CreateRequest is the validated-on-submit input for a new payment.
// Amounts are decimal token strings; addresses are 0x-prefixed hex.
type CreateRequest struct {
	Type     escrow.PaymentType
	Receiver string
	Arbiter  string // mediated only
	Amount   string
	Bond     string        // bonded only
	Lock     time.Duration // timelocked only
	Terms    string
	Deadline time.Time // zero applies DefaultDeadline
	Token    common.Address
}

// Create validates the request and submits the matching creation call.
func (d *Dispatcher) Create(ctx context.Context, req CreateRequest) error {
	return d.controller.Submit(ctx, lifecycle.Intent{
		Action:      "create",
		Description: fmt.Sprintf("create %s payment", req.Type),
		Validate:    func() error { return validateCreate(req) },
		Send: func(ctx context.Context) (common.Hash, error) {
			return d.sendCreate(ctx, req)
		},
		SuccessMessage: fmt.Sprintf("%s payment created", req.Type),
	})
}

func validateCreate(req CreateRequest) error {
	if !escrow.ValidAddress(req.Receiver) {
		return fmt.Errorf("receiver address is malformed: %q", req.Receiver)
	}
	if _, err := escrow.ParseAmount(req.Amount); err != nil {
		return err
	}

	switch req.Type {
	case escrow.PaymentMediated:
		if !escrow.ValidAddress(req.Arbiter) {
			return fmt.Errorf("arbiter address is malformed: %q", req.Arbiter)
		}
	case escrow.PaymentBonded:
		if _, err := escrow.ParseAmount(req.Bond); err != nil {
			return fmt.Errorf("bond: %w", err)
		}
	case escrow.PaymentTimelocked:
		if req.Lock <= 0 {
			return fmt.Errorf("lock duration must be positive")
		}
	default:
		return fmt.Errorf("unsupported payment type: %s", req.Type)
	}
	return nil
}

func (d *Dispatcher) sendCreate(ctx context.Context, req CreateRequest) (common.Hash, error) {
	receiver := common.HexToAddress(req.Receiver)
	amount, err := escrow.ParseAmount(req.Amount)
	if err != nil {
		return common.Hash{}, err
	}

	deadline := req.Deadline
	if deadline.IsZero() {
		deadline = d.now().Add(DefaultDeadline)
	}
	termsHash := crypto.Keccak256Hash([]byte(req.Terms))

	switch req.Type {
	case escrow.PaymentMediated:
		tx, err := d.contract.CreateMediatedPayment(ctx, receiver,
			common.HexToAddress(req.Arbiter), req.Token, amount, termsHash, deadline.Unix())
		return txHash(tx), err
	case escrow.PaymentBonded:
		bond, err := escrow.ParseAmount(req.Bond)
		if err != nil {
			return common.Hash{}, err
		}
		tx, err := d.contract.CreateBondedPayment(ctx, receiver,
			req.Token, amount, bond, termsHash, deadline.Unix())
		return txHash(tx), err
	case escrow.PaymentTimelocked:
		tx, err := d.contract.CreateTimelockedPayment(ctx, receiver,
			req.Token, amount, int64(req.Lock.Seconds()), termsHash, deadline.Unix())
		return txHash(tx), err
	default:
		return common.Hash{}, fmt.Errorf("unsupported payment type: %s", req.Type)
	}
}

// Release lets the sender release escrowed funds to the receiver.
func (d *Dispatcher) Release(ctx context.Context, r *escrow.PaymentRecord) error {
	if r == nil || r.Sender != d.viewer {
		return fmt.Errorf("%w: only the sender can release a payment", escrow.ErrUnsupportedAction)
	}
	if r.Status.Terminal() {
		return fmt.Errorf("%w: payment %s is already settled", escrow.ErrUnsupportedAction, r.ID)
	}

	id := r.ID
	return d.controller.Submit(ctx, lifecycle.Intent{
		Action:      "release",
		Description: fmt.Sprintf("release payment %s", id),
		Send: func(ctx context.Context) (common.Hash, error) {
			tx, err := d.contract.ReleasePayment(ctx, id)
			return txHash(tx), err
		},
		SuccessMessage: fmt.Sprintf("payment %s released", id),
	})
}

func recordID(r *escrow.PaymentRecord) string {
	if r == nil {
		return "<nil>"
	}
	return r.ID
}

// txHash tolerates mock-mode nil transactions.
func txHash(tx *types.Transaction) common.Hash {
	if tx == nil {
		return common.Hash{}
	}
	return tx.Hash()
}
