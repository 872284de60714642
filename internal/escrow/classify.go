package escrow

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Actionable names the action currently legal for a record from the
// viewer's perspective.
type Actionable uint8

const (
	NotApplicable Actionable = iota
	CanAccept
	Locked
	CanClaim
	AwaitsArbitration
)

func (a Actionable) String() string {
	switch a {
	case NotApplicable:
		return "not-applicable"
	case CanAccept:
		return "can-accept"
	case Locked:
		return "locked"
	case CanClaim:
		return "can-claim"
	case AwaitsArbitration:
		return "awaits-arbitration"
	default:
		return "unknown"
	}
}

// ActionableState is the derived, never-stored classification of one
// record for one viewer at one instant. Locked vs CanClaim depends on
// the wall clock, so it is recomputed on every refresh.
type ActionableState struct {
	State Actionable

	// LockedUntil is set when State is Locked.
	LockedUntil time.Time

	// CanDecline is set when a decline (or decline-as-dispute) path
	// exists alongside the primary action.
	CanDecline bool

	// RequiresBondApproval is set when accepting first needs a token
	// approval for the record's bond amount.
	RequiresBondApproval bool
}

// Classify derives the actionable state for a record. Pure function of
// the record, the clock and the viewer; classification never inspects
// the amount, so zero-amount records classify normally.
func Classify(r *PaymentRecord, now time.Time, viewer common.Address) ActionableState {
	if r == nil || r.Receiver != viewer {
		return ActionableState{State: NotApplicable}
	}
	if r.Status.Terminal() {
		return ActionableState{State: NotApplicable}
	}

	switch r.Type {
	case PaymentTimelocked:
		switch r.Status {
		case StatusAccepted:
			deadline := r.DeadlineTime()
			if now.Before(deadline) {
				return ActionableState{State: Locked, LockedUntil: deadline}
			}
			// Boundary is inclusive: claimable the instant now >= deadline.
			return ActionableState{State: CanClaim}
		case StatusPending:
			return ActionableState{State: CanAccept, CanDecline: true}
		}

	case PaymentBonded:
		if r.Status == StatusPending {
			return ActionableState{State: CanAccept, CanDecline: true, RequiresBondApproval: true}
		}

	case PaymentMediated:
		// No direct accept path exists; settlement goes through the
		// arbiter, with decline expressed as a dispute.
		return ActionableState{State: AwaitsArbitration, CanDecline: true}
	}

	return ActionableState{State: NotApplicable}
}
