package escrow

import (
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PaymentType identifies the release condition attached to a payment.
type PaymentType uint8

const (
	PaymentSimple PaymentType = iota
	PaymentTimelocked
	PaymentMediated
	PaymentBonded
)

func (t PaymentType) String() string {
	switch t {
	case PaymentSimple:
		return "simple"
	case PaymentTimelocked:
		return "timelocked"
	case PaymentMediated:
		return "mediated"
	case PaymentBonded:
		return "bonded"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Valid reports whether the type value is within the supported range.
func (t PaymentType) Valid() bool {
	return t <= PaymentBonded
}

// PaymentStatus is the contract-reported lifecycle state of a payment.
type PaymentStatus uint8

const (
	StatusPending PaymentStatus = iota
	StatusAccepted
	StatusCompleted
	StatusDisputed
	StatusDeclined
)

func (s PaymentStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAccepted:
		return "accepted"
	case StatusCompleted:
		return "completed"
	case StatusDisputed:
		return "disputed"
	case StatusDeclined:
		return "declined"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Terminal reports whether no further receiver action can change the
// payment.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusDisputed, StatusDeclined:
		return true
	default:
		return false
	}
}

// PaymentRecord is a read-only snapshot of one escrow agreement stored
// by the contract. Local code never mutates a record; a refresh always
// replaces the whole snapshot.
type PaymentRecord struct {
	ID       string // uint256 on the wire, string-encoded to avoid precision loss
	Sender   common.Address
	Receiver common.Address
	Arbiter  common.Address // zero unless Type is PaymentMediated

	Token           common.Address
	Amount          *big.Int // smallest token unit, non-negative
	BondAmount      *big.Int // smallest token unit, non-negative
	Deadline        int64    // absolute unix seconds; zero means none
	ChallengePeriod time.Duration
	TermsHash       [32]byte

	Type   PaymentType
	Status PaymentStatus
}

// Clone returns a deep copy so callers can hold a record across a
// snapshot swap without aliasing big.Int values.
func (r *PaymentRecord) Clone() *PaymentRecord {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Amount != nil {
		clone.Amount = new(big.Int).Set(r.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if r.BondAmount != nil {
		clone.BondAmount = new(big.Int).Set(r.BondAmount)
	} else {
		clone.BondAmount = big.NewInt(0)
	}
	return &clone
}

// Sanitize validates the supplied record and returns a cloned instance
// with non-nil amount fields. The original value is not mutated.
func Sanitize(r *PaymentRecord) (*PaymentRecord, error) {
	if r == nil {
		return nil, fmt.Errorf("nil payment record")
	}
	clone := r.Clone()
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("payment amount must be non-negative")
	}
	if clone.BondAmount.Sign() < 0 {
		return nil, fmt.Errorf("bond amount must be non-negative")
	}
	if !clone.Type.Valid() {
		return nil, fmt.Errorf("invalid payment type: %d", clone.Type)
	}
	return clone, nil
}

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidAddress reports whether s is a well-formed 0x-prefixed, 42
// character hex address. Creation and action inputs are checked with
// this before any remote call is made.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// DeadlineTime converts the record's deadline to a wall-clock time.
// The zero time is returned when no deadline is set.
func (r *PaymentRecord) DeadlineTime() time.Time {
	if r.Deadline == 0 {
		return time.Time{}
	}
	return time.Unix(r.Deadline, 0)
}
