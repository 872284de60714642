package escrow

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testViewer = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testOther  = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func record(t PaymentType, s PaymentStatus) *PaymentRecord {
	return &PaymentRecord{
		ID:       "1",
		Sender:   testOther,
		Receiver: testViewer,
		Amount:   big.NewInt(1_000_000),
		Type:     t,
		Status:   s,
	}
}

func TestClassifyReceiverMismatch(t *testing.T) {
	r := record(PaymentTimelocked, StatusPending)
	got := Classify(r, time.Now(), testOther)
	if got.State != NotApplicable {
		t.Errorf("expected NotApplicable for non-receiver, got %s", got.State)
	}
	if got.CanDecline {
		t.Error("non-receiver must not be offered a decline")
	}
}

func TestClassifyNilRecord(t *testing.T) {
	got := Classify(nil, time.Now(), testViewer)
	if got.State != NotApplicable {
		t.Errorf("expected NotApplicable for nil record, got %s", got.State)
	}
}

func TestClassifyTerminalStatuses(t *testing.T) {
	for _, s := range []PaymentStatus{StatusCompleted, StatusDisputed, StatusDeclined} {
		got := Classify(record(PaymentTimelocked, s), time.Now(), testViewer)
		if got.State != NotApplicable {
			t.Errorf("status %s: expected NotApplicable, got %s", s, got.State)
		}
	}
}

func TestClassifyTimelockedAcceptedBeforeDeadline(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := record(PaymentTimelocked, StatusAccepted)
	r.Deadline = now.Unix() + 3600

	got := Classify(r, now, testViewer)
	if got.State != Locked {
		t.Fatalf("expected Locked, got %s", got.State)
	}
	if !got.LockedUntil.Equal(time.Unix(r.Deadline, 0)) {
		t.Errorf("LockedUntil = %v, want %v", got.LockedUntil, time.Unix(r.Deadline, 0))
	}
}

func TestClassifyTimelockedDeadlineBoundary(t *testing.T) {
	deadline := time.Unix(1_700_000_000, 0)
	r := record(PaymentTimelocked, StatusAccepted)
	r.Deadline = deadline.Unix()

	// One second before the deadline the funds stay locked.
	got := Classify(r, deadline.Add(-time.Second), testViewer)
	if got.State != Locked {
		t.Errorf("at T-1s: expected Locked, got %s", got.State)
	}

	// At exactly the deadline the payment becomes claimable.
	got = Classify(r, deadline, testViewer)
	if got.State != CanClaim {
		t.Errorf("at T: expected CanClaim, got %s", got.State)
	}

	got = Classify(r, deadline.Add(time.Second), testViewer)
	if got.State != CanClaim {
		t.Errorf("at T+1s: expected CanClaim, got %s", got.State)
	}
}

func TestClassifyTimelockedPending(t *testing.T) {
	got := Classify(record(PaymentTimelocked, StatusPending), time.Now(), testViewer)
	if got.State != CanAccept {
		t.Fatalf("expected CanAccept, got %s", got.State)
	}
	if !got.CanDecline {
		t.Error("pending timelocked payment should be declinable")
	}
	if got.RequiresBondApproval {
		t.Error("timelocked payment must not require a bond approval")
	}
}

func TestClassifyBondedPending(t *testing.T) {
	r := record(PaymentBonded, StatusPending)
	r.BondAmount = big.NewInt(500_000)

	got := Classify(r, time.Now(), testViewer)
	if got.State != CanAccept {
		t.Fatalf("expected CanAccept, got %s", got.State)
	}
	if !got.CanDecline {
		t.Error("pending bonded payment should be declinable")
	}
	if !got.RequiresBondApproval {
		t.Error("bonded acceptance must flag the bond approval")
	}
}

func TestClassifyBondedAccepted(t *testing.T) {
	got := Classify(record(PaymentBonded, StatusAccepted), time.Now(), testViewer)
	if got.State != NotApplicable {
		t.Errorf("accepted bonded payment has no receiver action, got %s", got.State)
	}
}

func TestClassifyMediated(t *testing.T) {
	for _, s := range []PaymentStatus{StatusPending, StatusAccepted} {
		got := Classify(record(PaymentMediated, s), time.Now(), testViewer)
		if got.State != AwaitsArbitration {
			t.Errorf("status %s: expected AwaitsArbitration, got %s", s, got.State)
		}
		if !got.CanDecline {
			t.Errorf("status %s: mediated payment should allow decline-as-dispute", s)
		}
	}
}

func TestClassifyIgnoresAmount(t *testing.T) {
	r := record(PaymentTimelocked, StatusPending)
	r.Amount = big.NewInt(0)

	got := Classify(r, time.Now(), testViewer)
	if got.State != CanAccept {
		t.Errorf("zero-amount record must classify normally, got %s", got.State)
	}
}

func TestClassifySimple(t *testing.T) {
	got := Classify(record(PaymentSimple, StatusPending), time.Now(), testViewer)
	if got.State != NotApplicable {
		t.Errorf("simple payment has no receiver action, got %s", got.State)
	}
}
