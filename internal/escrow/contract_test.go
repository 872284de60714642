package escrow

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestMockCreateAssignsID(t *testing.T) {
	ec := NewMockEscrowContract()
	ctx := context.Background()

	tx, err := ec.CreateTimelockedPayment(ctx, testViewer, testOther, big.NewInt(1_000_000), 3600, [32]byte{}, 0)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if tx == nil {
		t.Fatal("create must return a transaction")
	}

	ids, err := ec.PaymentIDsForReceiver(ctx, testViewer)
	if err != nil {
		t.Fatalf("id lookup failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(ids))
	}

	r, err := ec.Payment(ctx, ids[0])
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if r.Type != PaymentTimelocked || r.Status != StatusPending {
		t.Errorf("unexpected record: type=%s status=%s", r.Type, r.Status)
	}
}

func TestMockActionsAdvanceStatus(t *testing.T) {
	ec := NewMockEscrowContract()
	ctx := context.Background()

	seeded := ec.SeedMockPayment(&PaymentRecord{
		Receiver: testViewer,
		Amount:   big.NewInt(1),
		Type:     PaymentTimelocked,
		Status:   StatusPending,
	})

	if _, err := ec.AcceptTimelockedPayment(ctx, seeded.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	r, _ := ec.Payment(ctx, seeded.ID)
	if r.Status != StatusAccepted {
		t.Errorf("after accept: status = %s, want accepted", r.Status)
	}

	if _, err := ec.ClaimTimelockedPayment(ctx, seeded.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	r, _ = ec.Payment(ctx, seeded.ID)
	if r.Status != StatusCompleted {
		t.Errorf("after claim: status = %s, want completed", r.Status)
	}

	calls := ec.MockCalls()
	if len(calls) != 2 || calls[0] != "acceptTimelockedPayment" || calls[1] != "claimTimelockedPayment" {
		t.Errorf("unexpected call order: %v", calls)
	}
}

func TestMockFailureInjection(t *testing.T) {
	ec := NewMockEscrowContract()
	injected := errors.New("nonce too low")
	ec.SetMockFail("disputePayment", injected)

	seeded := ec.SeedMockPayment(&PaymentRecord{
		Receiver: testViewer,
		Amount:   big.NewInt(1),
		Type:     PaymentMediated,
		Status:   StatusPending,
	})

	_, err := ec.DisputePayment(context.Background(), seeded.ID)
	if !errors.Is(err, injected) {
		t.Fatalf("expected injected error, got %v", err)
	}

	// Failure must not mutate the record or record a call.
	r, _ := ec.Payment(context.Background(), seeded.ID)
	if r.Status != StatusPending {
		t.Errorf("failed call mutated status to %s", r.Status)
	}
	if len(ec.MockCalls()) != 0 {
		t.Errorf("failed call was recorded: %v", ec.MockCalls())
	}
}

func TestMockUnknownPayment(t *testing.T) {
	ec := NewMockEscrowContract()
	if _, err := ec.Payment(context.Background(), "404"); err == nil {
		t.Error("expected error for unknown payment id")
	}
	if _, err := ec.ReleasePayment(context.Background(), "404"); err == nil {
		t.Error("expected error acting on unknown payment id")
	}
}

func TestMockTxHashesDistinct(t *testing.T) {
	ec := NewMockEscrowContract()
	ctx := context.Background()

	tx1, err := ec.CreateBondedPayment(ctx, testViewer, testOther, big.NewInt(10), big.NewInt(2), [32]byte{}, 0)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	tx2, err := ec.CreateBondedPayment(ctx, testViewer, testOther, big.NewInt(10), big.NewInt(2), [32]byte{}, 0)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if tx1.Hash() == tx2.Hash() {
		t.Error("mock transactions must have distinct hashes")
	}
}

func TestTokenMockApproveAndAllowance(t *testing.T) {
	tc := NewMockTokenContract()
	ctx := context.Background()

	if _, err := tc.Approve(ctx, testOther, big.NewInt(500)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	// Mock owner is the zero address when no chain client is attached.
	allowance, err := tc.Allowance(ctx, common.Address{}, testOther)
	if err != nil {
		t.Fatalf("allowance failed: %v", err)
	}
	if allowance.Int64() != 500 {
		t.Errorf("allowance = %s, want 500", allowance)
	}

	tc.SetMockFail("approve", errors.New("rejected"))
	if _, err := tc.Approve(ctx, testOther, big.NewInt(1)); err == nil {
		t.Error("expected injected approve failure")
	}
}

func TestTokenMockBalance(t *testing.T) {
	tc := NewMockTokenContract()
	tc.SetMockBalance(testViewer, big.NewInt(42))

	got, err := tc.BalanceOf(context.Background(), testViewer)
	if err != nil {
		t.Fatalf("balanceOf failed: %v", err)
	}
	if got.Int64() != 42 {
		t.Errorf("balance = %s, want 42", got)
	}

	empty, _ := tc.BalanceOf(context.Background(), testOther)
	if empty.Sign() != 0 {
		t.Errorf("unseeded balance = %s, want 0", empty)
	}
}
