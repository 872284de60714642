package inbox

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/goleak"

	"github.com/custodex/custodex/internal/escrow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	viewer = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	sender = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func seed(contract *escrow.EscrowContract, typ escrow.PaymentType, status escrow.PaymentStatus) *escrow.PaymentRecord {
	return contract.SeedMockPayment(&escrow.PaymentRecord{
		Sender:   sender,
		Receiver: viewer,
		Amount:   big.NewInt(1_000_000),
		Type:     typ,
		Status:   status,
	})
}

func TestRefreshClassifies(t *testing.T) {
	contract := escrow.NewMockEscrowContract()
	seed(contract, escrow.PaymentTimelocked, escrow.StatusPending)
	seed(contract, escrow.PaymentTimelocked, escrow.StatusDeclined)

	ib := New(contract, viewer, WithRefreshInterval(time.Millisecond))
	if err := ib.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	all := ib.Snapshot()
	if len(all) != 2 {
		t.Fatalf("snapshot size = %d, want 2", len(all))
	}
	actionable := ib.Actionable()
	if len(actionable) != 1 {
		t.Fatalf("actionable size = %d, want 1", len(actionable))
	}
	if actionable[0].State.State != escrow.CanAccept {
		t.Errorf("state = %s, want can-accept", actionable[0].State.State)
	}
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	contract := escrow.NewMockEscrowContract()
	seed(contract, escrow.PaymentTimelocked, escrow.StatusPending)

	ib := New(contract, viewer, WithRefreshInterval(time.Millisecond))
	if err := ib.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	contract.SetMockFail("getPaymentsForReceiver", errors.New("rpc: connection refused"))
	err := ib.ForceRefresh(context.Background())
	if !errors.Is(err, escrow.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}

	// The previous snapshot survives the failed fetch.
	if got := len(ib.Snapshot()); got != 1 {
		t.Errorf("snapshot size after failure = %d, want 1", got)
	}
	if _, lastErr := ib.LastRefresh(); lastErr == nil {
		t.Error("LastRefresh should report the failed attempt")
	}
}

func TestSnapshotReclassifiesOnRead(t *testing.T) {
	contract := escrow.NewMockEscrowContract()
	deadline := time.Unix(1_700_000_000, 0)
	r := seed(contract, escrow.PaymentTimelocked, escrow.StatusAccepted)
	r.Deadline = deadline.Unix()
	contract.SeedMockPayment(r)

	clock := deadline.Add(-time.Minute)
	ib := New(contract, viewer,
		WithRefreshInterval(time.Millisecond),
		WithClock(func() time.Time { return clock }))
	if err := ib.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if got := ib.Snapshot()[0].State.State; got != escrow.Locked {
		t.Fatalf("before deadline: state = %s, want locked", got)
	}

	// Once the clock passes the deadline the same snapshot reads as
	// claimable without another fetch.
	clock = deadline
	if got := ib.Snapshot()[0].State.State; got != escrow.CanClaim {
		t.Fatalf("at deadline: state = %s, want can-claim", got)
	}
}

func TestRefreshCoalesced(t *testing.T) {
	contract := escrow.NewMockEscrowContract()
	ib := New(contract, viewer, WithRefreshInterval(time.Hour))

	if err := ib.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	first, _ := ib.LastRefresh()

	// Within the interval a second refresh is a no-op.
	if err := ib.Refresh(context.Background()); err != nil {
		t.Fatalf("coalesced refresh errored: %v", err)
	}
	second, _ := ib.LastRefresh()
	if !second.Equal(first) {
		t.Error("rate-limited refresh still fetched")
	}

	// ForceRefresh bypasses the limiter.
	if err := ib.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("force refresh failed: %v", err)
	}
	third, _ := ib.LastRefresh()
	if third.Equal(first) {
		t.Error("force refresh did not fetch")
	}
}

func TestFind(t *testing.T) {
	contract := escrow.NewMockEscrowContract()
	r := seed(contract, escrow.PaymentBonded, escrow.StatusPending)

	ib := New(contract, viewer, WithRefreshInterval(time.Millisecond))
	if err := ib.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	e, ok := ib.Find(r.ID)
	if !ok {
		t.Fatalf("payment %s not found", r.ID)
	}
	if !e.State.RequiresBondApproval {
		t.Error("bonded entry should flag the bond approval")
	}
	if _, ok := ib.Find("9999"); ok {
		t.Error("unknown id should not be found")
	}
}

func TestRunLoopStopsOnCancel(t *testing.T) {
	contract := escrow.NewMockEscrowContract()
	seed(contract, escrow.PaymentTimelocked, escrow.StatusPending)

	ctx, cancel := context.WithCancel(context.Background())
	ib := New(contract, viewer, WithRefreshInterval(2*time.Millisecond))
	done := ib.Run(ctx)

	deadline := time.Now().Add(time.Second)
	for {
		if last, _ := ib.LastRefresh(); !last.IsZero() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("background refresh never ran")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresh loop did not stop")
	}
}
