package dispatch

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/goleak"

	"github.com/custodex/custodex/internal/escrow"
	"github.com/custodex/custodex/internal/lifecycle"
	"github.com/custodex/custodex/internal/notify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	viewer = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	sender = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

// minedReader confirms every transaction on first lookup.
type minedReader struct{}

func (minedReader) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

type fixture struct {
	contract   *escrow.EscrowContract
	token      *escrow.TokenContract
	controller *lifecycle.Controller
	spy        *notify.Spy
	dispatcher *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	contract := escrow.NewMockEscrowContract()
	token := escrow.NewMockTokenContract()
	spy := &notify.Spy{}
	poller := lifecycle.NewReceiptPoller(minedReader{}).
		WithInterval(time.Millisecond).
		WithTimeout(time.Second)
	controller := lifecycle.NewController(poller, spy,
		lifecycle.WithGraceDelay(time.Millisecond))
	return &fixture{
		contract:   contract,
		token:      token,
		controller: controller,
		spy:        spy,
		dispatcher: NewDispatcher(contract, token, controller, spy, viewer),
	}
}

func (f *fixture) seed(t escrow.PaymentType, s escrow.PaymentStatus) *escrow.PaymentRecord {
	return f.contract.SeedMockPayment(&escrow.PaymentRecord{
		Sender:     sender,
		Receiver:   viewer,
		Amount:     big.NewInt(5_000_000),
		BondAmount: big.NewInt(1_000_000),
		Type:       t,
		Status:     s,
	})
}

func TestAcceptTimelocked(t *testing.T) {
	f := newFixture(t)
	r := f.seed(escrow.PaymentTimelocked, escrow.StatusPending)

	if err := f.dispatcher.Accept(context.Background(), r); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	f.controller.Wait()

	calls := f.contract.MockCalls()
	if len(calls) != 1 || calls[0] != "acceptTimelockedPayment" {
		t.Errorf("unexpected calls: %v", calls)
	}
	if n := f.spy.CountKind(notify.KindSuccess); n != 1 {
		t.Errorf("success notifications = %d, want 1", n)
	}
}

func TestAcceptBondedApprovesFirst(t *testing.T) {
	f := newFixture(t)
	r := f.seed(escrow.PaymentBonded, escrow.StatusPending)

	if err := f.dispatcher.Accept(context.Background(), r); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	f.controller.Wait()

	if calls := f.token.MockCalls(); len(calls) != 1 || calls[0] != "approve" {
		t.Fatalf("expected one approve call, got %v", calls)
	}
	if calls := f.contract.MockCalls(); len(calls) != 1 || calls[0] != "acceptBondedPayment" {
		t.Fatalf("expected acceptBondedPayment after the approval, got %v", calls)
	}

	// Approved allowance must cover the bond.
	allowance, _ := f.token.Allowance(context.Background(), common.Address{}, f.contract.Address())
	if allowance.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Errorf("allowance = %s, want bond amount", allowance)
	}

	// The two-step flow surfaces its own progress text: the bond
	// approval notice plus a lifecycle description naming the bond step.
	var sawApproval, sawBondedProgress bool
	for _, n := range f.spy.All() {
		if n.Kind != notify.KindInfo {
			continue
		}
		if strings.Contains(n.Message, "approving bond") {
			sawApproval = true
		}
		if strings.Contains(n.Message, "accept bonded payment "+r.ID) {
			sawBondedProgress = true
		}
	}
	if !sawApproval {
		t.Error("missing bond approval progress notification")
	}
	if !sawBondedProgress {
		t.Error("lifecycle progress text should name the bonded accept step")
	}
}

func TestAcceptBondedAbortsOnApprovalFailure(t *testing.T) {
	f := newFixture(t)
	r := f.seed(escrow.PaymentBonded, escrow.StatusPending)
	f.token.SetMockFail("approve", errors.New("insufficient funds for gas"))

	if err := f.dispatcher.Accept(context.Background(), r); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	f.controller.Wait()

	if calls := f.contract.MockCalls(); len(calls) != 0 {
		t.Fatalf("accept must not run after a failed approval, got %v", calls)
	}
	if n := f.spy.CountKind(notify.KindError); n != 1 {
		t.Errorf("error notifications = %d, want 1", n)
	}

	got, _ := f.contract.Payment(context.Background(), r.ID)
	if got.Status != escrow.StatusPending {
		t.Errorf("payment status changed to %s", got.Status)
	}
}

func TestAcceptMediatedIsInformational(t *testing.T) {
	f := newFixture(t)
	r := f.seed(escrow.PaymentMediated, escrow.StatusPending)

	if err := f.dispatcher.Accept(context.Background(), r); err != nil {
		t.Fatalf("accept returned error: %v", err)
	}

	if calls := f.contract.MockCalls(); len(calls) != 0 {
		t.Errorf("mediated accept must make no contract call, got %v", calls)
	}
	if got := f.controller.Phase(); got != lifecycle.PhaseIdle {
		t.Errorf("lifecycle engaged for mediated accept: %s", got)
	}
	last, ok := f.spy.Last()
	if !ok || last.Kind != notify.KindInfo {
		t.Errorf("expected a single info notification, got %+v", last)
	}
}

func TestAcceptWrongState(t *testing.T) {
	f := newFixture(t)
	r := f.seed(escrow.PaymentTimelocked, escrow.StatusDeclined)

	err := f.dispatcher.Accept(context.Background(), r)
	if !errors.Is(err, escrow.ErrUnsupportedAction) {
		t.Fatalf("expected ErrUnsupportedAction, got %v", err)
	}
}

func TestDeclineTimelocked(t *testing.T) {
	f := newFixture(t)
	r := f.seed(escrow.PaymentTimelocked, escrow.StatusPending)

	if err := f.dispatcher.Decline(context.Background(), r); err != nil {
		t.Fatalf("decline failed: %v", err)
	}
	f.controller.Wait()

	calls := f.contract.MockCalls()
	if len(calls) != 1 || calls[0] != "declineTimelockedPayment" {
		t.Errorf("unexpected calls: %v", calls)
	}
}

func TestDeclineMediatedRaisesDispute(t *testing.T) {
	f := newFixture(t)
	r := f.seed(escrow.PaymentMediated, escrow.StatusPending)

	if err := f.dispatcher.Decline(context.Background(), r); err != nil {
		t.Fatalf("decline failed: %v", err)
	}
	f.controller.Wait()

	calls := f.contract.MockCalls()
	if len(calls) != 1 || calls[0] != "disputePayment" {
		t.Errorf("unexpected calls: %v", calls)
	}
	got, _ := f.contract.Payment(context.Background(), r.ID)
	if got.Status != escrow.StatusDisputed {
		t.Errorf("status = %s, want disputed", got.Status)
	}
}

func TestDeclineBondedUnsupported(t *testing.T) {
	f := newFixture(t)
	r := f.seed(escrow.PaymentBonded, escrow.StatusPending)

	err := f.dispatcher.Decline(context.Background(), r)
	if !errors.Is(err, escrow.ErrUnsupportedAction) {
		t.Fatalf("expected ErrUnsupportedAction, got %v", err)
	}
	if calls := f.contract.MockCalls(); len(calls) != 0 {
		t.Errorf("no contract call expected, got %v", calls)
	}
}

func TestClaimRespectsLock(t *testing.T) {
	f := newFixture(t)
	r := f.seed(escrow.PaymentTimelocked, escrow.StatusAccepted)
	deadline := time.Unix(1_700_000_000, 0)
	r.Deadline = deadline.Unix()
	r = f.contract.SeedMockPayment(r)

	f.dispatcher.WithClock(func() time.Time { return deadline.Add(-time.Minute) })
	err := f.dispatcher.Claim(context.Background(), r)
	if !errors.Is(err, escrow.ErrUnsupportedAction) {
		t.Fatalf("locked claim: expected ErrUnsupportedAction, got %v", err)
	}

	f.dispatcher.WithClock(func() time.Time { return deadline })
	if err := f.dispatcher.Claim(context.Background(), r); err != nil {
		t.Fatalf("claim at deadline failed: %v", err)
	}
	f.controller.Wait()

	calls := f.contract.MockCalls()
	if len(calls) != 1 || calls[0] != "claimTimelockedPayment" {
		t.Errorf("unexpected calls: %v", calls)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	err := f.dispatcher.Create(context.Background(), CreateRequest{
		Type:     escrow.PaymentTimelocked,
		Receiver: "not-an-address",
		Amount:   "10",
		Lock:     time.Hour,
	})
	if !errors.Is(err, escrow.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if calls := f.contract.MockCalls(); len(calls) != 0 {
		t.Errorf("invalid input must not reach the contract, got %v", calls)
	}

	err = f.dispatcher.Create(context.Background(), CreateRequest{
		Type:     escrow.PaymentBonded,
		Receiver: viewer.Hex(),
		Amount:   "10",
		Bond:     "-1",
	})
	if !errors.Is(err, escrow.ErrInvalidInput) {
		t.Fatalf("negative bond: expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateTimelocked(t *testing.T) {
	f := newFixture(t)

	err := f.dispatcher.Create(context.Background(), CreateRequest{
		Type:     escrow.PaymentTimelocked,
		Receiver: viewer.Hex(),
		Amount:   "12.5",
		Lock:     2 * time.Hour,
		Terms:    "deliverable: design review",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	f.controller.Wait()

	records, err := f.contract.PaymentsForReceiver(context.Background(), viewer)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Amount.String() != "12500000" {
		t.Errorf("amount = %s, want 12500000", r.Amount)
	}
	if r.ChallengePeriod != 2*time.Hour {
		t.Errorf("lock duration = %s, want 2h", r.ChallengePeriod)
	}
	if r.Deadline == 0 {
		t.Error("default deadline was not applied")
	}
}

func TestCreateMediatedRequiresArbiter(t *testing.T) {
	f := newFixture(t)

	err := f.dispatcher.Create(context.Background(), CreateRequest{
		Type:     escrow.PaymentMediated,
		Receiver: viewer.Hex(),
		Amount:   "3",
	})
	if !errors.Is(err, escrow.ErrInvalidInput) {
		t.Fatalf("missing arbiter: expected ErrInvalidInput, got %v", err)
	}

	err = f.dispatcher.Create(context.Background(), CreateRequest{
		Type:     escrow.PaymentMediated,
		Receiver: viewer.Hex(),
		Arbiter:  sender.Hex(),
		Amount:   "3",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	f.controller.Wait()

	if calls := f.contract.MockCalls(); len(calls) != 1 || calls[0] != "createMediatedPayment" {
		t.Errorf("unexpected calls: %v", calls)
	}
}

func TestReleaseSenderOnly(t *testing.T) {
	f := newFixture(t)
	r := f.seed(escrow.PaymentMediated, escrow.StatusAccepted)

	// The viewer is the receiver here, not the sender.
	err := f.dispatcher.Release(context.Background(), r)
	if !errors.Is(err, escrow.ErrUnsupportedAction) {
		t.Fatalf("expected ErrUnsupportedAction, got %v", err)
	}
}
