package escrow

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/custodex/custodex/internal/chain"
	"github.com/custodex/custodex/internal/logging"
)

// EscrowContract provides the client-side interface to the deployed
// conditional payment contract. IDs are uint256 on the wire and
// string-encoded decimal on this side.
type EscrowContract struct {
	chainClient  *chain.Client
	contract     *bind.BoundContract
	contractABI  abi.ABI
	contractAddr common.Address
	mockMode     bool

	// Mock state
	mockMu       sync.RWMutex
	mockPayments map[string]*PaymentRecord
	mockNextID   int64
	mockCalls    []string
	mockFail     map[string]error
	mockNonce    uint64
}

// NewEscrowContract creates a contract client bound to a connected
// chain client.
func NewEscrowContract(chainClient *chain.Client, contractAddr common.Address) (*EscrowContract, error) {
	if chainClient == nil {
		return nil, fmt.Errorf("chain client is required (use NewMockEscrowContract for testing)")
	}
	if !chainClient.IsConnected() {
		return nil, fmt.Errorf("chain client not connected to RPC")
	}

	parsedABI, err := abi.JSON(strings.NewReader(EscrowContractABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse escrow ABI: %w", err)
	}

	client := chainClient.Client()
	return &EscrowContract{
		chainClient:  chainClient,
		contract:     bind.NewBoundContract(contractAddr, parsedABI, client, client, client),
		contractABI:  parsedABI,
		contractAddr: contractAddr,
		mockPayments: make(map[string]*PaymentRecord),
		mockFail:     make(map[string]error),
	}, nil
}

// NewMockEscrowContract creates an in-memory contract for testing.
// Writes mutate local records and are recorded for call-order
// assertions.
func NewMockEscrowContract() *EscrowContract {
	return &EscrowContract{
		mockMode:     true,
		mockPayments: make(map[string]*PaymentRecord),
		mockFail:     make(map[string]error),
		mockNextID:   1,
	}
}

// IsMockMode returns whether running in mock mode.
func (ec *EscrowContract) IsMockMode() bool {
	return ec.mockMode
}

// Address returns the contract address (zero in mock mode).
func (ec *EscrowContract) Address() common.Address {
	return ec.contractAddr
}

// ABI returns the parsed contract ABI for event topic lookups.
func (ec *EscrowContract) ABI() abi.ABI {
	return ec.contractABI
}

// ─── Mock helpers ────────────────────────────────────────────────────────────

// SeedMockPayment inserts a record into mock state, assigning an ID
// when the record has none.
func (ec *EscrowContract) SeedMockPayment(r *PaymentRecord) *PaymentRecord {
	ec.mockMu.Lock()
	defer ec.mockMu.Unlock()

	clone := r.Clone()
	if clone.ID == "" {
		clone.ID = big.NewInt(ec.mockNextID).String()
		ec.mockNextID++
	}
	ec.mockPayments[clone.ID] = clone
	return clone.Clone()
}

// MockCalls returns the write-call names issued so far, in order.
func (ec *EscrowContract) MockCalls() []string {
	ec.mockMu.RLock()
	defer ec.mockMu.RUnlock()
	out := make([]string, len(ec.mockCalls))
	copy(out, ec.mockCalls)
	return out
}

// SetMockFail makes the named write call fail with err.
func (ec *EscrowContract) SetMockFail(call string, err error) {
	ec.mockMu.Lock()
	defer ec.mockMu.Unlock()
	ec.mockFail[call] = err
}

// mockTx fabricates a transaction so mock writes still produce a hash
// the lifecycle controller can track.
func (ec *EscrowContract) mockTx(method string) *types.Transaction {
	nonce := ec.mockNonce
	ec.mockNonce++
	to := ec.contractAddr
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      21000,
		GasPrice: big.NewInt(1),
		Value:    big.NewInt(0),
		Data:     []byte(method),
	})
}

// ─── Reads ───────────────────────────────────────────────────────────────────

// PaymentIDsForReceiver returns the IDs of all payments addressed to
// the given receiver.
func (ec *EscrowContract) PaymentIDsForReceiver(ctx context.Context, receiver common.Address) ([]string, error) {
	return ec.paymentIDs(ctx, "getPaymentsForReceiver", receiver, func(r *PaymentRecord) bool {
		return r.Receiver == receiver
	})
}

// PaymentIDsForSender returns the IDs of all payments created by the
// given sender.
func (ec *EscrowContract) PaymentIDsForSender(ctx context.Context, sender common.Address) ([]string, error) {
	return ec.paymentIDs(ctx, "getPaymentsForSender", sender, func(r *PaymentRecord) bool {
		return r.Sender == sender
	})
}

func (ec *EscrowContract) paymentIDs(ctx context.Context, method string, addr common.Address, match func(*PaymentRecord) bool) ([]string, error) {
	if ec.mockMode {
		ec.mockMu.RLock()
		defer ec.mockMu.RUnlock()
		if err := ec.mockFail[method]; err != nil {
			return nil, err
		}
		var ids []string
		for id, r := range ec.mockPayments {
			if match(r) {
				ids = append(ids, id)
			}
		}
		return ids, nil
	}

	var result []interface{}
	err := ec.contract.Call(&bind.CallOpts{Context: ctx}, &result, method, addr)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	if len(result) == 0 {
		return nil, nil
	}

	raw, ok := result[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected result format", method)
	}
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, id.String())
	}
	return ids, nil
}

// Payment fetches one payment record by ID.
func (ec *EscrowContract) Payment(ctx context.Context, id string) (*PaymentRecord, error) {
	if ec.mockMode {
		ec.mockMu.RLock()
		defer ec.mockMu.RUnlock()
		r, exists := ec.mockPayments[id]
		if !exists {
			return nil, fmt.Errorf("payment not found: %s", id)
		}
		return r.Clone(), nil
	}

	numericID, ok := new(big.Int).SetString(id, 10)
	if !ok {
		return nil, fmt.Errorf("invalid payment id: %s", id)
	}

	var result []interface{}
	err := ec.contract.Call(&bind.CallOpts{Context: ctx}, &result, "getPayment", numericID)
	if err != nil {
		return nil, fmt.Errorf("getPayment call failed: %w", err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("getPayment: empty result")
	}

	// go-ethereum unpacks the tuple return into an anonymous struct.
	res, ok := result[0].(struct {
		Id              *big.Int       `json:"id"`
		Sender          common.Address `json:"sender"`
		Receiver        common.Address `json:"receiver"`
		Arbiter         common.Address `json:"arbiter"`
		Token           common.Address `json:"token"`
		Amount          *big.Int       `json:"amount"`
		BondAmount      *big.Int       `json:"bondAmount"`
		Deadline        *big.Int       `json:"deadline"`
		ChallengePeriod *big.Int       `json:"challengePeriod"`
		TermsHash       [32]byte       `json:"termsHash"`
		PaymentType     uint8          `json:"paymentType"`
		Status          uint8          `json:"status"`
	})
	if !ok {
		return nil, fmt.Errorf("getPayment: unexpected result format")
	}

	record := &PaymentRecord{
		ID:         res.Id.String(),
		Sender:     res.Sender,
		Receiver:   res.Receiver,
		Arbiter:    res.Arbiter,
		Token:      res.Token,
		Amount:     res.Amount,
		BondAmount: res.BondAmount,
		TermsHash:  res.TermsHash,
		Type:       PaymentType(res.PaymentType),
		Status:     PaymentStatus(res.Status),
	}
	if res.Deadline != nil {
		record.Deadline = res.Deadline.Int64()
	}
	if res.ChallengePeriod != nil {
		record.ChallengePeriod = secondsToDuration(res.ChallengePeriod.Int64())
	}
	return Sanitize(record)
}

// PaymentsForReceiver fetches all records addressed to the receiver:
// the ID list first, then one getPayment per ID.
func (ec *EscrowContract) PaymentsForReceiver(ctx context.Context, receiver common.Address) ([]*PaymentRecord, error) {
	ids, err := ec.PaymentIDsForReceiver(ctx, receiver)
	if err != nil {
		return nil, err
	}
	return ec.payments(ctx, ids)
}

// PaymentsForSender fetches all records created by the sender.
func (ec *EscrowContract) PaymentsForSender(ctx context.Context, sender common.Address) ([]*PaymentRecord, error) {
	ids, err := ec.PaymentIDsForSender(ctx, sender)
	if err != nil {
		return nil, err
	}
	return ec.payments(ctx, ids)
}

func (ec *EscrowContract) payments(ctx context.Context, ids []string) ([]*PaymentRecord, error) {
	records := make([]*PaymentRecord, 0, len(ids))
	for _, id := range ids {
		r, err := ec.Payment(ctx, id)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// ─── Creation writes ─────────────────────────────────────────────────────────

// CreateMediatedPayment creates a payment whose disputes an arbiter
// resolves.
func (ec *EscrowContract) CreateMediatedPayment(ctx context.Context, receiver, arbiter, token common.Address, amount *big.Int, termsHash [32]byte, deadline int64) (*types.Transaction, error) {
	if ec.mockMode {
		return ec.mockCreate("createMediatedPayment", &PaymentRecord{
			Receiver:  receiver,
			Arbiter:   arbiter,
			Token:     token,
			Amount:    amount,
			TermsHash: termsHash,
			Deadline:  deadline,
			Type:      PaymentMediated,
			Status:    StatusPending,
		})
	}
	return ec.transact(ctx, "createMediatedPayment", receiver, arbiter, token, amount, termsHash, big.NewInt(deadline))
}

// CreateBondedPayment creates a payment the receiver must bond to accept.
func (ec *EscrowContract) CreateBondedPayment(ctx context.Context, receiver, token common.Address, amount, bondAmount *big.Int, termsHash [32]byte, deadline int64) (*types.Transaction, error) {
	if ec.mockMode {
		return ec.mockCreate("createBondedPayment", &PaymentRecord{
			Receiver:   receiver,
			Token:      token,
			Amount:     amount,
			BondAmount: bondAmount,
			TermsHash:  termsHash,
			Deadline:   deadline,
			Type:       PaymentBonded,
			Status:     StatusPending,
		})
	}
	return ec.transact(ctx, "createBondedPayment", receiver, token, amount, bondAmount, termsHash, big.NewInt(deadline))
}

// CreateTimelockedPayment creates a payment claimable only after the
// lock duration (seconds) has elapsed from acceptance.
func (ec *EscrowContract) CreateTimelockedPayment(ctx context.Context, receiver, token common.Address, amount *big.Int, lockSeconds int64, termsHash [32]byte, deadline int64) (*types.Transaction, error) {
	if ec.mockMode {
		return ec.mockCreate("createTimelockedPayment", &PaymentRecord{
			Receiver:        receiver,
			Token:           token,
			Amount:          amount,
			TermsHash:       termsHash,
			Deadline:        deadline,
			ChallengePeriod: secondsToDuration(lockSeconds),
			Type:            PaymentTimelocked,
			Status:          StatusPending,
		})
	}
	return ec.transact(ctx, "createTimelockedPayment", receiver, token, amount, big.NewInt(lockSeconds), termsHash, big.NewInt(deadline))
}

func (ec *EscrowContract) mockCreate(method string, r *PaymentRecord) (*types.Transaction, error) {
	ec.mockMu.Lock()
	defer ec.mockMu.Unlock()

	if err := ec.mockFail[method]; err != nil {
		return nil, err
	}

	clone := r.Clone()
	if ec.chainClient != nil {
		clone.Sender = ec.chainClient.Address()
	}
	clone.ID = big.NewInt(ec.mockNextID).String()
	ec.mockNextID++
	ec.mockPayments[clone.ID] = clone
	ec.mockCalls = append(ec.mockCalls, method)

	logging.Info("mock payment created", logging.PaymentID(clone.ID), "type", clone.Type.String())
	return ec.mockTx(method), nil
}

// ─── Action writes ───────────────────────────────────────────────────────────

// AcceptBondedPayment accepts a bonded payment. The bond approval must
// already be confirmed; the dispatcher enforces that ordering.
func (ec *EscrowContract) AcceptBondedPayment(ctx context.Context, id string) (*types.Transaction, error) {
	return ec.action(ctx, "acceptBondedPayment", id, StatusAccepted)
}

// AcceptTimelockedPayment records acceptance; funds move later via claim.
func (ec *EscrowContract) AcceptTimelockedPayment(ctx context.Context, id string) (*types.Transaction, error) {
	return ec.action(ctx, "acceptTimelockedPayment", id, StatusAccepted)
}

// DeclineTimelockedPayment declines a pending timelocked payment.
func (ec *EscrowContract) DeclineTimelockedPayment(ctx context.Context, id string) (*types.Transaction, error) {
	return ec.action(ctx, "declineTimelockedPayment", id, StatusDeclined)
}

// ClaimTimelockedPayment withdraws funds from an accepted, unlocked
// timelocked payment.
func (ec *EscrowContract) ClaimTimelockedPayment(ctx context.Context, id string) (*types.Transaction, error) {
	return ec.action(ctx, "claimTimelockedPayment", id, StatusCompleted)
}

// ReleasePayment releases escrowed funds to the receiver.
func (ec *EscrowContract) ReleasePayment(ctx context.Context, id string) (*types.Transaction, error) {
	return ec.action(ctx, "releasePayment", id, StatusCompleted)
}

// DisputePayment raises a dispute for the arbiter to resolve.
func (ec *EscrowContract) DisputePayment(ctx context.Context, id string) (*types.Transaction, error) {
	return ec.action(ctx, "disputePayment", id, StatusDisputed)
}

func (ec *EscrowContract) action(ctx context.Context, method, id string, next PaymentStatus) (*types.Transaction, error) {
	if ec.mockMode {
		ec.mockMu.Lock()
		defer ec.mockMu.Unlock()

		if err := ec.mockFail[method]; err != nil {
			return nil, err
		}
		r, exists := ec.mockPayments[id]
		if !exists {
			return nil, fmt.Errorf("payment not found: %s", id)
		}
		r.Status = next
		ec.mockCalls = append(ec.mockCalls, method)
		return ec.mockTx(method), nil
	}

	numericID, ok := new(big.Int).SetString(id, 10)
	if !ok {
		return nil, fmt.Errorf("invalid payment id: %s", id)
	}
	return ec.transact(ctx, method, numericID)
}

func (ec *EscrowContract) transact(ctx context.Context, method string, args ...interface{}) (*types.Transaction, error) {
	auth, err := ec.chainClient.GetTransactOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction options: %w", err)
	}

	tx, err := ec.contract.Transact(auth, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s transaction failed: %w", method, err)
	}
	return tx, nil
}

func secondsToDuration(s int64) time.Duration {
	return time.Duration(s) * time.Second
}
