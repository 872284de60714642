package escrow

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/custodex/custodex/internal/chain"
	"github.com/custodex/custodex/internal/logging"
)

// TokenDecimals is the decimal precision of the settlement token
// (USDC-style, 6 decimals).
const TokenDecimals = 6

// TokenContract provides the ERC20 interface to the settlement token.
type TokenContract struct {
	chainClient  *chain.Client
	contract     *bind.BoundContract
	contractABI  abi.ABI
	contractAddr common.Address
	mockMode     bool

	// Mock state
	mockMu         sync.RWMutex
	mockBalances   map[common.Address]*big.Int
	mockAllowances map[common.Address]map[common.Address]*big.Int
	mockCalls      []string
	mockFail       map[string]error
}

// NewTokenContract creates a token contract client.
func NewTokenContract(chainClient *chain.Client, contractAddr common.Address) (*TokenContract, error) {
	tc := &TokenContract{
		chainClient:    chainClient,
		contractAddr:   contractAddr,
		mockBalances:   make(map[common.Address]*big.Int),
		mockAllowances: make(map[common.Address]map[common.Address]*big.Int),
		mockFail:       make(map[string]error),
	}

	// If no chain client, use mock mode
	if chainClient == nil || !chainClient.IsConnected() {
		tc.mockMode = true
		return tc, nil
	}

	parsedABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}
	tc.contractABI = parsedABI

	client := chainClient.Client()
	tc.contract = bind.NewBoundContract(contractAddr, parsedABI, client, client, client)

	return tc, nil
}

// NewMockTokenContract creates a mock token contract for testing.
func NewMockTokenContract() *TokenContract {
	return &TokenContract{
		mockMode:       true,
		mockBalances:   make(map[common.Address]*big.Int),
		mockAllowances: make(map[common.Address]map[common.Address]*big.Int),
		mockFail:       make(map[string]error),
	}
}

// IsMockMode returns whether running in mock mode.
func (tc *TokenContract) IsMockMode() bool {
	return tc.mockMode
}

// Address returns the token contract address.
func (tc *TokenContract) Address() common.Address {
	return tc.contractAddr
}

// BalanceOf returns the token balance for an address.
func (tc *TokenContract) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	if tc.mockMode {
		tc.mockMu.RLock()
		defer tc.mockMu.RUnlock()
		balance, exists := tc.mockBalances[account]
		if !exists {
			return big.NewInt(0), nil
		}
		return new(big.Int).Set(balance), nil
	}

	var result []interface{}
	err := tc.contract.Call(&bind.CallOpts{Context: ctx}, &result, "balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	if len(result) == 0 {
		return big.NewInt(0), nil
	}
	if balance, ok := result[0].(*big.Int); ok {
		return balance, nil
	}
	return big.NewInt(0), nil
}

// Allowance returns the allowance granted to a spender.
func (tc *TokenContract) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	if tc.mockMode {
		tc.mockMu.RLock()
		defer tc.mockMu.RUnlock()
		if ownerAllowances, exists := tc.mockAllowances[owner]; exists {
			if allowance, ok := ownerAllowances[spender]; ok {
				return new(big.Int).Set(allowance), nil
			}
		}
		return big.NewInt(0), nil
	}

	var result []interface{}
	err := tc.contract.Call(&bind.CallOpts{Context: ctx}, &result, "allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("failed to get allowance: %w", err)
	}

	if len(result) == 0 {
		return big.NewInt(0), nil
	}
	if allowance, ok := result[0].(*big.Int); ok {
		return allowance, nil
	}
	return big.NewInt(0), nil
}

// Approve grants a spender permission to move tokens.
func (tc *TokenContract) Approve(ctx context.Context, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	if tc.mockMode {
		return tc.mockApprove(ctx, spender, amount)
	}

	auth, err := tc.chainClient.GetTransactOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction options: %w", err)
	}

	tx, err := tc.contract.Transact(auth, "approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to approve: %w", err)
	}

	return tx, nil
}

func (tc *TokenContract) mockApprove(_ context.Context, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	tc.mockMu.Lock()
	defer tc.mockMu.Unlock()

	if err := tc.mockFail["approve"]; err != nil {
		return nil, err
	}

	var owner common.Address
	if tc.chainClient != nil {
		owner = tc.chainClient.Address()
	}
	if _, exists := tc.mockAllowances[owner]; !exists {
		tc.mockAllowances[owner] = make(map[common.Address]*big.Int)
	}
	tc.mockAllowances[owner][spender] = new(big.Int).Set(amount)
	tc.mockCalls = append(tc.mockCalls, "approve")

	logging.Debug("mock approve", logging.Address(spender.Hex()), "amount", amount.String())
	return nil, nil
}

// ApproveAndWait approves and waits for the approval to confirm.
// Callers that take a separate escrow action afterwards must use this
// rather than Approve so the allowance is in place before the spend.
func (tc *TokenContract) ApproveAndWait(ctx context.Context, spender common.Address, amount *big.Int) (*types.Receipt, error) {
	tx, err := tc.Approve(ctx, spender, amount)
	if err != nil {
		return nil, err
	}

	if tc.mockMode || tx == nil {
		return nil, nil
	}

	return tc.chainClient.WaitForTransaction(ctx, tx)
}

// SetMockBalance sets a mock balance for testing.
func (tc *TokenContract) SetMockBalance(account common.Address, amount *big.Int) {
	if !tc.mockMode {
		return
	}
	tc.mockMu.Lock()
	defer tc.mockMu.Unlock()
	tc.mockBalances[account] = new(big.Int).Set(amount)
}

// SetMockFail makes the named call fail with err.
func (tc *TokenContract) SetMockFail(call string, err error) {
	tc.mockMu.Lock()
	defer tc.mockMu.Unlock()
	tc.mockFail[call] = err
}

// MockCalls returns the write-call names issued so far, in order.
func (tc *TokenContract) MockCalls() []string {
	tc.mockMu.RLock()
	defer tc.mockMu.RUnlock()
	out := make([]string, len(tc.mockCalls))
	copy(out, tc.mockCalls)
	return out
}

// FormatAmount formats a smallest-unit token amount for display.
func FormatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}

	decimals := new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)
	whole := new(big.Int).Div(amount, decimals)
	frac := new(big.Int).Mod(amount, decimals)

	if frac.Sign() == 0 {
		return whole.String()
	}

	fracStr := frac.String()
	for len(fracStr) < TokenDecimals {
		fracStr = "0" + fracStr
	}
	// Trim trailing zeros
	for len(fracStr) > 0 && fracStr[len(fracStr)-1] == '0' {
		fracStr = fracStr[:len(fracStr)-1]
	}

	if len(fracStr) == 0 {
		return whole.String()
	}
	return whole.String() + "." + fracStr
}

// ParseAmount parses a decimal token amount string to the smallest
// unit. Negative amounts and excess precision are rejected.
func ParseAmount(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" || strings.HasPrefix(amount, "-") {
		return nil, fmt.Errorf("invalid amount: %q", amount)
	}

	parts := strings.Split(amount, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid amount: %q", amount)
	}

	whole, ok := new(big.Int).SetString(parts[0], 10)
	if !ok || whole.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %q", amount)
	}

	decimals := new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)
	result := new(big.Int).Mul(whole, decimals)

	if len(parts) == 2 {
		fracStr := parts[1]
		if len(fracStr) > TokenDecimals {
			return nil, fmt.Errorf("amount has more than %d decimal places: %q", TokenDecimals, amount)
		}
		for len(fracStr) < TokenDecimals {
			fracStr += "0"
		}
		frac, ok := new(big.Int).SetString(fracStr, 10)
		if !ok || frac.Sign() < 0 {
			return nil, fmt.Errorf("invalid decimal: %q", parts[1])
		}
		result.Add(result, frac)
	}

	return result, nil
}
