package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/custodex/custodex/internal/util"
)

// Config holds connection settings for the chain RPC gateway.
type Config struct {
	RPCURL             string
	ChainID            int64
	BlockConfirmations int
	GasLimitMultiplier float64
	MaxGasPrice        *big.Int
	RetryConfig        *util.RetryConfig
}

// DefaultConfig returns sensible defaults for a public testnet endpoint.
func DefaultConfig() *Config {
	return &Config{
		RPCURL:             "https://rpc.sepolia.org",
		ChainID:            11155111, // Sepolia
		BlockConfirmations: 0,
		GasLimitMultiplier: 1.2,
		MaxGasPrice:        big.NewInt(100e9), // 100 gwei max
		RetryConfig:        util.DefaultRetryConfig(),
	}
}

// Client is the JSON-RPC gateway to the chain node. Both the receipt
// poller and the contract bindings go through it; nothing else in the
// module talks to the node directly.
type Client struct {
	config     *Config
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int

	// Nonce management
	nonceMu      sync.Mutex
	pendingNonce uint64

	// Connection state
	connected bool
	mu        sync.RWMutex
}

// NewClient creates a client. privateKey may be nil for read-only use
// (listing offers, watching activity).
func NewClient(config *Config, privateKey *ecdsa.PrivateKey) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	c := &Client{
		config:     config,
		privateKey: privateKey,
		chainID:    big.NewInt(config.ChainID),
	}

	if privateKey != nil {
		c.address = crypto.PubkeyToAddress(privateKey.PublicKey)
	}

	return c, nil
}

// Connect dials the RPC endpoint and verifies the chain ID.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, result := util.RetryWithValue(ctx, c.config.RetryConfig, func() (*ethclient.Client, error) {
		return ethclient.DialContext(ctx, c.config.RPCURL)
	})
	if result.LastError != nil {
		return fmt.Errorf("failed to connect to chain RPC: %w", result.LastError)
	}
	c.client = client

	chainID, err := c.client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain ID: %w", err)
	}
	if chainID.Cmp(c.chainID) != 0 {
		return fmt.Errorf("chain ID mismatch: expected %d, got %d", c.chainID, chainID)
	}

	if c.privateKey != nil {
		nonce, err := c.client.PendingNonceAt(ctx, c.address)
		if err != nil {
			return fmt.Errorf("failed to get nonce: %w", err)
		}
		c.pendingNonce = nonce
	}

	c.connected = true
	return nil
}

// Close closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	c.connected = false
}

// IsConnected reports whether the client has an open connection.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Client returns the underlying ethclient for contract bindings.
func (c *Client) Client() *ethclient.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// Address returns the wallet address, zero when read-only.
func (c *Client) Address() common.Address {
	return c.address
}

// ChainID returns the configured chain ID.
func (c *Client) ChainID() *big.Int {
	return c.chainID
}

// CanSign reports whether a signing key is configured.
func (c *Client) CanSign() bool {
	return c.privateKey != nil
}

// GetTransactOpts creates signed transaction options. Each call
// allocates the next pending nonce.
func (c *Client) GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if c.privateKey == nil {
		return nil, fmt.Errorf("no signing key configured")
	}

	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("not connected")
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	if c.config.MaxGasPrice != nil && gasPrice.Cmp(c.config.MaxGasPrice) > 0 {
		gasPrice = c.config.MaxGasPrice
	}

	auth, err := bind.NewKeyedTransactorWithChainID(c.privateKey, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.Context = ctx
	auth.GasPrice = gasPrice

	c.nonceMu.Lock()
	auth.Nonce = big.NewInt(int64(c.pendingNonce))
	c.pendingNonce++
	c.nonceMu.Unlock()

	return auth, nil
}

// SyncNonce re-reads the pending nonce from the network, e.g. after a
// failed send left the local counter ahead.
func (c *Client) SyncNonce(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return fmt.Errorf("not connected")
	}

	nonce, err := client.PendingNonceAt(ctx, c.address)
	if err != nil {
		return fmt.Errorf("failed to get nonce: %w", err)
	}

	c.nonceMu.Lock()
	c.pendingNonce = nonce
	c.nonceMu.Unlock()

	return nil
}

// TransactionReceipt fetches the receipt for a transaction hash. It
// returns ethereum.NotFound while the transaction is still pending;
// the receipt poller treats that as "retry later".
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("not connected")
	}

	return client.TransactionReceipt(ctx, txHash)
}

// WaitForTransaction blocks until the transaction is mined and, when
// configured, buried under the confirmation depth.
func (c *Client) WaitForTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("not connected")
	}

	receipt, err := bind.WaitMined(ctx, client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for transaction: %w", err)
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, fmt.Errorf("transaction failed: %s", tx.Hash().Hex())
	}

	if c.config.BlockConfirmations > 0 {
		targetBlock := receipt.BlockNumber.Uint64() + uint64(c.config.BlockConfirmations)

		for {
			select {
			case <-ctx.Done():
				return receipt, ctx.Err()
			case <-time.After(2 * time.Second):
				currentBlock, err := client.BlockNumber(ctx)
				if err != nil {
					continue // Retry
				}
				if currentBlock >= targetBlock {
					return receipt, nil
				}
			}
		}
	}

	return receipt, nil
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return 0, fmt.Errorf("not connected")
	}

	num, result := util.RetryWithValue(ctx, c.config.RetryConfig, func() (uint64, error) {
		return client.BlockNumber(ctx)
	})
	if result.LastError != nil {
		return 0, fmt.Errorf("failed to get block number: %w", result.LastError)
	}
	return num, nil
}

// HeaderByNumber returns a block header, used to read block timestamps
// for activity display.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("not connected")
	}

	header, result := util.RetryWithValue(ctx, c.config.RetryConfig, func() (*types.Header, error) {
		return client.HeaderByNumber(ctx, number)
	})
	if result.LastError != nil {
		return nil, fmt.Errorf("failed to get header: %w", result.LastError)
	}
	return header, nil
}

// FilterLogs queries contract logs over a bounded block range.
func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("not connected")
	}

	logs, result := util.RetryWithValue(ctx, c.config.RetryConfig, func() ([]types.Log, error) {
		return client.FilterLogs(ctx, q)
	})
	if result.LastError != nil {
		return nil, fmt.Errorf("failed to filter logs: %w", result.LastError)
	}
	return logs, nil
}
