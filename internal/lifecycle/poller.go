package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/custodex/custodex/internal/escrow"
	"github.com/custodex/custodex/internal/logging"
	"github.com/custodex/custodex/internal/metrics"
)

const (
	// DefaultPollInterval is the fixed delay between receipt lookups.
	DefaultPollInterval = 1500 * time.Millisecond

	// DefaultPollTimeout bounds how long a submitted transaction is
	// polled before the attempt is abandoned as a network failure.
	DefaultPollTimeout = 10 * time.Minute
)

// ReceiptReader fetches transaction receipts. A pending transaction is
// reported as ethereum.NotFound.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// PollOutcome is the terminal result of polling one transaction.
type PollOutcome int

const (
	PollSuccess PollOutcome = iota
	PollReverted
)

// ReceiptPoller repeatedly looks up a transaction receipt at a fixed
// interval until the transaction is mined or the timeout elapses.
type ReceiptPoller struct {
	reader   ReceiptReader
	interval time.Duration
	timeout  time.Duration
}

// NewReceiptPoller creates a poller with the default interval and
// timeout.
func NewReceiptPoller(reader ReceiptReader) *ReceiptPoller {
	return &ReceiptPoller{
		reader:   reader,
		interval: DefaultPollInterval,
		timeout:  DefaultPollTimeout,
	}
}

// WithInterval overrides the poll interval. Tests use millisecond
// intervals to stay fast.
func (p *ReceiptPoller) WithInterval(d time.Duration) *ReceiptPoller {
	p.interval = d
	return p
}

// WithTimeout overrides the overall polling deadline.
func (p *ReceiptPoller) WithTimeout(d time.Duration) *ReceiptPoller {
	p.timeout = d
	return p
}

// Poll blocks until the transaction is mined, the timeout elapses or
// ctx is canceled. A missing receipt and transient lookup errors both
// mean "not mined yet" and are retried on the next tick.
func (p *ReceiptPoller) Poll(ctx context.Context, txHash common.Hash) (PollOutcome, error) {
	pollCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		metrics.ReceiptPolls.Inc()
		receipt, err := p.reader.TransactionReceipt(pollCtx, txHash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				return PollSuccess, nil
			}
			logging.Warn("transaction reverted", logging.TxHash(txHash.Hex()))
			return PollReverted, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			if ctxErr := pollCtx.Err(); ctxErr != nil {
				return 0, p.ctxError(ctx, txHash)
			}
			logging.Debug("receipt lookup failed, retrying",
				logging.TxHash(txHash.Hex()), logging.Err(err))
		}

		select {
		case <-pollCtx.Done():
			return 0, p.ctxError(ctx, txHash)
		case <-ticker.C:
		}
	}
}

// ctxError distinguishes caller cancellation from timeout expiry.
func (p *ReceiptPoller) ctxError(parent context.Context, txHash common.Hash) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	return fmt.Errorf("%w: transaction %s not confirmed within %s",
		escrow.ErrNetwork, txHash.Hex(), p.timeout)
}
