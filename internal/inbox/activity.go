package inbox

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/custodex/custodex/internal/escrow"
	"github.com/custodex/custodex/internal/logging"
)

// DefaultLookbackBlocks bounds the log scan for the activity feed.
const DefaultLookbackBlocks = 50_000

// ActivityKind names a contract event relevant to the feed.
type ActivityKind string

const (
	ActivityCreated  ActivityKind = "created"
	ActivityAccepted ActivityKind = "accepted"
	ActivityDeclined ActivityKind = "declined"
	ActivityClaimed  ActivityKind = "claimed"
	ActivityDisputed ActivityKind = "disputed"
	ActivityReleased ActivityKind = "released"
)

var eventKinds = map[string]ActivityKind{
	"PaymentCreated":  ActivityCreated,
	"PaymentAccepted": ActivityAccepted,
	"PaymentDeclined": ActivityDeclined,
	"PaymentClaimed":  ActivityClaimed,
	"PaymentDisputed": ActivityDisputed,
	"PaymentReleased": ActivityReleased,
}

// Activity is one contract event decoded for display.
type Activity struct {
	Kind      ActivityKind
	PaymentID string
	TxHash    common.Hash
	Block     uint64
	Time      time.Time
}

// LogSource is the slice of the chain client the feed needs.
type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// ActivityFeed reads recent payment events from the chain.
type ActivityFeed struct {
	source   LogSource
	contract common.Address
	topics   map[common.Hash]ActivityKind
	lookback uint64
}

// NewActivityFeed builds a feed for one deployed contract.
func NewActivityFeed(source LogSource, contract common.Address, contractABI abi.ABI) *ActivityFeed {
	topics := make(map[common.Hash]ActivityKind, len(eventKinds))
	for name, kind := range eventKinds {
		ev, ok := contractABI.Events[name]
		if !ok {
			continue
		}
		topics[ev.ID] = kind
	}
	return &ActivityFeed{
		source:   source,
		contract: contract,
		topics:   topics,
		lookback: DefaultLookbackBlocks,
	}
}

// WithLookback overrides the block scan window.
func (f *ActivityFeed) WithLookback(blocks uint64) *ActivityFeed {
	f.lookback = blocks
	return f
}

// Recent returns payment events from the lookback window, newest
// first. Block timestamps are resolved once per block.
func (f *ActivityFeed) Recent(ctx context.Context) ([]Activity, error) {
	head, err := f.source.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", escrow.ErrNetwork, err)
	}

	from := uint64(0)
	if head > f.lookback {
		from = head - f.lookback
	}

	logs, err := f.source.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		Addresses: []common.Address{f.contract},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", escrow.ErrNetwork, err)
	}

	blockTimes := make(map[uint64]time.Time)
	var out []Activity
	for _, lg := range logs {
		if len(lg.Topics) < 2 {
			continue
		}
		kind, ok := f.topics[lg.Topics[0]]
		if !ok {
			continue
		}

		ts, cached := blockTimes[lg.BlockNumber]
		if !cached {
			header, err := f.source.HeaderByNumber(ctx, new(big.Int).SetUint64(lg.BlockNumber))
			if err != nil {
				logging.Debug("block header lookup failed", "block", lg.BlockNumber, logging.Err(err))
			} else {
				ts = time.Unix(int64(header.Time), 0)
			}
			blockTimes[lg.BlockNumber] = ts
		}

		out = append(out, Activity{
			Kind:      kind,
			PaymentID: new(big.Int).SetBytes(lg.Topics[1].Bytes()).String(),
			TxHash:    lg.TxHash,
			Block:     lg.BlockNumber,
			Time:      ts,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Block > out[j].Block })
	return out, nil
}
