// Package inbox maintains the receiver's view of incoming payments:
// a periodically refreshed snapshot of records with their derived
// actionable states, plus a recent on-chain activity feed.
package inbox

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"github.com/custodex/custodex/internal/escrow"
	"github.com/custodex/custodex/internal/logging"
	"github.com/custodex/custodex/internal/metrics"
	"github.com/custodex/custodex/internal/util"
)

// DefaultRefreshInterval is the cadence of the background refresh loop.
const DefaultRefreshInterval = 15 * time.Second

// Entry pairs a payment record with its classification for the viewer
// at refresh time.
type Entry struct {
	Record *escrow.PaymentRecord
	State  escrow.ActionableState
}

// Inbox holds the receiver's payment snapshot. A failed refresh keeps
// the previous snapshot so the view degrades to stale rather than
// empty.
type Inbox struct {
	contract *escrow.EscrowContract
	viewer   common.Address
	interval time.Duration
	limiter  *rate.Limiter
	now      func() time.Time

	mu          sync.RWMutex
	entries     []Entry
	lastRefresh time.Time
	lastErr     error
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithRefreshInterval overrides the refresh cadence.
func WithRefreshInterval(d time.Duration) Option {
	return func(ib *Inbox) {
		ib.interval = d
		ib.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(ib *Inbox) { ib.now = now }
}

// New creates an inbox for the given viewer.
func New(contract *escrow.EscrowContract, viewer common.Address, opts ...Option) *Inbox {
	ib := &Inbox{
		contract: contract,
		viewer:   viewer,
		interval: DefaultRefreshInterval,
		limiter:  rate.NewLimiter(rate.Every(DefaultRefreshInterval), 1),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(ib)
	}
	return ib
}

// Refresh fetches the viewer's records and reclassifies them. Calls
// arriving faster than the refresh interval are coalesced into the
// existing snapshot.
func (ib *Inbox) Refresh(ctx context.Context) error {
	if !ib.limiter.Allow() {
		return nil
	}
	return ib.refresh(ctx)
}

// ForceRefresh bypasses the rate limit. Used after a confirmed
// transaction, when the snapshot is known stale.
func (ib *Inbox) ForceRefresh(ctx context.Context) error {
	return ib.refresh(ctx)
}

func (ib *Inbox) refresh(ctx context.Context) error {
	records, err := ib.contract.PaymentsForReceiver(ctx, ib.viewer)
	if err != nil {
		ib.mu.Lock()
		ib.lastErr = err
		ib.mu.Unlock()
		metrics.InboxRefreshFailures.Inc()
		logging.Warn("inbox refresh failed, keeping previous snapshot", logging.Err(err))
		return fmt.Errorf("%w: %v", escrow.ErrNetwork, err)
	}

	now := ib.now()
	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, Entry{
			Record: r,
			State:  escrow.Classify(r, now, ib.viewer),
		})
	}
	sortEntries(entries)

	ib.mu.Lock()
	ib.entries = entries
	ib.lastRefresh = now
	ib.lastErr = nil
	ib.mu.Unlock()

	metrics.InboxSize.Set(float64(len(entries)))
	return nil
}

// Run refreshes on a fixed interval until ctx is canceled. The first
// refresh happens immediately. The returned channel closes when the
// loop exits.
func (ib *Inbox) Run(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	util.SafeGoWithName("inbox-refresh", func() {
		defer close(done)
		if err := ib.ForceRefresh(ctx); err != nil && ctx.Err() == nil {
			logging.Debug("initial inbox refresh failed", logging.Err(err))
		}

		ticker := time.NewTicker(ib.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ib.ForceRefresh(ctx); err != nil && ctx.Err() == nil {
					logging.Debug("inbox refresh failed", logging.Err(err))
				}
			}
		}
	})
	return done
}

// Snapshot returns the current entries, reclassified against the
// current clock so lock expiries surface without waiting for the next
// fetch.
func (ib *Inbox) Snapshot() []Entry {
	ib.mu.RLock()
	defer ib.mu.RUnlock()

	now := ib.now()
	out := make([]Entry, 0, len(ib.entries))
	for _, e := range ib.entries {
		out = append(out, Entry{
			Record: e.Record,
			State:  escrow.Classify(e.Record, now, ib.viewer),
		})
	}
	return out
}

// Actionable returns only the entries the viewer can currently act on.
func (ib *Inbox) Actionable() []Entry {
	var out []Entry
	for _, e := range ib.Snapshot() {
		if e.State.State != escrow.NotApplicable {
			out = append(out, e)
		}
	}
	return out
}

// Find returns the entry for the given payment ID, or false.
func (ib *Inbox) Find(id string) (Entry, bool) {
	for _, e := range ib.Snapshot() {
		if e.Record.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// LastRefresh reports when the snapshot was last replaced and the
// error from the most recent attempt, if it failed.
func (ib *Inbox) LastRefresh() (time.Time, error) {
	ib.mu.RLock()
	defer ib.mu.RUnlock()
	return ib.lastRefresh, ib.lastErr
}

// sortEntries orders by numeric ID, newest first.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, aok := new(big.Int).SetString(entries[i].Record.ID, 10)
		b, bok := new(big.Int).SetString(entries[j].Record.ID, 10)
		if !aok || !bok {
			return entries[i].Record.ID > entries[j].Record.ID
		}
		return a.Cmp(b) > 0
	})
}
