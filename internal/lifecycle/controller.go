package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/custodex/custodex/internal/escrow"
	"github.com/custodex/custodex/internal/logging"
	"github.com/custodex/custodex/internal/metrics"
	"github.com/custodex/custodex/internal/notify"
	"github.com/custodex/custodex/internal/util"
)

// DefaultGraceDelay is the pause between wallet approval and the start
// of confirmation polling, long enough for the submitted state to be
// visible before it changes again.
const DefaultGraceDelay = 1500 * time.Millisecond

// Phase is the transaction lifecycle state. At most one transaction is
// in flight at a time; a submit while any non-idle phase is active is
// refused as busy.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingApproval
	PhaseApproved
	PhaseAwaitingConfirmation
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingApproval:
		return "awaiting-approval"
	case PhaseApproved:
		return "approved"
	case PhaseAwaitingConfirmation:
		return "awaiting-confirmation"
	default:
		return "unknown"
	}
}

// Intent describes one transaction to run through the lifecycle.
// Validate runs synchronously before any state changes; Send performs
// the wallet interaction and returns the transaction hash.
type Intent struct {
	// Action is the stable name of the operation ("accept", "claim"),
	// used as a metric label. Description may embed identifiers.
	Action         string
	Description    string
	Validate       func() error
	Send           func(ctx context.Context) (common.Hash, error)
	SuccessMessage string
	SuccessLink    string
}

func (i Intent) metricAction() string {
	if i.Action != "" {
		return i.Action
	}
	return "unknown"
}

// Controller drives a single transaction at a time from submission
// through confirmation, emitting exactly one notification per terminal
// outcome and refreshing payment state after a confirmed transaction.
type Controller struct {
	poller       *ReceiptPoller
	notifier     notify.Notifier
	graceDelay   time.Duration
	explorerBase string
	onChanged    func()

	mu     sync.Mutex
	phase  Phase
	cancel context.CancelFunc
	done   chan struct{}
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithGraceDelay overrides the approval-to-polling pause.
func WithGraceDelay(d time.Duration) ControllerOption {
	return func(c *Controller) { c.graceDelay = d }
}

// WithExplorerBase sets the block explorer base URL used to build
// transaction links on notifications that carry no explicit link.
func WithExplorerBase(base string) ControllerOption {
	return func(c *Controller) { c.explorerBase = base }
}

// WithOnPaymentsChanged registers a callback invoked once after every
// confirmed transaction.
func WithOnPaymentsChanged(fn func()) ControllerOption {
	return func(c *Controller) { c.onChanged = fn }
}

// NewController creates a lifecycle controller.
func NewController(poller *ReceiptPoller, notifier notify.Notifier, opts ...ControllerOption) *Controller {
	c := &Controller{
		poller:     poller,
		notifier:   notifier,
		graceDelay: DefaultGraceDelay,
		phase:      PhaseIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Submit starts the lifecycle for one intent. It returns immediately
// after validation; approval, polling and notifications continue on a
// background goroutine. ErrBusy is returned while another transaction
// is in flight, ErrInvalidInput when validation fails; both are also
// surfaced as an error notification without touching the running
// lifecycle.
func (c *Controller) Submit(ctx context.Context, intent Intent) error {
	if intent.Send == nil {
		return fmt.Errorf("%w: intent has no send function", escrow.ErrInvalidInput)
	}

	if intent.Validate != nil {
		if err := intent.Validate(); err != nil {
			c.notifier.Notify(notify.Notification{
				Kind:    notify.KindError,
				Message: err.Error(),
			})
			return fmt.Errorf("%w: %v", escrow.ErrInvalidInput, err)
		}
	}

	c.mu.Lock()
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		c.notifier.Notify(notify.Notification{
			Kind:    notify.KindError,
			Message: "another transaction is still in progress",
		})
		return escrow.ErrBusy
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.phase = PhaseAwaitingApproval
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	logging.Info("transaction submitted for approval", "description", intent.Description)
	metrics.TransactionsSubmitted.WithLabelValues(intent.metricAction()).Inc()

	util.SafeGoWithName("lifecycle-run", func() {
		defer close(done)
		defer cancel()
		c.run(runCtx, intent)
	})
	return nil
}

// Cancel aborts the in-flight lifecycle, if any. The abandoned
// transaction produces no further notifications even if it later
// mines.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the in-flight lifecycle, if any, reaches a
// terminal state.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *Controller) run(ctx context.Context, intent Intent) {
	hash, err := intent.Send(ctx)
	if err != nil {
		if ctx.Err() != nil {
			c.reset()
			return
		}
		metrics.TransactionsFailed.WithLabelValues("rejected").Inc()
		c.finish(rejectionNotification(err))
		return
	}

	link := intent.SuccessLink
	if link == "" && c.explorerBase != "" {
		link = fmt.Sprintf("%s/tx/%s", c.explorerBase, hash.Hex())
	}

	c.setPhase(PhaseApproved)
	c.notifier.Notify(notify.Notification{
		Kind:    notify.KindInfo,
		Message: fmt.Sprintf("%s: transaction sent", intent.Description),
		Link:    link,
	})

	if !sleepCtx(ctx, c.graceDelay) {
		c.reset()
		return
	}

	c.setPhase(PhaseAwaitingConfirmation)
	outcome, err := c.poller.Poll(ctx, hash)
	if err != nil {
		if ctx.Err() != nil {
			c.reset()
			return
		}
		metrics.TransactionsFailed.WithLabelValues("timeout").Inc()
		c.finish(notify.Notification{
			Kind:    notify.KindError,
			Message: fmt.Sprintf("%s: %v", intent.Description, err),
		})
		return
	}

	switch outcome {
	case PollSuccess:
		metrics.TransactionsConfirmed.Inc()
		c.finish(notify.Notification{
			Kind:    notify.KindSuccess,
			Message: intent.SuccessMessage,
			Link:    link,
		})
		if c.onChanged != nil {
			c.onChanged()
		}
	case PollReverted:
		metrics.TransactionsFailed.WithLabelValues("reverted").Inc()
		// The hash stays visible so the revert can be inspected on the
		// explorer.
		c.finish(notify.Notification{
			Kind:    notify.KindError,
			Message: fmt.Sprintf("%s: transaction %s reverted on chain", intent.Description, hash.Hex()),
			Link:    link,
		})
	}
}

// finish emits the single terminal notification, then resets to idle.
func (c *Controller) finish(n notify.Notification) {
	c.notifier.Notify(n)
	c.reset()
}

func (c *Controller) reset() {
	c.mu.Lock()
	c.phase = PhaseIdle
	c.cancel = nil
	c.mu.Unlock()
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

func rejectionNotification(err error) notify.Notification {
	msg := "transaction was rejected in the wallet"
	if !errors.Is(err, escrow.ErrWalletRejected) {
		msg = fmt.Sprintf("transaction failed: %v", err)
	}
	return notify.Notification{Kind: notify.KindError, Message: msg}
}

// sleepCtx sleeps for d unless ctx is canceled first. It reports
// whether the full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
