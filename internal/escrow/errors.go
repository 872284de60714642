package escrow

import "errors"

// Error taxonomy shared by the lifecycle controller, dispatcher and
// refresh loop. Callers match with errors.Is; messages surfaced to the
// user come from the notifier, not from these sentinels.
var (
	// ErrInvalidInput marks a local validation failure. It never
	// reaches the network.
	ErrInvalidInput = errors.New("invalid input")

	// ErrWalletRejected marks a signing request declined by the user.
	ErrWalletRejected = errors.New("wallet rejected signing request")

	// ErrNetwork marks an unreachable RPC endpoint or a malformed
	// response.
	ErrNetwork = errors.New("network error")

	// ErrChainReverted marks a transaction that was mined but whose
	// execution failed.
	ErrChainReverted = errors.New("transaction reverted on chain")

	// ErrUnsupportedAction marks an intent that has no call path for
	// the payment's type, e.g. declining a simple payment.
	ErrUnsupportedAction = errors.New("unsupported action for payment type")

	// ErrBusy marks a submission attempted while another transaction
	// is already being tracked.
	ErrBusy = errors.New("another transaction is already in flight")
)
