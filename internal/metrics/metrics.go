// Package metrics exposes Prometheus instrumentation for the payment
// client. Metrics live in a dedicated registry so embedding programs
// keep their default registry clean.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "custodex"

var registry = prometheus.NewRegistry()

var (
	// TransactionsSubmitted counts lifecycle submissions by action.
	TransactionsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_submitted_total",
		Help:      "Transactions submitted to the lifecycle, by action.",
	}, []string{"action"})

	// TransactionsConfirmed counts transactions confirmed on chain.
	TransactionsConfirmed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_confirmed_total",
		Help:      "Transactions confirmed on chain.",
	})

	// TransactionsFailed counts terminal failures by reason.
	TransactionsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_failed_total",
		Help:      "Transactions that ended in rejection, revert or timeout.",
	}, []string{"reason"})

	// ReceiptPolls counts individual receipt lookups.
	ReceiptPolls = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "receipt_polls_total",
		Help:      "Receipt lookups performed while awaiting confirmation.",
	})

	// InboxRefreshFailures counts snapshot refreshes that failed.
	InboxRefreshFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inbox_refresh_failures_total",
		Help:      "Inbox refreshes that failed and kept the stale snapshot.",
	})

	// InboxSize tracks the number of records in the current snapshot.
	InboxSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "inbox_size",
		Help:      "Payments in the current inbox snapshot.",
	})
)

func init() {
	registry.MustRegister(
		TransactionsSubmitted,
		TransactionsConfirmed,
		TransactionsFailed,
		ReceiptPolls,
		InboxRefreshFailures,
		InboxSize,
	)
}

// Registry returns the dedicated registry, for callers that register
// additional metrics.
func Registry() *prometheus.Registry {
	return registry
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
