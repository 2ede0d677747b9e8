// Package metrics exposes the service's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BalancesMaterialized counts balance rows created lazily on period entry.
	BalancesMaterialized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bilancio_balances_materialized_total",
		Help: "Category balance rows created by lazy materialization.",
	})

	// MaterializeConflicts counts create attempts that found the row already
	// present. These are expected no-ops, tracked to observe race frequency.
	MaterializeConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bilancio_materialize_conflicts_total",
		Help: "Balance creations skipped because the row already existed.",
	})

	// BalanceReads counts current-period balance list reads.
	BalanceReads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bilancio_balance_reads_total",
		Help: "Current-period balance reads served.",
	})

	// AllocationsComputed counts allocation calculator runs.
	AllocationsComputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bilancio_allocations_computed_total",
		Help: "Fund allocation computations performed.",
	})

	// SnapshotsExported counts period snapshots appended to the sheet.
	SnapshotsExported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bilancio_snapshots_exported_total",
		Help: "Period balance snapshots exported by the worker.",
	})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
