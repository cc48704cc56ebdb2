// Package metrics exposes the node's Prometheus collectors. Grounded on
// taiko-client's internal/metrics package (referenced by prover_test.go as
// metrics.TxMgrMetrics) and the ethereum-optimism/optimism op-service/txmgr
// metrics contract that TxMonitor feeds.
package metrics

import (
	optxmgrmetrics "github.com/ethereum-optimism/optimism/op-service/txmgr/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the Prometheus metric namespace for every collector below.
const Namespace = "preconf_sequencer"

var (
	// TickDuration observes wall-clock time spent in one orchestrator tick.
	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "tick_duration_seconds",
		Help:      "Duration of a single orchestrator heartbeat tick.",
		Buckets:   prometheus.DefBuckets,
	})

	// TickFailures counts ticks that returned a non-nil error.
	TickFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "tick_failures_total",
		Help:      "Total number of orchestrator ticks that failed.",
	})

	// CriticalCancellations counts watchdog- or panic-hook-triggered critical
	// cancellations (spec.md §7 Critical error kind).
	CriticalCancellations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "critical_cancellations_total",
		Help:      "Total number of critical cancellations triggered.",
	})

	// BatchesFinalized counts batches moved from InFlight to Finalized.
	BatchesFinalized = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "batches_finalized_total",
		Help:      "Total number of batches finalized by the batch builder.",
	})

	// BatchBlocksCount observes the number of L2 blocks in each finalized batch.
	BatchBlocksCount = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "batch_blocks_count",
		Help:      "Number of L2 blocks in a finalized batch.",
		Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
	})

	// ForcedInclusionsConsumed counts forced-inclusion blocks consumed into a batch.
	ForcedInclusionsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "forced_inclusions_consumed_total",
		Help:      "Total number of forced-inclusion blocks consumed into a batch.",
	})

	// IsPreconfer reports (as 0/1) whether this tick the node considered
	// itself the active preconfer.
	IsPreconfer = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "is_preconfer",
		Help:      "1 if this node is currently the preconfer, else 0.",
	})

	// IsSubmitter mirrors IsPreconfer for the submitter role.
	IsSubmitter = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "is_submitter",
		Help:      "1 if this node is currently the batch submitter, else 0.",
	})

	// TxMgrMetrics is the metrics collector handed to every
	// op-service/txmgr.SimpleTxManager instance TxMonitor creates, exactly
	// as prover_test.go wires &metrics.TxMgrMetrics into txmgr.NewSimpleTxManager.
	TxMgrMetrics = optxmgrmetrics.NewNoopTxMetrics()
)

// MustRegister registers every collector above against reg. Call once at
// startup with a *prometheus.Registry (or prometheus.DefaultRegisterer).
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		TickDuration,
		TickFailures,
		CriticalCancellations,
		BatchesFinalized,
		BatchBlocksCount,
		ForcedInclusionsConsumed,
		IsPreconfer,
		IsSubmitter,
	)
}
