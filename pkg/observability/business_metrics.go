package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reconciliation cycle metrics
	reconciliationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_runs_total",
		Help: "Total reconciliation cycle runs",
	}, []string{
		"status", // success, failed
	})

	reconciliationRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "reconciliation_run_duration_seconds",
		Help: "Time to fetch, match and persist one cycle date",
		// Buckets: 100ms to 10m (feeds of a few hundred to a few million rows)
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
	})

	reconciliationRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_records_total",
		Help: "Records processed by the matching engine",
	}, []string{
		"side",    // PG, BANK
		"outcome", // matched, exception, unmatched, rejected
	})

	// Exception metrics
	exceptionsRaisedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_exceptions_raised_total",
		Help: "Exceptions raised by the matching engine",
	}, []string{
		"reason",
		"severity",
	})

	exceptionActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_exception_actions_total",
		Help: "Workflow actions applied to exceptions",
	}, []string{
		"action",
		"result", // applied, rejected
	})

	// Settlement metrics
	settlementBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_batches_total",
		Help: "Settlement batch computations",
	}, []string{
		"tier",
		"result", // created, existing, failed
	})

	settlementNetAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_net_amount_minor_total",
		Help: "Net payout amount in minor units across created batches",
	}, []string{
		"tier",
	})

	settlementBatchTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_batch_transitions_total",
		Help: "Settlement batch lifecycle transitions",
	}, []string{
		"to_status",
	})

	// Pipeline invariant metrics
	pipelineWarningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_validation_warnings_total",
		Help: "Funnel invariant violations detected while building snapshots",
	}, []string{
		"code",
		"metric", // count, amount
	})

	// Bank credit ingestion metrics
	bankCreditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bank_credit_events_total",
		Help: "Bank credit notifications received",
	}, []string{
		"gateway",
		"result", // stored, duplicate, invalid, failed
	})
)

// RecordReconciliationRun records a cycle run and its duration in seconds
func RecordReconciliationRun(status string, duration float64) {
	reconciliationRunsTotal.WithLabelValues(status).Inc()
	reconciliationRunDuration.Observe(duration)
}

// RecordReconciliationRecords adds n records of one side and outcome
func RecordReconciliationRecords(side, outcome string, n int) {
	if n == 0 {
		return
	}
	reconciliationRecordsTotal.WithLabelValues(side, outcome).Add(float64(n))
}

// RecordExceptionRaised records a newly created exception
func RecordExceptionRaised(reason, severity string) {
	exceptionsRaisedTotal.WithLabelValues(reason, severity).Inc()
}

// RecordExceptionAction records a workflow action attempt
func RecordExceptionAction(action, result string) {
	exceptionActionsTotal.WithLabelValues(action, result).Inc()
}

// UnknownTier labels settlement outcomes for which no tier was resolved
const UnknownTier = "unknown"

// RecordSettlementBatch records a batch computation and, for created batches, its net payout
func RecordSettlementBatch(tier, result string, netAmount int64) {
	if tier == "" {
		tier = UnknownTier
	}
	settlementBatchesTotal.WithLabelValues(tier, result).Inc()

	// Only newly created batches count toward payout volume
	if result == "created" {
		settlementNetAmount.WithLabelValues(tier).Add(float64(netAmount))
	}
}

// RecordBatchTransition records a lifecycle transition
func RecordBatchTransition(toStatus string) {
	settlementBatchTransitionsTotal.WithLabelValues(toStatus).Inc()
}

// RecordPipelineWarning records a funnel invariant violation
func RecordPipelineWarning(code, metric string) {
	pipelineWarningsTotal.WithLabelValues(code, metric).Inc()
}

// RecordBankCredit records the outcome of a bank credit notification
func RecordBankCredit(gateway, result string) {
	bankCreditsTotal.WithLabelValues(gateway, result).Inc()
}
