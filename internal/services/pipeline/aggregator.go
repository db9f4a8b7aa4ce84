// Package pipeline derives the settlement funnel snapshot from raw counts.
package pipeline

import (
	"fmt"

	"github.com/kevin07696/settlement-recon/internal/domain"
)

// AlgorithmVersion identifies the clamp order used by Aggregate.
// v2 clamps credited against sentToBank before sentToBank against inSettlement.
const AlgorithmVersion = "v2"

// Aggregate converts raw funnel counts into mutually exclusive buckets.
// It never fails: every inconsistency in raw is clamped and reported.
func Aggregate(raw domain.PipelineRaw) (domain.PipelineExclusive, []domain.ValidationWarning) {
	return aggregate(raw, domain.MetricCount)
}

// AggregateAmounts applies the same algorithm to minor-unit amounts
func AggregateAmounts(raw domain.PipelineRaw) (domain.PipelineExclusive, []domain.ValidationWarning) {
	return aggregate(raw, domain.MetricAmount)
}

func aggregate(raw domain.PipelineRaw, metric string) (domain.PipelineExclusive, []domain.ValidationWarning) {
	var warnings []domain.ValidationWarning
	warn := func(code domain.WarningCode, severity domain.WarningSeverity, rawValue, adjusted int64, format string, args ...interface{}) {
		warnings = append(warnings, domain.ValidationWarning{
			Code:     code,
			Severity: severity,
			Metric:   metric,
			Message:  fmt.Sprintf(format, args...),
			Raw:      rawValue,
			Adjusted: adjusted,
		})
	}

	nonNegative := func(field string, v int64) int64 {
		if v < 0 {
			warn(domain.WarningNegativeValue, domain.WarningSeverityWarning, v, 0, "%s was negative (%d), treated as 0", field, v)
			return 0
		}
		return v
	}

	captured := nonNegative("captured", raw.Captured)
	inSettlement := nonNegative("in_settlement", raw.InSettlement)
	sentToBank := nonNegative("sent_to_bank", raw.SentToBank)
	credited := nonNegative("credited_utr", raw.CreditedUtr)

	if inSettlement > captured {
		warn(domain.WarningSettlementExceedsCaptured, domain.WarningSeverityWarning, inSettlement, captured,
			"in_settlement (%d) exceeds captured (%d)", inSettlement, captured)
		inSettlement = captured
	}

	// Step 1: credited against sentToBank
	creditedWarning := -1
	if credited > sentToBank {
		creditedWarning = len(warnings)
		warn(domain.WarningCreditedExceedsSent, domain.WarningSeverityWarning, credited, sentToBank,
			"credited_utr (%d) exceeds sent_to_bank (%d)", credited, sentToBank)
		credited = sentToBank
	}

	// Step 2: sentToBank against inSettlement
	if sentToBank > inSettlement {
		warn(domain.WarningSentExceedsSettlement, domain.WarningSeverityWarning, sentToBank, inSettlement,
			"sent_to_bank (%d) exceeds in_settlement (%d)", sentToBank, inSettlement)
		sentToBank = inSettlement
	}

	// Keep credited nested after sentToBank shrank
	if credited > sentToBank {
		if creditedWarning >= 0 {
			warnings[creditedWarning].Adjusted = sentToBank
		} else {
			warn(domain.WarningCreditedExceedsSent, domain.WarningSeverityWarning, credited, sentToBank,
				"credited_utr (%d) exceeds clamped sent_to_bank (%d)", credited, sentToBank)
		}
		credited = sentToBank
	}

	exclusive := domain.PipelineExclusive{
		Credited:         credited,
		SentToBankOnly:   sentToBank - credited,
		InSettlementOnly: inSettlement - sentToBank,
		Unsettled:        captured - inSettlement,
	}

	if total := exclusive.Total(); total != captured {
		warn(domain.WarningPipelineSumMismatch, domain.WarningSeverityError, total, captured,
			"exclusive buckets sum to %d, captured is %d", total, captured)
	}

	return exclusive, warnings
}
