package domain

import "time"

// PipelineRaw holds funnel values as read from independent sources. They may
// violate the nesting captured ⊇ inSettlement ⊇ sentToBank ⊇ credited.
type PipelineRaw struct {
	Captured     int64 `json:"captured"`
	InSettlement int64 `json:"in_settlement"`
	SentToBank   int64 `json:"sent_to_bank"`
	CreditedUtr  int64 `json:"credited_utr"`
}

// PipelineExclusive holds mutually exclusive funnel buckets.
// Their sum equals PipelineRaw.Captured.
type PipelineExclusive struct {
	InSettlementOnly int64 `json:"in_settlement_only"`
	SentToBankOnly   int64 `json:"sent_to_bank_only"`
	Credited         int64 `json:"credited"`
	Unsettled        int64 `json:"unsettled"`
}

// Total sums the exclusive buckets
func (e PipelineExclusive) Total() int64 {
	return e.InSettlementOnly + e.SentToBankOnly + e.Credited + e.Unsettled
}

// WarningCode identifies a pipeline invariant violation
type WarningCode string

const (
	WarningCreditedExceedsSent       WarningCode = "CREDITED_EXCEEDS_SENT"
	WarningSentExceedsSettlement     WarningCode = "SENT_EXCEEDS_SETTLEMENT"
	WarningSettlementExceedsCaptured WarningCode = "SETTLEMENT_EXCEEDS_CAPTURED"
	WarningNegativeValue             WarningCode = "NEGATIVE_COUNT"
	WarningPipelineSumMismatch       WarningCode = "PIPELINE_SUM_MISMATCH"
)

// WarningSeverity is warning or error
type WarningSeverity string

const (
	WarningSeverityWarning WarningSeverity = "warning"
	WarningSeverityError   WarningSeverity = "error"
)

// Pipeline metrics a warning can refer to
const (
	MetricCount  = "count"
	MetricAmount = "amount"
)

// ValidationWarning reports a clamped or inconsistent funnel value
type ValidationWarning struct {
	Code     WarningCode     `json:"code"`
	Severity WarningSeverity `json:"severity"`
	Metric   string          `json:"metric"`
	Message  string          `json:"message"`
	Raw      int64           `json:"raw"`
	Adjusted int64           `json:"adjusted"`
}

// PipelineSnapshot is derived at read time and never persisted
type PipelineSnapshot struct {
	From            time.Time           `json:"from"`
	To              time.Time           `json:"to"`
	ComputedAt      time.Time           `json:"computed_at"`
	Version         string              `json:"version"`
	Raw             PipelineRaw         `json:"raw"`
	Exclusive       PipelineExclusive   `json:"exclusive"`
	RawAmounts      PipelineRaw         `json:"raw_amounts"`
	ExclusiveAmount PipelineExclusive   `json:"exclusive_amounts"`
	Warnings        []ValidationWarning `json:"warnings"`
}

// HasErrors returns true if any warning has error severity
func (s *PipelineSnapshot) HasErrors() bool {
	for _, w := range s.Warnings {
		if w.Severity == WarningSeverityError {
			return true
		}
	}
	return false
}
