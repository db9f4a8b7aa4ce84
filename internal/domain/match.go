package domain

import "time"

// MatchType describes how a PG transaction was paired with a bank record
type MatchType string

const (
	MatchTypeExact MatchType = "EXACT" // UTR pair with every check passing
	MatchTypeFuzzy MatchType = "FUZZY" // UTR pair carrying an exception
)

// MatchResult pairs a PG transaction with a bank record. A record appears in
// at most one result with an empty Reason.
type MatchResult struct {
	CycleDate        time.Time       `json:"cycle_date"`
	ID               string          `json:"id"`
	PgTransactionID  string          `json:"pg_transaction_id"`
	BankRef          string          `json:"bank_ref"`
	Type             MatchType       `json:"match_type"`
	Reason           ExceptionReason `json:"reason,omitempty"`
	ExceptionID      string          `json:"exception_id,omitempty"`
	Score            int             `json:"match_score"`
	AmountDifference int64           `json:"amount_difference"`
}

// IsClean returns true if the match carries no exception
func (m *MatchResult) IsClean() bool {
	return m.Reason == ""
}
