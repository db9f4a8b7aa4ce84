package reconciliation

import (
	"testing"
	"time"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/testutil/fixtures"
	"github.com/stretchr/testify/assert"
)

func classifyCtx(cycle time.Time) ClassifyContext {
	return ClassifyContext{CycleDate: cycle, Thresholds: DefaultThresholds()}
}

func TestValidUTR(t *testing.T) {
	tests := []struct {
		name string
		utr  string
		want bool
	}{
		{"alphanumeric", "AXIS123456789", true},
		{"surrounding_space_trimmed", "  HDFC0001234  ", true},
		{"empty", "", false},
		{"whitespace_only", "   ", false},
		{"too_short", "AB123", false},
		{"too_long", "A1234567890123456789012345678901", false},
		{"all_zeros", "000000000", false},
		{"punctuation", "UTR-12345", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidUTR(tt.utr))
		})
	}
}

func TestClassify(t *testing.T) {
	cycle := fixtures.Date(2025, time.March, 10)

	tests := []struct {
		name       string
		pg         domain.PgTransaction
		bank       *domain.BankRecord
		cycle      time.Time
		wantKind   OutcomeKind
		wantReason domain.ExceptionReason
		wantDelta  int64
		wantPct    string
	}{
		{
			name:     "exact_amount_and_utr",
			pg:       fixtures.NewPgTransaction("T1", "UTR000001").Build(),
			bank:     ptr(fixtures.NewBankRecord("B1", "UTR000001").Build()),
			wantKind: OutcomeMatched,
		},
		{
			name:     "explicit_fees_consistent",
			pg:       fixtures.NewPgTransaction("T1", "UTR000001").WithFees(300, 9700).Build(),
			bank:     ptr(fixtures.NewBankRecord("B1", "UTR000001").WithAmount(9700).Build()),
			wantKind: OutcomeMatched,
		},
		{
			name:       "explicit_fees_bank_short",
			pg:         fixtures.NewPgTransaction("T1", "UTR000001").WithFees(300, 9700).Build(),
			bank:       ptr(fixtures.NewBankRecord("B1", "UTR000001").WithAmount(9600).Build()),
			wantKind:   OutcomeException,
			wantReason: domain.ReasonFeesVariance,
			wantDelta:  100,
			wantPct:    "1",
		},
		{
			name:       "explicit_fees_inconsistent_net",
			pg:         fixtures.NewPgTransaction("T1", "UTR000001").WithFees(300, 9800).Build(),
			bank:       ptr(fixtures.NewBankRecord("B1", "UTR000001").WithAmount(9700).Build()),
			wantKind:   OutcomeException,
			wantReason: domain.ReasonFeesVariance,
			wantDelta:  100,
			wantPct:    "1",
		},
		{
			name:       "implicit_fee_in_band",
			pg:         fixtures.NewPgTransaction("T1", "UTR000001").Build(),
			bank:       ptr(fixtures.NewBankRecord("B1", "UTR000001").WithAmount(9700).Build()),
			wantKind:   OutcomeException,
			wantReason: domain.ReasonFeeMismatch,
			wantDelta:  300,
			wantPct:    "3",
		},
		{
			name:       "implicit_fee_upper_bound_inclusive",
			pg:         fixtures.NewPgTransaction("T1", "UTR000001").Build(),
			bank:       ptr(fixtures.NewBankRecord("B1", "UTR000001").WithAmount(9500).Build()),
			wantKind:   OutcomeException,
			wantReason: domain.ReasonFeeMismatch,
			wantDelta:  500,
			wantPct:    "5",
		},
		{
			name:       "implicit_fee_lower_bound_exclusive",
			pg:         fixtures.NewPgTransaction("T1", "UTR000001").Build(),
			bank:       ptr(fixtures.NewBankRecord("B1", "UTR000001").WithAmount(9800).Build()),
			wantKind:   OutcomeException,
			wantReason: domain.ReasonAmountMismatch,
			wantDelta:  200,
			wantPct:    "2",
		},
		{
			name:       "rounding_one_paisa_short",
			pg:         fixtures.NewPgTransaction("T1", "UTR000001").WithAmount(15000).Build(),
			bank:       ptr(fixtures.NewBankRecord("B1", "UTR000001").WithAmount(14999).Build()),
			wantKind:   OutcomeException,
			wantReason: domain.ReasonRoundingError,
			wantDelta:  1,
			wantPct:    "0.01",
		},
		{
			name:       "bank_over_credit_one_paisa_is_amount_mismatch",
			pg:         fixtures.NewPgTransaction("T1", "UTR000001").WithAmount(15000).Build(),
			bank:       ptr(fixtures.NewBankRecord("B1", "UTR000001").WithAmount(15001).Build()),
			wantKind:   OutcomeException,
			wantReason: domain.ReasonAmountMismatch,
			wantDelta:  -1,
			wantPct:    "0.01",
		},
		{
			name:       "large_amount_mismatch",
			pg:         fixtures.NewPgTransaction("T1", "UTR000001").Build(),
			bank:       ptr(fixtures.NewBankRecord("B1", "UTR000001").WithAmount(5000).Build()),
			wantKind:   OutcomeException,
			wantReason: domain.ReasonAmountMismatch,
			wantDelta:  5000,
			wantPct:    "50",
		},
		{
			name:       "bank_credit_after_window",
			pg:         fixtures.NewPgTransaction("T1", "UTR000001").Build(),
			bank:       ptr(fixtures.NewBankRecord("B1", "UTR000001").WithDate(fixtures.Date(2025, time.March, 13)).Build()),
			cycle:      fixtures.Date(2025, time.March, 13),
			wantKind:   OutcomeException,
			wantReason: domain.ReasonDateOutOfWindow,
		},
		{
			name:     "bank_credit_on_last_window_day",
			pg:       fixtures.NewPgTransaction("T1", "UTR000001").Build(),
			bank:     ptr(fixtures.NewBankRecord("B1", "UTR000001").WithDate(fixtures.Date(2025, time.March, 12)).Build()),
			cycle:    fixtures.Date(2025, time.March, 12),
			wantKind: OutcomeMatched,
		},
		{
			name:       "amount_outranks_date",
			pg:         fixtures.NewPgTransaction("T1", "UTR000001").Build(),
			bank:       ptr(fixtures.NewBankRecord("B1", "UTR000001").WithAmount(5000).WithDate(fixtures.Date(2025, time.March, 14)).Build()),
			cycle:      fixtures.Date(2025, time.March, 14),
			wantKind:   OutcomeException,
			wantReason: domain.ReasonAmountMismatch,
			wantDelta:  5000,
			wantPct:    "50",
		},
		{
			name:       "empty_utr_short_circuits",
			pg:         fixtures.NewPgTransaction("T1", "").WithAmount(15000).Build(),
			bank:       ptr(fixtures.NewBankRecord("B1", "UTR000001").WithAmount(14999).Build()),
			wantKind:   OutcomeException,
			wantReason: domain.ReasonUTRMissingOrInvalid,
		},
		{
			name:       "utr_differs_on_rrn_candidate",
			pg:         fixtures.NewPgTransaction("T1", "UTR000001").WithRRN("B1").Build(),
			bank:       ptr(fixtures.NewBankRecord("B1", "UTR999999").WithAmount(9000).Build()),
			wantKind:   OutcomeException,
			wantReason: domain.ReasonUTRMismatch,
			wantDelta:  1000,
		},
		{
			name:       "no_counterpart_after_window",
			pg:         fixtures.NewPgTransaction("T1", "UTR000001").WithDate(fixtures.Date(2025, time.March, 7)).Build(),
			wantKind:   OutcomeException,
			wantReason: domain.ReasonPgTxnMissingInBank,
			wantDelta:  10000,
		},
		{
			name:     "no_counterpart_within_window",
			pg:       fixtures.NewPgTransaction("T1", "UTR000001").WithDate(fixtures.Date(2025, time.March, 8)).Build(),
			wantKind: OutcomeUnmatched,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cycle
			if !tt.cycle.IsZero() {
				c = tt.cycle
			}
			out := Classify(&tt.pg, tt.bank, classifyCtx(c))

			assert.Equal(t, tt.wantKind, out.Kind)
			assert.Equal(t, tt.wantReason, out.Reason)
			assert.Equal(t, tt.wantDelta, out.AmountDelta)
			if tt.wantPct != "" {
				assert.Equal(t, tt.wantPct, out.VariancePercent.String())
			}
		})
	}
}

func TestClassify_IsDeterministic(t *testing.T) {
	pg := fixtures.NewPgTransaction("T1", "UTR000001").WithAmount(15000).Build()
	bank := fixtures.NewBankRecord("B1", "UTR000001").WithAmount(14999).Build()
	c := classifyCtx(fixtures.Date(2025, time.March, 10))

	first := Classify(&pg, &bank, c)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Classify(&pg, &bank, c))
	}
}

func TestClassifyBankOnly(t *testing.T) {
	c := classifyCtx(fixtures.Date(2025, time.March, 10))

	aged := fixtures.NewBankRecord("B1", "UTR000001").WithDate(fixtures.Date(2025, time.March, 7)).Build()
	out := ClassifyBankOnly(&aged, c)
	assert.Equal(t, OutcomeException, out.Kind)
	assert.Equal(t, domain.ReasonBankTxnMissingInPG, out.Reason)
	assert.Equal(t, int64(-10000), out.AmountDelta)

	young := fixtures.NewBankRecord("B2", "UTR000002").WithDate(fixtures.Date(2025, time.March, 9)).Build()
	assert.Equal(t, OutcomeUnmatched, ClassifyBankOnly(&young, c).Kind)
}

func TestRuleOrder_FollowsReasonPriority(t *testing.T) {
	last := -1
	for _, r := range pgRules {
		p := r.reason.Priority()
		assert.Greater(t, p, last, "rule %s is out of priority order", r.reason)
		last = p
	}
}

func ptr[T any](v T) *T {
	return &v
}
