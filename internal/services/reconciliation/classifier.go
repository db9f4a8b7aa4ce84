package reconciliation

import (
	"regexp"
	"strings"
	"time"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/pkg/timeutil"
	"github.com/shopspring/decimal"
)

// Thresholds configures the amount and date rules. Amounts are minor units.
type Thresholds struct {
	FeeMismatchMin    int64 // exclusive lower bound of the fee band
	FeeMismatchMax    int64 // inclusive upper bound of the fee band
	RoundingTolerance int64 // absolute difference treated as a rounding error
	WindowDays        int   // settlement window, T+WindowDays
}

// DefaultThresholds returns the fee band (₹2, ₹5], ₹0.01 rounding and T+2
func DefaultThresholds() Thresholds {
	return Thresholds{
		FeeMismatchMin:    200,
		FeeMismatchMax:    500,
		RoundingTolerance: 1,
		WindowDays:        2,
	}
}

// OutcomeKind is the classification result category
type OutcomeKind int

const (
	// OutcomeUnmatched means no counterpart yet and nothing to raise; the
	// record waits for a later cycle.
	OutcomeUnmatched OutcomeKind = iota
	OutcomeMatched
	OutcomeException
)

// Outcome is the result of classifying one PG transaction against its
// candidate bank record
type Outcome struct {
	Reason          domain.ExceptionReason
	VariancePercent decimal.Decimal
	Kind            OutcomeKind
	AmountDelta     int64
}

// ClassifyContext carries the non-record inputs of a classification
type ClassifyContext struct {
	CycleDate  time.Time
	Thresholds Thresholds
}

// predicate inspects a record pair; bank may be nil
type predicate func(pg *domain.PgTransaction, bank *domain.BankRecord, c ClassifyContext) (Outcome, bool)

type rule struct {
	reason domain.ExceptionReason
	check  predicate
}

// pgRules is evaluated in order; the first predicate that holds decides the
// outcome. The order follows domain.ReasonPriority.
var pgRules = []rule{
	{domain.ReasonUTRMissingOrInvalid, utrMissingOrInvalid},
	{domain.ReasonPgTxnMissingInBank, pgMissingInBank},
	{domain.ReasonUTRMismatch, utrMismatch},
	{domain.ReasonFeesVariance, feesVariance},
	{domain.ReasonFeeMismatch, feeMismatch},
	{domain.ReasonRoundingError, roundingError},
	{domain.ReasonAmountMismatch, amountMismatch},
	{domain.ReasonDateOutOfWindow, dateOutOfWindow},
}

// Classify maps a PG transaction and its candidate bank record (nil when no
// record shares its UTR or RRN) to a single outcome. It is a pure function.
func Classify(pg *domain.PgTransaction, bank *domain.BankRecord, c ClassifyContext) Outcome {
	for _, r := range pgRules {
		if out, ok := r.check(pg, bank, c); ok {
			out.Kind = OutcomeException
			out.Reason = r.reason
			return out
		}
	}
	if bank == nil {
		return Outcome{Kind: OutcomeUnmatched}
	}
	return Outcome{Kind: OutcomeMatched}
}

// ClassifyBankOnly decides whether an unclaimed bank record raises
// BANK_TXN_MISSING_IN_PG or waits for a later cycle
func ClassifyBankOnly(bank *domain.BankRecord, c ClassifyContext) Outcome {
	if isAged(bank.TransactionDate, c) {
		return Outcome{
			Kind:        OutcomeException,
			Reason:      domain.ReasonBankTxnMissingInPG,
			AmountDelta: -bank.Amount,
		}
	}
	return Outcome{Kind: OutcomeUnmatched}
}

var utrPattern = regexp.MustCompile(`^[A-Za-z0-9]{6,30}$`)

// ValidUTR reports whether s looks like a bank-assigned UTR
func ValidUTR(s string) bool {
	s = strings.TrimSpace(s)
	if !utrPattern.MatchString(s) {
		return false
	}
	return strings.Trim(s, "0") != ""
}

// NormalizeUTR returns the join key form of a UTR
func NormalizeUTR(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// isAged reports whether a record dated d has passed the settlement window at the cycle date
func isAged(d time.Time, c ClassifyContext) bool {
	return timeutil.DaysBetween(d, c.CycleDate) > c.Thresholds.WindowDays
}

func utrMissingOrInvalid(pg *domain.PgTransaction, _ *domain.BankRecord, _ ClassifyContext) (Outcome, bool) {
	if ValidUTR(pg.UTR) {
		return Outcome{}, false
	}
	return Outcome{}, true
}

func pgMissingInBank(pg *domain.PgTransaction, bank *domain.BankRecord, c ClassifyContext) (Outcome, bool) {
	if bank != nil || !isAged(pg.TransactionDate, c) {
		return Outcome{}, false
	}
	return Outcome{AmountDelta: pg.Amount}, true
}

// utrMismatch covers candidates found through the RRN/bank_ref fallback
func utrMismatch(pg *domain.PgTransaction, bank *domain.BankRecord, _ ClassifyContext) (Outcome, bool) {
	if bank == nil || NormalizeUTR(bank.UTR) == NormalizeUTR(pg.UTR) {
		return Outcome{}, false
	}
	return Outcome{AmountDelta: pg.Amount - bank.Amount}, true
}

// feesVariance checks the three fee equalities when the gateway reported
// bank_fee and settlement_amount explicitly
func feesVariance(pg *domain.PgTransaction, bank *domain.BankRecord, _ ClassifyContext) (Outcome, bool) {
	if bank == nil || !pg.HasExplicitFees() {
		return Outcome{}, false
	}
	fee := *pg.BankFee
	settlement := *pg.SettlementAmount
	impliedFee := pg.Amount - bank.Amount

	netOK := pg.Amount-fee == settlement
	creditOK := bank.Amount == settlement
	feeOK := impliedFee == fee
	if netOK && creditOK && feeOK {
		return Outcome{}, false
	}

	variance := impliedFee - fee
	if variance == 0 {
		variance = settlement - bank.Amount
	}
	return Outcome{
		AmountDelta:     variance,
		VariancePercent: variancePercent(variance, pg.Amount),
	}, true
}

func feeMismatch(pg *domain.PgTransaction, bank *domain.BankRecord, c ClassifyContext) (Outcome, bool) {
	if bank == nil || pg.HasExplicitFees() {
		return Outcome{}, false
	}
	diff := pg.Amount - bank.Amount
	if diff > c.Thresholds.FeeMismatchMin && diff <= c.Thresholds.FeeMismatchMax {
		return Outcome{AmountDelta: diff, VariancePercent: variancePercent(diff, pg.Amount)}, true
	}
	return Outcome{}, false
}

func roundingError(pg *domain.PgTransaction, bank *domain.BankRecord, c ClassifyContext) (Outcome, bool) {
	if bank == nil || pg.HasExplicitFees() {
		return Outcome{}, false
	}
	diff := pg.Amount - bank.Amount
	if diff > 0 && diff <= c.Thresholds.RoundingTolerance {
		return Outcome{AmountDelta: diff, VariancePercent: variancePercent(diff, pg.Amount)}, true
	}
	return Outcome{}, false
}

func amountMismatch(pg *domain.PgTransaction, bank *domain.BankRecord, _ ClassifyContext) (Outcome, bool) {
	if bank == nil || pg.HasExplicitFees() {
		return Outcome{}, false
	}
	diff := pg.Amount - bank.Amount
	if diff == 0 {
		return Outcome{}, false
	}
	return Outcome{AmountDelta: diff, VariancePercent: variancePercent(diff, pg.Amount)}, true
}

func dateOutOfWindow(pg *domain.PgTransaction, bank *domain.BankRecord, c ClassifyContext) (Outcome, bool) {
	if bank == nil {
		return Outcome{}, false
	}
	if timeutil.DaysBetween(pg.TransactionDate, bank.TransactionDate) > c.Thresholds.WindowDays {
		return Outcome{}, true
	}
	return Outcome{}, false
}

var hundred = decimal.NewFromInt(100)

// variancePercent returns |variance| / amount * 100 rounded to two places
func variancePercent(variance, amount int64) decimal.Decimal {
	if amount == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(abs(variance)).
		Mul(hundred).
		Div(decimal.NewFromInt(amount)).
		Round(2)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
