package reconciliation

import (
	"sort"
	"strings"

	"github.com/kevin07696/settlement-recon/internal/domain"
	pkgerrors "github.com/kevin07696/settlement-recon/pkg/errors"
)

// validatePg keeps well-formed PG transactions and reports the rest.
// A repeated transaction_id keeps its first occurrence.
func validatePg(txns []domain.PgTransaction) ([]domain.PgTransaction, []domain.RecordError) {
	accepted := make([]domain.PgTransaction, 0, len(txns))
	var rejected []domain.RecordError
	seen := make(map[string]struct{}, len(txns))

	for _, t := range txns {
		var errs pkgerrors.ValidationErrors
		id := strings.TrimSpace(t.TransactionID)
		if id == "" {
			errs.Add("transaction_id", "is required")
		}
		if strings.TrimSpace(t.MerchantID) == "" {
			errs.Add("merchant_id", "is required")
		}
		if t.Amount <= 0 {
			errs.Add("amount", "must be positive")
		}
		if t.TransactionDate.IsZero() {
			errs.Add("transaction_date", "is required")
		}
		if t.BankFee != nil && *t.BankFee < 0 {
			errs.Add("bank_fee", "must not be negative")
		}
		if _, dup := seen[id]; id != "" && dup {
			errs.Add("transaction_id", "duplicate id in feed")
		}

		if err := errs.ErrOrNil(); err != nil {
			rejected = append(rejected, domain.RecordError{
				Err:      err,
				RecordID: t.TransactionID,
				Side:     domain.SidePG,
				Message:  err.Error(),
			})
			continue
		}
		seen[id] = struct{}{}
		t.TransactionID = id
		accepted = append(accepted, t)
	}
	return accepted, rejected
}

// validateBank keeps well-formed bank records and reports the rest.
// A repeated bank_ref keeps its first occurrence.
func validateBank(records []domain.BankRecord) ([]domain.BankRecord, []domain.RecordError) {
	accepted := make([]domain.BankRecord, 0, len(records))
	var rejected []domain.RecordError
	seen := make(map[string]struct{}, len(records))

	for _, r := range records {
		var errs pkgerrors.ValidationErrors
		ref := strings.TrimSpace(r.BankRef)
		if ref == "" {
			errs.Add("bank_ref", "is required")
		}
		if r.Amount <= 0 {
			errs.Add("amount", "must be positive")
		}
		if r.TransactionDate.IsZero() {
			errs.Add("transaction_date", "is required")
		}
		if _, dup := seen[ref]; ref != "" && dup {
			errs.Add("bank_ref", "duplicate id in feed")
		}

		if err := errs.ErrOrNil(); err != nil {
			rejected = append(rejected, domain.RecordError{
				Err:      err,
				RecordID: r.BankRef,
				Side:     domain.SideBank,
				Message:  err.Error(),
			})
			continue
		}
		seen[ref] = struct{}{}
		r.BankRef = ref
		accepted = append(accepted, r)
	}
	return accepted, rejected
}

// sortPg orders transactions by (date, id) so results do not depend on feed order
func sortPg(txns []domain.PgTransaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		if !txns[i].TransactionDate.Equal(txns[j].TransactionDate) {
			return txns[i].TransactionDate.Before(txns[j].TransactionDate)
		}
		return txns[i].TransactionID < txns[j].TransactionID
	})
}

func sortBank(records []domain.BankRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].TransactionDate.Equal(records[j].TransactionDate) {
			return records[i].TransactionDate.Before(records[j].TransactionDate)
		}
		return records[i].BankRef < records[j].BankRef
	})
}
