package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
	"github.com/kevin07696/settlement-recon/pkg/timeutil"
)

// Feed serves fixed PG and bank record sets, filtered to the cycle day
type Feed struct {
	pg   []domain.PgTransaction
	bank []domain.BankRecord
}

// NewFeed creates a feed over copies of pg and bank
func NewFeed(pg []domain.PgTransaction, bank []domain.BankRecord) *Feed {
	return &Feed{
		pg:   append([]domain.PgTransaction(nil), pg...),
		bank: append([]domain.BankRecord(nil), bank...),
	}
}

// LoadFeed reads JSON arrays of PG transactions and bank records from disk
func LoadFeed(pgPath, bankPath string) (*Feed, error) {
	var pg []domain.PgTransaction
	if err := readJSON(pgPath, &pg); err != nil {
		return nil, fmt.Errorf("load pg feed: %w", err)
	}
	var bank []domain.BankRecord
	if err := readJSON(bankPath, &bank); err != nil {
		return nil, fmt.Errorf("load bank feed: %w", err)
	}
	return NewFeed(pg, bank), nil
}

func readJSON(path string, dest interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// FetchPgTransactions returns the transactions dated on or before the end of the cycle day
func (f *Feed) FetchPgTransactions(_ context.Context, cycleDate time.Time) ([]domain.PgTransaction, error) {
	end := timeutil.EndOfDay(cycleDate)
	out := make([]domain.PgTransaction, 0, len(f.pg))
	for _, t := range f.pg {
		if !t.TransactionDate.After(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

// FetchBankRecords returns the bank records dated on or before the end of the cycle day
func (f *Feed) FetchBankRecords(_ context.Context, cycleDate time.Time) ([]domain.BankRecord, error) {
	end := timeutil.EndOfDay(cycleDate)
	out := make([]domain.BankRecord, 0, len(f.bank))
	for _, b := range f.bank {
		if !b.TransactionDate.After(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

var (
	_ ports.PgFeed   = (*Feed)(nil)
	_ ports.BankFeed = (*Feed)(nil)
)
