package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
)

// BankRecordRepository implements ports.BankRecordRepository
type BankRecordRepository struct {
	db *DBExecutor
}

// NewBankRecordRepository creates a new bank record repository
func NewBankRecordRepository(db *DBExecutor) *BankRecordRepository {
	return &BankRecordRepository{db: db}
}

// FetchBankRecords returns the cycle day's bank lines plus earlier unprocessed
// ones that have not already been raised as missing in PG
func (r *BankRecordRepository) FetchBankRecords(ctx context.Context, cycleDate time.Time) ([]domain.BankRecord, error) {
	start, end := dayRange(cycleDate)
	lookback := start.AddDate(0, 0, -FeedLookbackDays)

	rows, err := r.db.pool.Query(ctx, `
		SELECT b.bank_ref, b.utr, b.amount, b.transaction_date, b.processed, b.matched_transaction_id
		FROM bank_records b
		WHERE b.transaction_date < $2
		  AND (
		        b.transaction_date >= $1
		     OR (b.transaction_date >= $3 AND NOT b.processed AND NOT EXISTS (
		            SELECT 1 FROM reconciliation_exceptions e
		            WHERE e.bank_ref = b.bank_ref AND e.reason = 'BANK_TXN_MISSING_IN_PG'))
		  )
		ORDER BY b.transaction_date, b.bank_ref`,
		start, end, lookback)
	if err != nil {
		return nil, fmt.Errorf("query bank records: %w", err)
	}
	defer rows.Close()

	var records []domain.BankRecord
	for rows.Next() {
		var b domain.BankRecord
		if err := rows.Scan(&b.BankRef, &b.UTR, &b.Amount, &b.TransactionDate, &b.Processed, &b.MatchedTransactionID); err != nil {
			return nil, fmt.Errorf("scan bank record: %w", err)
		}
		b.TransactionDate = b.TransactionDate.UTC()
		records = append(records, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bank records: %w", err)
	}
	return records, nil
}

// Create inserts a bank record; it reports false when bank_ref already exists
func (r *BankRecordRepository) Create(ctx context.Context, tx ports.DBTX, record *domain.BankRecord) (bool, error) {
	tag, err := r.db.conn(tx).Exec(ctx, `
		INSERT INTO bank_records (bank_ref, utr, amount, transaction_date, processed, matched_transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (bank_ref) DO NOTHING`,
		record.BankRef, record.UTR, record.Amount, record.TransactionDate, record.Processed, record.MatchedTransactionID)
	if err != nil {
		return false, fmt.Errorf("insert bank record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkProcessed sets processed and the matched transaction back-reference
func (r *BankRecordRepository) MarkProcessed(ctx context.Context, tx ports.DBTX, bankRef, transactionID string) error {
	_, err := r.db.conn(tx).Exec(ctx, `
		UPDATE bank_records SET processed = TRUE, matched_transaction_id = $2
		WHERE bank_ref = $1`,
		bankRef, transactionID)
	if err != nil {
		return fmt.Errorf("mark bank record processed: %w", err)
	}
	return nil
}

var _ ports.BankRecordRepository = (*BankRecordRepository)(nil)
