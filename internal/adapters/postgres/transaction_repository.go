package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
)

// FeedLookbackDays is how far back a cycle's feed reaches for records that
// never reached a terminal reconciliation state
const FeedLookbackDays = 7

// TransactionRepository implements ports.TransactionRepository
type TransactionRepository struct {
	db *DBExecutor
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *DBExecutor) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const pgTransactionColumns = `transaction_id, merchant_id, amount, transaction_date, utr, rrn,
	payment_method, status, bank_fee, settlement_amount, settlement_batch_id`

// FetchPgTransactions returns the cycle day's captured transactions plus
// earlier ones still awaiting a bank counterpart
func (r *TransactionRepository) FetchPgTransactions(ctx context.Context, cycleDate time.Time) ([]domain.PgTransaction, error) {
	start, end := dayRange(cycleDate)
	lookback := start.AddDate(0, 0, -FeedLookbackDays)

	rows, err := r.db.pool.Query(ctx, `
		SELECT `+pgTransactionColumns+`
		FROM transactions
		WHERE transaction_date < $2
		  AND (
		        (transaction_date >= $1 AND status IN ('SUCCESS', 'RECONCILED', 'EXCEPTION'))
		     OR (transaction_date >= $3 AND status = 'SUCCESS')
		  )
		ORDER BY transaction_date, transaction_id`,
		start, end, lookback)
	if err != nil {
		return nil, fmt.Errorf("query pg transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.PgTransaction
	for rows.Next() {
		var t domain.PgTransaction
		var status string
		if err := rows.Scan(&t.TransactionID, &t.MerchantID, &t.Amount, &t.TransactionDate, &t.UTR, &t.RRN,
			&t.PaymentMethod, &status, &t.BankFee, &t.SettlementAmount, &t.SettlementBatchID); err != nil {
			return nil, fmt.Errorf("scan pg transaction: %w", err)
		}
		t.Status = domain.TransactionStatus(status)
		t.TransactionDate = t.TransactionDate.UTC()
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pg transactions: %w", err)
	}
	return txns, nil
}

// UpdateStatus writes the reconciliation outcome back to the transaction
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx ports.DBTX, transactionID string, status domain.TransactionStatus) error {
	_, err := r.db.conn(tx).Exec(ctx, `
		UPDATE transactions SET status = $2, updated_at = NOW()
		WHERE transaction_id = $1`,
		transactionID, string(status))
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	return nil
}

// ListPendingSettlement locks and returns the merchant's RECONCILED, unbatched transactions
func (r *TransactionRepository) ListPendingSettlement(ctx context.Context, db ports.DBTX, merchantID string, upTo time.Time) ([]domain.ReconciledTxn, error) {
	rows, err := r.db.conn(db).Query(ctx, `
		SELECT transaction_id, merchant_id, amount, transaction_date, status, settlement_batch_id IS NOT NULL
		FROM transactions
		WHERE merchant_id = $1
		  AND status = 'RECONCILED'
		  AND settlement_batch_id IS NULL
		  AND transaction_date <= $2
		ORDER BY transaction_id
		FOR UPDATE`,
		merchantID, upTo)
	if err != nil {
		return nil, fmt.Errorf("query pending settlement: %w", err)
	}

	txns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ReconciledTxn, error) {
		var t domain.ReconciledTxn
		var status string
		if err := row.Scan(&t.TransactionID, &t.MerchantID, &t.Amount, &t.TransactionDate, &status, &t.Batched); err != nil {
			return t, err
		}
		t.Status = domain.TransactionStatus(status)
		t.TransactionDate = t.TransactionDate.UTC()
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan pending settlement: %w", err)
	}
	return txns, nil
}

// ListMerchantsWithPending returns merchants with settlement-eligible transactions
func (r *TransactionRepository) ListMerchantsWithPending(ctx context.Context, db ports.DBTX, upTo time.Time) ([]string, error) {
	rows, err := r.db.conn(db).Query(ctx, `
		SELECT DISTINCT merchant_id
		FROM transactions
		WHERE status = 'RECONCILED'
		  AND settlement_batch_id IS NULL
		  AND transaction_date <= $1
		ORDER BY merchant_id`,
		upTo)
	if err != nil {
		return nil, fmt.Errorf("query merchants with pending: %w", err)
	}

	merchants, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan merchants with pending: %w", err)
	}
	return merchants, nil
}

// SumVolume sums SUCCESS and RECONCILED amounts in [from, to]
func (r *TransactionRepository) SumVolume(ctx context.Context, db ports.DBTX, merchantID string, from, to time.Time) (int64, error) {
	var volume int64
	err := r.db.conn(db).QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::BIGINT
		FROM transactions
		WHERE merchant_id = $1
		  AND status IN ('SUCCESS', 'RECONCILED')
		  AND transaction_date BETWEEN $2 AND $3`,
		merchantID, from, to).Scan(&volume)
	if err != nil {
		return 0, fmt.Errorf("sum merchant volume: %w", err)
	}
	return volume, nil
}

// AssignBatch links transactions to a batch. Every id must still be unbatched.
func (r *TransactionRepository) AssignBatch(ctx context.Context, tx ports.DBTX, batchID string, transactionIDs []string) error {
	tag, err := r.db.conn(tx).Exec(ctx, `
		UPDATE transactions SET settlement_batch_id = $1, updated_at = NOW()
		WHERE transaction_id = ANY($2) AND settlement_batch_id IS NULL`,
		batchID, transactionIDs)
	if err != nil {
		return fmt.Errorf("assign batch: %w", err)
	}
	if tag.RowsAffected() != int64(len(transactionIDs)) {
		return domain.NewDomainError(domain.ErrorCodeBatchConflict,
			fmt.Sprintf("assigned %d of %d transactions", tag.RowsAffected(), len(transactionIDs))).
			WithDetail("batch_id", batchID)
	}
	return nil
}

// Insert stores a PG transaction from an upstream feed. Existing ids are left untouched.
func (r *TransactionRepository) Insert(ctx context.Context, tx ports.DBTX, t *domain.PgTransaction) (bool, error) {
	tag, err := r.db.conn(tx).Exec(ctx, `
		INSERT INTO transactions (`+pgTransactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (transaction_id) DO NOTHING`,
		t.TransactionID, t.MerchantID, t.Amount, t.TransactionDate, t.UTR, t.RRN,
		t.PaymentMethod, string(t.Status), t.BankFee, t.SettlementAmount, t.SettlementBatchID)
	if err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

var _ ports.TransactionRepository = (*TransactionRepository)(nil)
