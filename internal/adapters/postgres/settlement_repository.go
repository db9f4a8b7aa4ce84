package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
)

// SettlementRepository implements ports.SettlementRepository
type SettlementRepository struct {
	db *DBExecutor
}

// NewSettlementRepository creates a new settlement batch repository
func NewSettlementRepository(db *DBExecutor) *SettlementRepository {
	return &SettlementRepository{db: db}
}

const batchColumns = `id, merchant_id, cycle_date, tier_name, status, gross_amount, commission_amount,
	gst_amount, tds_amount, reserve_amount, net_amount, transaction_count, bank_utr,
	failure_category, failure_owner, failure_message, created_at, updated_at`

// GetByKey returns the batch for (merchantID, cycleDate)
func (r *SettlementRepository) GetByKey(ctx context.Context, db ports.DBTX, merchantID string, cycleDate time.Time) (*domain.SettlementBatch, error) {
	row := r.db.conn(db).QueryRow(ctx, `
		SELECT `+batchColumns+` FROM settlement_batches
		WHERE merchant_id = $1 AND cycle_date = $2`,
		merchantID, cycleDate)
	return scanBatchRow(row, merchantID+"/"+domain.CycleKey(cycleDate))
}

// GetByID returns a batch by id
func (r *SettlementRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.SettlementBatch, error) {
	row := r.db.conn(db).QueryRow(ctx, `SELECT `+batchColumns+` FROM settlement_batches WHERE id = $1`, id)
	return scanBatchRow(row, id)
}

// GetForUpdate locks the batch row for the enclosing transaction
func (r *SettlementRepository) GetForUpdate(ctx context.Context, tx ports.DBTX, id string) (*domain.SettlementBatch, error) {
	row := r.db.conn(tx).QueryRow(ctx, `SELECT `+batchColumns+` FROM settlement_batches WHERE id = $1 FOR UPDATE`, id)
	return scanBatchRow(row, id)
}

// Create inserts the batch; it reports false when the idempotency key already exists
func (r *SettlementRepository) Create(ctx context.Context, tx ports.DBTX, b *domain.SettlementBatch) (bool, error) {
	category, owner, message := failureColumns(b.Failure)
	tag, err := r.db.conn(tx).Exec(ctx, `
		INSERT INTO settlement_batches (`+batchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (merchant_id, cycle_date) DO NOTHING`,
		b.ID, b.MerchantID, b.CycleDate, b.TierName, string(b.Status), b.GrossAmount, b.CommissionAmount,
		b.GSTAmount, b.TDSAmount, b.ReserveAmount, b.NetAmount, b.TransactionCount, b.BankUTR,
		category, owner, message, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("insert settlement batch: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SaveLines stores the per-transaction audit trail
func (r *SettlementRepository) SaveLines(ctx context.Context, tx ports.DBTX, lines []domain.SettlementLine) error {
	q := r.db.conn(tx)
	for _, l := range lines {
		_, err := q.Exec(ctx, `
			INSERT INTO settlement_lines (batch_id, transaction_id, amount, commission, gst, tds)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			l.BatchID, l.TransactionID, l.Amount, l.Commission, l.GST, l.TDS)
		if err != nil {
			return fmt.Errorf("insert settlement line %s: %w", l.TransactionID, err)
		}
	}
	return nil
}

// UpdateStatus writes the lifecycle fields of a batch
func (r *SettlementRepository) UpdateStatus(ctx context.Context, tx ports.DBTX, b *domain.SettlementBatch) error {
	category, owner, message := failureColumns(b.Failure)
	_, err := r.db.conn(tx).Exec(ctx, `
		UPDATE settlement_batches
		SET status = $2, bank_utr = $3, failure_category = $4, failure_owner = $5, failure_message = $6, updated_at = $7
		WHERE id = $1`,
		b.ID, string(b.Status), b.BankUTR, category, owner, message, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update settlement batch: %w", err)
	}
	return nil
}

func failureColumns(f *domain.FailureReason) (pgtype.Text, pgtype.Text, pgtype.Text) {
	if f == nil {
		return pgtype.Text{}, pgtype.Text{}, pgtype.Text{}
	}
	return nullText(string(f.Category)), nullText(string(f.Owner)), pgtype.Text{String: f.Message, Valid: true}
}

func scanBatchRow(row pgx.Row, key string) (*domain.SettlementBatch, error) {
	var (
		b                        domain.SettlementBatch
		status                   string
		category, owner, message pgtype.Text
	)
	err := row.Scan(&b.ID, &b.MerchantID, &b.CycleDate, &b.TierName, &status, &b.GrossAmount, &b.CommissionAmount,
		&b.GSTAmount, &b.TDSAmount, &b.ReserveAmount, &b.NetAmount, &b.TransactionCount, &b.BankUTR,
		&category, &owner, &message, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("batch %s: %w", key, domain.ErrBatchNotFound)
		}
		return nil, fmt.Errorf("scan settlement batch: %w", err)
	}

	b.Status = domain.BatchStatus(status)
	if category.Valid {
		b.Failure = &domain.FailureReason{
			Category: domain.FailureCategory(category.String),
			Owner:    domain.FailureOwner(owner.String),
			Message:  message.String,
		}
	}
	b.CycleDate = b.CycleDate.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

var _ ports.SettlementRepository = (*SettlementRepository)(nil)
