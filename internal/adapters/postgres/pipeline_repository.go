package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
)

// PipelineRepository implements ports.PipelineRepository
type PipelineRepository struct {
	db *DBExecutor
}

// NewPipelineRepository creates a new pipeline repository
func NewPipelineRepository(db *DBExecutor) *PipelineRepository {
	return &PipelineRepository{db: db}
}

// Each stage is read from its own source column, so the values can disagree:
// captured from transaction status, inSettlement from the batch link,
// sentToBank from batch status and creditedUtr from the recorded bank UTR.
const rawCountsQuery = `
	SELECT
		COUNT(*) FILTER (WHERE t.status IN ('SUCCESS', 'RECONCILED', 'EXCEPTION')),
		COUNT(*) FILTER (WHERE t.settlement_batch_id IS NOT NULL),
		COUNT(*) FILTER (WHERE b.status IN ('SENT_TO_BANK', 'PROCESSING', 'COMPLETED', 'CREDITED')),
		COUNT(*) FILTER (WHERE b.bank_utr IS NOT NULL AND b.bank_utr <> ''),
		COALESCE(SUM(t.amount) FILTER (WHERE t.status IN ('SUCCESS', 'RECONCILED', 'EXCEPTION')), 0)::BIGINT,
		COALESCE(SUM(t.amount) FILTER (WHERE t.settlement_batch_id IS NOT NULL), 0)::BIGINT,
		COALESCE(SUM(t.amount) FILTER (WHERE b.status IN ('SENT_TO_BANK', 'PROCESSING', 'COMPLETED', 'CREDITED')), 0)::BIGINT,
		COALESCE(SUM(t.amount) FILTER (WHERE b.bank_utr IS NOT NULL AND b.bank_utr <> ''), 0)::BIGINT
	FROM transactions t
	LEFT JOIN settlement_batches b ON b.id = t.settlement_batch_id
	WHERE t.transaction_date BETWEEN $1 AND $2`

// RawCounts returns counts and amounts for transactions dated in [from, to]
func (r *PipelineRepository) RawCounts(ctx context.Context, db ports.DBTX, from, to time.Time) (domain.PipelineRaw, domain.PipelineRaw, error) {
	var counts, amounts domain.PipelineRaw
	err := r.db.conn(db).QueryRow(ctx, rawCountsQuery, from, to).Scan(
		&counts.Captured, &counts.InSettlement, &counts.SentToBank, &counts.CreditedUtr,
		&amounts.Captured, &amounts.InSettlement, &amounts.SentToBank, &amounts.CreditedUtr,
	)
	if err != nil {
		return counts, amounts, fmt.Errorf("query raw pipeline counts: %w", err)
	}
	return counts, amounts, nil
}

var _ ports.PipelineRepository = (*PipelineRepository)(nil)
