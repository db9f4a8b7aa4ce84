package postgres

import (
	"context"
	"fmt"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
)

// MatchRepository implements ports.MatchRepository
type MatchRepository struct {
	db *DBExecutor
}

// NewMatchRepository creates a new match repository
func NewMatchRepository(db *DBExecutor) *MatchRepository {
	return &MatchRepository{db: db}
}

// SaveMatches inserts match results. Ids are deterministic, so a rerun of a
// cycle leaves existing rows as they are.
func (r *MatchRepository) SaveMatches(ctx context.Context, tx ports.DBTX, matches []domain.MatchResult) error {
	q := r.db.conn(tx)
	for i := range matches {
		m := &matches[i]
		_, err := q.Exec(ctx, `
			INSERT INTO match_results
				(id, cycle_date, pg_transaction_id, bank_ref, match_type, reason, exception_id, match_score, amount_difference)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING`,
			m.ID, m.CycleDate, m.PgTransactionID, m.BankRef, string(m.Type),
			nullText(string(m.Reason)), nullText(m.ExceptionID), m.Score, m.AmountDifference)
		if err != nil {
			return fmt.Errorf("insert match %s: %w", m.ID, err)
		}
	}
	return nil
}

var _ ports.MatchRepository = (*MatchRepository)(nil)
