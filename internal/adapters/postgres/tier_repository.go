package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
)

// CommissionTierRepository implements ports.CommissionTierRepository
type CommissionTierRepository struct {
	db *DBExecutor
}

// NewCommissionTierRepository creates a new commission tier repository
func NewCommissionTierRepository(db *DBExecutor) *CommissionTierRepository {
	return &CommissionTierRepository{db: db}
}

// ListActive returns active tiers, highest min_volume first
func (r *CommissionTierRepository) ListActive(ctx context.Context, db ports.DBTX) ([]domain.CommissionTier, error) {
	rows, err := r.db.conn(db).Query(ctx, `
		SELECT id, tier_name, min_volume, max_volume, commission_percentage, is_active
		FROM commission_tiers
		WHERE is_active
		ORDER BY min_volume DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query commission tiers: %w", err)
	}

	tiers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CommissionTier, error) {
		var t domain.CommissionTier
		var pct pgtype.Numeric
		if err := row.Scan(&t.ID, &t.TierName, &t.MinVolume, &t.MaxVolume, &pct, &t.IsActive); err != nil {
			return t, err
		}
		v, err := pgNumericToDecimal(pct)
		if err != nil {
			return t, err
		}
		t.CommissionPercentage = v
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan commission tiers: %w", err)
	}
	return tiers, nil
}

// Upsert inserts or replaces a tier by id
func (r *CommissionTierRepository) Upsert(ctx context.Context, tx ports.DBTX, t domain.CommissionTier) error {
	pct, err := decimalToNumeric(t.CommissionPercentage)
	if err != nil {
		return err
	}
	_, err = r.db.conn(tx).Exec(ctx, `
		INSERT INTO commission_tiers (id, tier_name, min_volume, max_volume, commission_percentage, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			tier_name = EXCLUDED.tier_name,
			min_volume = EXCLUDED.min_volume,
			max_volume = EXCLUDED.max_volume,
			commission_percentage = EXCLUDED.commission_percentage,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()`,
		t.ID, t.TierName, t.MinVolume, t.MaxVolume, pct, t.IsActive)
	if err != nil {
		return fmt.Errorf("upsert commission tier %s: %w", t.ID, err)
	}
	return nil
}

var _ ports.CommissionTierRepository = (*CommissionTierRepository)(nil)
