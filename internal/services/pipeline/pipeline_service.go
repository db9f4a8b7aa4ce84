package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
	"github.com/kevin07696/settlement-recon/pkg/observability"
	"github.com/kevin07696/settlement-recon/pkg/timeutil"
	"go.uber.org/zap"
)

// Service builds pipeline snapshots at read time
type Service struct {
	db     ports.TransactionManager
	repo   ports.PipelineRepository
	clock  timeutil.Clock
	logger *zap.Logger
}

// NewService creates a new pipeline snapshot service
func NewService(db ports.TransactionManager, repo ports.PipelineRepository, clock timeutil.Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = timeutil.Now
	}
	return &Service{db: db, repo: repo, clock: clock, logger: logger}
}

// Snapshot returns the funnel for transactions dated in [from, to].
// Counts and amounts are read in one read-only transaction.
func (s *Service) Snapshot(ctx context.Context, from, to time.Time) (*domain.PipelineSnapshot, error) {
	from = timeutil.StartOfDay(from)
	to = timeutil.EndOfDay(to)
	if to.Before(from) {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "from must not be after to").
			WithDetail("from", domain.CycleKey(from)).
			WithDetail("to", domain.CycleKey(to))
	}

	var counts, amounts domain.PipelineRaw
	err := s.db.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		counts, amounts, err = s.repo.RawCounts(ctx, tx, from, to)
		if err != nil {
			return fmt.Errorf("read raw pipeline counts: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "pipeline snapshot", err)
	}

	exclusive, warnings := Aggregate(counts)
	exclusiveAmounts, amountWarnings := AggregateAmounts(amounts)
	warnings = append(warnings, amountWarnings...)

	for _, w := range warnings {
		observability.RecordPipelineWarning(string(w.Code), w.Metric)
		s.logger.Warn("Pipeline invariant violated",
			zap.String("code", string(w.Code)),
			zap.String("severity", string(w.Severity)),
			zap.String("metric", w.Metric),
			zap.Int64("raw", w.Raw),
			zap.Int64("adjusted", w.Adjusted))
	}

	if warnings == nil {
		warnings = []domain.ValidationWarning{}
	}

	return &domain.PipelineSnapshot{
		From:            from,
		To:              to,
		ComputedAt:      s.clock(),
		Version:         AlgorithmVersion,
		Raw:             counts,
		Exclusive:       exclusive,
		RawAmounts:      amounts,
		ExclusiveAmount: exclusiveAmounts,
		Warnings:        warnings,
	}, nil
}
