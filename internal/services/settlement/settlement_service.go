package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
	"github.com/kevin07696/settlement-recon/pkg/keylock"
	"github.com/kevin07696/settlement-recon/pkg/observability"
	"github.com/kevin07696/settlement-recon/pkg/timeutil"
	"go.uber.org/zap"
)

// Service creates settlement batches and drives their lifecycle
type Service struct {
	db        ports.TransactionManager
	txnRepo   ports.TransactionRepository
	batchRepo ports.SettlementRepository
	tierRepo  ports.CommissionTierRepository
	locks     *keylock.KeyLock
	rates     Rates
	clock     timeutil.Clock
	logger    *zap.Logger
}

// NewService creates a new settlement service
func NewService(
	db ports.TransactionManager,
	txnRepo ports.TransactionRepository,
	batchRepo ports.SettlementRepository,
	tierRepo ports.CommissionTierRepository,
	rates Rates,
	clock timeutil.Clock,
	logger *zap.Logger,
) *Service {
	if clock == nil {
		clock = timeutil.Now
	}
	return &Service{
		db:        db,
		txnRepo:   txnRepo,
		batchRepo: batchRepo,
		tierRepo:  tierRepo,
		locks:     keylock.New(),
		rates:     rates,
		clock:     clock,
		logger:    logger,
	}
}

// ComputeResult is the outcome of ComputeSettlement
type ComputeResult struct {
	Batch   *domain.SettlementBatch `json:"batch"`
	Created bool                    `json:"created"`
}

// ComputeSettlement creates the batch for (merchantID, batchDate) or returns
// the one that already exists. Calls for the same key are serialized
// in-process and the unique key on the batch table covers other processes.
func (s *Service) ComputeSettlement(ctx context.Context, merchantID string, batchDate time.Time) (*ComputeResult, error) {
	cycleDate := timeutil.StartOfDay(batchDate)
	unlock := s.locks.Lock(merchantID + "|" + domain.CycleKey(cycleDate))
	defer unlock()

	var result *ComputeResult
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		existing, err := s.batchRepo.GetByKey(ctx, tx, merchantID, cycleDate)
		if err == nil {
			result = &ComputeResult{Batch: existing}
			return nil
		}
		if !errors.Is(err, domain.ErrBatchNotFound) {
			return fmt.Errorf("get batch by key: %w", err)
		}

		tiers, err := s.tierRepo.ListActive(ctx, tx)
		if err != nil {
			return fmt.Errorf("list commission tiers: %w", err)
		}

		from, to := VolumeWindow(cycleDate)
		volume, err := s.txnRepo.SumVolume(ctx, tx, merchantID, from, to)
		if err != nil {
			return fmt.Errorf("sum merchant volume: %w", err)
		}

		eligible, err := s.txnRepo.ListPendingSettlement(ctx, tx, merchantID, timeutil.EndOfDay(cycleDate))
		if err != nil {
			return fmt.Errorf("list pending settlement: %w", err)
		}

		computed, err := NewCalculator(tiers, s.rates).ComputeWithVolume(eligible, volume, merchantID, cycleDate)
		if err != nil {
			return err
		}

		now := s.clock()
		batch := computed.Batch
		batch.CreatedAt = now
		batch.UpdatedAt = now

		inserted, err := s.batchRepo.Create(ctx, tx, &batch)
		if err != nil {
			return fmt.Errorf("create batch: %w", err)
		}
		if !inserted {
			// Another process won the key first
			existing, err := s.batchRepo.GetByKey(ctx, tx, merchantID, cycleDate)
			if err != nil {
				return fmt.Errorf("re-read batch after conflict: %w", err)
			}
			result = &ComputeResult{Batch: existing}
			return nil
		}

		if err := s.batchRepo.SaveLines(ctx, tx, computed.Lines); err != nil {
			return fmt.Errorf("save settlement lines: %w", err)
		}

		ids := make([]string, len(computed.Lines))
		for i, l := range computed.Lines {
			ids[i] = l.TransactionID
		}
		if err := s.txnRepo.AssignBatch(ctx, tx, batch.ID, ids); err != nil {
			return fmt.Errorf("assign transactions to batch: %w", err)
		}

		result = &ComputeResult{Batch: &batch, Created: true}
		return nil
	})
	if err != nil {
		observability.RecordSettlementBatch(observability.UnknownTier, "failed", 0)
		s.logger.Error("Settlement computation failed",
			zap.String("merchant_id", merchantID),
			zap.String("batch_date", domain.CycleKey(cycleDate)),
			zap.Error(err))
		if domain.GetErrorCode(err) == "" {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "compute settlement", err).
				WithDetail("merchant_id", merchantID)
		}
		return nil, err
	}

	b := result.Batch
	if result.Created {
		observability.RecordSettlementBatch(b.TierName, "created", b.NetAmount)
		s.logger.Info("Settlement batch created",
			zap.String("batch_id", b.ID),
			zap.String("merchant_id", merchantID),
			zap.String("batch_date", domain.CycleKey(cycleDate)),
			zap.String("tier", b.TierName),
			zap.Int("transactions", b.TransactionCount),
			zap.Int64("gross", b.GrossAmount),
			zap.Int64("net", b.NetAmount))
	} else {
		observability.RecordSettlementBatch(b.TierName, "existing", 0)
		s.logger.Debug("Settlement batch already exists",
			zap.String("batch_id", b.ID),
			zap.String("merchant_id", merchantID))
	}

	return result, nil
}

// MerchantOutcome is one merchant's line in a RunSummary
type MerchantOutcome struct {
	MerchantID string           `json:"merchant_id"`
	BatchID    string           `json:"batch_id,omitempty"`
	Error      string           `json:"error,omitempty"`
	Code       domain.ErrorCode `json:"code,omitempty"`
	Created    bool             `json:"created"`
}

// RunSummary is returned by RunSettlement
type RunSummary struct {
	BatchDate string            `json:"batch_date"`
	Merchants []MerchantOutcome `json:"merchants"`
	Succeeded int               `json:"succeeded"`
	Existing  int               `json:"existing"`
	Failed    int               `json:"failed"`
}

// RunSettlement computes batches for every merchant with pending
// transactions. A failing merchant never stops the others.
func (s *Service) RunSettlement(ctx context.Context, batchDate time.Time) (*RunSummary, error) {
	cycleDate := timeutil.StartOfDay(batchDate)
	merchants, err := s.txnRepo.ListMerchantsWithPending(ctx, nil, timeutil.EndOfDay(cycleDate))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list merchants with pending settlement", err)
	}

	summary := &RunSummary{
		BatchDate: domain.CycleKey(cycleDate),
		Merchants: make([]MerchantOutcome, 0, len(merchants)),
	}

	for _, merchantID := range merchants {
		if err := ctx.Err(); err != nil {
			summary.Merchants = append(summary.Merchants, MerchantOutcome{MerchantID: merchantID, Error: err.Error()})
			summary.Failed++
			continue
		}

		res, err := s.ComputeSettlement(ctx, merchantID, cycleDate)
		if err != nil {
			summary.Merchants = append(summary.Merchants, MerchantOutcome{
				MerchantID: merchantID,
				Error:      err.Error(),
				Code:       domain.GetErrorCode(err),
			})
			summary.Failed++
			continue
		}

		summary.Merchants = append(summary.Merchants, MerchantOutcome{
			MerchantID: merchantID,
			BatchID:    res.Batch.ID,
			Created:    res.Created,
		})
		if res.Created {
			summary.Succeeded++
		} else {
			summary.Existing++
		}
	}

	s.logger.Info("Settlement run completed",
		zap.String("batch_date", summary.BatchDate),
		zap.Int("merchants", len(merchants)),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("existing", summary.Existing),
		zap.Int("failed", summary.Failed))

	return summary, nil
}

// TransitionRequest moves a batch through its lifecycle
type TransitionRequest struct {
	Failure *domain.FailureReason
	BankUTR *string
	BatchID string
	To      domain.BatchStatus
}

// Transition applies a lifecycle transition under a row lock
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (*domain.SettlementBatch, error) {
	unlock := s.locks.Lock("batch|" + req.BatchID)
	defer unlock()

	var updated *domain.SettlementBatch
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		batch, err := s.batchRepo.GetForUpdate(ctx, tx, req.BatchID)
		if err != nil {
			return err
		}

		if err := batch.TransitionTo(req.To, req.Failure, s.clock()); err != nil {
			return err
		}
		if req.BankUTR != nil && *req.BankUTR != "" {
			utr := *req.BankUTR
			batch.BankUTR = &utr
		}

		if err := s.batchRepo.UpdateStatus(ctx, tx, batch); err != nil {
			return fmt.Errorf("update batch status: %w", err)
		}
		updated = batch
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrBatchNotFound) {
			return nil, domain.WrapError(domain.ErrorCodeBatchNotFound, "settlement batch not found", err).
				WithDetail("batch_id", req.BatchID)
		}
		if domain.GetErrorCode(err) == "" {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "transition batch", err)
		}
		return nil, err
	}

	observability.RecordBatchTransition(string(updated.Status))
	s.logger.Info("Settlement batch transitioned",
		zap.String("batch_id", updated.ID),
		zap.String("status", string(updated.Status)))

	return updated, nil
}

// Get returns a batch by id
func (s *Service) Get(ctx context.Context, batchID string) (*domain.SettlementBatch, error) {
	batch, err := s.batchRepo.GetByID(ctx, nil, batchID)
	if err != nil {
		if errors.Is(err, domain.ErrBatchNotFound) {
			return nil, domain.WrapError(domain.ErrorCodeBatchNotFound, "settlement batch not found", err).
				WithDetail("batch_id", batchID)
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "get batch", err)
	}
	return batch, nil
}
