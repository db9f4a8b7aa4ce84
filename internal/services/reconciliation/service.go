package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
	"github.com/kevin07696/settlement-recon/pkg/observability"
	"go.uber.org/zap"
)

// Service runs a full reconciliation cycle: fetch both feeds, match in
// memory, persist every output in one database transaction.
type Service struct {
	db        ports.TransactionManager
	pgFeed    ports.PgFeed
	bankFeed  ports.BankFeed
	txnRepo   ports.TransactionRepository
	bankRepo  ports.BankRecordRepository
	matchRepo ports.MatchRepository
	excRepo   ports.ExceptionRepository
	engine    *Engine
	logger    *zap.Logger
}

// NewService creates a new reconciliation service
func NewService(
	db ports.TransactionManager,
	pgFeed ports.PgFeed,
	bankFeed ports.BankFeed,
	txnRepo ports.TransactionRepository,
	bankRepo ports.BankRecordRepository,
	matchRepo ports.MatchRepository,
	excRepo ports.ExceptionRepository,
	engine *Engine,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:        db,
		pgFeed:    pgFeed,
		bankFeed:  bankFeed,
		txnRepo:   txnRepo,
		bankRepo:  bankRepo,
		matchRepo: matchRepo,
		excRepo:   excRepo,
		engine:    engine,
		logger:    logger,
	}
}

// RunResult is returned to callers of RunCycle
type RunResult struct {
	Summary
	ExceptionsCreated int `json:"exceptions_created"`
}

// RunCycle reconciles one cycle date. A feed failure aborts the run before
// anything is written; re-running a cycle is safe because every output id is
// derived from its inputs.
func (s *Service) RunCycle(ctx context.Context, cycleDate time.Time) (*RunResult, error) {
	start := time.Now()
	run, err := s.runCycle(ctx, cycleDate)

	status := "success"
	if err != nil {
		status = "failed"
	}
	observability.RecordReconciliationRun(status, time.Since(start).Seconds())

	if err != nil {
		s.logger.Error("Reconciliation cycle failed",
			zap.String("cycle_date", domain.CycleKey(cycleDate)),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Reconciliation cycle completed",
		zap.String("cycle_date", run.CycleDate),
		zap.Int("matched", run.Matched),
		zap.Int("exceptions", run.Exceptions),
		zap.Int("exceptions_created", run.ExceptionsCreated),
		zap.Int("unmatched_pg", run.UnmatchedPg),
		zap.Int("unmatched_bank", run.UnmatchedBank),
		zap.Int("rejected", run.Rejected),
		zap.Duration("elapsed", time.Since(start)))

	return run, nil
}

func (s *Service) runCycle(ctx context.Context, cycleDate time.Time) (*RunResult, error) {
	pgTxns, err := s.pgFeed.FetchPgTransactions(ctx, cycleDate)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeFeedUnavailable, "fetch pg transactions", err).
			WithDetail("cycle_date", domain.CycleKey(cycleDate))
	}
	bankRecords, err := s.bankFeed.FetchBankRecords(ctx, cycleDate)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeFeedUnavailable, "fetch bank records", err).
			WithDetail("cycle_date", domain.CycleKey(cycleDate))
	}

	result, err := s.engine.Reconcile(ctx, cycleDate, pgTxns, bankRecords)
	if err != nil {
		return nil, err
	}

	for _, rej := range result.Rejected {
		s.logger.Warn("Rejected feed record",
			zap.String("side", string(rej.Side)),
			zap.String("record_id", rej.RecordID),
			zap.String("reason", rej.Message))
	}

	var created int
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var txErr error
		created, txErr = s.persist(ctx, tx, result)
		return txErr
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "persist reconciliation result", err).
			WithDetail("cycle_date", domain.CycleKey(cycleDate))
	}

	recordOutcomeMetrics(result)

	return &RunResult{Summary: result.Summary(), ExceptionsCreated: created}, nil
}

func (s *Service) persist(ctx context.Context, tx pgx.Tx, result *Result) (int, error) {
	if err := s.matchRepo.SaveMatches(ctx, tx, result.Matches); err != nil {
		return 0, fmt.Errorf("save matches: %w", err)
	}

	created, err := s.excRepo.CreateExceptions(ctx, tx, result.Exceptions)
	if err != nil {
		return 0, fmt.Errorf("create exceptions: %w", err)
	}

	for i := range result.Matches {
		m := &result.Matches[i]
		if !m.IsClean() {
			continue
		}
		if err := s.txnRepo.UpdateStatus(ctx, tx, m.PgTransactionID, domain.TransactionStatusReconciled); err != nil {
			return 0, fmt.Errorf("mark %s reconciled: %w", m.PgTransactionID, err)
		}
		if err := s.bankRepo.MarkProcessed(ctx, tx, m.BankRef, m.PgTransactionID); err != nil {
			return 0, fmt.Errorf("mark bank record %s processed: %w", m.BankRef, err)
		}
	}

	for i := range result.Exceptions {
		e := &result.Exceptions[i]
		if e.PgTransactionID == nil {
			continue
		}
		if err := s.txnRepo.UpdateStatus(ctx, tx, *e.PgTransactionID, domain.TransactionStatusException); err != nil {
			return 0, fmt.Errorf("mark %s exception: %w", *e.PgTransactionID, err)
		}
	}

	return created, nil
}

func recordOutcomeMetrics(result *Result) {
	s := result.Summary()
	var pgRejected, bankRejected int
	for _, r := range result.Rejected {
		if r.Side == domain.SidePG {
			pgRejected++
		} else {
			bankRejected++
		}
	}
	observability.RecordReconciliationRecords(string(domain.SidePG), "matched", s.Matched)
	observability.RecordReconciliationRecords(string(domain.SidePG), "unmatched", s.UnmatchedPg)
	observability.RecordReconciliationRecords(string(domain.SideBank), "unmatched", s.UnmatchedBank)
	observability.RecordReconciliationRecords(string(domain.SidePG), "rejected", pgRejected)
	observability.RecordReconciliationRecords(string(domain.SideBank), "rejected", bankRejected)

	for i := range result.Exceptions {
		e := &result.Exceptions[i]
		side := domain.SideBank
		if e.PgTransactionID != nil {
			side = domain.SidePG
		}
		observability.RecordReconciliationRecords(string(side), "exception", 1)
		observability.RecordExceptionRaised(string(e.Reason), string(e.Severity))
	}
}
