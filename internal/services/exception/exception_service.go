package exception

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
	"github.com/kevin07696/settlement-recon/pkg/keylock"
	"github.com/kevin07696/settlement-recon/pkg/observability"
	"github.com/kevin07696/settlement-recon/pkg/timeutil"
	"go.uber.org/zap"
)

// SystemActor is recorded on events the service applies on its own
const SystemActor = "system"

// Service applies workflow actions to exceptions. Every action is a
// read-lock-apply-write sequence inside one database transaction, and
// concurrent actions on the same exception are serialized in-process.
type Service struct {
	db     ports.TransactionManager
	repo   ports.ExceptionRepository
	locks  *keylock.KeyLock
	clock  timeutil.Clock
	logger *zap.Logger
}

// NewService creates a new exception workflow service
func NewService(db ports.TransactionManager, repo ports.ExceptionRepository, clock timeutil.Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = timeutil.Now
	}
	return &Service{
		db:     db,
		repo:   repo,
		locks:  keylock.New(),
		clock:  clock,
		logger: logger,
	}
}

// Apply applies one action and returns the updated exception
func (s *Service) Apply(ctx context.Context, exceptionID string, cmd domain.ActionCommand) (*domain.Exception, error) {
	if cmd.Actor == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationMissingField, "actor is required")
	}

	unlock := s.locks.Lock(exceptionID)
	defer unlock()

	var updated *domain.Exception
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		exc, err := s.repo.GetForUpdate(ctx, tx, exceptionID)
		if err != nil {
			return err
		}

		event, err := exc.Apply(cmd, s.clock())
		if err != nil {
			return err
		}

		if err := s.repo.Update(ctx, tx, exc); err != nil {
			return fmt.Errorf("update exception: %w", err)
		}
		if err := s.repo.AppendEvent(ctx, tx, event); err != nil {
			return fmt.Errorf("append exception event: %w", err)
		}

		updated = exc
		return nil
	})
	if err != nil {
		observability.RecordExceptionAction(string(cmd.Action), "rejected")
		if errors.Is(err, domain.ErrExceptionNotFound) {
			return nil, domain.WrapError(domain.ErrorCodeExceptionNotFound, "exception not found", err).
				WithDetail("exception_id", exceptionID)
		}
		if domain.GetErrorCode(err) == "" {
			s.logger.Error("Exception action failed",
				zap.String("exception_id", exceptionID),
				zap.String("action", string(cmd.Action)),
				zap.Error(err))
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "apply exception action", err)
		}
		return nil, err
	}

	observability.RecordExceptionAction(string(cmd.Action), "applied")
	s.logger.Info("Exception action applied",
		zap.String("exception_id", exceptionID),
		zap.String("action", string(cmd.Action)),
		zap.String("actor", cmd.Actor),
		zap.String("status", string(updated.Status)))

	return updated, nil
}

// BulkResult reports the outcome for one id of a bulk action
type BulkResult struct {
	Exception   *domain.Exception `json:"exception,omitempty"`
	ExceptionID string            `json:"exception_id"`
	Error       string            `json:"error,omitempty"`
	Code        domain.ErrorCode  `json:"code,omitempty"`
}

// BulkSummary is returned by Bulk
type BulkSummary struct {
	Results   []BulkResult `json:"results"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// Bulk applies the same action to many exceptions. Each id is processed in
// its own transaction; one failure does not undo or block the others.
func (s *Service) Bulk(ctx context.Context, exceptionIDs []string, cmd domain.ActionCommand) BulkSummary {
	summary := BulkSummary{Results: make([]BulkResult, 0, len(exceptionIDs))}

	for _, id := range exceptionIDs {
		if err := ctx.Err(); err != nil {
			summary.Results = append(summary.Results, BulkResult{ExceptionID: id, Error: err.Error()})
			summary.Failed++
			continue
		}

		exc, err := s.Apply(ctx, id, cmd)
		if err != nil {
			summary.Results = append(summary.Results, BulkResult{
				ExceptionID: id,
				Error:       err.Error(),
				Code:        domain.GetErrorCode(err),
			})
			summary.Failed++
			continue
		}
		summary.Results = append(summary.Results, BulkResult{ExceptionID: id, Exception: exc})
		summary.Succeeded++
	}

	return summary
}

// ReopenSummary is returned by ReopenDue
type ReopenSummary struct {
	Reopened int      `json:"reopened"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// ReopenDue moves every snoozed exception whose snooze has expired back to OPEN
func (s *Service) ReopenDue(ctx context.Context) (*ReopenSummary, error) {
	now := s.clock()
	ids, err := s.repo.ListSnoozeDue(ctx, nil, now)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list snoozed exceptions", err)
	}

	summary := &ReopenSummary{}
	for _, id := range ids {
		_, err := s.Apply(ctx, id, domain.ActionCommand{
			Action: domain.ActionReopen,
			Actor:  SystemActor,
			Note:   "snooze expired",
		})
		if err != nil {
			// Another actor may have moved it first
			if domain.IsTransitionError(err) {
				continue
			}
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		summary.Reopened++
	}

	s.logger.Info("Reopened snoozed exceptions",
		zap.Int("due", len(ids)),
		zap.Int("reopened", summary.Reopened),
		zap.Int("failed", summary.Failed))

	return summary, nil
}

// Get returns an exception with its audit trail
func (s *Service) Get(ctx context.Context, exceptionID string) (*domain.Exception, []domain.ExceptionEvent, error) {
	exc, err := s.repo.GetByID(ctx, nil, exceptionID)
	if err != nil {
		if errors.Is(err, domain.ErrExceptionNotFound) {
			return nil, nil, domain.WrapError(domain.ErrorCodeExceptionNotFound, "exception not found", err).
				WithDetail("exception_id", exceptionID)
		}
		return nil, nil, domain.WrapError(domain.ErrorCodeDatabaseError, "get exception", err)
	}

	events, err := s.repo.ListEvents(ctx, nil, exceptionID)
	if err != nil {
		return nil, nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list exception events", err)
	}
	return exc, events, nil
}

// List returns exceptions matching filter
func (s *Service) List(ctx context.Context, filter ports.ExceptionFilter) ([]domain.Exception, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	excs, err := s.repo.List(ctx, nil, filter)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list exceptions", err)
	}
	return excs, nil
}
