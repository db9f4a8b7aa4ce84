// Package ingest accepts pushed bank-credit notifications from gateways.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
	pkgerrors "github.com/kevin07696/settlement-recon/pkg/errors"
	"github.com/kevin07696/settlement-recon/pkg/observability"
	"go.uber.org/zap"
)

// DefaultDedupTTL is used when the configured TTL is not positive
const DefaultDedupTTL = time.Hour

// Result reports what happened to one delivery
type Result struct {
	BankRef   string `json:"bank_ref"`
	Gateway   string `json:"gateway"`
	Duplicate bool   `json:"duplicate"`
}

// Service records bank credits, dropping redeliveries. The dedup store is
// the fast path and the unique bank_ref in storage is the backstop.
type Service struct {
	dedup  ports.DedupStore
	repo   ports.BankRecordRepository
	ttl    time.Duration
	logger *zap.Logger
}

// NewService creates a new bank-credit ingestion service
func NewService(dedup ports.DedupStore, repo ports.BankRecordRepository, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &Service{dedup: dedup, repo: repo, ttl: ttl, logger: logger}
}

// DedupKey is the delivery key for a credit from gateway
func DedupKey(gateway, bankRef string) string {
	return "bank-credit:" + strings.ToLower(strings.TrimSpace(gateway)) + ":" + strings.TrimSpace(bankRef)
}

// IngestBankCredit stores one bank credit unless it was already seen
func (s *Service) IngestBankCredit(ctx context.Context, gateway string, record domain.BankRecord) (*Result, error) {
	if err := validate(gateway, record); err != nil {
		observability.RecordBankCredit(gateway, "rejected")
		return nil, domain.WrapError(domain.ErrorCodeValidationFailed, "invalid bank credit", err).
			WithDetail("bank_ref", record.BankRef)
	}
	record.BankRef = strings.TrimSpace(record.BankRef)
	record.UTR = strings.TrimSpace(record.UTR)
	record.TransactionDate = record.TransactionDate.UTC()
	record.Processed = false
	record.MatchedTransactionID = nil

	result := &Result{BankRef: record.BankRef, Gateway: gateway}
	key := DedupKey(gateway, record.BankRef)

	first, err := s.dedup.MarkIfAbsent(ctx, key, s.ttl)
	if err != nil {
		// Fall through to storage, which rejects repeats on its own
		s.logger.Warn("Dedup store unavailable",
			zap.String("key", key),
			zap.Error(err))
		first = true
	}
	if !first {
		result.Duplicate = true
		observability.RecordBankCredit(gateway, "duplicate")
		s.logger.Debug("Duplicate bank credit dropped",
			zap.String("gateway", gateway),
			zap.String("bank_ref", record.BankRef))
		return result, nil
	}

	inserted, err := s.repo.Create(ctx, nil, &record)
	if err != nil {
		if relErr := s.dedup.Release(ctx, key); relErr != nil {
			s.logger.Warn("Failed to release dedup key", zap.String("key", key), zap.Error(relErr))
		}
		observability.RecordBankCredit(gateway, "failed")
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "store bank credit", err).
			WithDetail("bank_ref", record.BankRef)
	}

	if !inserted {
		result.Duplicate = true
		observability.RecordBankCredit(gateway, "duplicate")
		return result, nil
	}

	observability.RecordBankCredit(gateway, "stored")
	s.logger.Info("Bank credit stored",
		zap.String("gateway", gateway),
		zap.String("bank_ref", record.BankRef),
		zap.Int64("amount", record.Amount))

	return result, nil
}

func validate(gateway string, record domain.BankRecord) error {
	var errs pkgerrors.ValidationErrors
	if strings.TrimSpace(gateway) == "" {
		errs.Add("gateway", "is required")
	}
	if strings.TrimSpace(record.BankRef) == "" {
		errs.Add("bank_ref", "is required")
	}
	if record.Amount <= 0 {
		errs.Add("amount", fmt.Sprintf("must be positive, got %d", record.Amount))
	}
	if record.TransactionDate.IsZero() {
		errs.Add("transaction_date", "is required")
	}
	return errs.ErrOrNil()
}
