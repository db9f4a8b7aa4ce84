package mocks

import (
	"context"
	"time"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
	"github.com/stretchr/testify/mock"
)

// MockTransactionRepository mocks ports.TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) FetchPgTransactions(ctx context.Context, cycleDate time.Time) ([]domain.PgTransaction, error) {
	args := m.Called(ctx, cycleDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PgTransaction), args.Error(1)
}

func (m *MockTransactionRepository) UpdateStatus(ctx context.Context, tx ports.DBTX, transactionID string, status domain.TransactionStatus) error {
	args := m.Called(ctx, tx, transactionID, status)
	return args.Error(0)
}

func (m *MockTransactionRepository) ListPendingSettlement(ctx context.Context, db ports.DBTX, merchantID string, upTo time.Time) ([]domain.ReconciledTxn, error) {
	args := m.Called(ctx, db, merchantID, upTo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ReconciledTxn), args.Error(1)
}

func (m *MockTransactionRepository) ListMerchantsWithPending(ctx context.Context, db ports.DBTX, upTo time.Time) ([]string, error) {
	args := m.Called(ctx, db, upTo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTransactionRepository) SumVolume(ctx context.Context, db ports.DBTX, merchantID string, from, to time.Time) (int64, error) {
	args := m.Called(ctx, db, merchantID, from, to)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) AssignBatch(ctx context.Context, tx ports.DBTX, batchID string, transactionIDs []string) error {
	args := m.Called(ctx, tx, batchID, transactionIDs)
	return args.Error(0)
}

// MockBankRecordRepository mocks ports.BankRecordRepository
type MockBankRecordRepository struct {
	mock.Mock
}

func (m *MockBankRecordRepository) FetchBankRecords(ctx context.Context, cycleDate time.Time) ([]domain.BankRecord, error) {
	args := m.Called(ctx, cycleDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BankRecord), args.Error(1)
}

func (m *MockBankRecordRepository) Create(ctx context.Context, tx ports.DBTX, record *domain.BankRecord) (bool, error) {
	args := m.Called(ctx, tx, record)
	return args.Bool(0), args.Error(1)
}

func (m *MockBankRecordRepository) MarkProcessed(ctx context.Context, tx ports.DBTX, bankRef, transactionID string) error {
	args := m.Called(ctx, tx, bankRef, transactionID)
	return args.Error(0)
}

// MockMatchRepository mocks ports.MatchRepository
type MockMatchRepository struct {
	mock.Mock
}

func (m *MockMatchRepository) SaveMatches(ctx context.Context, tx ports.DBTX, matches []domain.MatchResult) error {
	args := m.Called(ctx, tx, matches)
	return args.Error(0)
}

// MockExceptionRepository mocks ports.ExceptionRepository
type MockExceptionRepository struct {
	mock.Mock
}

func (m *MockExceptionRepository) CreateExceptions(ctx context.Context, tx ports.DBTX, exceptions []domain.Exception) (int, error) {
	args := m.Called(ctx, tx, exceptions)
	return args.Int(0), args.Error(1)
}

func (m *MockExceptionRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Exception, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Exception), args.Error(1)
}

func (m *MockExceptionRepository) GetForUpdate(ctx context.Context, tx ports.DBTX, id string) (*domain.Exception, error) {
	args := m.Called(ctx, tx, id)
	// A func return value lets tests serve the current state of a shared row
	if fn, ok := args.Get(0).(func(context.Context, ports.DBTX, string) *domain.Exception); ok {
		return fn(ctx, tx, id), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Exception), args.Error(1)
}

func (m *MockExceptionRepository) Update(ctx context.Context, tx ports.DBTX, exception *domain.Exception) error {
	args := m.Called(ctx, tx, exception)
	return args.Error(0)
}

func (m *MockExceptionRepository) AppendEvent(ctx context.Context, tx ports.DBTX, event *domain.ExceptionEvent) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

func (m *MockExceptionRepository) ListEvents(ctx context.Context, db ports.DBTX, exceptionID string) ([]domain.ExceptionEvent, error) {
	args := m.Called(ctx, db, exceptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ExceptionEvent), args.Error(1)
}

func (m *MockExceptionRepository) List(ctx context.Context, db ports.DBTX, filter ports.ExceptionFilter) ([]domain.Exception, error) {
	args := m.Called(ctx, db, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Exception), args.Error(1)
}

func (m *MockExceptionRepository) ListSnoozeDue(ctx context.Context, db ports.DBTX, now time.Time) ([]string, error) {
	args := m.Called(ctx, db, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockSettlementRepository mocks ports.SettlementRepository
type MockSettlementRepository struct {
	mock.Mock
}

func (m *MockSettlementRepository) GetByKey(ctx context.Context, db ports.DBTX, merchantID string, cycleDate time.Time) (*domain.SettlementBatch, error) {
	args := m.Called(ctx, db, merchantID, cycleDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SettlementBatch), args.Error(1)
}

func (m *MockSettlementRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.SettlementBatch, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SettlementBatch), args.Error(1)
}

func (m *MockSettlementRepository) GetForUpdate(ctx context.Context, tx ports.DBTX, id string) (*domain.SettlementBatch, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SettlementBatch), args.Error(1)
}

func (m *MockSettlementRepository) Create(ctx context.Context, tx ports.DBTX, batch *domain.SettlementBatch) (bool, error) {
	args := m.Called(ctx, tx, batch)
	return args.Bool(0), args.Error(1)
}

func (m *MockSettlementRepository) SaveLines(ctx context.Context, tx ports.DBTX, lines []domain.SettlementLine) error {
	args := m.Called(ctx, tx, lines)
	return args.Error(0)
}

func (m *MockSettlementRepository) UpdateStatus(ctx context.Context, tx ports.DBTX, batch *domain.SettlementBatch) error {
	args := m.Called(ctx, tx, batch)
	return args.Error(0)
}

// MockCommissionTierRepository mocks ports.CommissionTierRepository
type MockCommissionTierRepository struct {
	mock.Mock
}

func (m *MockCommissionTierRepository) ListActive(ctx context.Context, db ports.DBTX) ([]domain.CommissionTier, error) {
	args := m.Called(ctx, db)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CommissionTier), args.Error(1)
}

func (m *MockCommissionTierRepository) Upsert(ctx context.Context, tx ports.DBTX, tier domain.CommissionTier) error {
	args := m.Called(ctx, tx, tier)
	return args.Error(0)
}

// MockPipelineRepository mocks ports.PipelineRepository
type MockPipelineRepository struct {
	mock.Mock
}

func (m *MockPipelineRepository) RawCounts(ctx context.Context, db ports.DBTX, from, to time.Time) (domain.PipelineRaw, domain.PipelineRaw, error) {
	args := m.Called(ctx, db, from, to)
	return args.Get(0).(domain.PipelineRaw), args.Get(1).(domain.PipelineRaw), args.Error(2)
}

// MockDedupStore mocks ports.DedupStore
type MockDedupStore struct {
	mock.Mock
}

func (m *MockDedupStore) MarkIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockDedupStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
