package reconciliation

import (
	"context"
	"errors"
	"testing"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/testutil/fixtures"
	"github.com/kevin07696/settlement-recon/internal/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type serviceDeps struct {
	db      *mocks.MockTransactionManager
	txns    *mocks.MockTransactionRepository
	banks   *mocks.MockBankRecordRepository
	matches *mocks.MockMatchRepository
	excs    *mocks.MockExceptionRepository
}

func newServiceUnderTest() (*Service, serviceDeps) {
	deps := serviceDeps{
		db:      new(mocks.MockTransactionManager),
		txns:    new(mocks.MockTransactionRepository),
		banks:   new(mocks.MockBankRecordRepository),
		matches: new(mocks.MockMatchRepository),
		excs:    new(mocks.MockExceptionRepository),
	}
	svc := NewService(deps.db, deps.txns, deps.banks, deps.txns, deps.banks, deps.matches, deps.excs,
		newTestEngine(2), zap.NewNop())
	return svc, deps
}

func TestService_RunCycle_Success(t *testing.T) {
	svc, deps := newServiceUnderTest()
	ctx := context.Background()

	pgs := []domain.PgTransaction{
		fixtures.NewPgTransaction("T1", "UTR000000001").Build(),
		fixtures.NewPgTransaction("T2", "UTR000000002").WithAmount(15000).Build(),
	}
	banks := []domain.BankRecord{
		fixtures.NewBankRecord("B1", "UTR000000001").Build(),
		fixtures.NewBankRecord("B2", "UTR000000002").WithAmount(14999).Build(),
	}

	deps.txns.On("FetchPgTransactions", ctx, testCycle).Return(pgs, nil)
	deps.banks.On("FetchBankRecords", ctx, testCycle).Return(banks, nil)
	deps.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	deps.matches.On("SaveMatches", ctx, mock.Anything, mock.MatchedBy(func(m []domain.MatchResult) bool {
		return len(m) == 2
	})).Return(nil)
	deps.excs.On("CreateExceptions", ctx, mock.Anything, mock.MatchedBy(func(e []domain.Exception) bool {
		return len(e) == 1 && e[0].Reason == domain.ReasonRoundingError
	})).Return(1, nil)
	deps.txns.On("UpdateStatus", ctx, mock.Anything, "T1", domain.TransactionStatusReconciled).Return(nil)
	deps.txns.On("UpdateStatus", ctx, mock.Anything, "T2", domain.TransactionStatusException).Return(nil)
	deps.banks.On("MarkProcessed", ctx, mock.Anything, "B1", "T1").Return(nil)

	run, err := svc.RunCycle(ctx, testCycle)
	require.NoError(t, err)

	assert.Equal(t, "2025-03-10", run.CycleDate)
	assert.Equal(t, 1, run.Matched)
	assert.Equal(t, 1, run.Exceptions)
	assert.Equal(t, 1, run.ExceptionsCreated)

	deps.banks.AssertNotCalled(t, "MarkProcessed", ctx, mock.Anything, "B2", "T2")
	deps.txns.AssertExpectations(t)
	deps.banks.AssertExpectations(t)
	deps.matches.AssertExpectations(t)
	deps.excs.AssertExpectations(t)
}

func TestService_RunCycle_RerunCreatesNothingNew(t *testing.T) {
	svc, deps := newServiceUnderTest()
	ctx := context.Background()

	pgs := []domain.PgTransaction{fixtures.NewPgTransaction("T1", "").Build()}

	deps.txns.On("FetchPgTransactions", ctx, testCycle).Return(pgs, nil)
	deps.banks.On("FetchBankRecords", ctx, testCycle).Return([]domain.BankRecord{}, nil)
	deps.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	deps.matches.On("SaveMatches", ctx, mock.Anything, mock.Anything).Return(nil)
	deps.excs.On("CreateExceptions", ctx, mock.Anything, mock.Anything).Return(0, nil)
	deps.txns.On("UpdateStatus", ctx, mock.Anything, "T1", domain.TransactionStatusException).Return(nil)

	run, err := svc.RunCycle(ctx, testCycle)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Exceptions)
	assert.Equal(t, 0, run.ExceptionsCreated)
}

func TestService_RunCycle_FeedUnavailable(t *testing.T) {
	svc, deps := newServiceUnderTest()
	ctx := context.Background()

	deps.txns.On("FetchPgTransactions", ctx, testCycle).Return(nil, errors.New("sftp timeout"))

	_, err := svc.RunCycle(ctx, testCycle)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeFeedUnavailable))
	assert.Contains(t, err.Error(), "sftp timeout")

	deps.banks.AssertNotCalled(t, "FetchBankRecords", mock.Anything, mock.Anything)
	deps.db.AssertNotCalled(t, "WithTransaction", mock.Anything, mock.Anything)
}

func TestService_RunCycle_PersistFailureRollsBack(t *testing.T) {
	svc, deps := newServiceUnderTest()
	ctx := context.Background()

	pgs := []domain.PgTransaction{fixtures.NewPgTransaction("T1", "UTR000000001").Build()}
	banks := []domain.BankRecord{fixtures.NewBankRecord("B1", "UTR000000001").Build()}

	deps.txns.On("FetchPgTransactions", ctx, testCycle).Return(pgs, nil)
	deps.banks.On("FetchBankRecords", ctx, testCycle).Return(banks, nil)
	deps.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	deps.matches.On("SaveMatches", ctx, mock.Anything, mock.Anything).Return(errors.New("deadlock detected"))

	_, err := svc.RunCycle(ctx, testCycle)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeDatabaseError))

	deps.excs.AssertNotCalled(t, "CreateExceptions", mock.Anything, mock.Anything, mock.Anything)
	deps.txns.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
