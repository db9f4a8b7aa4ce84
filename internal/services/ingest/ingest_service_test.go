package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/testutil/fixtures"
	"github.com/kevin07696/settlement-recon/internal/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupService() (*Service, *mocks.MockDedupStore, *mocks.MockBankRecordRepository) {
	dedup := new(mocks.MockDedupStore)
	repo := new(mocks.MockBankRecordRepository)
	return NewService(dedup, repo, 30*time.Minute, zap.NewNop()), dedup, repo
}

func credit() domain.BankRecord {
	return fixtures.NewBankRecord("BR-1001", "UTR123456").WithAmount(9700).Build()
}

func TestDedupKey(t *testing.T) {
	assert.Equal(t, "bank-credit:razorpay:BR-1", DedupKey(" Razorpay ", "BR-1 "))
	assert.NotEqual(t, DedupKey("razorpay", "BR-1"), DedupKey("cashfree", "BR-1"))
}

func TestService_IngestBankCredit_Stores(t *testing.T) {
	svc, dedup, repo := setupService()
	ctx := context.Background()

	dedup.On("MarkIfAbsent", ctx, "bank-credit:razorpay:BR-1001", 30*time.Minute).Return(true, nil)
	repo.On("Create", ctx, nil, mock.MatchedBy(func(r *domain.BankRecord) bool {
		return r.BankRef == "BR-1001" && !r.Processed
	})).Return(true, nil)

	result, err := svc.IngestBankCredit(ctx, "razorpay", credit())
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	repo.AssertExpectations(t)
}

func TestService_IngestBankCredit_DuplicateDelivery(t *testing.T) {
	svc, dedup, repo := setupService()
	ctx := context.Background()

	dedup.On("MarkIfAbsent", ctx, mock.Anything, mock.Anything).Return(false, nil)

	result, err := svc.IngestBankCredit(ctx, "razorpay", credit())
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_IngestBankCredit_StorageBackstop(t *testing.T) {
	svc, dedup, repo := setupService()
	ctx := context.Background()

	// Key expired from the dedup store but the row exists
	dedup.On("MarkIfAbsent", ctx, mock.Anything, mock.Anything).Return(true, nil)
	repo.On("Create", ctx, nil, mock.Anything).Return(false, nil)

	result, err := svc.IngestBankCredit(ctx, "razorpay", credit())
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
}

func TestService_IngestBankCredit_DedupUnavailable(t *testing.T) {
	svc, dedup, repo := setupService()
	ctx := context.Background()

	dedup.On("MarkIfAbsent", ctx, mock.Anything, mock.Anything).Return(false, errors.New("redis: connection refused"))
	repo.On("Create", ctx, nil, mock.Anything).Return(true, nil)

	result, err := svc.IngestBankCredit(ctx, "razorpay", credit())
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
}

func TestService_IngestBankCredit_StorageFailureReleasesKey(t *testing.T) {
	svc, dedup, repo := setupService()
	ctx := context.Background()

	dedup.On("MarkIfAbsent", ctx, mock.Anything, mock.Anything).Return(true, nil)
	dedup.On("Release", ctx, "bank-credit:razorpay:BR-1001").Return(nil)
	repo.On("Create", ctx, nil, mock.Anything).Return(false, errors.New("deadlock detected"))

	_, err := svc.IngestBankCredit(ctx, "razorpay", credit())
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeDatabaseError))
	dedup.AssertExpectations(t)
}

func TestService_IngestBankCredit_Validation(t *testing.T) {
	tests := []struct {
		name    string
		gateway string
		mutate  func(r *domain.BankRecord)
	}{
		{name: "missing_gateway", gateway: "", mutate: func(*domain.BankRecord) {}},
		{name: "missing_bank_ref", gateway: "razorpay", mutate: func(r *domain.BankRecord) { r.BankRef = " " }},
		{name: "zero_amount", gateway: "razorpay", mutate: func(r *domain.BankRecord) { r.Amount = 0 }},
		{name: "missing_date", gateway: "razorpay", mutate: func(r *domain.BankRecord) { r.TransactionDate = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, dedup, _ := setupService()
			r := credit()
			tt.mutate(&r)

			_, err := svc.IngestBankCredit(context.Background(), tt.gateway, r)
			require.Error(t, err)
			assert.True(t, domain.IsValidationError(err))
			dedup.AssertNotCalled(t, "MarkIfAbsent", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}
