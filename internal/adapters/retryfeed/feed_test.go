package retryfeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/testutil/fixtures"
	"github.com/kevin07696/settlement-recon/internal/testutil/mocks"
	"github.com/kevin07696/settlement-recon/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() Config {
	return Config{
		Backoff:  &resilience.FixedBackoff{Delay: time.Millisecond},
		Timeouts: resilience.DefaultTimeoutConfig(),
		Attempts: 3,
	}
}

func TestFeed_RetriesTransientFailure(t *testing.T) {
	cycle := fixtures.Date(2025, 3, 10)
	pg := new(mocks.MockTransactionRepository)
	pg.On("FetchPgTransactions", mock.Anything, cycle).Return(nil, errors.New("timeout")).Once()
	pg.On("FetchPgTransactions", mock.Anything, cycle).Return([]domain.PgTransaction{fixtures.NewPgTransaction("txn-1", "UTR000001").Build()}, nil).Once()

	feed := New(pg, nil, testConfig(), zap.NewNop())
	txns, err := feed.FetchPgTransactions(context.Background(), cycle)

	require.NoError(t, err)
	assert.Len(t, txns, 1)
	pg.AssertExpectations(t)
}

func TestFeed_GivesUpAfterAttempts(t *testing.T) {
	cycle := fixtures.Date(2025, 3, 10)
	bank := new(mocks.MockBankRecordRepository)
	bank.On("FetchBankRecords", mock.Anything, cycle).Return(nil, errors.New("sftp unavailable")).Times(3)

	feed := New(nil, bank, testConfig(), zap.NewNop())
	_, err := feed.FetchBankRecords(context.Background(), cycle)

	assert.EqualError(t, err, "sftp unavailable")
	bank.AssertExpectations(t)
}
