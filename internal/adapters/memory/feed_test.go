package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/testutil/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_FiltersToCycleDay(t *testing.T) {
	cycle := fixtures.Date(2025, 3, 10)
	feed := NewFeed(
		[]domain.PgTransaction{
			fixtures.NewPgTransaction("txn-1", "UTR000001").Build(),
			fixtures.NewPgTransaction("txn-2", "UTR000002").WithDate(cycle.AddDate(0, 0, 1)).Build(),
		},
		[]domain.BankRecord{
			fixtures.NewBankRecord("BR-1", "UTR000001").Build(),
			fixtures.NewBankRecord("BR-0", "UTR000000").WithDate(cycle.AddDate(0, 0, -2)).Build(),
			fixtures.NewBankRecord("BR-2", "UTR000002").WithDate(cycle.AddDate(0, 0, 1)).Build(),
		},
	)
	ctx := context.Background()

	pg, err := feed.FetchPgTransactions(ctx, cycle)
	require.NoError(t, err)
	require.Len(t, pg, 1)
	assert.Equal(t, "txn-1", pg[0].TransactionID)

	bank, err := feed.FetchBankRecords(ctx, cycle)
	require.NoError(t, err)
	assert.Len(t, bank, 2)
}

func TestLoadFeed(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, v interface{}) string {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0o600))
		return path
	}

	pgPath := write("pg.json", []domain.PgTransaction{fixtures.NewPgTransaction("txn-1", "UTR000001").Build()})
	bankPath := write("bank.json", []domain.BankRecord{fixtures.NewBankRecord("BR-1", "UTR000001").Build()})

	feed, err := LoadFeed(pgPath, bankPath)
	require.NoError(t, err)
	pg, err := feed.FetchPgTransactions(context.Background(), fixtures.Date(2025, 3, 10))
	require.NoError(t, err)
	assert.Len(t, pg, 1)

	_, err = LoadFeed(filepath.Join(dir, "missing.json"), bankPath)
	assert.Error(t, err)
}
