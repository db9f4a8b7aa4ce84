package reconciliation

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/testutil/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testCycle = fixtures.Date(2025, time.March, 10)
	testNow   = time.Date(2025, time.March, 11, 2, 0, 0, 0, time.UTC)
)

func newTestEngine(workers int) *Engine {
	return NewEngine(DefaultThresholds(), workers, func() time.Time { return testNow }, zap.NewNop())
}

func TestEngine_FeeDeductedSettlementReconciles(t *testing.T) {
	pg := fixtures.NewPgTransaction("T1", "HDFC00012345").WithFees(300, 9700).Build()
	bank := fixtures.NewBankRecord("B1", "HDFC00012345").WithAmount(9700).Build()

	result, err := newTestEngine(2).Reconcile(context.Background(), testCycle,
		[]domain.PgTransaction{pg}, []domain.BankRecord{bank})
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	m := result.Matches[0]
	assert.True(t, m.IsClean())
	assert.Equal(t, domain.MatchTypeExact, m.Type)
	assert.Equal(t, "T1", m.PgTransactionID)
	assert.Equal(t, "B1", m.BankRef)
	assert.Equal(t, int64(0), m.AmountDifference)
	assert.Equal(t, domain.MatchID(testCycle, "T1", "B1"), m.ID)
	assert.Empty(t, result.Exceptions)
	assert.Empty(t, result.UnmatchedPg)
	assert.Empty(t, result.UnmatchedBank)
}

func TestEngine_OnePaisaShortRaisesRoundingError(t *testing.T) {
	pg := fixtures.NewPgTransaction("T1", "ICIC00054321").WithAmount(15000).Build()
	bank := fixtures.NewBankRecord("B1", "ICIC00054321").WithAmount(14999).Build()

	result, err := newTestEngine(1).Reconcile(context.Background(), testCycle,
		[]domain.PgTransaction{pg}, []domain.BankRecord{bank})
	require.NoError(t, err)

	require.Len(t, result.Exceptions, 1)
	exc := result.Exceptions[0]
	assert.Equal(t, domain.ReasonRoundingError, exc.Reason)
	assert.Equal(t, domain.SeverityLow, exc.Severity)
	assert.Equal(t, domain.ExceptionStatusOpen, exc.Status)
	assert.Equal(t, int64(1), exc.AmountDelta)
	assert.Equal(t, testCycle.Add(72*time.Hour), exc.SLADueAt)
	assert.Equal(t, testNow, exc.CreatedAt)
	assert.Equal(t, "merchant-1", exc.MerchantID)
	require.NotNil(t, exc.PgTransactionID)
	require.NotNil(t, exc.BankReferenceID)

	require.Len(t, result.Matches, 1)
	m := result.Matches[0]
	assert.Equal(t, domain.MatchTypeFuzzy, m.Type)
	assert.Equal(t, domain.ReasonRoundingError, m.Reason)
	assert.Equal(t, exc.ID, m.ExceptionID)
	assert.Equal(t, 95, m.Score)
	assert.Equal(t, int64(1), m.AmountDifference)

	assert.Equal(t, 0, result.Summary().Matched)
}

func TestEngine_EmptyUTRRaisesMissingUTR(t *testing.T) {
	pg := fixtures.NewPgTransaction("T1", "").Build()

	result, err := newTestEngine(1).Reconcile(context.Background(), testCycle,
		[]domain.PgTransaction{pg}, nil)
	require.NoError(t, err)

	require.Len(t, result.Exceptions, 1)
	assert.Equal(t, domain.ReasonUTRMissingOrInvalid, result.Exceptions[0].Reason)
	assert.Nil(t, result.Exceptions[0].BankReferenceID)
	assert.Empty(t, result.Matches)
	assert.Empty(t, result.UnmatchedPg)
}

func TestEngine_DuplicateUTRsRaiseOneExceptionPerExtra(t *testing.T) {
	for _, n := range []int{2, 3, 5} {
		t.Run(fmt.Sprintf("pg_%d_copies", n), func(t *testing.T) {
			var pgs []domain.PgTransaction
			for i := 0; i < n; i++ {
				pgs = append(pgs, fixtures.NewPgTransaction(fmt.Sprintf("T%d", i), "AXIS00099999").Build())
			}
			bank := fixtures.NewBankRecord("B1", "AXIS00099999").Build()

			result, err := newTestEngine(4).Reconcile(context.Background(), testCycle, pgs, []domain.BankRecord{bank})
			require.NoError(t, err)

			s := result.Summary()
			assert.Equal(t, n-1, s.ByReason[domain.ReasonDuplicatePGEntry])
			assert.Equal(t, n-1, s.Exceptions)
			require.Len(t, result.Matches, 1)
			assert.Equal(t, "T0", result.Matches[0].PgTransactionID, "first in canonical order survives")
			assert.True(t, result.Matches[0].IsClean())
		})
	}

	t.Run("bank_copies", func(t *testing.T) {
		pg := fixtures.NewPgTransaction("T1", "AXIS00099999").Build()
		banks := []domain.BankRecord{
			fixtures.NewBankRecord("B2", "AXIS00099999").Build(),
			fixtures.NewBankRecord("B1", "AXIS00099999").Build(),
		}

		result, err := newTestEngine(1).Reconcile(context.Background(), testCycle, []domain.PgTransaction{pg}, banks)
		require.NoError(t, err)

		require.Len(t, result.Exceptions, 1)
		assert.Equal(t, domain.ReasonDuplicateBankEntry, result.Exceptions[0].Reason)
		assert.Equal(t, "B2", *result.Exceptions[0].BankReferenceID)
		require.Len(t, result.Matches, 1)
		assert.Equal(t, "B1", result.Matches[0].BankRef)
	})
}

func TestEngine_RRNFallbackRaisesUTRMismatch(t *testing.T) {
	pg := fixtures.NewPgTransaction("T1", "SBIN00011111").WithRRN("BREF-9").Build()
	bank := fixtures.NewBankRecord("BREF-9", "SBIN00022222").Build()

	result, err := newTestEngine(1).Reconcile(context.Background(), testCycle,
		[]domain.PgTransaction{pg}, []domain.BankRecord{bank})
	require.NoError(t, err)

	require.Len(t, result.Exceptions, 1)
	assert.Equal(t, domain.ReasonUTRMismatch, result.Exceptions[0].Reason)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, 60, result.Matches[0].Score)
	assert.Empty(t, result.UnmatchedBank)
}

func TestEngine_UTRMatchWinsOverEarlierRRNClaim(t *testing.T) {
	// T1 sorts first and its RRN names B1, but B1 carries T2's UTR.
	t1 := fixtures.NewPgTransaction("T1", "ZZZZ00099999").WithRRN("B1").WithDate(testCycle.AddDate(0, 0, -1)).Build()
	t2 := fixtures.NewPgTransaction("T2", "AAAA00011111").WithAmount(10000).Build()
	bank := fixtures.NewBankRecord("B1", "AAAA00011111").WithAmount(10000).Build()

	for _, pgs := range [][]domain.PgTransaction{{t1, t2}, {t2, t1}} {
		result, err := newTestEngine(2).Reconcile(context.Background(), testCycle, pgs, []domain.BankRecord{bank})
		require.NoError(t, err)

		require.Len(t, result.Matches, 1)
		m := result.Matches[0]
		assert.Equal(t, "T2", m.PgTransactionID)
		assert.Equal(t, "B1", m.BankRef)
		assert.Equal(t, domain.MatchTypeExact, m.Type)
		assert.Empty(t, result.Exceptions)
		require.Len(t, result.UnmatchedPg, 1)
		assert.Equal(t, "T1", result.UnmatchedPg[0].TransactionID)
		assert.Empty(t, result.UnmatchedBank)
	}
}

func TestEngine_MissingCounterparts(t *testing.T) {
	pgs := []domain.PgTransaction{
		fixtures.NewPgTransaction("T-old", "UTR0000000A1").WithDate(fixtures.Date(2025, time.March, 6)).Build(),
		fixtures.NewPgTransaction("T-new", "UTR0000000A2").Build(),
	}
	banks := []domain.BankRecord{
		fixtures.NewBankRecord("B-old", "UTR0000000B1").WithDate(fixtures.Date(2025, time.March, 5)).Build(),
		fixtures.NewBankRecord("B-new", "UTR0000000B2").Build(),
	}

	result, err := newTestEngine(2).Reconcile(context.Background(), testCycle, pgs, banks)
	require.NoError(t, err)

	s := result.Summary()
	assert.Equal(t, 1, s.ByReason[domain.ReasonPgTxnMissingInBank])
	assert.Equal(t, 1, s.ByReason[domain.ReasonBankTxnMissingInPG])
	require.Len(t, result.UnmatchedPg, 1)
	assert.Equal(t, "T-new", result.UnmatchedPg[0].TransactionID)
	require.Len(t, result.UnmatchedBank, 1)
	assert.Equal(t, "B-new", result.UnmatchedBank[0].BankRef)

	for _, e := range result.Exceptions {
		if e.Reason == domain.ReasonPgTxnMissingInBank {
			assert.Equal(t, domain.SeverityCritical, e.Severity)
			assert.Equal(t, testCycle.Add(12*time.Hour), e.SLADueAt)
		}
	}
}

func TestEngine_RejectsMalformedRecordsWithoutAborting(t *testing.T) {
	pgs := []domain.PgTransaction{
		fixtures.NewPgTransaction("T1", "UTR000000001").Build(),
		fixtures.NewPgTransaction("T1", "UTR000000002").Build(),
		fixtures.NewPgTransaction("T2", "UTR000000003").WithAmount(0).Build(),
		fixtures.NewPgTransaction("T3", "UTR000000004").WithMerchant("").Build(),
	}
	banks := []domain.BankRecord{
		fixtures.NewBankRecord("B1", "UTR000000001").Build(),
		fixtures.NewBankRecord("", "UTR000000009").Build(),
	}

	result, err := newTestEngine(1).Reconcile(context.Background(), testCycle, pgs, banks)
	require.NoError(t, err)

	assert.Len(t, result.Rejected, 4)
	for _, r := range result.Rejected {
		assert.NotEmpty(t, r.Message)
		assert.Error(t, r)
	}
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "T1", result.Matches[0].PgTransactionID)
}

func TestEngine_AllRecordsRejectedIsFatal(t *testing.T) {
	pgs := []domain.PgTransaction{fixtures.NewPgTransaction("", "UTR000000001").Build()}

	_, err := newTestEngine(1).Reconcile(context.Background(), testCycle, pgs, nil)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeFeedCorrupt))
	assert.True(t, domain.IsCycleFatal(err))
}

func TestEngine_EmptyFeeds(t *testing.T) {
	result, err := newTestEngine(1).Reconcile(context.Background(), testCycle, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
	assert.Empty(t, result.Exceptions)
	assert.Equal(t, 0, result.Summary().Matched)
}

func TestEngine_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pgs := []domain.PgTransaction{fixtures.NewPgTransaction("T1", "UTR000000001").Build()}
	_, err := newTestEngine(1).Reconcile(ctx, testCycle, pgs, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

// randomFeeds builds overlapping feeds with every kind of discrepancy
func randomFeeds(rng *rand.Rand, n int) ([]domain.PgTransaction, []domain.BankRecord) {
	var pgs []domain.PgTransaction
	var banks []domain.BankRecord
	for i := 0; i < n; i++ {
		utr := fmt.Sprintf("UTR%09d", rng.Intn(n*2))
		date := testCycle.AddDate(0, 0, -rng.Intn(5))
		amount := int64(1000 + rng.Intn(100000))

		pg := fixtures.NewPgTransaction(fmt.Sprintf("T%05d", i), utr).WithAmount(amount).WithDate(date)
		if rng.Intn(10) == 0 {
			pg = fixtures.NewPgTransaction(fmt.Sprintf("T%05d", i), "").WithAmount(amount).WithDate(date)
		}
		pgs = append(pgs, pg.Build())

		if rng.Intn(4) == 0 {
			continue
		}
		bankAmount := amount - []int64{0, 0, 0, 1, 300, 5000}[rng.Intn(6)]
		banks = append(banks, fixtures.NewBankRecord(fmt.Sprintf("B%05d", i), utr).
			WithAmount(bankAmount).
			WithDate(date.AddDate(0, 0, rng.Intn(4))).
			Build())
	}
	return pgs, banks
}

func TestEngine_OrderIndependentAndWorkerIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pgs, banks := randomFeeds(rng, 300)

	baseline, err := newTestEngine(1).Reconcile(context.Background(), testCycle, pgs, banks)
	require.NoError(t, err)

	for round := 0; round < 5; round++ {
		shuffledPg := append([]domain.PgTransaction(nil), pgs...)
		shuffledBank := append([]domain.BankRecord(nil), banks...)
		rng.Shuffle(len(shuffledPg), func(i, j int) { shuffledPg[i], shuffledPg[j] = shuffledPg[j], shuffledPg[i] })
		rng.Shuffle(len(shuffledBank), func(i, j int) { shuffledBank[i], shuffledBank[j] = shuffledBank[j], shuffledBank[i] })

		got, err := newTestEngine(8).Reconcile(context.Background(), testCycle, shuffledPg, shuffledBank)
		require.NoError(t, err)
		assert.Equal(t, baseline, got, "round %d", round)
	}
}

func TestEngine_EveryRecordAccountedForOnce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 20; round++ {
		pgs, banks := randomFeeds(rng, 50+rng.Intn(150))
		result, err := newTestEngine(4).Reconcile(context.Background(), testCycle, pgs, banks)
		require.NoError(t, err)

		pgSeen := make(map[string]int)
		bankSeen := make(map[string]int)
		for _, m := range result.Matches {
			if m.IsClean() {
				pgSeen[m.PgTransactionID]++
				bankSeen[m.BankRef]++
			}
		}
		for _, e := range result.Exceptions {
			if e.PgTransactionID != nil {
				pgSeen[*e.PgTransactionID]++
			} else if e.BankReferenceID != nil {
				bankSeen[*e.BankReferenceID]++
			}
		}
		for _, m := range result.Matches {
			if !m.IsClean() {
				bankSeen[m.BankRef]++
			}
		}
		for _, p := range result.UnmatchedPg {
			pgSeen[p.TransactionID]++
		}
		for _, b := range result.UnmatchedBank {
			bankSeen[b.BankRef]++
		}

		for _, p := range pgs {
			assert.Equal(t, 1, pgSeen[p.TransactionID], "pg %s", p.TransactionID)
		}
		for _, b := range banks {
			assert.Equal(t, 1, bankSeen[b.BankRef], "bank %s", b.BankRef)
		}

		reasonSeen := make(map[string]bool)
		for _, e := range result.Exceptions {
			assert.False(t, reasonSeen[e.ID], "exception id %s repeated", e.ID)
			reasonSeen[e.ID] = true
		}
	}
}
