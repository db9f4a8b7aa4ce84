package settlement

import (
	"fmt"
	"sort"
	"time"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/pkg/timeutil"
	"github.com/shopspring/decimal"
)

// VolumeWindowDays is the look-back used for tier volume, inclusive of the batch date
const VolumeWindowDays = 30

var hundred = decimal.NewFromInt(100)

// Rates holds the statutory percentages applied after commission
type Rates struct {
	GSTPercent     decimal.Decimal // on commission
	TDSPercent     decimal.Decimal // on transaction amount
	ReservePercent decimal.Decimal // on pre-reserve net
}

// DefaultRates returns GST 18%, TDS 1%, reserve 5%
func DefaultRates() Rates {
	return Rates{
		GSTPercent:     decimal.NewFromInt(18),
		TDSPercent:     decimal.NewFromInt(1),
		ReservePercent: decimal.NewFromInt(5),
	}
}

// Computation is a computed batch with its per-line audit trail
type Computation struct {
	Batch  domain.SettlementBatch  `json:"batch"`
	Lines  []domain.SettlementLine `json:"lines"`
	Volume int64                   `json:"volume"`
}

// Calculator computes settlement batches against a fixed tier table
type Calculator struct {
	tiers []domain.CommissionTier
	rates Rates
}

// NewCalculator creates a calculator. The tier slice is copied.
func NewCalculator(tiers []domain.CommissionTier, rates Rates) *Calculator {
	return &Calculator{
		tiers: append([]domain.CommissionTier(nil), tiers...),
		rates: rates,
	}
}

// ResolveTier picks the active tier covering volume. Candidates are
// ordered by min_volume descending and the first match wins.
func ResolveTier(tiers []domain.CommissionTier, volume int64) (*domain.CommissionTier, error) {
	candidates := make([]domain.CommissionTier, 0, len(tiers))
	for _, t := range tiers {
		if t.IsActive {
			candidates = append(candidates, t)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].MinVolume > candidates[j].MinVolume
	})

	for i := range candidates {
		if candidates[i].Covers(volume) {
			tier := candidates[i]
			return &tier, nil
		}
	}
	return nil, domain.WrapError(domain.ErrorCodeNoCommissionTier,
		fmt.Sprintf("no active tier covers volume %d", volume), domain.ErrNoCommissionTier).
		WithDetail("volume", volume)
}

// VolumeWindow returns the inclusive [from, to] range used for tier volume
func VolumeWindow(batchDate time.Time) (time.Time, time.Time) {
	return timeutil.AddDays(batchDate, -VolumeWindowDays), timeutil.EndOfDay(batchDate)
}

// TierVolume sums SUCCESS and RECONCILED amounts for the merchant inside the volume window
func TierVolume(txns []domain.ReconciledTxn, merchantID string, batchDate time.Time) int64 {
	from, to := VolumeWindow(batchDate)
	var volume int64
	for i := range txns {
		t := &txns[i]
		if t.MerchantID != merchantID || !t.CountsTowardVolume() {
			continue
		}
		if t.TransactionDate.Before(from) || t.TransactionDate.After(to) {
			continue
		}
		volume += t.Amount
	}
	return volume
}

// ComputeSettlement computes the batch for merchantID at batchDate from an
// in-memory transaction set. Volume and eligibility are both derived from txns.
func (c *Calculator) ComputeSettlement(txns []domain.ReconciledTxn, merchantID string, batchDate time.Time) (*Computation, error) {
	cutoff := timeutil.EndOfDay(batchDate)
	eligible := make([]domain.ReconciledTxn, 0, len(txns))
	for i := range txns {
		t := txns[i]
		if t.MerchantID == merchantID && t.IsSettlementEligible() && !t.TransactionDate.After(cutoff) {
			eligible = append(eligible, t)
		}
	}
	return c.ComputeWithVolume(eligible, TierVolume(txns, merchantID, batchDate), merchantID, batchDate)
}

// ComputeWithVolume computes the batch for pre-selected eligible
// transactions with a volume obtained elsewhere (e.g. a repository sum)
func (c *Calculator) ComputeWithVolume(eligible []domain.ReconciledTxn, volume int64, merchantID string, batchDate time.Time) (*Computation, error) {
	if len(eligible) == 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeNothingToSettle, "no settlement-eligible transactions").
			WithDetail("merchant_id", merchantID).
			WithDetail("batch_date", domain.CycleKey(batchDate))
	}

	tier, err := ResolveTier(c.tiers, volume)
	if err != nil {
		return nil, err
	}

	cycleDate := timeutil.StartOfDay(batchDate)
	batchID := domain.SettlementBatchID(merchantID, cycleDate)

	// Deterministic line order for the audit trail
	sorted := append([]domain.ReconciledTxn(nil), eligible...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TransactionID < sorted[j].TransactionID })

	lines := make([]domain.SettlementLine, 0, len(sorted))
	var gross, commission, gst, tds int64
	for _, t := range sorted {
		lineCommission := percentOf(t.Amount, tier.CommissionPercentage)
		lineGST := percentOf(lineCommission, c.rates.GSTPercent)
		lineTDS := percentOf(t.Amount, c.rates.TDSPercent)

		gross += t.Amount
		commission += lineCommission
		gst += lineGST
		tds += lineTDS

		lines = append(lines, domain.SettlementLine{
			BatchID:       batchID,
			TransactionID: t.TransactionID,
			Amount:        t.Amount,
			Commission:    lineCommission,
			GST:           lineGST,
			TDS:           lineTDS,
		})
	}

	// Reserve is rounded once on the aggregate, unlike the per-line fees
	preReserve := gross - commission - gst - tds
	reserve := percentOf(preReserve, c.rates.ReservePercent)

	return &Computation{
		Batch: domain.SettlementBatch{
			ID:               batchID,
			MerchantID:       merchantID,
			CycleDate:        cycleDate,
			TierName:         tier.TierName,
			Status:           domain.BatchStatusPending,
			GrossAmount:      gross,
			CommissionAmount: commission,
			GSTAmount:        gst,
			TDSAmount:        tds,
			ReserveAmount:    reserve,
			NetAmount:        preReserve - reserve,
			TransactionCount: len(lines),
		},
		Lines:  lines,
		Volume: volume,
	}, nil
}

// percentOf returns amount × pct / 100 rounded half-up to a whole minor unit
func percentOf(amount int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(pct).Div(hundred).Round(0).IntPart()
}
