package fixtures

import (
	"time"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/shopspring/decimal"
)

// PgTransactionBuilder provides fluent API for building gateway transactions.
type PgTransactionBuilder struct {
	txn domain.PgTransaction
}

// NewPgTransaction creates a builder with sensible defaults: ₹100.00 SUCCESS
// UPI transaction dated 2025-03-10.
func NewPgTransaction(id, utr string) *PgTransactionBuilder {
	return &PgTransactionBuilder{
		txn: domain.PgTransaction{
			TransactionID:   id,
			MerchantID:      "merchant-1",
			UTR:             utr,
			Amount:          10000,
			PaymentMethod:   "UPI",
			Status:          domain.TransactionStatusSuccess,
			TransactionDate: Date(2025, time.March, 10),
		},
	}
}

func (b *PgTransactionBuilder) WithMerchant(merchantID string) *PgTransactionBuilder {
	b.txn.MerchantID = merchantID
	return b
}

func (b *PgTransactionBuilder) WithAmount(amount int64) *PgTransactionBuilder {
	b.txn.Amount = amount
	return b
}

func (b *PgTransactionBuilder) WithDate(date time.Time) *PgTransactionBuilder {
	b.txn.TransactionDate = date
	return b
}

func (b *PgTransactionBuilder) WithRRN(rrn string) *PgTransactionBuilder {
	b.txn.RRN = rrn
	return b
}

// WithFees sets the gateway-reported bank fee and expected settlement amount.
func (b *PgTransactionBuilder) WithFees(bankFee, settlementAmount int64) *PgTransactionBuilder {
	b.txn.BankFee = Int64Ptr(bankFee)
	b.txn.SettlementAmount = Int64Ptr(settlementAmount)
	return b
}

func (b *PgTransactionBuilder) Build() domain.PgTransaction {
	return b.txn
}

// BankRecordBuilder provides fluent API for building bank statement lines.
type BankRecordBuilder struct {
	record domain.BankRecord
}

// NewBankRecord creates a ₹100.00 credit dated 2025-03-10.
func NewBankRecord(bankRef, utr string) *BankRecordBuilder {
	return &BankRecordBuilder{
		record: domain.BankRecord{
			BankRef:         bankRef,
			UTR:             utr,
			Amount:          10000,
			TransactionDate: Date(2025, time.March, 10),
		},
	}
}

func (b *BankRecordBuilder) WithAmount(amount int64) *BankRecordBuilder {
	b.record.Amount = amount
	return b
}

func (b *BankRecordBuilder) WithDate(date time.Time) *BankRecordBuilder {
	b.record.TransactionDate = date
	return b
}

func (b *BankRecordBuilder) Build() domain.BankRecord {
	return b.record
}

// ReconciledTxn returns a settlement-eligible transaction.
func ReconciledTxn(id, merchantID string, amount int64, date time.Time) domain.ReconciledTxn {
	return domain.ReconciledTxn{
		TransactionID:   id,
		MerchantID:      merchantID,
		Amount:          amount,
		Status:          domain.TransactionStatusReconciled,
		TransactionDate: date,
	}
}

// DefaultTiers returns the four-tier commission table used across tests.
// Bounds are paise: ₹0-25L, ₹25L-75L, ₹75L-1.5Cr, above ₹1.5Cr.
func DefaultTiers() []domain.CommissionTier {
	return []domain.CommissionTier{
		{ID: "tier-1", TierName: "Tier 1", MinVolume: 0, MaxVolume: Int64Ptr(250000000), CommissionPercentage: decimal.RequireFromString("2.1"), IsActive: true},
		{ID: "tier-2", TierName: "Tier 2", MinVolume: 250000001, MaxVolume: Int64Ptr(750000000), CommissionPercentage: decimal.RequireFromString("1.9"), IsActive: true},
		{ID: "tier-3", TierName: "Tier 3", MinVolume: 750000001, MaxVolume: Int64Ptr(1500000000), CommissionPercentage: decimal.RequireFromString("1.7"), IsActive: true},
		{ID: "tier-4", TierName: "Tier 4", MinVolume: 1500000001, CommissionPercentage: decimal.RequireFromString("1.5"), IsActive: true},
	}
}
