package domain

import (
	"time"
)

// TransactionStatus is the collaborator-owned transaction status enum.
// SUCCESS/PENDING come from the gateway feed, RECONCILED/EXCEPTION are
// written back by the matching engine.
type TransactionStatus string

const (
	TransactionStatusSuccess    TransactionStatus = "SUCCESS"
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusFailed     TransactionStatus = "FAILED"
	TransactionStatusReconciled TransactionStatus = "RECONCILED"
	TransactionStatusException  TransactionStatus = "EXCEPTION"
)

// PgTransaction is a payment-gateway transaction record for one cycle date.
// All amounts are integer minor currency units (paise).
type PgTransaction struct {
	TransactionDate   time.Time         `json:"transaction_date"`
	BankFee           *int64            `json:"bank_fee,omitempty"`
	SettlementAmount  *int64            `json:"settlement_amount,omitempty"`
	SettlementBatchID *string           `json:"settlement_batch_id,omitempty"`
	TransactionID     string            `json:"transaction_id"`
	MerchantID        string            `json:"merchant_id"`
	UTR               string            `json:"utr"`
	RRN               string            `json:"rrn"`
	PaymentMethod     string            `json:"payment_method"`
	Status            TransactionStatus `json:"status"`
	Amount            int64             `json:"amount"`
}

// HasExplicitFees returns true when the gateway reported both the bank fee
// and the expected settlement amount for this transaction
func (t *PgTransaction) HasExplicitFees() bool {
	return t.BankFee != nil && t.SettlementAmount != nil
}

// IsCaptured returns true if the transaction counts toward captured volume
func (t *PgTransaction) IsCaptured() bool {
	return t.Status.IsCaptured()
}

// IsCaptured returns true for statuses that represent a successful capture,
// whether or not it has been reconciled yet
func (s TransactionStatus) IsCaptured() bool {
	return s == TransactionStatusSuccess ||
		s == TransactionStatusReconciled ||
		s == TransactionStatusException
}

// BankRecord is one credit line from a bank statement feed
type BankRecord struct {
	TransactionDate      time.Time `json:"transaction_date"`
	MatchedTransactionID *string   `json:"matched_transaction_id,omitempty"`
	BankRef              string    `json:"bank_ref"`
	UTR                  string    `json:"utr"`
	Amount               int64     `json:"amount"`
	Processed            bool      `json:"processed"`
}

// MarkMatched records the weak back-reference to the PG transaction
func (b *BankRecord) MarkMatched(transactionID string) {
	id := transactionID
	b.MatchedTransactionID = &id
	b.Processed = true
}

// ReconciledTxn is the settlement view of a transaction
type ReconciledTxn struct {
	TransactionDate time.Time         `json:"transaction_date"`
	TransactionID   string            `json:"transaction_id"`
	MerchantID      string            `json:"merchant_id"`
	Status          TransactionStatus `json:"status"`
	Amount          int64             `json:"amount"`
	Batched         bool              `json:"batched"`
}

// IsSettlementEligible returns true if the transaction may be placed in a batch
func (t *ReconciledTxn) IsSettlementEligible() bool {
	return t.Status == TransactionStatusReconciled && !t.Batched
}

// CountsTowardVolume returns true if the transaction counts toward tier volume
func (t *ReconciledTxn) CountsTowardVolume() bool {
	return t.Status == TransactionStatusSuccess || t.Status == TransactionStatusReconciled
}

// Side identifies which feed a record came from
type Side string

const (
	SidePG   Side = "PG"
	SideBank Side = "BANK"
)

// RecordError is a per-record rejection reported in a batch summary.
// It never aborts the batch.
type RecordError struct {
	Err      error  `json:"-"`
	RecordID string `json:"record_id"`
	Side     Side   `json:"side"`
	Message  string `json:"message"`
}

func (e RecordError) Error() string {
	return string(e.Side) + " record " + e.RecordID + ": " + e.Message
}

// Unwrap returns the underlying validation error
func (e RecordError) Unwrap() error {
	return e.Err
}
