package ports

import (
	"context"
	"time"

	"github.com/kevin07696/settlement-recon/internal/domain"
)

// PgFeed supplies the payment-gateway transactions of a cycle date
type PgFeed interface {
	FetchPgTransactions(ctx context.Context, cycleDate time.Time) ([]domain.PgTransaction, error)
}

// BankFeed supplies the bank statement records of a cycle date
type BankFeed interface {
	FetchBankRecords(ctx context.Context, cycleDate time.Time) ([]domain.BankRecord, error)
}

// TransactionRepository reads and updates PG transactions
type TransactionRepository interface {
	PgFeed

	// UpdateStatus writes RECONCILED/EXCEPTION back after matching
	UpdateStatus(ctx context.Context, tx DBTX, transactionID string, status domain.TransactionStatus) error

	// ListPendingSettlement returns RECONCILED, unbatched transactions dated on or before upTo
	ListPendingSettlement(ctx context.Context, db DBTX, merchantID string, upTo time.Time) ([]domain.ReconciledTxn, error)

	// ListMerchantsWithPending returns merchants that have settlement-eligible transactions
	ListMerchantsWithPending(ctx context.Context, db DBTX, upTo time.Time) ([]string, error)

	// SumVolume sums SUCCESS and RECONCILED amounts in [from, to]
	SumVolume(ctx context.Context, db DBTX, merchantID string, from, to time.Time) (int64, error)

	// AssignBatch links transactions to a settlement batch
	AssignBatch(ctx context.Context, tx DBTX, batchID string, transactionIDs []string) error
}

// BankRecordRepository reads and updates bank statement records
type BankRecordRepository interface {
	BankFeed

	// Create inserts a bank record; it reports false when bank_ref already exists
	Create(ctx context.Context, tx DBTX, record *domain.BankRecord) (bool, error)

	// MarkProcessed sets processed and the matched transaction back-reference
	MarkProcessed(ctx context.Context, tx DBTX, bankRef, transactionID string) error
}

// MatchRepository persists match results
type MatchRepository interface {
	SaveMatches(ctx context.Context, tx DBTX, matches []domain.MatchResult) error
}

// ExceptionFilter narrows exception listings
type ExceptionFilter struct {
	CycleDate  *time.Time
	Status     domain.ExceptionStatus
	Reason     domain.ExceptionReason
	MerchantID string
	Limit      int32
	Offset     int32
}

// ExceptionRepository persists exceptions and their audit trail
type ExceptionRepository interface {
	// CreateExceptions inserts exceptions, skipping ids that already exist
	CreateExceptions(ctx context.Context, tx DBTX, exceptions []domain.Exception) (int, error)
	GetByID(ctx context.Context, db DBTX, id string) (*domain.Exception, error)
	// GetForUpdate locks the exception row for the enclosing transaction
	GetForUpdate(ctx context.Context, tx DBTX, id string) (*domain.Exception, error)
	Update(ctx context.Context, tx DBTX, exception *domain.Exception) error
	AppendEvent(ctx context.Context, tx DBTX, event *domain.ExceptionEvent) error
	ListEvents(ctx context.Context, db DBTX, exceptionID string) ([]domain.ExceptionEvent, error)
	List(ctx context.Context, db DBTX, filter ExceptionFilter) ([]domain.Exception, error)
	// ListSnoozeDue returns ids of snoozed exceptions whose snooze expired at now
	ListSnoozeDue(ctx context.Context, db DBTX, now time.Time) ([]string, error)
}

// SettlementRepository persists settlement batches
type SettlementRepository interface {
	GetByKey(ctx context.Context, db DBTX, merchantID string, cycleDate time.Time) (*domain.SettlementBatch, error)
	GetByID(ctx context.Context, db DBTX, id string) (*domain.SettlementBatch, error)
	GetForUpdate(ctx context.Context, tx DBTX, id string) (*domain.SettlementBatch, error)
	// Create inserts the batch; it reports false when the idempotency key already exists
	Create(ctx context.Context, tx DBTX, batch *domain.SettlementBatch) (bool, error)
	SaveLines(ctx context.Context, tx DBTX, lines []domain.SettlementLine) error
	UpdateStatus(ctx context.Context, tx DBTX, batch *domain.SettlementBatch) error
}

// CommissionTierRepository reads the commission tier table
type CommissionTierRepository interface {
	ListActive(ctx context.Context, db DBTX) ([]domain.CommissionTier, error)
	Upsert(ctx context.Context, tx DBTX, tier domain.CommissionTier) error
}

// PipelineRepository reads raw funnel values at query time
type PipelineRepository interface {
	// RawCounts returns counts and amounts (minor units) for transactions dated in [from, to]
	RawCounts(ctx context.Context, db DBTX, from, to time.Time) (counts domain.PipelineRaw, amounts domain.PipelineRaw, err error)
}
