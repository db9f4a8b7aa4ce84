package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CommissionTier is a row of the externally managed commission tier table.
// Volume bounds are minor units; MaxVolume nil means unbounded.
type CommissionTier struct {
	MaxVolume            *int64          `json:"max_volume,omitempty" yaml:"max_volume,omitempty"`
	ID                   string          `json:"id" yaml:"id"`
	TierName             string          `json:"tier_name" yaml:"tier_name"`
	CommissionPercentage decimal.Decimal `json:"commission_percentage" yaml:"commission_percentage"`
	MinVolume            int64           `json:"min_volume" yaml:"min_volume"`
	IsActive             bool            `json:"is_active" yaml:"is_active"`
}

// Covers returns true if volume falls inside the tier bounds
func (t *CommissionTier) Covers(volume int64) bool {
	if volume < t.MinVolume {
		return false
	}
	return t.MaxVolume == nil || *t.MaxVolume >= volume
}

// BatchStatus is the settlement batch lifecycle state
type BatchStatus string

const (
	BatchStatusPending         BatchStatus = "PENDING"
	BatchStatusPendingApproval BatchStatus = "PENDING_APPROVAL"
	BatchStatusApproved        BatchStatus = "APPROVED"
	BatchStatusSentToBank      BatchStatus = "SENT_TO_BANK"
	BatchStatusProcessing      BatchStatus = "PROCESSING"
	BatchStatusCompleted       BatchStatus = "COMPLETED"
	BatchStatusCredited        BatchStatus = "CREDITED"
	BatchStatusFailed          BatchStatus = "FAILED"
)

var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusPending:         {BatchStatusPendingApproval},
	BatchStatusPendingApproval: {BatchStatusApproved},
	BatchStatusApproved:        {BatchStatusSentToBank, BatchStatusProcessing},
	BatchStatusSentToBank:      {BatchStatusProcessing, BatchStatusCompleted, BatchStatusCredited},
	BatchStatusProcessing:      {BatchStatusCompleted, BatchStatusCredited},
	BatchStatusCompleted:       {BatchStatusCredited},
}

// IsTerminal returns true for CREDITED and FAILED
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusCredited || s == BatchStatusFailed
}

// IsSentToBank returns true once the payout has left the platform
func (s BatchStatus) IsSentToBank() bool {
	switch s {
	case BatchStatusSentToBank, BatchStatusProcessing, BatchStatusCompleted, BatchStatusCredited:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows from -> to.
// FAILED is reachable from every non-terminal state.
func (s BatchStatus) CanTransitionTo(to BatchStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if to == BatchStatusFailed {
		return true
	}
	for _, next := range batchTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// FailureCategory classifies why a batch failed
type FailureCategory string

const (
	FailureBankError        FailureCategory = "bank_error"
	FailureAPIError         FailureCategory = "api_error"
	FailureValidationError  FailureCategory = "validation_error"
	FailureCalculationError FailureCategory = "calculation_error"
	FailureConfigError      FailureCategory = "config_error"
)

// FailureOwner is the team responsible for triaging a failure
type FailureOwner string

const (
	OwnerBank    FailureOwner = "Bank"
	OwnerGateway FailureOwner = "Gateway"
	OwnerOps     FailureOwner = "Ops"
	OwnerSystem  FailureOwner = "System"
)

// DefaultOwner returns the triage owner for a failure category
func (c FailureCategory) DefaultOwner() FailureOwner {
	switch c {
	case FailureBankError:
		return OwnerBank
	case FailureAPIError:
		return OwnerGateway
	case FailureValidationError, FailureConfigError:
		return OwnerOps
	default:
		return OwnerSystem
	}
}

// IsValid returns true for a known category
func (c FailureCategory) IsValid() bool {
	switch c {
	case FailureBankError, FailureAPIError, FailureValidationError, FailureCalculationError, FailureConfigError:
		return true
	}
	return false
}

// FailureReason is attached to a batch that reached FAILED
type FailureReason struct {
	Category FailureCategory `json:"category"`
	Owner    FailureOwner    `json:"owner"`
	Message  string          `json:"message"`
}

// SettlementBatch is the payout batch for one merchant and cycle date.
// (MerchantID, CycleDate) is the idempotency key.
type SettlementBatch struct {
	CycleDate        time.Time      `json:"cycle_date"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Failure          *FailureReason `json:"failure,omitempty"`
	BankUTR          *string        `json:"bank_utr,omitempty"`
	ID               string         `json:"id"`
	MerchantID       string         `json:"merchant_id"`
	TierName         string         `json:"tier_name"`
	Status           BatchStatus    `json:"status"`
	GrossAmount      int64          `json:"gross_amount"`
	CommissionAmount int64          `json:"commission_amount"`
	GSTAmount        int64          `json:"gst_amount"`
	TDSAmount        int64          `json:"tds_amount"`
	ReserveAmount    int64          `json:"reserve_amount"`
	NetAmount        int64          `json:"net_amount"`
	TransactionCount int            `json:"transaction_count"`
}

// IsBalanced checks gross == commission + gst + tds + reserve + net
func (b *SettlementBatch) IsBalanced() bool {
	return b.GrossAmount == b.CommissionAmount+b.GSTAmount+b.TDSAmount+b.ReserveAmount+b.NetAmount
}

// TransitionTo moves the batch through its lifecycle
func (b *SettlementBatch) TransitionTo(to BatchStatus, failure *FailureReason, now time.Time) error {
	if !b.Status.CanTransitionTo(to) {
		return NewDomainError(ErrorCodeBatchInvalidTransition,
			fmt.Sprintf("cannot move batch from %s to %s", b.Status, to)).
			WithDetail("batch_id", b.ID)
	}

	if to == BatchStatusFailed {
		if failure == nil || !failure.Category.IsValid() {
			return NewDomainError(ErrorCodeValidationFailed, "failed batches require a known failure category").
				WithDetail("batch_id", b.ID)
		}
		f := *failure
		if f.Owner == "" {
			f.Owner = f.Category.DefaultOwner()
		}
		b.Failure = &f
	}

	b.Status = to
	b.UpdatedAt = now
	return nil
}

// SettlementLine is the per-transaction audit trail of a batch computation
type SettlementLine struct {
	BatchID       string `json:"batch_id"`
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Commission    int64  `json:"commission"`
	GST           int64  `json:"gst"`
	TDS           int64  `json:"tds"`
}
