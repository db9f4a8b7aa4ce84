package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestCommissionTier_Covers(t *testing.T) {
	bounded := CommissionTier{TierName: "Tier 1", MinVolume: 0, MaxVolume: int64Ptr(2500000000), CommissionPercentage: decimal.RequireFromString("2.1")}
	open := CommissionTier{TierName: "Tier 4", MinVolume: 15000000001}

	tests := []struct {
		name   string
		tier   CommissionTier
		volume int64
		want   bool
	}{
		{"zero_volume_in_first_tier", bounded, 0, true},
		{"upper_bound_inclusive", bounded, 2500000000, true},
		{"above_upper_bound", bounded, 2500000001, false},
		{"unbounded_tier", open, 99999999999, true},
		{"below_lower_bound", open, 15000000000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tier.Covers(tt.volume))
		})
	}
}

func TestBatchStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from BatchStatus
		to   BatchStatus
		want bool
	}{
		{"pending_to_approval", BatchStatusPending, BatchStatusPendingApproval, true},
		{"approval_to_approved", BatchStatusPendingApproval, BatchStatusApproved, true},
		{"approved_to_sent", BatchStatusApproved, BatchStatusSentToBank, true},
		{"approved_to_processing", BatchStatusApproved, BatchStatusProcessing, true},
		{"sent_to_credited", BatchStatusSentToBank, BatchStatusCredited, true},
		{"processing_to_completed", BatchStatusProcessing, BatchStatusCompleted, true},
		{"completed_to_credited", BatchStatusCompleted, BatchStatusCredited, true},
		{"pending_skip_to_sent", BatchStatusPending, BatchStatusSentToBank, false},
		{"backwards", BatchStatusApproved, BatchStatusPending, false},
		{"any_to_failed", BatchStatusProcessing, BatchStatusFailed, true},
		{"credited_is_terminal", BatchStatusCredited, BatchStatusFailed, false},
		{"failed_is_terminal", BatchStatusFailed, BatchStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestBatchStatus_IsSentToBank(t *testing.T) {
	assert.False(t, BatchStatusApproved.IsSentToBank())
	assert.True(t, BatchStatusSentToBank.IsSentToBank())
	assert.True(t, BatchStatusCredited.IsSentToBank())
	assert.False(t, BatchStatusFailed.IsSentToBank())
}

func TestFailureCategory_DefaultOwner(t *testing.T) {
	assert.Equal(t, OwnerBank, FailureBankError.DefaultOwner())
	assert.Equal(t, OwnerGateway, FailureAPIError.DefaultOwner())
	assert.Equal(t, OwnerOps, FailureValidationError.DefaultOwner())
	assert.Equal(t, OwnerOps, FailureConfigError.DefaultOwner())
	assert.Equal(t, OwnerSystem, FailureCalculationError.DefaultOwner())
	assert.False(t, FailureCategory("disk_full").IsValid())
}

func TestSettlementBatch_TransitionTo(t *testing.T) {
	now := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)

	t.Run("forward_transition", func(t *testing.T) {
		b := &SettlementBatch{ID: "b1", Status: BatchStatusPending}
		require.NoError(t, b.TransitionTo(BatchStatusPendingApproval, nil, now))
		assert.Equal(t, BatchStatusPendingApproval, b.Status)
		assert.Equal(t, now, b.UpdatedAt)
	})

	t.Run("invalid_transition", func(t *testing.T) {
		b := &SettlementBatch{ID: "b1", Status: BatchStatusPending}
		err := b.TransitionTo(BatchStatusCredited, nil, now)
		require.Error(t, err)
		assert.True(t, IsDomainError(err, ErrorCodeBatchInvalidTransition))
		assert.Equal(t, BatchStatusPending, b.Status)
	})

	t.Run("failed_requires_category", func(t *testing.T) {
		b := &SettlementBatch{ID: "b1", Status: BatchStatusSentToBank}
		err := b.TransitionTo(BatchStatusFailed, nil, now)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		err = b.TransitionTo(BatchStatusFailed, &FailureReason{Category: "unknown"}, now)
		require.Error(t, err)
		assert.Equal(t, BatchStatusSentToBank, b.Status)
	})

	t.Run("failed_fills_default_owner", func(t *testing.T) {
		b := &SettlementBatch{ID: "b1", Status: BatchStatusSentToBank}
		err := b.TransitionTo(BatchStatusFailed, &FailureReason{Category: FailureBankError, Message: "account frozen"}, now)
		require.NoError(t, err)
		require.NotNil(t, b.Failure)
		assert.Equal(t, OwnerBank, b.Failure.Owner)
		assert.Equal(t, "account frozen", b.Failure.Message)
	})
}

func TestSettlementBatch_IsBalanced(t *testing.T) {
	b := SettlementBatch{
		GrossAmount:      100000,
		CommissionAmount: 2100,
		GSTAmount:        378,
		TDSAmount:        21,
		ReserveAmount:    4875,
		NetAmount:        92626,
	}
	assert.True(t, b.IsBalanced())

	b.NetAmount++
	assert.False(t, b.IsBalanced())
}
