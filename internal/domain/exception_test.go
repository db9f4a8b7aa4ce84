package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReasonPriority_CoversEveryReason(t *testing.T) {
	assert.Len(t, ReasonPriority, len(reasonMeta))
	seen := make(map[ExceptionReason]bool)
	for i, r := range ReasonPriority {
		assert.False(t, seen[r], "duplicate reason %s", r)
		seen[r] = true
		assert.Equal(t, i, r.Priority())
		_, ok := reasonMeta[r]
		assert.True(t, ok, "reason %s has no metadata", r)
	}
	assert.Equal(t, -1, ExceptionReason("UNKNOWN").Priority())
}

func TestReasonPriority_IdentityBeforeAmountBeforeDate(t *testing.T) {
	assert.Less(t, ReasonUTRMissingOrInvalid.Priority(), ReasonPgTxnMissingInBank.Priority())
	assert.Less(t, ReasonUTRMismatch.Priority(), ReasonFeesVariance.Priority())
	assert.Less(t, ReasonAmountMismatch.Priority(), ReasonDateOutOfWindow.Priority())
	assert.Less(t, ReasonDateOutOfWindow.Priority(), ReasonDuplicatePGEntry.Priority())
}

func TestNextExceptionStatus(t *testing.T) {
	tests := []struct {
		name   string
		from   ExceptionStatus
		action ExceptionAction
		want   ExceptionStatus
		ok     bool
	}{
		{"assign_open", ExceptionStatusOpen, ActionAssign, ExceptionStatusInvestigating, true},
		{"assign_escalated_keeps_state", ExceptionStatusEscalated, ActionAssign, ExceptionStatusEscalated, true},
		{"investigate_open", ExceptionStatusOpen, ActionInvestigate, ExceptionStatusInvestigating, true},
		{"resolve_investigating", ExceptionStatusInvestigating, ActionResolve, ExceptionStatusResolved, true},
		{"resolve_escalated", ExceptionStatusEscalated, ActionResolve, ExceptionStatusResolved, true},
		{"resolve_open_rejected", ExceptionStatusOpen, ActionResolve, "", false},
		{"wont_fix_investigating", ExceptionStatusInvestigating, ActionWontFix, ExceptionStatusWontFix, true},
		{"escalate_investigating", ExceptionStatusInvestigating, ActionEscalate, ExceptionStatusEscalated, true},
		{"escalate_open_rejected", ExceptionStatusOpen, ActionEscalate, "", false},
		{"snooze_open", ExceptionStatusOpen, ActionSnooze, ExceptionStatusSnoozed, true},
		{"reopen_snoozed", ExceptionStatusSnoozed, ActionReopen, ExceptionStatusOpen, true},
		{"reopen_resolved_rejected", ExceptionStatusResolved, ActionReopen, "", false},
		{"terminal_wont_fix_rejected", ExceptionStatusWontFix, ActionAssign, "", false},
		{"unknown_action", ExceptionStatusOpen, ExceptionAction("archive"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextExceptionStatus(tt.from, tt.action)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextExceptionStatus_TerminalStatesHaveNoExit(t *testing.T) {
	actions := []ExceptionAction{ActionAssign, ActionInvestigate, ActionResolve, ActionWontFix, ActionEscalate, ActionSnooze, ActionReopen}
	for _, status := range []ExceptionStatus{ExceptionStatusResolved, ExceptionStatusWontFix} {
		for _, action := range actions {
			_, ok := NextExceptionStatus(status, action)
			assert.False(t, ok, "%s should not accept %s", status, action)
		}
	}
}

func newOpenException() *Exception {
	return &Exception{
		ID:     "exc-1",
		Reason: ReasonAmountMismatch,
		Status: ExceptionStatusOpen,
	}
}

func TestException_Apply(t *testing.T) {
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

	t.Run("assign_sets_assignee_and_emits_event", func(t *testing.T) {
		e := newOpenException()
		event, err := e.Apply(ActionCommand{Action: ActionAssign, Actor: "ops@x", Assignee: "analyst@x"}, now)
		require.NoError(t, err)

		assert.Equal(t, ExceptionStatusInvestigating, e.Status)
		require.NotNil(t, e.AssignedTo)
		assert.Equal(t, "analyst@x", *e.AssignedTo)
		assert.Equal(t, now, e.UpdatedAt)

		assert.NotEmpty(t, event.ID)
		assert.Equal(t, "exc-1", event.ExceptionID)
		assert.Equal(t, ExceptionStatusOpen, event.FromStatus)
		assert.Equal(t, ExceptionStatusInvestigating, event.ToStatus)
		assert.Equal(t, "ops@x", event.Actor)
	})

	t.Run("assign_requires_assignee", func(t *testing.T) {
		e := newOpenException()
		_, err := e.Apply(ActionCommand{Action: ActionAssign}, now)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
		assert.Equal(t, ExceptionStatusOpen, e.Status)
	})

	t.Run("resolve_requires_resolution", func(t *testing.T) {
		e := newOpenException()
		e.Status = ExceptionStatusInvestigating
		_, err := e.Apply(ActionCommand{Action: ActionResolve}, now)
		require.Error(t, err)
		assert.Equal(t, ExceptionStatusInvestigating, e.Status)

		_, err = e.Apply(ActionCommand{Action: ActionResolve, Note: "bank re-credited"}, now)
		require.NoError(t, err)
		assert.Equal(t, ExceptionStatusResolved, e.Status)
		require.NotNil(t, e.Resolution)
		assert.Equal(t, "bank re-credited", *e.Resolution)
	})

	t.Run("invalid_transition_leaves_state_unchanged", func(t *testing.T) {
		e := newOpenException()
		_, err := e.Apply(ActionCommand{Action: ActionEscalate}, now)
		require.Error(t, err)
		assert.True(t, IsDomainError(err, ErrorCodeExceptionInvalidTransition))
		assert.Equal(t, ExceptionStatusOpen, e.Status)
	})

	t.Run("snooze_requires_future_time", func(t *testing.T) {
		e := newOpenException()
		past := now.Add(-time.Hour)
		_, err := e.Apply(ActionCommand{Action: ActionSnooze, SnoozeUntil: &past}, now)
		require.Error(t, err)

		_, err = e.Apply(ActionCommand{Action: ActionSnooze}, now)
		require.Error(t, err)

		until := now.Add(24 * time.Hour)
		_, err = e.Apply(ActionCommand{Action: ActionSnooze, SnoozeUntil: &until}, now)
		require.NoError(t, err)
		assert.Equal(t, ExceptionStatusSnoozed, e.Status)
		assert.False(t, e.IsSnoozeDue(now))
		assert.True(t, e.IsSnoozeDue(until))
	})

	t.Run("reopen_clears_snooze", func(t *testing.T) {
		e := newOpenException()
		until := now.Add(time.Hour)
		e.Status = ExceptionStatusSnoozed
		e.SnoozedUntil = &until

		_, err := e.Apply(ActionCommand{Action: ActionReopen, Actor: "system"}, until)
		require.NoError(t, err)
		assert.Equal(t, ExceptionStatusOpen, e.Status)
		assert.Nil(t, e.SnoozedUntil)
	})
}

func TestException_IsSLABreached(t *testing.T) {
	due := time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)
	e := &Exception{Status: ExceptionStatusOpen, SLADueAt: due}

	assert.False(t, e.IsSLABreached(due))
	assert.True(t, e.IsSLABreached(due.Add(time.Minute)))

	e.Status = ExceptionStatusResolved
	assert.False(t, e.IsSLABreached(due.Add(time.Minute)))
}
