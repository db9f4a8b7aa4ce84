package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExceptionReason is the fixed reconciliation exception taxonomy
type ExceptionReason string

const (
	ReasonUTRMissingOrInvalid ExceptionReason = "UTR_MISSING_OR_INVALID"
	ReasonUTRMismatch         ExceptionReason = "UTR_MISMATCH"
	ReasonPgTxnMissingInBank  ExceptionReason = "PG_TXN_MISSING_IN_BANK"
	ReasonBankTxnMissingInPG  ExceptionReason = "BANK_TXN_MISSING_IN_PG"
	ReasonFeesVariance        ExceptionReason = "FEES_VARIANCE"
	ReasonAmountMismatch      ExceptionReason = "AMOUNT_MISMATCH"
	ReasonFeeMismatch         ExceptionReason = "FEE_MISMATCH"
	ReasonRoundingError       ExceptionReason = "ROUNDING_ERROR"
	ReasonDateOutOfWindow     ExceptionReason = "DATE_OUT_OF_WINDOW"
	ReasonDuplicatePGEntry    ExceptionReason = "DUPLICATE_PG_ENTRY"
	ReasonDuplicateBankEntry  ExceptionReason = "DUPLICATE_BANK_ENTRY"
)

// ReasonPriority is the order used to surface exactly one reason when
// several conditions hold for the same record pair. Identity and amount
// reasons outrank date and duplicate reasons.
var ReasonPriority = []ExceptionReason{
	ReasonUTRMissingOrInvalid,
	ReasonPgTxnMissingInBank,
	ReasonBankTxnMissingInPG,
	ReasonUTRMismatch,
	ReasonFeesVariance,
	ReasonFeeMismatch,
	ReasonRoundingError,
	ReasonAmountMismatch,
	ReasonDateOutOfWindow,
	ReasonDuplicatePGEntry,
	ReasonDuplicateBankEntry,
}

// Priority returns the index of r in ReasonPriority, or -1 if unknown
func (r ExceptionReason) Priority() int {
	for i, reason := range ReasonPriority {
		if reason == r {
			return i
		}
	}
	return -1
}

// Severity of an exception, used for SLA and triage
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// ReasonMeta holds the triage defaults for a reason
type ReasonMeta struct {
	Severity Severity
	SLA      time.Duration // measured from the cycle date
	Score    int           // match score when the reason is raised on a UTR pair
}

var reasonMeta = map[ExceptionReason]ReasonMeta{
	ReasonUTRMissingOrInvalid: {Severity: SeverityHigh, SLA: 24 * time.Hour},
	ReasonUTRMismatch:         {Severity: SeverityHigh, SLA: 24 * time.Hour, Score: 60},
	ReasonPgTxnMissingInBank:  {Severity: SeverityCritical, SLA: 12 * time.Hour},
	ReasonBankTxnMissingInPG:  {Severity: SeverityHigh, SLA: 24 * time.Hour},
	ReasonFeesVariance:        {Severity: SeverityMedium, SLA: 48 * time.Hour, Score: 80},
	ReasonAmountMismatch:      {Severity: SeverityHigh, SLA: 24 * time.Hour, Score: 50},
	ReasonFeeMismatch:         {Severity: SeverityMedium, SLA: 48 * time.Hour, Score: 85},
	ReasonRoundingError:       {Severity: SeverityLow, SLA: 72 * time.Hour, Score: 95},
	ReasonDateOutOfWindow:     {Severity: SeverityLow, SLA: 72 * time.Hour, Score: 75},
	ReasonDuplicatePGEntry:    {Severity: SeverityMedium, SLA: 48 * time.Hour},
	ReasonDuplicateBankEntry:  {Severity: SeverityMedium, SLA: 48 * time.Hour},
}

// Meta returns the triage defaults for the reason
func (r ExceptionReason) Meta() ReasonMeta {
	if m, ok := reasonMeta[r]; ok {
		return m
	}
	return ReasonMeta{Severity: SeverityMedium, SLA: 48 * time.Hour}
}

// ExceptionStatus is the workflow state of an exception
type ExceptionStatus string

const (
	ExceptionStatusOpen          ExceptionStatus = "OPEN"
	ExceptionStatusInvestigating ExceptionStatus = "INVESTIGATING"
	ExceptionStatusSnoozed       ExceptionStatus = "SNOOZED"
	ExceptionStatusEscalated     ExceptionStatus = "ESCALATED"
	ExceptionStatusResolved      ExceptionStatus = "RESOLVED"
	ExceptionStatusWontFix       ExceptionStatus = "WONT_FIX"
)

// IsTerminal returns true for RESOLVED and WONT_FIX
func (s ExceptionStatus) IsTerminal() bool {
	return s == ExceptionStatusResolved || s == ExceptionStatusWontFix
}

// ExceptionAction is a workflow action applied to an exception
type ExceptionAction string

const (
	ActionAssign      ExceptionAction = "assign"
	ActionInvestigate ExceptionAction = "investigate"
	ActionResolve     ExceptionAction = "resolve"
	ActionWontFix     ExceptionAction = "wont_fix"
	ActionEscalate    ExceptionAction = "escalate"
	ActionSnooze      ExceptionAction = "snooze"
	ActionReopen      ExceptionAction = "reopen"
)

// exceptionTransitions maps action -> from -> to
var exceptionTransitions = map[ExceptionAction]map[ExceptionStatus]ExceptionStatus{
	ActionAssign: {
		ExceptionStatusOpen:          ExceptionStatusInvestigating,
		ExceptionStatusInvestigating: ExceptionStatusInvestigating,
		ExceptionStatusEscalated:     ExceptionStatusEscalated,
	},
	ActionInvestigate: {
		ExceptionStatusOpen:      ExceptionStatusInvestigating,
		ExceptionStatusEscalated: ExceptionStatusInvestigating,
	},
	ActionResolve: {
		ExceptionStatusInvestigating: ExceptionStatusResolved,
		ExceptionStatusEscalated:     ExceptionStatusResolved,
	},
	ActionWontFix: {
		ExceptionStatusInvestigating: ExceptionStatusWontFix,
	},
	ActionEscalate: {
		ExceptionStatusInvestigating: ExceptionStatusEscalated,
	},
	ActionSnooze: {
		ExceptionStatusOpen:          ExceptionStatusSnoozed,
		ExceptionStatusInvestigating: ExceptionStatusSnoozed,
	},
	ActionReopen: {
		ExceptionStatusSnoozed: ExceptionStatusOpen,
	},
}

// NextExceptionStatus returns the state reached by applying action in from
func NextExceptionStatus(from ExceptionStatus, action ExceptionAction) (ExceptionStatus, bool) {
	targets, ok := exceptionTransitions[action]
	if !ok {
		return "", false
	}
	to, ok := targets[from]
	return to, ok
}

// Exception is one irreconcilable condition for a transaction or bank record.
// Exceptions are never deleted; workflow actions append ExceptionEvents.
type Exception struct {
	CycleDate       time.Time       `json:"cycle_date"`
	SLADueAt        time.Time       `json:"sla_due_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	PgTransactionID *string         `json:"pg_transaction_id,omitempty"`
	BankReferenceID *string         `json:"bank_reference_id,omitempty"`
	AssignedTo      *string         `json:"assigned_to,omitempty"`
	Resolution      *string         `json:"resolution,omitempty"`
	SnoozedUntil    *time.Time      `json:"snoozed_until,omitempty"`
	ID              string          `json:"exception_id"`
	MerchantID      string          `json:"merchant_id,omitempty"`
	Reason          ExceptionReason `json:"reason"`
	Severity        Severity        `json:"severity"`
	Status          ExceptionStatus `json:"status"`
	VariancePercent decimal.Decimal `json:"variance_percent"`
	AmountDelta     int64           `json:"amount_delta"`
}

// ActionCommand carries the inputs of a workflow action
type ActionCommand struct {
	SnoozeUntil *time.Time
	Action      ExceptionAction
	Actor       string
	Assignee    string
	Note        string
}

// ExceptionEvent is an audit row for an applied workflow action
type ExceptionEvent struct {
	CreatedAt   time.Time       `json:"created_at"`
	ID          string          `json:"id"`
	ExceptionID string          `json:"exception_id"`
	Action      ExceptionAction `json:"action"`
	FromStatus  ExceptionStatus `json:"from_status"`
	ToStatus    ExceptionStatus `json:"to_status"`
	Actor       string          `json:"actor"`
	Note        string          `json:"note,omitempty"`
}

// Apply validates and applies a workflow action, returning the audit event
func (e *Exception) Apply(cmd ActionCommand, now time.Time) (*ExceptionEvent, error) {
	to, ok := NextExceptionStatus(e.Status, cmd.Action)
	if !ok {
		return nil, NewDomainError(ErrorCodeExceptionInvalidTransition,
			fmt.Sprintf("cannot %s exception in status %s", cmd.Action, e.Status)).
			WithDetail("exception_id", e.ID).
			WithDetail("from_status", string(e.Status)).
			WithDetail("action", string(cmd.Action))
	}

	switch cmd.Action {
	case ActionAssign:
		if cmd.Assignee == "" {
			return nil, NewDomainError(ErrorCodeValidationMissingField, "assignee is required")
		}
		assignee := cmd.Assignee
		e.AssignedTo = &assignee
	case ActionResolve, ActionWontFix:
		if cmd.Note == "" {
			return nil, NewDomainError(ErrorCodeValidationMissingField, "resolution is required")
		}
		resolution := cmd.Note
		e.Resolution = &resolution
	case ActionSnooze:
		if cmd.SnoozeUntil == nil || !cmd.SnoozeUntil.After(now) {
			return nil, NewDomainError(ErrorCodeValidationFailed, "snooze_until must be in the future")
		}
		until := cmd.SnoozeUntil.UTC()
		e.SnoozedUntil = &until
	case ActionReopen:
		e.SnoozedUntil = nil
	}

	event := &ExceptionEvent{
		ID:          uuid.New().String(),
		ExceptionID: e.ID,
		Action:      cmd.Action,
		FromStatus:  e.Status,
		ToStatus:    to,
		Actor:       cmd.Actor,
		Note:        cmd.Note,
		CreatedAt:   now,
	}

	e.Status = to
	e.UpdatedAt = now
	return event, nil
}

// IsSnoozeDue returns true if a snoozed exception should reopen at now
func (e *Exception) IsSnoozeDue(now time.Time) bool {
	return e.Status == ExceptionStatusSnoozed &&
		e.SnoozedUntil != nil &&
		!now.Before(*e.SnoozedUntil)
}

// IsSLABreached returns true if a non-terminal exception is past its SLA
func (e *Exception) IsSLABreached(now time.Time) bool {
	return !e.Status.IsTerminal() && now.After(e.SLADueAt)
}
