package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationAmountInvalid ErrorCode = "VALIDATION_AMOUNT_INVALID"
	ErrorCodeValidationMissingField  ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrorCodeValidationDuplicateID   ErrorCode = "VALIDATION_DUPLICATE_ID"

	// Feed Errors (FEED_*) abort a whole cycle-date run
	ErrorCodeFeedUnavailable ErrorCode = "FEED_UNAVAILABLE"
	ErrorCodeFeedCorrupt     ErrorCode = "FEED_CORRUPT"

	// Settlement Errors (SETTLEMENT_*, BATCH_*)
	ErrorCodeNoCommissionTier       ErrorCode = "SETTLEMENT_NO_COMMISSION_TIER"
	ErrorCodeNothingToSettle        ErrorCode = "SETTLEMENT_NOTHING_TO_SETTLE"
	ErrorCodeBatchConflict          ErrorCode = "BATCH_CONFLICT"
	ErrorCodeBatchNotFound          ErrorCode = "BATCH_NOT_FOUND"
	ErrorCodeBatchInvalidTransition ErrorCode = "BATCH_INVALID_TRANSITION"

	// Exception Workflow Errors (EXCEPTION_*)
	ErrorCodeExceptionNotFound          ErrorCode = "EXCEPTION_NOT_FOUND"
	ErrorCodeExceptionInvalidTransition ErrorCode = "EXCEPTION_INVALID_TRANSITION"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeBatchNotFound ||
		code == ErrorCodeExceptionNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationFailed ||
		code == ErrorCodeValidationAmountInvalid ||
		code == ErrorCodeValidationMissingField ||
		code == ErrorCodeValidationDuplicateID
}

// IsTransitionError checks if an error is a rejected state machine transition
func IsTransitionError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeBatchInvalidTransition ||
		code == ErrorCodeExceptionInvalidTransition
}

// IsCycleFatal reports whether err aborts a whole cycle-date run
func IsCycleFatal(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeFeedUnavailable ||
		code == ErrorCodeFeedCorrupt
}

// Sentinel errors for errors.Is comparisons in callers that do not need details
var (
	ErrBatchNotFound     = errors.New("settlement batch not found")
	ErrExceptionNotFound = errors.New("exception not found")
	ErrNoCommissionTier  = errors.New("no commission tier matches merchant volume")
)
