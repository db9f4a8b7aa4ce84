// Package httpx holds the JSON response helpers shared by the HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Details map[string]interface{} `json:"details,omitempty"`
	Error   string                 `json:"error"`
	Code    domain.ErrorCode       `json:"code,omitempty"`
	Success bool                   `json:"success"`
}

// WriteJSON writes v with status
func WriteJSON(w http.ResponseWriter, logger *zap.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// WriteError sends an error response
func WriteError(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	WriteJSON(w, logger, status, ErrorResponse{Error: message})
}

// WriteDomainError maps err to a status code and writes it. Internal errors
// are logged and their message is not exposed.
func WriteDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := StatusFor(err)
	resp := ErrorResponse{Code: domain.GetErrorCode(err), Error: err.Error()}

	var de *domain.DomainError
	if errors.As(err, &de) {
		resp.Error = de.Message
		if de.Err != nil {
			resp.Error += ": " + de.Err.Error()
		}
		resp.Details = de.Details
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
		resp.Error = http.StatusText(status)
		resp.Details = nil
	}
	WriteJSON(w, logger, status, resp)
}

// StatusFor returns the HTTP status for a domain error code
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	case domain.IsNotFoundError(err):
		return http.StatusNotFound
	case domain.IsTransitionError(err), domain.IsDomainError(err, domain.ErrorCodeBatchConflict):
		return http.StatusConflict
	case domain.IsDomainError(err, domain.ErrorCodeNoCommissionTier), domain.IsDomainError(err, domain.ErrorCodeNothingToSettle):
		return http.StatusUnprocessableEntity
	case domain.IsCycleFatal(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes the request body into dest, rejecting unknown fields
func DecodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}
