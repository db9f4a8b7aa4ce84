package ops

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kevin07696/settlement-recon/internal/domain"
	domainports "github.com/kevin07696/settlement-recon/internal/domain/ports"
	"github.com/kevin07696/settlement-recon/internal/handlers/httpx"
)

// ActionRequest is the body of an exception workflow action
type ActionRequest struct {
	SnoozeUntil *time.Time `json:"snooze_until,omitempty"`
	Action      string     `json:"action"`
	Actor       string     `json:"actor"`
	Assignee    string     `json:"assignee,omitempty"`
	Note        string     `json:"note,omitempty"`
}

func (a ActionRequest) command() domain.ActionCommand {
	return domain.ActionCommand{
		SnoozeUntil: a.SnoozeUntil,
		Action:      domain.ExceptionAction(a.Action),
		Actor:       a.Actor,
		Assignee:    a.Assignee,
		Note:        a.Note,
	}
}

// BulkActionRequest applies one action to many exceptions
type BulkActionRequest struct {
	ActionRequest
	IDs []string `json:"ids"`
}

// ExceptionDetail is an exception with its audit trail
type ExceptionDetail struct {
	Exception *domain.Exception       `json:"exception"`
	Events    []domain.ExceptionEvent `json:"events"`
}

// ListExceptions handles GET /api/v1/exceptions
func (h *Handler) ListExceptions(w http.ResponseWriter, r *http.Request) {
	filter, err := exceptionFilter(r)
	if err != nil {
		httpx.WriteDomainError(w, h.logger, err)
		return
	}

	ctx, cancel := h.timeouts.HandlerContext(r.Context())
	defer cancel()

	excs, err := h.exceptions.List(ctx, filter)
	if err != nil {
		httpx.WriteDomainError(w, h.logger, err)
		return
	}
	if excs == nil {
		excs = []domain.Exception{}
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"exceptions": excs,
		"count":      len(excs),
	})
}

// GetException handles GET /api/v1/exceptions/{id}
func (h *Handler) GetException(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.timeouts.HandlerContext(r.Context())
	defer cancel()

	exc, events, err := h.exceptions.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteDomainError(w, h.logger, err)
		return
	}
	if events == nil {
		events = []domain.ExceptionEvent{}
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, ExceptionDetail{Exception: exc, Events: events})
}

// ApplyAction handles POST /api/v1/exceptions/{id}/actions
func (h *Handler) ApplyAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteDomainError(w, h.logger, validationError("invalid request body", err))
		return
	}

	ctx, cancel := h.timeouts.HandlerContext(r.Context())
	defer cancel()

	exc, err := h.exceptions.Apply(ctx, chi.URLParam(r, "id"), req.command())
	if err != nil {
		httpx.WriteDomainError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, exc)
}

// BulkAction handles POST /api/v1/exceptions/bulk. Per-id failures are
// reported in the body with 207 Multi-Status.
func (h *Handler) BulkAction(w http.ResponseWriter, r *http.Request) {
	var req BulkActionRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteDomainError(w, h.logger, validationError("invalid request body", err))
		return
	}
	if len(req.IDs) == 0 {
		httpx.WriteDomainError(w, h.logger, validationError("ids must not be empty", nil))
		return
	}

	ctx, cancel := h.timeouts.HandlerContext(r.Context())
	defer cancel()

	summary := h.exceptions.Bulk(ctx, req.IDs, req.command())
	status := http.StatusOK
	if summary.Failed > 0 {
		status = http.StatusMultiStatus
	}
	httpx.WriteJSON(w, h.logger, status, summary)
}

func exceptionFilter(r *http.Request) (domainports.ExceptionFilter, error) {
	q := r.URL.Query()
	filter := domainports.ExceptionFilter{
		Status:     domain.ExceptionStatus(q.Get("status")),
		Reason:     domain.ExceptionReason(q.Get("reason")),
		MerchantID: q.Get("merchant_id"),
	}

	if q.Get("cycle_date") != "" {
		d, err := queryDate(r, "cycle_date", time.Time{})
		if err != nil {
			return filter, err
		}
		filter.CycleDate = &d
	}

	var err error
	if filter.Limit, err = queryInt32(r, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt32(r, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}
