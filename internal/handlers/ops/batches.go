package ops

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/handlers/httpx"
	"github.com/kevin07696/settlement-recon/internal/services/settlement"
	"go.uber.org/zap"
)

// TransitionBody is the body of POST /api/v1/batches/{id}/transition
type TransitionBody struct {
	Failure *domain.FailureReason `json:"failure,omitempty"`
	BankUTR *string               `json:"bank_utr,omitempty"`
	To      string                `json:"to"`
}

// GetBatch handles GET /api/v1/batches/{id}
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.timeouts.HandlerContext(r.Context())
	defer cancel()

	batch, err := h.settlement.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteDomainError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, batch)
}

// TransitionBatch handles POST /api/v1/batches/{id}/transition
func (h *Handler) TransitionBatch(w http.ResponseWriter, r *http.Request) {
	var body TransitionBody
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteDomainError(w, h.logger, validationError("invalid request body", err))
		return
	}
	if body.To == "" {
		httpx.WriteDomainError(w, h.logger, validationError("to is required", nil))
		return
	}

	ctx, cancel := h.timeouts.HandlerContext(r.Context())
	defer cancel()

	batch, err := h.settlement.Transition(ctx, settlement.TransitionRequest{
		BatchID: chi.URLParam(r, "id"),
		To:      domain.BatchStatus(body.To),
		Failure: body.Failure,
		BankUTR: body.BankUTR,
	})
	if err != nil {
		httpx.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Settlement batch transitioned",
		zap.String("batch_id", batch.ID),
		zap.String("status", string(batch.Status)))
	httpx.WriteJSON(w, h.logger, http.StatusOK, batch)
}

// Pipeline handles GET /api/v1/pipeline?from=YYYY-MM-DD&to=YYYY-MM-DD. Both
// default to the current UTC day.
func (h *Handler) Pipeline(w http.ResponseWriter, r *http.Request) {
	today := h.clock()
	to, err := queryDate(r, "to", today)
	if err != nil {
		httpx.WriteDomainError(w, h.logger, err)
		return
	}
	from, err := queryDate(r, "from", to)
	if err != nil {
		httpx.WriteDomainError(w, h.logger, err)
		return
	}

	ctx, cancel := h.timeouts.HandlerContext(r.Context())
	defer cancel()

	snap, err := h.pipeline.Snapshot(ctx, from, to)
	if err != nil {
		httpx.WriteDomainError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, snap)
}
