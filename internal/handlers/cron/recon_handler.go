package cron

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kevin07696/settlement-recon/internal/handlers/httpx"
	"github.com/kevin07696/settlement-recon/internal/services/ports"
	"github.com/kevin07696/settlement-recon/pkg/resilience"
	"github.com/kevin07696/settlement-recon/pkg/shutdown"
	"github.com/kevin07696/settlement-recon/pkg/timeutil"
	"go.uber.org/zap"
)

// ReconHandler handles cron job endpoints for reconciliation, settlement and
// snooze expiry
type ReconHandler struct {
	recon      ports.ReconciliationService
	settlement ports.SettlementService
	exceptions ports.ExceptionService
	auth       *Authenticator
	tracker    *shutdown.InFlightTracker
	timeouts   *resilience.TimeoutConfig
	clock      timeutil.Clock
	logger     *zap.Logger
}

// NewReconHandler creates a new reconciliation cron handler
func NewReconHandler(
	recon ports.ReconciliationService,
	settlement ports.SettlementService,
	exceptions ports.ExceptionService,
	auth *Authenticator,
	tracker *shutdown.InFlightTracker,
	timeouts *resilience.TimeoutConfig,
	clock timeutil.Clock,
	logger *zap.Logger,
) *ReconHandler {
	if clock == nil {
		clock = timeutil.Now
	}
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	return &ReconHandler{
		recon:      recon,
		settlement: settlement,
		exceptions: exceptions,
		auth:       auth,
		tracker:    tracker,
		timeouts:   timeouts,
		clock:      clock,
		logger:     logger,
	}
}

// DateRequest is the optional body of the reconcile and settle endpoints
type DateRequest struct {
	Date *string `json:"date"` // YYYY-MM-DD, defaults to yesterday (UTC)
}

// ReconcileResponse is returned by POST /cron/reconcile
type ReconcileResponse struct {
	Result      interface{} `json:"result,omitempty"`
	ProcessedAt string      `json:"processed_at"`
	Success     bool        `json:"success"`
}

// Reconcile handles POST /cron/reconcile
func (h *ReconHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	cycleDate, ok := h.begin(w, r, "reconcile")
	if !ok {
		return
	}
	defer h.tracker.Done()

	ctx, cancel := h.timeouts.CronContext(r.Context())
	defer cancel()

	result, err := h.recon.RunCycle(ctx, cycleDate)
	if err != nil {
		httpx.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Reconciliation cron completed",
		zap.String("cycle_date", result.CycleDate),
		zap.Int("matched", result.Matched),
		zap.Int("exceptions", result.Exceptions),
		zap.Int("exceptions_created", result.ExceptionsCreated),
	)
	httpx.WriteJSON(w, h.logger, http.StatusOK, ReconcileResponse{
		Success:     true,
		Result:      result,
		ProcessedAt: h.clock().Format(time.RFC3339),
	})
}

// Settle handles POST /cron/settle
func (h *ReconHandler) Settle(w http.ResponseWriter, r *http.Request) {
	batchDate, ok := h.begin(w, r, "settle")
	if !ok {
		return
	}
	defer h.tracker.Done()

	ctx, cancel := h.timeouts.CronContext(r.Context())
	defer cancel()

	summary, err := h.settlement.RunSettlement(ctx, batchDate)
	if err != nil {
		httpx.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Settlement cron completed",
		zap.String("batch_date", summary.BatchDate),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("existing", summary.Existing),
		zap.Int("failed", summary.Failed),
	)

	status := http.StatusOK
	if summary.Failed > 0 {
		status = http.StatusPartialContent
	}
	httpx.WriteJSON(w, h.logger, status, ReconcileResponse{
		Success:     summary.Failed == 0,
		Result:      summary,
		ProcessedAt: h.clock().Format(time.RFC3339),
	})
}

// ReopenSnoozed handles POST /cron/reopen-snoozed
func (h *ReconHandler) ReopenSnoozed(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, "reopen-snoozed") {
		return
	}
	if !h.tracker.Add() {
		httpx.WriteError(w, h.logger, http.StatusServiceUnavailable, "shutting down")
		return
	}
	defer h.tracker.Done()

	summary, err := h.exceptions.ReopenDue(r.Context())
	if err != nil {
		httpx.WriteDomainError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if summary.Failed > 0 {
		status = http.StatusPartialContent
	}
	httpx.WriteJSON(w, h.logger, status, ReconcileResponse{
		Success:     summary.Failed == 0,
		Result:      summary,
		ProcessedAt: h.clock().Format(time.RFC3339),
	})
}

// HealthCheck handles GET /cron/health for monitoring
func (h *ReconHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   h.clock().Format(time.RFC3339),
	})
}

func (h *ReconHandler) authorize(w http.ResponseWriter, r *http.Request, job string) bool {
	h.logger.Info("Cron job triggered",
		zap.String("job", job),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("user_agent", r.UserAgent()),
	)

	if r.Method != http.MethodPost {
		httpx.WriteError(w, h.logger, http.StatusMethodNotAllowed, "only POST method is allowed")
		return false
	}
	if !h.auth.Authenticate(r) {
		h.logger.Warn("Unauthorized cron request", zap.String("remote_addr", r.RemoteAddr))
		httpx.WriteError(w, h.logger, http.StatusUnauthorized, "unauthorized")
		return false
	}
	return true
}

// begin authorizes, parses the date and registers in-flight work. On
// success the caller must call h.tracker.Done.
func (h *ReconHandler) begin(w http.ResponseWriter, r *http.Request, job string) (time.Time, bool) {
	if !h.authorize(w, r, job) {
		return time.Time{}, false
	}

	date, err := h.parseDate(w, r)
	if err != nil {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, err.Error())
		return time.Time{}, false
	}

	if !h.tracker.Add() {
		httpx.WriteError(w, h.logger, http.StatusServiceUnavailable, "shutting down")
		return time.Time{}, false
	}
	return date, true
}

func (h *ReconHandler) parseDate(w http.ResponseWriter, r *http.Request) (time.Time, error) {
	var req DateRequest
	if r.Body != nil {
		if err := httpx.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			return time.Time{}, fmt.Errorf("invalid request body: %w", err)
		}
	}
	if req.Date == nil {
		return timeutil.AddDays(h.clock(), -1), nil
	}
	date, err := timeutil.ParseDate(*req.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format: %w", err)
	}
	return date, nil
}

// Routes mounts the cron endpoints on r
func (h *ReconHandler) Routes(r chi.Router) {
	r.Post("/reconcile", h.Reconcile)
	r.Post("/settle", h.Settle)
	r.Post("/reopen-snoozed", h.ReopenSnoozed)
	r.Get("/health", h.HealthCheck)
}
