// Package ops serves the operator API: exception workflow, settlement batch
// lifecycle, pipeline snapshots and the bank-credit webhook.
package ops

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/services/ports"
	"github.com/kevin07696/settlement-recon/pkg/resilience"
	"github.com/kevin07696/settlement-recon/pkg/timeutil"
	"go.uber.org/zap"
)

// Handler groups the ops endpoints
type Handler struct {
	exceptions ports.ExceptionService
	settlement ports.SettlementService
	pipeline   ports.PipelineService
	ingest     ports.IngestService
	timeouts   *resilience.TimeoutConfig
	clock      timeutil.Clock
	logger     *zap.Logger
}

// Config holds the handler dependencies
type Config struct {
	Exceptions ports.ExceptionService
	Settlement ports.SettlementService
	Pipeline   ports.PipelineService
	Ingest     ports.IngestService
	Timeouts   *resilience.TimeoutConfig
	Clock      timeutil.Clock
	Logger     *zap.Logger
}

// NewHandler creates the ops handler
func NewHandler(cfg Config) *Handler {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.Now
	}
	if cfg.Timeouts == nil {
		cfg.Timeouts = resilience.DefaultTimeoutConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Handler{
		exceptions: cfg.Exceptions,
		settlement: cfg.Settlement,
		pipeline:   cfg.Pipeline,
		ingest:     cfg.Ingest,
		timeouts:   cfg.Timeouts,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
	}
}

func validationError(message string, err error) error {
	if err != nil {
		return domain.WrapError(domain.ErrorCodeValidationFailed, message, err)
	}
	return domain.NewDomainError(domain.ErrorCodeValidationFailed, message)
}

// queryDate parses a YYYY-MM-DD query parameter; empty returns fallback
func queryDate(r *http.Request, key string, fallback time.Time) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return fallback, nil
	}
	d, err := timeutil.ParseDate(v)
	if err != nil {
		return time.Time{}, validationError("invalid "+key, err)
	}
	return d, nil
}

func queryInt32(r *http.Request, key string) (int32, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n < 0 {
		return 0, validationError("invalid "+key, err)
	}
	return int32(n), nil
}
