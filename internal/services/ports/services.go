// Package ports declares the service interfaces consumed by the HTTP handlers.
package ports

import (
	"context"
	"time"

	"github.com/kevin07696/settlement-recon/internal/domain"
	domainports "github.com/kevin07696/settlement-recon/internal/domain/ports"
	"github.com/kevin07696/settlement-recon/internal/services/exception"
	"github.com/kevin07696/settlement-recon/internal/services/ingest"
	"github.com/kevin07696/settlement-recon/internal/services/pipeline"
	"github.com/kevin07696/settlement-recon/internal/services/reconciliation"
	"github.com/kevin07696/settlement-recon/internal/services/settlement"
)

// ReconciliationService runs a reconciliation cycle
type ReconciliationService interface {
	RunCycle(ctx context.Context, cycleDate time.Time) (*reconciliation.RunResult, error)
}

// SettlementService computes batches and drives their lifecycle
type SettlementService interface {
	ComputeSettlement(ctx context.Context, merchantID string, batchDate time.Time) (*settlement.ComputeResult, error)
	RunSettlement(ctx context.Context, batchDate time.Time) (*settlement.RunSummary, error)
	Transition(ctx context.Context, req settlement.TransitionRequest) (*domain.SettlementBatch, error)
	Get(ctx context.Context, batchID string) (*domain.SettlementBatch, error)
}

// ExceptionService is the exception workflow
type ExceptionService interface {
	Apply(ctx context.Context, exceptionID string, cmd domain.ActionCommand) (*domain.Exception, error)
	Bulk(ctx context.Context, exceptionIDs []string, cmd domain.ActionCommand) exception.BulkSummary
	ReopenDue(ctx context.Context) (*exception.ReopenSummary, error)
	Get(ctx context.Context, exceptionID string) (*domain.Exception, []domain.ExceptionEvent, error)
	List(ctx context.Context, filter domainports.ExceptionFilter) ([]domain.Exception, error)
}

// PipelineService builds funnel snapshots
type PipelineService interface {
	Snapshot(ctx context.Context, from, to time.Time) (*domain.PipelineSnapshot, error)
}

// IngestService accepts pushed bank credits
type IngestService interface {
	IngestBankCredit(ctx context.Context, gateway string, record domain.BankRecord) (*ingest.Result, error)
}

var (
	_ ReconciliationService = (*reconciliation.Service)(nil)
	_ SettlementService     = (*settlement.Service)(nil)
	_ ExceptionService      = (*exception.Service)(nil)
	_ PipelineService       = (*pipeline.Service)(nil)
	_ IngestService         = (*ingest.Service)(nil)
)
