// Package retryfeed wraps upstream feeds with per-attempt timeouts and
// jittered retries.
package retryfeed

import (
	"context"
	"time"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
	"github.com/kevin07696/settlement-recon/pkg/resilience"
	"go.uber.org/zap"
)

// Config controls retry behaviour
type Config struct {
	Backoff  resilience.BackoffStrategy
	Timeouts *resilience.TimeoutConfig
	Attempts int
}

// DefaultConfig retries three times with FeedBackoff
func DefaultConfig() Config {
	return Config{
		Backoff:  resilience.FeedBackoff(),
		Timeouts: resilience.DefaultTimeoutConfig(),
		Attempts: 3,
	}
}

// Feed implements ports.PgFeed and ports.BankFeed over retried inner feeds
type Feed struct {
	pg     ports.PgFeed
	bank   ports.BankFeed
	cfg    Config
	logger *zap.Logger
}

// New wraps pg and bank
func New(pg ports.PgFeed, bank ports.BankFeed, cfg Config, logger *zap.Logger) *Feed {
	if cfg.Backoff == nil {
		cfg.Backoff = resilience.FeedBackoff()
	}
	if cfg.Timeouts == nil {
		cfg.Timeouts = resilience.DefaultTimeoutConfig()
	}
	return &Feed{pg: pg, bank: bank, cfg: cfg, logger: logger}
}

// FetchPgTransactions fetches from the inner PG feed
func (f *Feed) FetchPgTransactions(ctx context.Context, cycleDate time.Time) ([]domain.PgTransaction, error) {
	var out []domain.PgTransaction
	err := f.do(ctx, "pg", cycleDate, func(ctx context.Context) error {
		var err error
		out, err = f.pg.FetchPgTransactions(ctx, cycleDate)
		return err
	})
	return out, err
}

// FetchBankRecords fetches from the inner bank feed
func (f *Feed) FetchBankRecords(ctx context.Context, cycleDate time.Time) ([]domain.BankRecord, error) {
	var out []domain.BankRecord
	err := f.do(ctx, "bank", cycleDate, func(ctx context.Context) error {
		var err error
		out, err = f.bank.FetchBankRecords(ctx, cycleDate)
		return err
	})
	return out, err
}

func (f *Feed) do(ctx context.Context, side string, cycleDate time.Time, fetch func(context.Context) error) error {
	return resilience.Retry(ctx, f.cfg.Backoff, f.cfg.Attempts, func(ctx context.Context) error {
		attemptCtx, cancel := f.cfg.Timeouts.FeedContext(ctx)
		defer cancel()
		return fetch(attemptCtx)
	}, func(attempt int, err error) {
		f.logger.Warn("Feed fetch failed, retrying",
			zap.String("feed", side),
			zap.String("cycle_date", domain.CycleKey(cycleDate)),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	})
}

var (
	_ ports.PgFeed   = (*Feed)(nil)
	_ ports.BankFeed = (*Feed)(nil)
)
