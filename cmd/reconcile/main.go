// Command reconcile runs one reconciliation cycle, and optionally the
// settlement run for the same date, and prints the outcome as JSON.
//
// With -pg and -bank it runs offline against JSON files and touches no
// database. Otherwise it uses the same configuration as the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kevin07696/settlement-recon/internal/adapters/memory"
	"github.com/kevin07696/settlement-recon/internal/app"
	"github.com/kevin07696/settlement-recon/internal/config"
	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/services/reconciliation"
	"github.com/kevin07696/settlement-recon/internal/services/settlement"
	"github.com/kevin07696/settlement-recon/pkg/timeutil"
)

type options struct {
	date     time.Time
	pgPath   string
	bankPath string
	settle   bool
	detail   bool
	timeout  time.Duration
}

// OfflineReport is printed in offline mode
type OfflineReport struct {
	Summary     reconciliation.Summary    `json:"summary"`
	Result      *reconciliation.Result    `json:"result,omitempty"`
	Settlements []*settlement.Computation `json:"settlements,omitempty"`
	Failures    map[string]string         `json:"settlement_failures,omitempty"`
}

// OnlineReport is printed in database mode
type OnlineReport struct {
	Reconciliation *reconciliation.RunResult `json:"reconciliation"`
	Settlement     *settlement.RunSummary    `json:"settlement,omitempty"`
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	if opts.pgPath != "" {
		err = runOffline(ctx, cfg, opts, os.Stdout, logger)
	} else {
		err = runOnline(ctx, cfg, opts, os.Stdout, logger)
	}
	if err != nil {
		logger.Fatal("Reconciliation run failed", zap.Error(err))
	}
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	date := fs.String("date", "", "cycle date YYYY-MM-DD (default: yesterday, UTC)")
	pg := fs.String("pg", "", "offline: JSON file of PG transactions")
	bank := fs.String("bank", "", "offline: JSON file of bank records")
	settle := fs.Bool("settle", false, "also run settlement for the cycle date")
	detail := fs.Bool("detail", false, "offline: include every match and exception")
	timeout := fs.Duration("timeout", 10*time.Minute, "overall run timeout")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{
		pgPath:   *pg,
		bankPath: *bank,
		settle:   *settle,
		detail:   *detail,
		timeout:  *timeout,
		date:     timeutil.AddDays(timeutil.Now(), -1),
	}
	if (opts.pgPath == "") != (opts.bankPath == "") {
		return opts, fmt.Errorf("-pg and -bank must be given together")
	}
	if *date != "" {
		d, err := timeutil.ParseDate(*date)
		if err != nil {
			return opts, fmt.Errorf("invalid -date: %w", err)
		}
		opts.date = d
	}
	return opts, nil
}

func runOffline(ctx context.Context, cfg *config.Config, opts options, out io.Writer, logger *zap.Logger) error {
	feed, err := memory.LoadFeed(opts.pgPath, opts.bankPath)
	if err != nil {
		return err
	}
	pgTxns, err := feed.FetchPgTransactions(ctx, opts.date)
	if err != nil {
		return err
	}
	bankRecords, err := feed.FetchBankRecords(ctx, opts.date)
	if err != nil {
		return err
	}

	engine := reconciliation.NewEngine(app.Thresholds(cfg.Reconciliation), cfg.Reconciliation.Workers, nil, logger)
	result, err := engine.Reconcile(ctx, opts.date, pgTxns, bankRecords)
	if err != nil {
		return err
	}

	report := OfflineReport{Summary: result.Summary()}
	if opts.detail {
		report.Result = result
	}
	if opts.settle {
		if cfg.Settlement.TiersFile == "" {
			return fmt.Errorf("offline settlement needs TIERS_FILE")
		}
		tiers, err := config.LoadTiers(cfg.Settlement.TiersFile)
		if err != nil {
			return err
		}
		report.Settlements, report.Failures = settleOffline(result, pgTxns, tiers, app.Rates(cfg.Settlement), opts.date)
	}

	return writeJSON(out, report)
}

// settleOffline settles the transactions the run reconciled cleanly, one
// batch per merchant
func settleOffline(result *reconciliation.Result, pgTxns []domain.PgTransaction, tiers []domain.CommissionTier, rates settlement.Rates, date time.Time) ([]*settlement.Computation, map[string]string) {
	clean := make(map[string]bool, len(result.Matches))
	for i := range result.Matches {
		if result.Matches[i].IsClean() {
			clean[result.Matches[i].PgTransactionID] = true
		}
	}

	var txns []domain.ReconciledTxn
	merchants := make(map[string]bool)
	for i := range pgTxns {
		t := &pgTxns[i]
		if !clean[t.TransactionID] {
			continue
		}
		txns = append(txns, domain.ReconciledTxn{
			TransactionDate: t.TransactionDate,
			TransactionID:   t.TransactionID,
			MerchantID:      t.MerchantID,
			Status:          domain.TransactionStatusReconciled,
			Amount:          t.Amount,
		})
		merchants[t.MerchantID] = true
	}

	ids := make([]string, 0, len(merchants))
	for id := range merchants {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	calc := settlement.NewCalculator(tiers, rates)
	var computed []*settlement.Computation
	failures := make(map[string]string)
	for _, id := range ids {
		c, err := calc.ComputeSettlement(txns, id, date)
		if err != nil {
			failures[id] = err.Error()
			continue
		}
		computed = append(computed, c)
	}
	if len(failures) == 0 {
		failures = nil
	}
	return computed, failures
}

func runOnline(ctx context.Context, cfg *config.Config, opts options, out io.Writer, logger *zap.Logger) error {
	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	var report OnlineReport
	report.Reconciliation, err = deps.Recon.RunCycle(ctx, opts.date)
	if err != nil {
		return err
	}
	if opts.settle {
		report.Settlement, err = deps.Settlement.RunSettlement(ctx, opts.date)
		if err != nil {
			return err
		}
	}
	return writeJSON(out, report)
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
