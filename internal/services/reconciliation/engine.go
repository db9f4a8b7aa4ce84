package reconciliation

import (
	"context"
	"runtime"
	"time"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/pkg/timeutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const exactMatchScore = 100

// Result is the complete output of one cycle-date reconciliation
type Result struct {
	CycleDate     time.Time              `json:"cycle_date"`
	Matches       []domain.MatchResult   `json:"matches"`
	Exceptions    []domain.Exception     `json:"exceptions"`
	UnmatchedPg   []domain.PgTransaction `json:"unmatched_pg"`
	UnmatchedBank []domain.BankRecord    `json:"unmatched_bank"`
	Rejected      []domain.RecordError   `json:"rejected"`
}

// Summary is the count view of a Result
type Summary struct {
	CycleDate     string                         `json:"cycle_date"`
	ByReason      map[domain.ExceptionReason]int `json:"by_reason"`
	Matched       int                            `json:"matched"`
	Exceptions    int                            `json:"exceptions"`
	UnmatchedPg   int                            `json:"unmatched_pg"`
	UnmatchedBank int                            `json:"unmatched_bank"`
	Rejected      int                            `json:"rejected"`
}

// Summary counts the result
func (r *Result) Summary() Summary {
	s := Summary{
		CycleDate:     domain.CycleKey(r.CycleDate),
		ByReason:      make(map[domain.ExceptionReason]int),
		Exceptions:    len(r.Exceptions),
		UnmatchedPg:   len(r.UnmatchedPg),
		UnmatchedBank: len(r.UnmatchedBank),
		Rejected:      len(r.Rejected),
	}
	for i := range r.Matches {
		if r.Matches[i].IsClean() {
			s.Matched++
		}
	}
	for i := range r.Exceptions {
		s.ByReason[r.Exceptions[i].Reason]++
	}
	return s
}

// Engine pairs PG transactions with bank records and classifies every
// pair. It holds no state between runs.
type Engine struct {
	clock      timeutil.Clock
	logger     *zap.Logger
	thresholds Thresholds
	workers    int
}

// NewEngine creates a matching engine. workers <= 0 uses GOMAXPROCS.
func NewEngine(thresholds Thresholds, workers int, clock timeutil.Clock, logger *zap.Logger) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if clock == nil {
		clock = timeutil.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		clock:      clock,
		logger:     logger,
		thresholds: thresholds,
		workers:    workers,
	}
}

// Reconcile runs one cycle date over in-memory feeds. Every accepted record
// ends up in exactly one of Matches, Exceptions or the unmatched lists
// (a FUZZY match and its exception describe the same pair).
func (e *Engine) Reconcile(ctx context.Context, cycleDate time.Time, pgTxns []domain.PgTransaction, bankRecords []domain.BankRecord) (*Result, error) {
	cycleDate = timeutil.StartOfDay(cycleDate)
	now := e.clock()

	pgSorted := append([]domain.PgTransaction(nil), pgTxns...)
	bankSorted := append([]domain.BankRecord(nil), bankRecords...)
	sortPg(pgSorted)
	sortBank(bankSorted)

	pgs, pgRejected := validatePg(pgSorted)
	banks, bankRejected := validateBank(bankSorted)

	result := &Result{
		CycleDate: cycleDate,
		Rejected:  append(pgRejected, bankRejected...),
	}

	if total := len(pgTxns) + len(bankRecords); total > 0 && len(pgs)+len(banks) == 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeFeedCorrupt, "every record in both feeds was rejected").
			WithDetail("cycle_date", domain.CycleKey(cycleDate)).
			WithDetail("rejected", total)
	}

	builder := exceptionBuilder{cycleDate: cycleDate, now: now}

	// Duplicate detection runs to completion before any pairing so the
	// survivor of each UTR group is fixed.
	pgDup := duplicatePg(pgs)
	bankDup := duplicateBank(banks)
	for i := range pgs {
		if pgDup[i] {
			result.Exceptions = append(result.Exceptions, builder.forPg(&pgs[i], nil, Outcome{
				Kind:        OutcomeException,
				Reason:      domain.ReasonDuplicatePGEntry,
				AmountDelta: pgs[i].Amount,
			}))
		}
	}
	for i := range banks {
		if bankDup[i] {
			result.Exceptions = append(result.Exceptions, builder.forBank(&banks[i], Outcome{
				Kind:        OutcomeException,
				Reason:      domain.ReasonDuplicateBankEntry,
				AmountDelta: -banks[i].Amount,
			}))
		}
	}

	candidates, claimed := assignCandidates(pgs, pgDup, banks, bankDup)

	outcomes := make([]Outcome, len(pgs))
	cctx := ClassifyContext{CycleDate: cycleDate, Thresholds: e.thresholds}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range pgs {
		if pgDup[i] {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var bank *domain.BankRecord
			if c := candidates[i]; c >= 0 {
				bank = &banks[c]
			}
			outcomes[i] = Classify(&pgs[i], bank, cctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range pgs {
		if pgDup[i] {
			continue
		}
		pg := &pgs[i]
		var bank *domain.BankRecord
		if c := candidates[i]; c >= 0 {
			bank = &banks[c]
		}

		out := outcomes[i]
		switch out.Kind {
		case OutcomeMatched:
			result.Matches = append(result.Matches, domain.MatchResult{
				CycleDate:       cycleDate,
				ID:              domain.MatchID(cycleDate, pg.TransactionID, bank.BankRef),
				PgTransactionID: pg.TransactionID,
				BankRef:         bank.BankRef,
				Type:            domain.MatchTypeExact,
				Score:           exactMatchScore,
			})
		case OutcomeException:
			exc := builder.forPg(pg, bank, out)
			result.Exceptions = append(result.Exceptions, exc)
			if bank != nil {
				result.Matches = append(result.Matches, domain.MatchResult{
					CycleDate:        cycleDate,
					ID:               domain.MatchID(cycleDate, pg.TransactionID, bank.BankRef),
					PgTransactionID:  pg.TransactionID,
					BankRef:          bank.BankRef,
					Type:             domain.MatchTypeFuzzy,
					Reason:           out.Reason,
					ExceptionID:      exc.ID,
					Score:            out.Reason.Meta().Score,
					AmountDifference: out.AmountDelta,
				})
			}
		default:
			result.UnmatchedPg = append(result.UnmatchedPg, *pg)
		}
	}

	for i := range banks {
		if bankDup[i] || claimed[i] {
			continue
		}
		out := ClassifyBankOnly(&banks[i], cctx)
		if out.Kind == OutcomeException {
			result.Exceptions = append(result.Exceptions, builder.forBank(&banks[i], out))
			continue
		}
		result.UnmatchedBank = append(result.UnmatchedBank, banks[i])
	}

	s := result.Summary()
	e.logger.Debug("Reconciled cycle in memory",
		zap.String("cycle_date", s.CycleDate),
		zap.Int("matched", s.Matched),
		zap.Int("exceptions", s.Exceptions),
		zap.Int("unmatched_pg", s.UnmatchedPg),
		zap.Int("unmatched_bank", s.UnmatchedBank),
		zap.Int("rejected", s.Rejected),
	)

	return result, nil
}

// duplicatePg flags every PG transaction sharing a valid UTR with an earlier
// one in canonical order. Records with an invalid UTR are never grouped.
func duplicatePg(pgs []domain.PgTransaction) []bool {
	dup := make([]bool, len(pgs))
	seen := make(map[string]struct{}, len(pgs))
	for i := range pgs {
		if !ValidUTR(pgs[i].UTR) {
			continue
		}
		key := NormalizeUTR(pgs[i].UTR)
		if _, ok := seen[key]; ok {
			dup[i] = true
			continue
		}
		seen[key] = struct{}{}
	}
	return dup
}

func duplicateBank(banks []domain.BankRecord) []bool {
	dup := make([]bool, len(banks))
	seen := make(map[string]struct{}, len(banks))
	for i := range banks {
		if !ValidUTR(banks[i].UTR) {
			continue
		}
		key := NormalizeUTR(banks[i].UTR)
		if _, ok := seen[key]; ok {
			dup[i] = true
			continue
		}
		seen[key] = struct{}{}
	}
	return dup
}

// assignCandidates picks at most one bank record per PG transaction. UTR
// matches are resolved for every transaction before the RRN fallback runs,
// so the fallback only sees bank records no transaction claimed by UTR.
// Within a pass a bank record goes to the first transaction in canonical order.
func assignCandidates(pgs []domain.PgTransaction, pgDup []bool, banks []domain.BankRecord, bankDup []bool) ([]int, []bool) {
	byUTR := make(map[string]int, len(banks))
	byRef := make(map[string]int, len(banks))
	for i := range banks {
		if bankDup[i] {
			continue
		}
		if ValidUTR(banks[i].UTR) {
			byUTR[NormalizeUTR(banks[i].UTR)] = i
		}
		byRef[banks[i].BankRef] = i
	}

	candidates := make([]int, len(pgs))
	claimed := make([]bool, len(banks))
	for i := range pgs {
		candidates[i] = -1
		if pgDup[i] || !ValidUTR(pgs[i].UTR) {
			continue
		}
		if c, ok := byUTR[NormalizeUTR(pgs[i].UTR)]; ok && !claimed[c] {
			candidates[i] = c
			claimed[c] = true
		}
	}

	for i := range pgs {
		if candidates[i] != -1 || pgDup[i] || !ValidUTR(pgs[i].UTR) || pgs[i].RRN == "" {
			continue
		}
		if c, ok := byRef[pgs[i].RRN]; ok && !claimed[c] {
			candidates[i] = c
			claimed[c] = true
		}
	}
	return candidates, claimed
}

type exceptionBuilder struct {
	cycleDate time.Time
	now       time.Time
}

func (b exceptionBuilder) forPg(pg *domain.PgTransaction, bank *domain.BankRecord, out Outcome) domain.Exception {
	pgID := pg.TransactionID
	bankRef := ""
	exc := domain.Exception{
		PgTransactionID: &pgID,
		MerchantID:      pg.MerchantID,
	}
	if bank != nil {
		bankRef = bank.BankRef
		exc.BankReferenceID = &bankRef
	}
	exc.ID = domain.ExceptionID(b.cycleDate, out.Reason, pgID, bankRef)
	b.fill(&exc, out)
	return exc
}

func (b exceptionBuilder) forBank(bank *domain.BankRecord, out Outcome) domain.Exception {
	bankRef := bank.BankRef
	exc := domain.Exception{
		ID:              domain.ExceptionID(b.cycleDate, out.Reason, "", bankRef),
		BankReferenceID: &bankRef,
	}
	b.fill(&exc, out)
	return exc
}

func (b exceptionBuilder) fill(exc *domain.Exception, out Outcome) {
	meta := out.Reason.Meta()
	exc.CycleDate = b.cycleDate
	exc.Reason = out.Reason
	exc.Severity = meta.Severity
	exc.Status = domain.ExceptionStatusOpen
	exc.AmountDelta = out.AmountDelta
	exc.VariancePercent = out.VariancePercent
	exc.SLADueAt = b.cycleDate.Add(meta.SLA)
	exc.CreatedAt = b.now
	exc.UpdatedAt = b.now
}
