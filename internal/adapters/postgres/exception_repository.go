package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/settlement-recon/internal/domain"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
)

// ExceptionRepository implements ports.ExceptionRepository
type ExceptionRepository struct {
	db *DBExecutor
}

// NewExceptionRepository creates a new exception repository
func NewExceptionRepository(db *DBExecutor) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

const exceptionColumns = `id, cycle_date, reason, severity, status, pg_transaction_id, bank_ref, merchant_id,
	amount_delta, variance_percent, assigned_to, resolution, snoozed_until, sla_due_at, created_at, updated_at`

// CreateExceptions inserts exceptions, skipping ids that already exist
func (r *ExceptionRepository) CreateExceptions(ctx context.Context, tx ports.DBTX, exceptions []domain.Exception) (int, error) {
	q := r.db.conn(tx)
	created := 0
	for i := range exceptions {
		e := &exceptions[i]
		variance, err := decimalToNumeric(e.VariancePercent)
		if err != nil {
			return created, err
		}
		tag, err := q.Exec(ctx, `
			INSERT INTO reconciliation_exceptions (`+exceptionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
			ON CONFLICT (id) DO NOTHING`,
			e.ID, e.CycleDate, string(e.Reason), string(e.Severity), string(e.Status),
			e.PgTransactionID, e.BankReferenceID, e.MerchantID, e.AmountDelta, variance,
			e.AssignedTo, e.Resolution, e.SnoozedUntil, e.SLADueAt, e.CreatedAt)
		if err != nil {
			return created, fmt.Errorf("insert exception %s: %w", e.ID, err)
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}

// GetByID returns one exception
func (r *ExceptionRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Exception, error) {
	row := r.db.conn(db).QueryRow(ctx, `SELECT `+exceptionColumns+` FROM reconciliation_exceptions WHERE id = $1`, id)
	return scanExceptionRow(row, id)
}

// GetForUpdate locks the exception row for the enclosing transaction
func (r *ExceptionRepository) GetForUpdate(ctx context.Context, tx ports.DBTX, id string) (*domain.Exception, error) {
	row := r.db.conn(tx).QueryRow(ctx, `SELECT `+exceptionColumns+` FROM reconciliation_exceptions WHERE id = $1 FOR UPDATE`, id)
	return scanExceptionRow(row, id)
}

// Update writes the workflow fields of an exception
func (r *ExceptionRepository) Update(ctx context.Context, tx ports.DBTX, e *domain.Exception) error {
	_, err := r.db.conn(tx).Exec(ctx, `
		UPDATE reconciliation_exceptions
		SET status = $2, assigned_to = $3, resolution = $4, snoozed_until = $5, updated_at = $6
		WHERE id = $1`,
		e.ID, string(e.Status), e.AssignedTo, e.Resolution, e.SnoozedUntil, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update exception: %w", err)
	}
	return nil
}

// AppendEvent inserts an audit row
func (r *ExceptionRepository) AppendEvent(ctx context.Context, tx ports.DBTX, ev *domain.ExceptionEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	_, err := r.db.conn(tx).Exec(ctx, `
		INSERT INTO exception_actions (id, exception_id, action, from_status, to_status, actor, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.ExceptionID, string(ev.Action), string(ev.FromStatus), string(ev.ToStatus), ev.Actor, ev.Note, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert exception event: %w", err)
	}
	return nil
}

// ListEvents returns the audit trail oldest first
func (r *ExceptionRepository) ListEvents(ctx context.Context, db ports.DBTX, exceptionID string) ([]domain.ExceptionEvent, error) {
	rows, err := r.db.conn(db).Query(ctx, `
		SELECT id, exception_id, action, from_status, to_status, actor, note, created_at
		FROM exception_actions
		WHERE exception_id = $1
		ORDER BY created_at, id`,
		exceptionID)
	if err != nil {
		return nil, fmt.Errorf("query exception events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ExceptionEvent, error) {
		var ev domain.ExceptionEvent
		var action, from, to string
		err := row.Scan(&ev.ID, &ev.ExceptionID, &action, &from, &to, &ev.Actor, &ev.Note, &ev.CreatedAt)
		ev.Action = domain.ExceptionAction(action)
		ev.FromStatus = domain.ExceptionStatus(from)
		ev.ToStatus = domain.ExceptionStatus(to)
		ev.CreatedAt = ev.CreatedAt.UTC()
		return ev, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan exception events: %w", err)
	}
	return events, nil
}

// List returns exceptions matching filter, newest cycle first
func (r *ExceptionRepository) List(ctx context.Context, db ports.DBTX, filter ports.ExceptionFilter) ([]domain.Exception, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.CycleDate != nil {
		add("cycle_date = $%d", *filter.CycleDate)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Reason != "" {
		add("reason = $%d", string(filter.Reason))
	}
	if filter.MerchantID != "" {
		add("merchant_id = $%d", filter.MerchantID)
	}

	query := `SELECT ` + exceptionColumns + ` FROM reconciliation_exceptions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY cycle_date DESC, sla_due_at, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.conn(db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exceptions: %w", err)
	}

	excs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Exception, error) {
		e, err := scanException(row)
		if err != nil {
			return domain.Exception{}, err
		}
		return *e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan exceptions: %w", err)
	}
	return excs, nil
}

// ListSnoozeDue returns ids of snoozed exceptions whose snooze expired at now
func (r *ExceptionRepository) ListSnoozeDue(ctx context.Context, db ports.DBTX, now time.Time) ([]string, error) {
	rows, err := r.db.conn(db).Query(ctx, `
		SELECT id FROM reconciliation_exceptions
		WHERE status = 'SNOOZED' AND snoozed_until <= $1
		ORDER BY snoozed_until, id`,
		now)
	if err != nil {
		return nil, fmt.Errorf("query snooze due: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan snooze due: %w", err)
	}
	return ids, nil
}

func scanExceptionRow(row pgx.Row, id string) (*domain.Exception, error) {
	e, err := scanException(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("exception %s: %w", id, domain.ErrExceptionNotFound)
		}
		return nil, fmt.Errorf("scan exception: %w", err)
	}
	return e, nil
}

func scanException(row pgx.Row) (*domain.Exception, error) {
	var (
		e                        domain.Exception
		reason, severity, status string
		variance                 pgtype.Numeric
		snoozed                  pgtype.Timestamptz
	)
	if err := row.Scan(&e.ID, &e.CycleDate, &reason, &severity, &status, &e.PgTransactionID, &e.BankReferenceID,
		&e.MerchantID, &e.AmountDelta, &variance, &e.AssignedTo, &e.Resolution, &snoozed, &e.SLADueAt,
		&e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}

	v, err := pgNumericToDecimal(variance)
	if err != nil {
		return nil, err
	}
	e.VariancePercent = v
	e.Reason = domain.ExceptionReason(reason)
	e.Severity = domain.Severity(severity)
	e.Status = domain.ExceptionStatus(status)
	e.SnoozedUntil = timestampPtr(snoozed)
	e.CycleDate = e.CycleDate.UTC()
	e.SLADueAt = e.SLADueAt.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}

var _ ports.ExceptionRepository = (*ExceptionRepository)(nil)
