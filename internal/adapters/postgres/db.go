package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kevin07696/settlement-recon/internal/domain/ports"
)

// DBExecutor owns the pool shared by the repositories and implements
// ports.TransactionManager.
//
// Repository methods take a ports.DBTX: pass the pgx.Tx of the enclosing
// unit of work (cycle persistence, batch creation, exception actions) or nil
// to run the statement directly on the pool.
type DBExecutor struct {
	pool *pgxpool.Pool
}

// NewDBExecutor wraps pool
func NewDBExecutor(pool *pgxpool.Pool) *DBExecutor {
	return &DBExecutor{pool: pool}
}

func (db *DBExecutor) conn(q ports.DBTX) ports.DBTX {
	if q != nil {
		return q
	}
	return db.pool
}

// WithTransaction runs fn in a read-committed transaction. A reconciliation
// cycle or settlement batch is applied entirely or not at all: any error or
// panic from fn rolls back every write made through tx.
func (db *DBExecutor) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return db.run(ctx, pgx.TxOptions{}, "transaction", fn)
}

// WithReadOnlyTransaction runs fn in a repeatable-read, read-only
// transaction. Pipeline snapshots read counts from several tables and need
// them to come from one point in time, so a settlement batch moving status
// mid-read cannot be counted twice. Writes through tx fail.
func (db *DBExecutor) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return db.run(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, "read-only transaction", fn)
}

func (db *DBExecutor) run(ctx context.Context, opts pgx.TxOptions, kind string, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin %s: %w", kind, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback %s failed: %v (original error: %w)", kind, rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", kind, err)
	}
	return nil
}

var _ ports.TransactionManager = (*DBExecutor)(nil)
