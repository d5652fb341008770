package tx

import (
	"context"
	"database/sql"
	"fmt"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner executes a function inside a single SQL transaction carried through
// context. A loan and its dependent rows are always mutated through one Runner
// call so partial cascades are never visible to readers.
type Runner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner is the database-backed Runner.
type SQLRunner struct {
	db *sql.DB
}

func NewRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

// WithinTx begins a transaction, stores it in context, runs fn, and commits.
// Any error from fn rolls the transaction back. When ctx already carries a
// transaction, fn joins it and the outer owner commits.
func (r *SQLRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// NopRunner satisfies Runner without a database. Memory stores are atomic per
// call, so fn simply runs with the given context.
type NopRunner struct{}

func (NopRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
