package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of pgx shared by pools and transactions
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

type txState struct {
	tx          pgx.Tx
	afterCommit []func()
}

// PostgresTransactor implements Transactor on a pgx pool
type PostgresTransactor struct {
	pool *pgxpool.Pool
}

// NewPostgresTransactor creates a new PostgresTransactor
func NewPostgresTransactor(pool *pgxpool.Pool) *PostgresTransactor {
	return &PostgresTransactor{pool: pool}
}

// WithTx runs fn in a read-committed transaction, or in the caller's one if ctx already carries it
func (t *PostgresTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if stateFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	state := &txState{tx: tx}
	if err := fn(context.WithValue(ctx, txKey{}, state)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, hook := range state.afterCommit {
		hook()
	}
	return nil
}

// AfterCommit defers fn until the transaction carried by ctx commits. Without
// a transaction fn runs immediately. Hooks are dropped on rollback.
func AfterCommit(ctx context.Context, fn func()) {
	if state := stateFromContext(ctx); state != nil {
		state.afterCommit = append(state.afterCommit, fn)
		return
	}
	fn()
}

func stateFromContext(ctx context.Context) *txState {
	state, _ := ctx.Value(txKey{}).(*txState)
	return state
}

// conn returns the transaction carried by ctx, or the pool
func conn(ctx context.Context, pool *pgxpool.Pool) querier {
	if state := stateFromContext(ctx); state != nil {
		return state.tx
	}
	return pool
}

func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// validID filters out ids that cannot exist so lookups by them read as "not found"
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
