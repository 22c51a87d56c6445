package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// txContextKey is the context key under which an open pgx.Tx travels
type ctxKey string

const txContextKey ctxKey = "pg_tx"

// queryer is the query surface shared by pgxpool.Pool and pgx.Tx, letting
// repository methods run unchanged inside and outside transactions.
type queryer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithinTx runs fn inside a database transaction carried in the context.
// A caller already inside a transaction is joined instead of nested, so
// services can compose each other's units of work.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	ctx = context.WithValue(ctx, txContextKey, tx)
	if err := fn(ctx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("rollback failed: %v (after: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func txFromContext(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txContextKey).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// getQueryer returns the context transaction when one is open, otherwise the pool
func (db *DB) getQueryer(ctx context.Context) queryer {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db.Pool
}
