package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sakashimaa/go-marketplace/pkg/mylogger"
)

// Transactor runs fn inside a single atomicity boundary. Stores called with
// the context passed to fn join that boundary; the whole unit commits or
// rolls back together.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

func InjectTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

type PgxTransactor struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPgxTransactor(pool *pgxpool.Pool, logger *zap.Logger) *PgxTransactor {
	return &PgxTransactor{pool: pool, logger: logger}
}

func (t *PgxTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// Nested calls join the surrounding transaction.
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, t.logger, "Failed to begin transaction", zap.Error(err))
		return err
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(cleanupCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(cleanupCtx, t.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	if err := fn(InjectTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, t.logger, "Failed to commit transaction", zap.Error(err))
		return err
	}

	return nil
}
