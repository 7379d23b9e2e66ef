package sqlutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// maxTxAttempts bounds retries of transactions Postgres aborted to break a
// deadlock or a serialization conflict.
const maxTxAttempts = 3

// Run binds queries to a transaction and commits when fn succeeds. fn may run
// more than once, so it must not have side effects outside the transaction.
func Run[T any](
	ctx context.Context,
	db *sql.DB,
	newQueries func(DBTX) *T,
	fn func(q *T) error,
) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = runOnce(ctx, db, newQueries, fn)
		if err == nil || !retryable(err) {
			return err
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", maxTxAttempts, err)
}

func runOnce[T any](ctx context.Context, db *sql.DB, newQueries func(DBTX) *T, fn func(q *T) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(newQueries(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func retryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return true
	}
	return false
}
