package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	dErrors "doctrack/pkg/domain-errors"
	txcontext "doctrack/pkg/platform/tx"
)

// DefaultTxTimeout bounds a unit of work when the caller set no deadline.
const DefaultTxTimeout = 5 * time.Second

// TxRunner runs a function inside a database transaction bound to the context.
// Stores pick the transaction up through pkg/platform/tx.
type TxRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewTxRunner(db *sql.DB, timeout time.Duration) *TxRunner {
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}
	return &TxRunner{db: db, timeout: timeout}
}

// RunInTx commits when fn returns nil and rolls back otherwise. The lock key is
// ignored; row locks taken inside fn provide per-document exclusion.
func (t *TxRunner) RunInTx(ctx context.Context, _ int64, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapTxErr(ctx, err, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapTxErr(ctx, err, "commit transaction")
	}
	return nil
}

func wrapTxErr(ctx context.Context, err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg+": deadline exceeded")
	}
	return dErrors.Wrap(err, dErrors.CodeStorage, msg)
}
