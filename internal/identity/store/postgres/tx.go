package postgres

import (
	"context"
	"database/sql"
	"time"

	dErrors "servio/pkg/domain-errors"
	txcontext "servio/pkg/platform/tx"
)

const defaultMergeTxTimeout = 10 * time.Second

// Tx runs a merge inside one database transaction. The *sql.Tx rides the
// context so every store call inside fn joins it; no global handle is
// consulted anywhere.
type Tx struct {
	db      *sql.DB
	timeout time.Duration
}

func NewTx(db *sql.DB) *Tx {
	return &Tx{db: db}
}

func (t *Tx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultMergeTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
