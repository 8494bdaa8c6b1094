package memory

import (
	"context"
	"sync"
	"time"

	dErrors "servio/pkg/domain-errors"
)

// defaultTxTimeout is the maximum duration for an in-memory transaction.
const defaultTxTimeout = 5 * time.Second

// Tx serializes merges over the DB with a coarse lock and rolls back to a
// snapshot when fn fails, matching the Postgres runner's all-or-nothing
// contract closely enough for unit tests to exercise rollback behavior.
type Tx struct {
	mu      sync.Mutex
	db      *DB
	timeout time.Duration
}

func NewTx(db *DB) *Tx {
	return &Tx{db: db}
}

func (t *Tx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Check if context is already cancelled
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.db.mu.Lock()
	identities, relations := t.db.snapshot()
	t.db.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.db.mu.Lock()
		t.db.restore(identities, relations)
		t.db.mu.Unlock()
		return err
	}
	return nil
}
