package merge

import "context"

// Tx provides the transactional boundary for a merge. Implementations wrap a
// database transaction (carrying it in the context for tx-aware stores) or,
// in-memory, a coarse lock with snapshot rollback. fn runs exactly once; any
// error from fn rolls back everything fn's stores did.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
