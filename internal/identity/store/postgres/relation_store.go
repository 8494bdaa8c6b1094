package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/lib/pq"

	id "servio/pkg/domain"
	"servio/pkg/platform/sentinel"
)

// identifierPattern guards the table/column names interpolated into SQL.
// They come from the wiring-time catalog, never from request input.
var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// RelationTable is a generic store for one identity-owned relation. One
// instance per catalog entry; two entries may share a table with different
// owner columns (orders by client and by provider).
type RelationTable struct {
	db       *sql.DB
	table    string
	ownerCol string
	keyCol   string // empty for non-composite relations
}

// NewRelationTable builds a store for a relation addressed only by owner.
func NewRelationTable(db *sql.DB, table, ownerCol string) *RelationTable {
	mustIdentifier(table)
	mustIdentifier(ownerCol)
	return &RelationTable{db: db, table: table, ownerCol: ownerCol}
}

// NewKeyedRelationTable builds a store for a relation unique on (owner, key).
func NewKeyedRelationTable(db *sql.DB, table, ownerCol, keyCol string) *RelationTable {
	mustIdentifier(table)
	mustIdentifier(ownerCol)
	mustIdentifier(keyCol)
	return &RelationTable{db: db, table: table, ownerCol: ownerCol, keyCol: keyCol}
}

func mustIdentifier(name string) {
	if !identifierPattern.MatchString(name) {
		panic(fmt.Sprintf("invalid SQL identifier %q", name))
	}
}

func (t *RelationTable) CountOwned(ctx context.Context, owner id.IdentityID) (int, error) {
	var n int
	err := execer(ctx, t.db).QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s = $1`, t.table, t.ownerCol),
		owner.String(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", t.table, err)
	}
	return n, nil
}

func (t *RelationTable) RepointAll(ctx context.Context, from, to id.IdentityID) (int, error) {
	res, err := execer(ctx, t.db).ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE %s = $2`, t.table, t.ownerCol, t.ownerCol),
		to.String(), from.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("repoint %s: %w", t.table, translateConstraint(err))
	}
	return rowCount(res)
}

func (t *RelationTable) DeleteOwned(ctx context.Context, owner id.IdentityID) (int, error) {
	res, err := execer(ctx, t.db).ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, t.table, t.ownerCol),
		owner.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete owned %s: %w", t.table, err)
	}
	return rowCount(res)
}

func (t *RelationTable) OwnedKeys(ctx context.Context, owner id.IdentityID) ([]string, error) {
	if t.keyCol == "" {
		return nil, fmt.Errorf("relation table %s has no composite key column", t.table)
	}
	rows, err := execer(ctx, t.db).QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s`, t.keyCol, t.table, t.ownerCol, t.keyCol),
		owner.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("keys %s: %w", t.table, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key %s: %w", t.table, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (t *RelationTable) RepointKeys(ctx context.Context, from, to id.IdentityID, keys []string) (int, error) {
	if t.keyCol == "" {
		return 0, fmt.Errorf("relation table %s has no composite key column", t.table)
	}
	res, err := execer(ctx, t.db).ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE %s = $2 AND %s = ANY($3)`,
			t.table, t.ownerCol, t.ownerCol, t.keyCol),
		to.String(), from.String(), pq.Array(keys),
	)
	if err != nil {
		return 0, fmt.Errorf("repoint keys %s: %w", t.table, translateConstraint(err))
	}
	return rowCount(res)
}

func (t *RelationTable) DeleteKeys(ctx context.Context, owner id.IdentityID, keys []string) (int, error) {
	if t.keyCol == "" {
		return 0, fmt.Errorf("relation table %s has no composite key column", t.table)
	}
	res, err := execer(ctx, t.db).ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = ANY($2)`, t.table, t.ownerCol, t.keyCol),
		owner.String(), pq.Array(keys),
	)
	if err != nil {
		return 0, fmt.Errorf("delete keys %s: %w", t.table, err)
	}
	return rowCount(res)
}

func rowCount(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// translateConstraint maps Postgres unique violations to the conflict
// sentinel, keeping the constraint name so operators can see which key
// collided. Everything else passes through untouched.
func translateConstraint(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: constraint %s: %s", sentinel.ErrConflict, pqErr.Constraint, pqErr.Detail)
	}
	return err
}
