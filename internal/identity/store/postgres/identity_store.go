// Package postgres persists identities and their owned relations in
// PostgreSQL via database/sql. Stores honor a transaction carried in the
// context (pkg/platform/tx); the merge coordinator always supplies one.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"servio/internal/identity/models"
	id "servio/pkg/domain"
	"servio/pkg/platform/sentinel"
	txcontext "servio/pkg/platform/tx"
)

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execer(ctx context.Context, db *sql.DB) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

// IdentityStore persists identity rows.
type IdentityStore struct {
	db *sql.DB
}

func NewIdentityStore(db *sql.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

// FindForUpdate loads an identity and locks its row for the lifetime of the
// transaction in the context. Concurrent merges touching the same identity
// block here until the first commits or rolls back.
func (s *IdentityStore) FindForUpdate(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	row := execer(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, created_at, email, phone, whatsapp, tax_id, name, avatar_url
		FROM identities
		WHERE id = $1
		FOR UPDATE`,
		identityID.String(),
	)

	var (
		rec   models.Identity
		rawID string
	)
	err := row.Scan(&rawID, &rec.CreatedAt, &rec.Email, &rec.Phone, &rec.WhatsApp, &rec.TaxID, &rec.Name, &rec.AvatarURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find identity for update: %w", err)
	}
	parsed, err := id.ParseIdentityID(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan identity id: %w", err)
	}
	rec.ID = parsed
	return &rec, nil
}

// ApplyPatch updates only the fields the patch sets. The reconciler computes
// fill-if-missing patches, so nil means "keep".
func (s *IdentityStore) ApplyPatch(ctx context.Context, identityID id.IdentityID, patch models.IdentityPatch) error {
	sets := make([]string, 0, 5)
	args := []any{identityID.String()}
	add := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("phone", patch.Phone)
	add("whatsapp", patch.WhatsApp)
	add("tax_id", patch.TaxID)
	add("name", patch.Name)
	add("avatar_url", patch.AvatarURL)
	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf(`UPDATE identities SET %s WHERE id = $1`, strings.Join(sets, ", "))
	res, err := execer(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("patch identity: %w", translateConstraint(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("patch identity rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Delete removes an identity row. Callers must have migrated all owned
// relations first; foreign keys reject anything left behind.
func (s *IdentityStore) Delete(ctx context.Context, identityID id.IdentityID) error {
	res, err := execer(ctx, s.db).ExecContext(ctx,
		`DELETE FROM identities WHERE id = $1`, identityID.String())
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete identity rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Create inserts a new identity. Used by tests and seed tooling.
func (s *IdentityStore) Create(ctx context.Context, rec models.Identity) error {
	_, err := execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO identities (id, created_at, email, phone, whatsapp, tax_id, name, avatar_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID.String(), rec.CreatedAt, rec.Email, rec.Phone, rec.WhatsApp, rec.TaxID, rec.Name, rec.AvatarURL,
	)
	if err != nil {
		return fmt.Errorf("create identity: %w", translateConstraint(err))
	}
	return nil
}
