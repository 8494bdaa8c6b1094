package memory

import (
	"context"

	"servio/internal/identity/models"
	id "servio/pkg/domain"
	"servio/pkg/platform/sentinel"
)

// IdentityStore implements the coordinator's identity-row port over a DB.
type IdentityStore struct {
	db *DB
}

func NewIdentityStore(db *DB) *IdentityStore {
	return &IdentityStore{db: db}
}

// FindForUpdate returns a copy of the identity. The memory backend has no row
// locks; RunInTx's coarse lock provides the equivalent isolation.
func (s *IdentityStore) FindForUpdate(_ context.Context, identityID id.IdentityID) (*models.Identity, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rec, ok := s.db.identities[identityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := rec
	return &out, nil
}

func (s *IdentityStore) ApplyPatch(_ context.Context, identityID id.IdentityID, patch models.IdentityPatch) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rec, ok := s.db.identities[identityID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if patch.Phone != nil {
		rec.Phone = patch.Phone
	}
	if patch.WhatsApp != nil {
		rec.WhatsApp = patch.WhatsApp
	}
	if patch.TaxID != nil {
		rec.TaxID = patch.TaxID
	}
	if patch.Name != nil {
		rec.Name = patch.Name
	}
	if patch.AvatarURL != nil {
		rec.AvatarURL = patch.AvatarURL
	}
	s.db.identities[identityID] = rec
	return nil
}

func (s *IdentityStore) Delete(_ context.Context, identityID id.IdentityID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.identities[identityID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.db.identities, identityID)
	return nil
}
