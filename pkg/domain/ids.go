// Package domain holds typed identifiers shared across services and stores.
//
// IDs are domain primitives: parsing enforces validity at the boundary so the
// rest of the codebase can pass them around without re-validating.
package domain

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// IdentityID identifies a canonical account record.
type IdentityID uuid.UUID

// NewIdentityID returns a fresh random identity ID.
func NewIdentityID() IdentityID {
	return IdentityID(uuid.New())
}

// ParseIdentityID validates and returns an IdentityID.
func ParseIdentityID(s string) (IdentityID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return IdentityID{}, fmt.Errorf("invalid identity ID %q: %w", s, err)
	}
	return IdentityID(u), nil
}

// String returns the canonical UUID representation.
func (i IdentityID) String() string {
	return uuid.UUID(i).String()
}

// IsNil reports whether the ID is the zero value.
func (i IdentityID) IsNil() bool {
	return i == IdentityID{}
}

// Compare orders identity IDs bytewise. Used for deterministic lock ordering
// and as the final survivor tie-break.
func (i IdentityID) Compare(other IdentityID) int {
	a, b := uuid.UUID(i), uuid.UUID(other)
	return bytes.Compare(a[:], b[:])
}

// Role names a grant such as "CLIENTE" or "PRESTADOR". Grants are unique per
// (identity, role).
type Role string

// String returns the role name.
func (r Role) String() string {
	return string(r)
}
