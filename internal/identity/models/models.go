// Package models defines the identity record and the rows it owns. Nullable
// scalars are pointers so "absent" survives round-trips through the stores.
package models

import (
	"time"

	id "servio/pkg/domain"
)

// Identity is the canonical account record that owns all other data. Email,
// phone, and tax ID are each globally unique when present (nullable-unique).
type Identity struct {
	ID        id.IdentityID
	CreatedAt time.Time
	Email     *string
	Phone     *string // E.164
	WhatsApp  *string // messaging handle, usually derived from Phone
	TaxID     *string
	Name      *string
	AvatarURL *string
}

// CompletenessScore counts the populated fields among {email, phone, tax id}.
// The survivor selector prefers the more complete identity on a creation-time tie.
func (i *Identity) CompletenessScore() int {
	score := 0
	for _, f := range []*string{i.Email, i.Phone, i.TaxID} {
		if f != nil && *f != "" {
			score++
		}
	}
	return score
}

// IdentityPatch is a partial update. Nil fields are left untouched.
type IdentityPatch struct {
	Phone     *string
	WhatsApp  *string
	TaxID     *string
	Name      *string
	AvatarURL *string
}

// IsEmpty reports whether the patch changes nothing. A no-op patch is valid.
func (p IdentityPatch) IsEmpty() bool {
	return p.Phone == nil && p.WhatsApp == nil && p.TaxID == nil && p.Name == nil && p.AvatarURL == nil
}
