package merge

import "servio/internal/identity/models"

// ReconcileFields computes the fill-if-missing patch for the survivor: each
// scalar the survivor lacks is copied from the loser. A populated survivor
// field is never overwritten. Email is deliberately absent: the loser's email
// frees up only once the loser row is deleted, and the survivor keeps its own.
func ReconcileFields(survivor, loser *models.Identity) models.IdentityPatch {
	return models.IdentityPatch{
		Phone:     fillIfMissing(survivor.Phone, loser.Phone),
		WhatsApp:  fillIfMissing(survivor.WhatsApp, loser.WhatsApp),
		TaxID:     fillIfMissing(survivor.TaxID, loser.TaxID),
		Name:      fillIfMissing(survivor.Name, loser.Name),
		AvatarURL: fillIfMissing(survivor.AvatarURL, loser.AvatarURL),
	}
}

// fillIfMissing returns the donor value only when the current one is absent.
func fillIfMissing(current, donor *string) *string {
	if current != nil && *current != "" {
		return nil
	}
	if donor == nil || *donor == "" {
		return nil
	}
	v := *donor
	return &v
}
