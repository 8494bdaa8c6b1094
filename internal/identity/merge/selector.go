package merge

import "servio/internal/identity/models"

// SelectSurvivor decides which of two distinct identities survives a merge.
// The order is total and intrinsic to the pair, so the result is independent
// of argument order and re-submitting the same unordered pair is idempotent:
//
//  1. earlier CreatedAt survives
//  2. tie: higher completeness over {email, phone, tax id} survives
//  3. tie: smaller identity ID (bytewise) survives
func SelectSurvivor(a, b *models.Identity) (survivor, loser *models.Identity) {
	if compareIdentities(a, b) <= 0 {
		return a, b
	}
	return b, a
}

// compareIdentities returns <0 when a outranks b as survivor.
func compareIdentities(a, b *models.Identity) int {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	}
	if sa, sb := a.CompletenessScore(), b.CompletenessScore(); sa != sb {
		if sa > sb {
			return -1
		}
		return 1
	}
	return a.ID.Compare(b.ID)
}
