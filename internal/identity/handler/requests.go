package handler

import (
	"fmt"

	id "servio/pkg/domain"
)

// MergeRequest is the admin merge payload. Prepare parses the raw IDs so the
// handler only ever sees valid ones.
type MergeRequest struct {
	IdentityIDA string `json:"identity_id_a"`
	IdentityIDB string `json:"identity_id_b"`

	idA id.IdentityID
	idB id.IdentityID
}

func (r *MergeRequest) Prepare() error {
	if r.IdentityIDA == "" || r.IdentityIDB == "" {
		return fmt.Errorf("identity_id_a and identity_id_b are required")
	}
	idA, err := id.ParseIdentityID(r.IdentityIDA)
	if err != nil {
		return fmt.Errorf("identity_id_a: %w", err)
	}
	idB, err := id.ParseIdentityID(r.IdentityIDB)
	if err != nil {
		return fmt.Errorf("identity_id_b: %w", err)
	}
	r.idA, r.idB = idA, idB
	return nil
}
