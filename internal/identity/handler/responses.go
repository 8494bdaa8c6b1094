package handler

import "servio/internal/identity/merge"

// MergeResponse reports the surviving identity and the per-relation counts.
type MergeResponse struct {
	SurvivorID string          `json:"survivor_id"`
	LoserID    string          `json:"loser_id"`
	Relations  []merge.Outcome `json:"relations"`
}
