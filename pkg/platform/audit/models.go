package audit

import (
	"context"
	"time"

	id "servio/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention.
	// Examples: identity merges, identity deletion, data subject rights.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled or aggregated with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	IdentityID id.IdentityID
	Action     string
	Reason     string
	// RequestID correlates the event with the HTTP request that caused it.
	RequestID string
	// ActorID tracks the operator who performed the action. Merges are admin
	// operations, so the actor is never one of the identities acted upon.
	ActorID string
	// SurvivorID and LoserID record the merge pair on merge events.
	SurvivorID string
	LoserID    string
}

// AuditEvent names an auditable action.
type AuditEvent string

const (
	EventIdentitiesMerged AuditEvent = "identities_merged"
	EventIdentityDeleted  AuditEvent = "identity_deleted"
	EventMergeFailed      AuditEvent = "merge_failed"
)

// eventCategories is the source of truth for routing events to categories.
var eventCategories = map[AuditEvent]EventCategory{
	EventIdentitiesMerged: CategoryCompliance,
	EventIdentityDeleted:  CategoryCompliance,
	EventMergeFailed:      CategoryOperations,
}

// Category resolves the category for an action, defaulting to operations.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}

// Store persists audit events. The Postgres implementation writes to a
// transactional outbox; the memory implementation backs unit tests.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByIdentity(ctx context.Context, identityID id.IdentityID) ([]Event, error)
}
