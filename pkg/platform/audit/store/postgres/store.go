package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	id "servio/pkg/domain"
	audit "servio/pkg/platform/audit"
	txcontext "servio/pkg/platform/tx"

	"github.com/google/uuid"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table and published to Kafka by the outbox
// worker. Appending inside the merge transaction makes the audit record and
// the merge commit or roll back together.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka.
// Field names match audit.Event for proper deserialization by consumers.
type outboxPayload struct {
	ID         string `json:"ID"`
	Category   string `json:"Category"`
	Timestamp  string `json:"Timestamp"`
	IdentityID string `json:"IdentityID,omitempty"`
	Action     string `json:"Action"`
	Reason     string `json:"Reason,omitempty"`
	RequestID  string `json:"RequestID,omitempty"`
	ActorID    string `json:"ActorID,omitempty"`
	SurvivorID string `json:"SurvivorID,omitempty"`
	LoserID    string `json:"LoserID,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// Always derive category from action - eventCategories map is the source of truth
	category := audit.AuditEvent(event.Action).Category()

	payload := outboxPayload{
		ID:         eventID.String(),
		Category:   string(category),
		Timestamp:  event.Timestamp.Format(time.RFC3339Nano),
		Action:     event.Action,
		Reason:     event.Reason,
		RequestID:  event.RequestID,
		ActorID:    event.ActorID,
		SurvivorID: event.SurvivorID,
		LoserID:    event.LoserID,
	}
	if !event.IdentityID.IsNil() {
		payload.IdentityID = event.IdentityID.String()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO audit_outbox (id, category, action, identity_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		eventID, string(category), event.Action, nullableID(event.IdentityID), body, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit outbox: %w", err)
	}
	return nil
}

// ListByIdentity returns outbox events for one identity, oldest first. Kafka
// is the long-term source of truth; this serves operator spot checks.
func (s *Store) ListByIdentity(ctx context.Context, identityID id.IdentityID) ([]audit.Event, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT payload FROM audit_outbox
		WHERE identity_id = $1
		ORDER BY created_at`,
		identityID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list audit outbox: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan audit outbox: %w", err)
		}
		var p outboxPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("unmarshal audit payload: %w", err)
		}
		events = append(events, payloadToEvent(p))
	}
	return events, rows.Err()
}

func payloadToEvent(p outboxPayload) audit.Event {
	e := audit.Event{
		Category:   audit.EventCategory(p.Category),
		Action:     p.Action,
		Reason:     p.Reason,
		RequestID:  p.RequestID,
		ActorID:    p.ActorID,
		SurvivorID: p.SurvivorID,
		LoserID:    p.LoserID,
	}
	if t, err := time.Parse(time.RFC3339Nano, p.Timestamp); err == nil {
		e.Timestamp = t
	}
	if p.IdentityID != "" {
		if parsed, err := id.ParseIdentityID(p.IdentityID); err == nil {
			e.IdentityID = parsed
		}
	}
	return e
}

func nullableID(identityID id.IdentityID) any {
	if identityID.IsNil() {
		return nil
	}
	return identityID.String()
}
