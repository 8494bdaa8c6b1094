package merge

import (
	"context"
	"errors"
	"fmt"

	id "servio/pkg/domain"
	"servio/pkg/platform/sentinel"
)

// Migrator walks the relation catalog once, in catalog order, and delegates
// each entry to the strategy for its cardinality class. Any failure aborts the
// whole walk; a partially migrated fan-out is never an acceptable end state,
// so the caller must run Migrate inside a transaction it can roll back.
type Migrator struct {
	catalog Catalog
}

// NewMigrator validates the catalog once at wiring time.
func NewMigrator(catalog Catalog) (*Migrator, error) {
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid relation catalog: %w", err)
	}
	return &Migrator{catalog: catalog}, nil
}

// Migrate re-points or drops every loser-owned row and returns the
// per-relation counts. A uniqueness violation the resolver did not anticipate
// is reported with the relation name so operators can diagnose it.
func (m *Migrator) Migrate(ctx context.Context, survivor, loser id.IdentityID) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(m.catalog))
	for _, entry := range m.catalog {
		out, err := resolveEntry(ctx, entry, survivor, loser)
		if err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return nil, fmt.Errorf("relation %q: unanticipated uniqueness conflict: %w", entry.Relation, err)
			}
			return nil, fmt.Errorf("relation %q: %w", entry.Relation, err)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// Catalog exposes the migrator's relation list for wiring-time introspection.
func (m *Migrator) Catalog() Catalog {
	return m.catalog
}
