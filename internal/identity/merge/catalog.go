// Package merge folds two identity records into one canonical identity: it
// picks a survivor, backfills the survivor's scalar fields, re-points every
// owned relation per a declarative catalog, and deletes the loser, all inside
// one transaction.
package merge

import (
	"context"
	"fmt"

	id "servio/pkg/domain"
)

// Class is the cardinality class of an owned relation.
type Class int

const (
	// ExclusiveToOne relations have at most one row per identity.
	ExclusiveToOne Class = iota
	// PlainToMany relations have unlimited rows with no uniqueness tied to
	// the identity.
	PlainToMany
	// UniqueCompositeToMany relations are unique on (identity, key).
	UniqueCompositeToMany
)

func (c Class) String() string {
	switch c {
	case ExclusiveToOne:
		return "exclusive_to_one"
	case PlainToMany:
		return "plain_to_many"
	case UniqueCompositeToMany:
		return "unique_composite_to_many"
	default:
		return "unknown"
	}
}

// RelationStore is the persistence port the migrator drives for one relation
// type. Implementations must honor a transaction carried in the context.
type RelationStore interface {
	CountOwned(ctx context.Context, owner id.IdentityID) (int, error)
	RepointAll(ctx context.Context, from, to id.IdentityID) (int, error)
	DeleteOwned(ctx context.Context, owner id.IdentityID) (int, error)
}

// KeyedRelationStore extends RelationStore for unique-composite relations,
// addressing rows by their (identity, key) composite.
type KeyedRelationStore interface {
	RelationStore
	OwnedKeys(ctx context.Context, owner id.IdentityID) ([]string, error)
	RepointKeys(ctx context.Context, from, to id.IdentityID, keys []string) (int, error)
	DeleteKeys(ctx context.Context, owner id.IdentityID, keys []string) (int, error)
}

// Entry declares one owned relation: its name, cardinality class, and store.
type Entry struct {
	Relation string
	Class    Class
	Store    RelationStore
}

// Catalog is the ordered list of every relation type owned by an identity.
// It is the single source of truth: adding a new owned relation to the system
// means adding one entry here, not new merge logic. Order does not affect
// correctness (relation types are independent) but is fixed for reproducible
// logs and audits.
type Catalog []Entry

// Validate rejects catalogs the migrator cannot execute: duplicate or empty
// relation names, missing stores, and unique-composite entries whose store
// cannot address rows by key.
func (c Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for _, e := range c {
		if e.Relation == "" {
			return fmt.Errorf("catalog entry with empty relation name")
		}
		if _, dup := seen[e.Relation]; dup {
			return fmt.Errorf("duplicate catalog entry %q", e.Relation)
		}
		seen[e.Relation] = struct{}{}
		if e.Store == nil {
			return fmt.Errorf("catalog entry %q has no store", e.Relation)
		}
		if e.Class == UniqueCompositeToMany {
			if _, ok := e.Store.(KeyedRelationStore); !ok {
				return fmt.Errorf("catalog entry %q is unique-composite but its store is not keyed", e.Relation)
			}
		}
	}
	return nil
}
