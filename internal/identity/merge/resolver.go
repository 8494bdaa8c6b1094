package merge

import (
	"context"
	"fmt"

	id "servio/pkg/domain"
)

// Outcome reports what happened to one relation type during a merge.
type Outcome struct {
	Relation  string `json:"relation"`
	Class     string `json:"class"`
	Repointed int    `json:"repointed"`
	Dropped   int    `json:"dropped"`
}

// resolveEntry applies the conflict-resolution strategy for one catalog entry.
// Every strategy is idempotent: after a first pass the loser owns zero rows,
// so a second pass is a no-op.
func resolveEntry(ctx context.Context, e Entry, survivor, loser id.IdentityID) (Outcome, error) {
	out := Outcome{Relation: e.Relation, Class: e.Class.String()}

	switch e.Class {
	case ExclusiveToOne:
		return resolveExclusive(ctx, e.Store, survivor, loser, out)
	case PlainToMany:
		repointed, err := e.Store.RepointAll(ctx, loser, survivor)
		if err != nil {
			return out, err
		}
		out.Repointed = repointed
		return out, nil
	case UniqueCompositeToMany:
		keyed, ok := e.Store.(KeyedRelationStore)
		if !ok {
			// Catalog.Validate rejects this at wiring time; guard anyway.
			return out, fmt.Errorf("relation %q: store cannot address rows by key", e.Relation)
		}
		return resolveComposite(ctx, keyed, survivor, loser, out)
	default:
		return out, fmt.Errorf("relation %q: unknown cardinality class %d", e.Relation, e.Class)
	}
}

// resolveExclusive migrates an at-most-one-row relation. The survivor's row is
// authoritative: when both identities own one, the loser's row is dropped
// whole, with no field-level reconciliation of the sub-record.
func resolveExclusive(ctx context.Context, st RelationStore, survivor, loser id.IdentityID, out Outcome) (Outcome, error) {
	survivorHas, err := st.CountOwned(ctx, survivor)
	if err != nil {
		return out, err
	}
	loserHas, err := st.CountOwned(ctx, loser)
	if err != nil {
		return out, err
	}
	if loserHas == 0 {
		return out, nil
	}
	if survivorHas > 0 {
		dropped, err := st.DeleteOwned(ctx, loser)
		if err != nil {
			return out, err
		}
		out.Dropped = dropped
		return out, nil
	}
	repointed, err := st.RepointAll(ctx, loser, survivor)
	if err != nil {
		return out, err
	}
	out.Repointed = repointed
	return out, nil
}

// resolveComposite migrates a relation unique on (identity, key): keys the
// survivor lacks are re-pointed, duplicates are dropped.
func resolveComposite(ctx context.Context, st KeyedRelationStore, survivor, loser id.IdentityID, out Outcome) (Outcome, error) {
	loserKeys, err := st.OwnedKeys(ctx, loser)
	if err != nil {
		return out, err
	}
	if len(loserKeys) == 0 {
		return out, nil
	}
	survivorKeys, err := st.OwnedKeys(ctx, survivor)
	if err != nil {
		return out, err
	}
	taken := make(map[string]struct{}, len(survivorKeys))
	for _, k := range survivorKeys {
		taken[k] = struct{}{}
	}

	var movable, duplicates []string
	for _, k := range loserKeys {
		if _, dup := taken[k]; dup {
			duplicates = append(duplicates, k)
		} else {
			movable = append(movable, k)
		}
	}

	if len(duplicates) > 0 {
		dropped, err := st.DeleteKeys(ctx, loser, duplicates)
		if err != nil {
			return out, err
		}
		out.Dropped = dropped
	}
	if len(movable) > 0 {
		repointed, err := st.RepointKeys(ctx, loser, survivor, movable)
		if err != nil {
			return out, err
		}
		out.Repointed = repointed
	}
	return out, nil
}
