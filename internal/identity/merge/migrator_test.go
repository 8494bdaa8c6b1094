package merge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "servio/pkg/domain"
	"servio/pkg/platform/sentinel"
)

// fakeStore is a keyed relation store over a plain slice, with one injectable
// error per method. The memory backend cannot be used here without an import
// cycle, so migrator tests carry their own minimal double.
type fakeStore struct {
	rows []fakeRow

	countErr   error
	repointErr error
	deleteErr  error
	keysErr    error
}

type fakeRow struct {
	owner id.IdentityID
	key   string
}

func (f *fakeStore) CountOwned(_ context.Context, owner id.IdentityID) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := 0
	for _, r := range f.rows {
		if r.owner == owner {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) RepointAll(_ context.Context, from, to id.IdentityID) (int, error) {
	if f.repointErr != nil {
		return 0, f.repointErr
	}
	moved := 0
	for i := range f.rows {
		if f.rows[i].owner == from {
			f.rows[i].owner = to
			moved++
		}
	}
	return moved, nil
}

func (f *fakeStore) DeleteOwned(_ context.Context, owner id.IdentityID) (int, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	kept := f.rows[:0]
	dropped := 0
	for _, r := range f.rows {
		if r.owner == owner {
			dropped++
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return dropped, nil
}

func (f *fakeStore) OwnedKeys(_ context.Context, owner id.IdentityID) ([]string, error) {
	if f.keysErr != nil {
		return nil, f.keysErr
	}
	var keys []string
	for _, r := range f.rows {
		if r.owner == owner {
			keys = append(keys, r.key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeStore) RepointKeys(_ context.Context, from, to id.IdentityID, keys []string) (int, error) {
	if f.repointErr != nil {
		return 0, f.repointErr
	}
	want := map[string]struct{}{}
	for _, k := range keys {
		want[k] = struct{}{}
	}
	moved := 0
	for i := range f.rows {
		if f.rows[i].owner != from {
			continue
		}
		if _, ok := want[f.rows[i].key]; ok {
			f.rows[i].owner = to
			moved++
		}
	}
	return moved, nil
}

func (f *fakeStore) DeleteKeys(_ context.Context, owner id.IdentityID, keys []string) (int, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	want := map[string]struct{}{}
	for _, k := range keys {
		want[k] = struct{}{}
	}
	kept := f.rows[:0]
	dropped := 0
	for _, r := range f.rows {
		if r.owner == owner {
			if _, ok := want[r.key]; ok {
				dropped++
				continue
			}
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return dropped, nil
}

// plainOnly hides the keyed methods so catalog validation can be exercised.
type plainOnly struct{ inner *fakeStore }

func (p plainOnly) CountOwned(ctx context.Context, owner id.IdentityID) (int, error) {
	return p.inner.CountOwned(ctx, owner)
}

func (p plainOnly) RepointAll(ctx context.Context, from, to id.IdentityID) (int, error) {
	return p.inner.RepointAll(ctx, from, to)
}

func (p plainOnly) DeleteOwned(ctx context.Context, owner id.IdentityID) (int, error) {
	return p.inner.DeleteOwned(ctx, owner)
}

func TestCatalogValidate(t *testing.T) {
	st := &fakeStore{}

	t.Run("accepts a well-formed catalog", func(t *testing.T) {
		c := Catalog{
			{Relation: "profiles", Class: ExclusiveToOne, Store: st},
			{Relation: "orders", Class: PlainToMany, Store: st},
			{Relation: "role_grants", Class: UniqueCompositeToMany, Store: st},
		}
		assert.NoError(t, c.Validate())
	})

	t.Run("rejects empty relation name", func(t *testing.T) {
		c := Catalog{{Relation: "", Class: PlainToMany, Store: st}}
		assert.Error(t, c.Validate())
	})

	t.Run("rejects duplicate relation name", func(t *testing.T) {
		c := Catalog{
			{Relation: "orders", Class: PlainToMany, Store: st},
			{Relation: "orders", Class: PlainToMany, Store: st},
		}
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("rejects missing store", func(t *testing.T) {
		c := Catalog{{Relation: "orders", Class: PlainToMany}}
		assert.Error(t, c.Validate())
	})

	t.Run("rejects unique-composite entry with unkeyed store", func(t *testing.T) {
		c := Catalog{{Relation: "role_grants", Class: UniqueCompositeToMany, Store: plainOnly{st}}}
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not keyed")
	})
}

func TestMigrator(t *testing.T) {
	survivor := id.NewIdentityID()
	loser := id.NewIdentityID()
	ctx := context.Background()

	t.Run("constructor rejects invalid catalog", func(t *testing.T) {
		_, err := NewMigrator(Catalog{{Relation: "", Class: PlainToMany, Store: &fakeStore{}}})
		assert.Error(t, err)
	})

	t.Run("plain relation re-points every loser row", func(t *testing.T) {
		st := &fakeStore{rows: []fakeRow{
			{owner: loser}, {owner: loser}, {owner: survivor},
		}}
		m, err := NewMigrator(Catalog{{Relation: "orders", Class: PlainToMany, Store: st}})
		require.NoError(t, err)

		outcomes, err := m.Migrate(ctx, survivor, loser)
		require.NoError(t, err)
		require.Len(t, outcomes, 1)
		assert.Equal(t, Outcome{Relation: "orders", Class: "plain_to_many", Repointed: 2}, outcomes[0])

		n, _ := st.CountOwned(ctx, survivor)
		assert.Equal(t, 3, n)
	})

	t.Run("exclusive relation re-points when survivor has none", func(t *testing.T) {
		st := &fakeStore{rows: []fakeRow{{owner: loser}}}
		m, err := NewMigrator(Catalog{{Relation: "profiles", Class: ExclusiveToOne, Store: st}})
		require.NoError(t, err)

		outcomes, err := m.Migrate(ctx, survivor, loser)
		require.NoError(t, err)
		assert.Equal(t, 1, outcomes[0].Repointed)
		assert.Equal(t, 0, outcomes[0].Dropped)
	})

	t.Run("exclusive relation drops loser row when survivor already owns one", func(t *testing.T) {
		st := &fakeStore{rows: []fakeRow{{owner: survivor}, {owner: loser}}}
		m, err := NewMigrator(Catalog{{Relation: "profiles", Class: ExclusiveToOne, Store: st}})
		require.NoError(t, err)

		outcomes, err := m.Migrate(ctx, survivor, loser)
		require.NoError(t, err)
		assert.Equal(t, 0, outcomes[0].Repointed)
		assert.Equal(t, 1, outcomes[0].Dropped)

		n, _ := st.CountOwned(ctx, survivor)
		assert.Equal(t, 1, n, "survivor keeps exactly its own row")
	})

	t.Run("exclusive relation with no loser row is a no-op", func(t *testing.T) {
		st := &fakeStore{rows: []fakeRow{{owner: survivor}}}
		m, err := NewMigrator(Catalog{{Relation: "profiles", Class: ExclusiveToOne, Store: st}})
		require.NoError(t, err)

		outcomes, err := m.Migrate(ctx, survivor, loser)
		require.NoError(t, err)
		assert.Equal(t, Outcome{Relation: "profiles", Class: "exclusive_to_one"}, outcomes[0])
	})

	t.Run("composite relation re-points missing keys and drops duplicates", func(t *testing.T) {
		st := &fakeStore{rows: []fakeRow{
			{owner: survivor, key: "admin"},
			{owner: loser, key: "admin"},
			{owner: loser, key: "provider"},
			{owner: loser, key: "client"},
		}}
		m, err := NewMigrator(Catalog{{Relation: "role_grants", Class: UniqueCompositeToMany, Store: st}})
		require.NoError(t, err)

		outcomes, err := m.Migrate(ctx, survivor, loser)
		require.NoError(t, err)
		assert.Equal(t, 2, outcomes[0].Repointed)
		assert.Equal(t, 1, outcomes[0].Dropped)

		keys, _ := st.OwnedKeys(ctx, survivor)
		assert.Equal(t, []string{"admin", "client", "provider"}, keys)
		loserKeys, _ := st.OwnedKeys(ctx, loser)
		assert.Empty(t, loserKeys)
	})

	t.Run("walks the catalog in declaration order", func(t *testing.T) {
		m, err := NewMigrator(Catalog{
			{Relation: "profiles", Class: ExclusiveToOne, Store: &fakeStore{}},
			{Relation: "orders", Class: PlainToMany, Store: &fakeStore{}},
			{Relation: "role_grants", Class: UniqueCompositeToMany, Store: &fakeStore{}},
		})
		require.NoError(t, err)

		outcomes, err := m.Migrate(ctx, survivor, loser)
		require.NoError(t, err)
		names := make([]string, len(outcomes))
		for i, out := range outcomes {
			names[i] = out.Relation
		}
		assert.Equal(t, []string{"profiles", "orders", "role_grants"}, names)
	})

	t.Run("store failure aborts the walk with the relation name", func(t *testing.T) {
		boom := errors.New("connection reset")
		m, err := NewMigrator(Catalog{
			{Relation: "orders", Class: PlainToMany, Store: &fakeStore{repointErr: boom}},
			{Relation: "reviews", Class: PlainToMany, Store: &fakeStore{}},
		})
		require.NoError(t, err)

		_, err = m.Migrate(ctx, survivor, loser)
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), `relation "orders"`)
	})

	t.Run("uniqueness conflict is flagged as unanticipated", func(t *testing.T) {
		conflict := fmt.Errorf("%w: constraint role_grants_pkey", sentinel.ErrConflict)
		m, err := NewMigrator(Catalog{
			{Relation: "role_grants", Class: UniqueCompositeToMany, Store: &fakeStore{
				rows:       []fakeRow{{owner: loser, key: "admin"}},
				repointErr: conflict,
			}},
		})
		require.NoError(t, err)

		_, err = m.Migrate(ctx, survivor, loser)
		require.Error(t, err)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
		assert.Contains(t, err.Error(), "unanticipated uniqueness conflict")
	})

	t.Run("migration is idempotent once the loser owns nothing", func(t *testing.T) {
		st := &fakeStore{rows: []fakeRow{{owner: loser, key: "provider"}}}
		m, err := NewMigrator(Catalog{{Relation: "role_grants", Class: UniqueCompositeToMany, Store: st}})
		require.NoError(t, err)

		_, err = m.Migrate(ctx, survivor, loser)
		require.NoError(t, err)

		outcomes, err := m.Migrate(ctx, survivor, loser)
		require.NoError(t, err)
		assert.Equal(t, 0, outcomes[0].Repointed)
		assert.Equal(t, 0, outcomes[0].Dropped)
	})
}
