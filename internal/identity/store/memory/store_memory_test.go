package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servio/internal/identity/merge"
	"servio/internal/identity/models"
	id "servio/pkg/domain"
	"servio/pkg/platform/sentinel"
)

func seedIdentity(db *DB) models.Identity {
	rec := models.Identity{ID: id.NewIdentityID(), CreatedAt: time.Now().UTC()}
	db.SeedIdentity(rec)
	return rec
}

func TestIdentityStore(t *testing.T) {
	ctx := context.Background()

	t.Run("find for update copies the record", func(t *testing.T) {
		db := NewDB()
		seeded := seedIdentity(db)
		store := NewIdentityStore(db)

		rec, err := store.FindForUpdate(ctx, seeded.ID)
		require.NoError(t, err)
		phone := "+5511999990000"
		rec.Phone = &phone

		stored, _ := db.Identity(seeded.ID)
		assert.Nil(t, stored.Phone, "mutating the returned record must not touch the store")
	})

	t.Run("missing identity yields sentinel", func(t *testing.T) {
		store := NewIdentityStore(NewDB())
		_, err := store.FindForUpdate(ctx, id.NewIdentityID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("apply patch touches only non-nil fields", func(t *testing.T) {
		db := NewDB()
		name := "Ana"
		rec := models.Identity{ID: id.NewIdentityID(), CreatedAt: time.Now().UTC(), Name: &name}
		db.SeedIdentity(rec)
		store := NewIdentityStore(db)

		phone := "+5511999990000"
		err := store.ApplyPatch(ctx, rec.ID, models.IdentityPatch{Phone: &phone})
		require.NoError(t, err)

		stored, _ := db.Identity(rec.ID)
		assert.Equal(t, "+5511999990000", *stored.Phone)
		assert.Equal(t, "Ana", *stored.Name)
	})

	t.Run("delete removes the record", func(t *testing.T) {
		db := NewDB()
		seeded := seedIdentity(db)
		store := NewIdentityStore(db)

		require.NoError(t, store.Delete(ctx, seeded.ID))
		assert.ErrorIs(t, store.Delete(ctx, seeded.ID), sentinel.ErrNotFound)
	})
}

func TestTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	db.AddRelation("sessions", merge.PlainToMany)
	seeded := seedIdentity(db)
	db.SeedRow("sessions", seeded.ID, "")
	store := NewIdentityStore(db)

	boom := errors.New("boom")
	err := NewTx(db).RunInTx(ctx, func(ctx context.Context) error {
		if err := store.Delete(ctx, seeded.ID); err != nil {
			return err
		}
		catalog := db.Catalog()
		if _, err := catalog[0].Store.DeleteOwned(ctx, seeded.ID); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, ok := db.Identity(seeded.ID)
	assert.True(t, ok, "identity restored on rollback")
	assert.Equal(t, 1, db.CountRows("sessions", seeded.ID), "relation rows restored on rollback")
}

func TestFailureInjection(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	db.AddRelation("orders", merge.PlainToMany)
	catalog := db.Catalog()

	boom := errors.New("injected")
	db.FailOn("orders", "repoint", boom)
	_, err := catalog[0].Store.RepointAll(ctx, id.NewIdentityID(), id.NewIdentityID())
	assert.ErrorIs(t, err, boom)

	db.ClearFailures()
	_, err = catalog[0].Store.RepointAll(ctx, id.NewIdentityID(), id.NewIdentityID())
	assert.NoError(t, err)
}
