package merge

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"servio/internal/identity/models"
	id "servio/pkg/domain"
)

func strp(s string) *string { return &s }

func identityAt(created time.Time, fields ...func(*models.Identity)) *models.Identity {
	rec := &models.Identity{ID: id.NewIdentityID(), CreatedAt: created}
	for _, f := range fields {
		f(rec)
	}
	return rec
}

func TestSelectSurvivor(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("earlier creation wins regardless of completeness", func(t *testing.T) {
		older := identityAt(base)
		newer := identityAt(base.Add(time.Hour), func(i *models.Identity) {
			i.Email = strp("new@example.com")
			i.Phone = strp("+5511999990000")
			i.TaxID = strp("123.456.789-00")
		})

		survivor, loser := SelectSurvivor(older, newer)
		assert.Equal(t, older.ID, survivor.ID)
		assert.Equal(t, newer.ID, loser.ID)
	})

	t.Run("creation tie falls back to completeness", func(t *testing.T) {
		sparse := identityAt(base, func(i *models.Identity) {
			i.Email = strp("sparse@example.com")
		})
		complete := identityAt(base, func(i *models.Identity) {
			i.Email = strp("complete@example.com")
			i.Phone = strp("+5511999990000")
		})

		survivor, loser := SelectSurvivor(sparse, complete)
		assert.Equal(t, complete.ID, survivor.ID)
		assert.Equal(t, sparse.ID, loser.ID)
	})

	t.Run("empty strings do not count toward completeness", func(t *testing.T) {
		blank := identityAt(base, func(i *models.Identity) {
			i.Email = strp("")
			i.Phone = strp("")
		})
		populated := identityAt(base, func(i *models.Identity) {
			i.Email = strp("real@example.com")
		})

		survivor, _ := SelectSurvivor(blank, populated)
		assert.Equal(t, populated.ID, survivor.ID)
	})

	t.Run("full tie breaks on smaller identity ID", func(t *testing.T) {
		a := identityAt(base)
		b := identityAt(base)

		survivor, _ := SelectSurvivor(a, b)
		expected := a
		if b.ID.Compare(a.ID) < 0 {
			expected = b
		}
		assert.Equal(t, expected.ID, survivor.ID)
	})

	t.Run("result is independent of argument order", func(t *testing.T) {
		a := identityAt(base, func(i *models.Identity) { i.Phone = strp("+5511988887777") })
		b := identityAt(base.Add(time.Minute))

		s1, l1 := SelectSurvivor(a, b)
		s2, l2 := SelectSurvivor(b, a)
		assert.Equal(t, s1.ID, s2.ID)
		assert.Equal(t, l1.ID, l2.ID)
	})

	t.Run("sub-second creation difference is decisive", func(t *testing.T) {
		first := identityAt(base)
		second := identityAt(base.Add(time.Millisecond), func(i *models.Identity) {
			i.Email = strp("x@example.com")
			i.Phone = strp("+5511999990000")
			i.TaxID = strp("123.456.789-00")
		})

		survivor, _ := SelectSurvivor(first, second)
		assert.Equal(t, first.ID, survivor.ID)
	})
}

func TestIdentityIDCompareIsTotal(t *testing.T) {
	a := id.IdentityID(uuid.MustParse("00000000-0000-0000-0000-000000000001"))
	b := id.IdentityID(uuid.MustParse("00000000-0000-0000-0000-000000000002"))

	assert.Negative(t, a.Compare(b))
	assert.Positive(t, b.Compare(a))
	assert.Zero(t, a.Compare(a))
}
