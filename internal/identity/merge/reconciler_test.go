package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"servio/internal/identity/models"
)

func TestReconcileFields(t *testing.T) {
	created := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	t.Run("fills only missing survivor fields", func(t *testing.T) {
		survivor := identityAt(created, func(i *models.Identity) {
			i.Email = strp("keep@example.com")
			i.Phone = strp("+5511911112222")
		})
		loser := identityAt(created, func(i *models.Identity) {
			i.Phone = strp("+5511933334444")
			i.WhatsApp = strp("+5511933334444")
			i.TaxID = strp("987.654.321-00")
			i.Name = strp("Ana Souza")
		})

		patch := ReconcileFields(survivor, loser)
		assert.Nil(t, patch.Phone, "populated survivor field must not be overwritten")
		assert.Equal(t, "+5511933334444", *patch.WhatsApp)
		assert.Equal(t, "987.654.321-00", *patch.TaxID)
		assert.Equal(t, "Ana Souza", *patch.Name)
		assert.Nil(t, patch.AvatarURL)
	})

	t.Run("empty string counts as missing on both sides", func(t *testing.T) {
		survivor := identityAt(created, func(i *models.Identity) {
			i.Phone = strp("")
		})
		loser := identityAt(created, func(i *models.Identity) {
			i.Phone = strp("+5511955556666")
			i.Name = strp("")
		})

		patch := ReconcileFields(survivor, loser)
		assert.Equal(t, "+5511955556666", *patch.Phone)
		assert.Nil(t, patch.Name, "empty donor value must not be copied")
	})

	t.Run("nothing to donate yields empty patch", func(t *testing.T) {
		survivor := identityAt(created, func(i *models.Identity) {
			i.Phone = strp("+5511911112222")
			i.Name = strp("Ana")
		})
		loser := identityAt(created)

		patch := ReconcileFields(survivor, loser)
		assert.True(t, patch.IsEmpty())
	})

	t.Run("patch copies values instead of aliasing the loser", func(t *testing.T) {
		survivor := identityAt(created)
		loser := identityAt(created, func(i *models.Identity) {
			i.Name = strp("Original")
		})

		patch := ReconcileFields(survivor, loser)
		*loser.Name = "mutated"
		assert.Equal(t, "Original", *patch.Name)
	})

	t.Run("email is never reconciled", func(t *testing.T) {
		survivor := identityAt(created)
		loser := identityAt(created, func(i *models.Identity) {
			i.Email = strp("loser@example.com")
		})

		patch := ReconcileFields(survivor, loser)
		assert.True(t, patch.IsEmpty())
	})
}
