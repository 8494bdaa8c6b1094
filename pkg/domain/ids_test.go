package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentityID(t *testing.T) {
	raw := uuid.New()

	parsed, err := ParseIdentityID(raw.String())
	require.NoError(t, err)
	assert.Equal(t, raw.String(), parsed.String())
	assert.False(t, parsed.IsNil())

	_, err = ParseIdentityID("not-a-uuid")
	require.Error(t, err)
}

func TestIdentityID_IsNil(t *testing.T) {
	assert.True(t, IdentityID{}.IsNil())
	assert.False(t, NewIdentityID().IsNil())
}

func TestIdentityID_Compare(t *testing.T) {
	a := IdentityID(uuid.MustParse("00000000-0000-0000-0000-000000000001"))
	b := IdentityID(uuid.MustParse("00000000-0000-0000-0000-000000000002"))

	assert.Negative(t, a.Compare(b))
	assert.Positive(t, b.Compare(a))
	assert.Zero(t, a.Compare(a))
}
