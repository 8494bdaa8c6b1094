//go:build integration

package sessions_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servio/internal/identity/sessions"
	id "servio/pkg/domain"
	"servio/pkg/testutil/containers"
)

func TestRedisCacheInvalidate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	cache := sessions.NewRedisCache(rc.Client)

	identityID := id.NewIdentityID()
	key := "sessions:identity:" + identityID.String()
	require.NoError(t, rc.Client.SAdd(ctx, key, "session-1", "session-2").Err())
	require.NoError(t, rc.Client.SAdd(ctx, key+":tokens", "tok-1").Err())

	otherKey := "sessions:identity:" + id.NewIdentityID().String()
	require.NoError(t, rc.Client.SAdd(ctx, otherKey, "session-3").Err())

	require.NoError(t, cache.Invalidate(ctx, identityID))

	exists, err := rc.Client.Exists(ctx, key, key+":tokens").Result()
	require.NoError(t, err)
	assert.Zero(t, exists, "loser keys removed")

	exists, err = rc.Client.Exists(ctx, otherKey).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, exists, "unrelated identity keys untouched")

	assert.NoError(t, cache.Invalidate(ctx, identityID), "invalidation is idempotent")
}
