// Package sessions invalidates cached session state after a merge. The cache
// is advisory: session rows live in Postgres and are migrated inside the
// merge transaction; this only drops stale cached copies keyed by the loser.
package sessions

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	id "servio/pkg/domain"
)

const sessionKeyPrefix = "sessions:identity:"

// RedisCache drops per-identity cached session sets.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Invalidate removes the identity's cached session set and its token mirror.
// Uses a pipeline so both keys go in one round trip.
func (c *RedisCache) Invalidate(ctx context.Context, identityID id.IdentityID) error {
	key := sessionKeyPrefix + identityID.String()
	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.Del(ctx, key+":tokens")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("invalidate session cache: %w", err)
	}
	return nil
}
