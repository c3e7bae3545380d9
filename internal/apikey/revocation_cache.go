package apikey

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationCache offers a revocation check in addition to (not instead
// of) the database, tenant-scoped the same way session-token revocation was.
type RevocationCache struct {
	client *redis.Client
}

func NewRevocationCache(client *redis.Client) *RevocationCache {
	return &RevocationCache{client: client}
}

func (c *RevocationCache) IsRevoked(ctx context.Context, tenantID, keyID string) (bool, error) {
	key := fmt.Sprintf("apikey_revoked:%s:%s", tenantID, keyID)
	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

func (c *RevocationCache) MarkRevoked(ctx context.Context, tenantID, keyID string, ttl time.Duration) error {
	key := fmt.Sprintf("apikey_revoked:%s:%s", tenantID, keyID)
	return c.client.Set(ctx, key, "revoked", ttl).Err()
}
