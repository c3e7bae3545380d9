package ratelimit

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// ConcurrencyGate enforces the per-tenant concurrent-session ceiling via a
// Redis set of live session ids: Enter adds iff under the limit, Leave
// removes unconditionally so a dropped connection never leaks a slot.
type ConcurrencyGate struct {
	client *redis.Client
	limit  int
}

func NewConcurrencyGate(client *redis.Client, limit int) *ConcurrencyGate {
	return &ConcurrencyGate{client: client, limit: limit}
}

var enterScript = redis.NewScript(`
	local key = KEYS[1]
	local member = ARGV[1]
	local limit = tonumber(ARGV[2])

	if redis.call("SISMEMBER", key, member) == 1 then
		return 1
	end
	if redis.call("SCARD", key) >= limit then
		return 0
	end
	redis.call("SADD", key, member)
	return 1
`)

func tenantKey(tenantID string) string {
	return "concurrency:" + tenantID
}

// Enter admits sessionID into the tenant's active set, returning false if
// the tenant is already at its concurrent-session ceiling.
func (g *ConcurrencyGate) Enter(ctx context.Context, tenantID, sessionID string) (bool, error) {
	n, err := enterScript.Run(ctx, g.client, []string{tenantKey(tenantID)}, sessionID, g.limit).Int()
	if err != nil {
		return false, ErrRedisUnavailable
	}
	return n == 1, nil
}

// Leave frees sessionID's slot. Always safe to call, including on a
// session that was never admitted.
func (g *ConcurrencyGate) Leave(ctx context.Context, tenantID, sessionID string) error {
	if err := g.client.SRem(ctx, tenantKey(tenantID), sessionID).Err(); err != nil {
		return ErrRedisUnavailable
	}
	return nil
}

// Count reports the tenant's current number of active sessions.
func (g *ConcurrencyGate) Count(ctx context.Context, tenantID string) (int, error) {
	n, err := g.client.SCard(ctx, tenantKey(tenantID)).Result()
	if err != nil {
		return 0, ErrRedisUnavailable
	}
	return int(n), nil
}
