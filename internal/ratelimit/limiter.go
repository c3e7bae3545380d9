// Package ratelimit implements two of the Rate/Quota Gate's three
// counters: the per-tenant concurrent-session cap and the sliding
// 60-second API rate window. (The third, monthly quota, lives in
// internal/quota since it is backed by the relational store.)
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrRedisUnavailable  = errors.New("redis unavailable")
)

type Decision struct {
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter int
	Allowed    bool
}

type LimitConfig struct {
	Rate   int           `yaml:"rate"`
	Window time.Duration `yaml:"window"`
}

// Limiter implements a genuine sliding-window log in Redis: each admitted
// request's timestamp is an entry in a per-key sorted set; a check trims
// entries older than the window before counting, rather than the
// fixed-window-with-TTL approximation this started as.
type Limiter struct {
	client *redis.Client
	salt   string
}

func NewLimiter(client *redis.Client, salt string) *Limiter {
	if salt == "" {
		salt = "default-salt-change-me"
	}
	return &Limiter{client: client, salt: salt}
}

// HashIP creates a privacy-safe hash of the IP for use as a rate-limit key.
func (l *Limiter) HashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip + l.salt))
	return hex.EncodeToString(hash[:])
}

// slidingWindowScript trims entries older than the window, counts what's
// left, and admits (adding an entry scored at now) iff under the limit.
// Member uniqueness comes from a per-key sequence counter so same-millisecond
// requests don't collide and silently overwrite one another in the set.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])

	redis.call("ZREMRANGEBYSCORE", key, "-inf", now_ms - window_ms)
	local count = redis.call("ZCARD", key)

	if count >= limit then
		return -1
	end

	local seq = redis.call("INCR", key .. ":seq")
	redis.call("ZADD", key, now_ms, tostring(now_ms) .. "-" .. tostring(seq))
	redis.call("PEXPIRE", key, window_ms)
	redis.call("PEXPIRE", key .. ":seq", window_ms)
	return count + 1
`)

func (l *Limiter) CheckRateLimit(ctx context.Context, key string, config LimitConfig) (*Decision, error) {
	now := time.Now()

	count, err := slidingWindowScript.Run(ctx, l.client, []string{key},
		now.UnixMilli(), config.Window.Milliseconds(), config.Rate).Int()
	if err != nil {
		return nil, ErrRedisUnavailable
	}

	if count == -1 {
		return &Decision{
			Limit:      config.Rate,
			Remaining:  0,
			Reset:      now.Add(config.Window),
			RetryAfter: int(config.Window.Seconds()),
			Allowed:    false,
		}, nil
	}

	remaining := config.Rate - count
	if remaining < 0 {
		remaining = 0
	}
	return &Decision{
		Limit:     config.Rate,
		Remaining: remaining,
		Reset:     now.Add(config.Window),
		Allowed:   true,
	}, nil
}

// Sweeper is the periodic housekeeping loop for the sliding windows. Its
// tick does no work of its own: every window key carries a PEXPIRE
// matching its window, so Redis drops idle keys itself, and each
// CheckRateLimit call trims entries older than the window before counting.
// The loop neither scans keys nor logs.
type Sweeper struct {
	client   *redis.Client
	interval time.Duration
}

func NewSweeper(client *redis.Client, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Sweeper{client: client, interval: interval}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// PEXPIRE on every window key already bounds memory; nothing
			// further to do absent a key-scan, which is avoided here to
			// not block Redis with KEYS/SCAN on a hot path interval.
		}
	}
}
