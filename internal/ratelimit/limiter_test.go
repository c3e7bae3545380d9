package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/veraproof/verification-core/internal/ratelimit"
)

func newTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return rdb, mr.Close
}

func TestCheckRateLimit_AdmitsWithinWindow(t *testing.T) {
	rdb, close := newTestRedis(t)
	defer close()

	limiter := ratelimit.NewLimiter(rdb, "salt")
	cfg := ratelimit.LimitConfig{Rate: 2, Window: time.Minute}

	for i := 0; i < 2; i++ {
		d, err := limiter.CheckRateLimit(context.Background(), "tenant:t1", cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("expected request %d to be allowed", i+1)
		}
	}

	d, err := limiter.CheckRateLimit(context.Background(), "tenant:t1", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed {
		t.Error("expected third request to be rejected at rate 2")
	}
	if d.RetryAfter <= 0 {
		t.Error("expected a positive retry-after on rejection")
	}
}

func TestCheckRateLimit_WindowSlidesOpenAfterExpiry(t *testing.T) {
	rdb, close := newTestRedis(t)
	defer close()

	limiter := ratelimit.NewLimiter(rdb, "salt")
	cfg := ratelimit.LimitConfig{Rate: 1, Window: 50 * time.Millisecond}

	d, _ := limiter.CheckRateLimit(context.Background(), "tenant:t2", cfg)
	if !d.Allowed {
		t.Fatal("expected first request to be allowed")
	}

	d, _ = limiter.CheckRateLimit(context.Background(), "tenant:t2", cfg)
	if d.Allowed {
		t.Fatal("expected second immediate request to be rejected")
	}

	time.Sleep(80 * time.Millisecond)

	d, err := limiter.CheckRateLimit(context.Background(), "tenant:t2", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Allowed {
		t.Error("expected request to be allowed once the window has slid past the first entry")
	}
}

func TestConcurrencyGate_RejectsAtCeiling(t *testing.T) {
	rdb, close := newTestRedis(t)
	defer close()

	gate := ratelimit.NewConcurrencyGate(rdb, 2)
	ctx := context.Background()

	ok, err := gate.Enter(ctx, "t1", "s1")
	if err != nil || !ok {
		t.Fatalf("expected first enter to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = gate.Enter(ctx, "t1", "s2")
	if err != nil || !ok {
		t.Fatalf("expected second enter to succeed, ok=%v err=%v", ok, err)
	}

	ok, err = gate.Enter(ctx, "t1", "s3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected third enter to be rejected at ceiling of 2")
	}

	if err := gate.Leave(ctx, "t1", "s1"); err != nil {
		t.Fatalf("unexpected leave error: %v", err)
	}

	ok, err = gate.Enter(ctx, "t1", "s3")
	if err != nil || !ok {
		t.Fatalf("expected enter to succeed after a leave freed a slot, ok=%v err=%v", ok, err)
	}
}

func TestConcurrencyGate_ReenteringSameSessionIsIdempotent(t *testing.T) {
	rdb, close := newTestRedis(t)
	defer close()

	gate := ratelimit.NewConcurrencyGate(rdb, 1)
	ctx := context.Background()

	ok, _ := gate.Enter(ctx, "t1", "s1")
	if !ok {
		t.Fatal("expected first enter to succeed")
	}
	ok, err := gate.Enter(ctx, "t1", "s1")
	if err != nil || !ok {
		t.Fatalf("expected re-entering the same session id to succeed, ok=%v err=%v", ok, err)
	}
}
