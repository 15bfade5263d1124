package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newTestLimiter creates a Limiter connected to a local Redis instance and
// cleans test keys around the test. Tests that call this helper require a
// running Redis on localhost:6379.
func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	cleanup := func() {
		iter := client.Scan(ctx, 0, "rl:*:test_*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return NewLimiter(client)
}

func TestAllow_WithinLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Key: "rl:dm:", Limit: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "test_user", rule)
		if err != nil {
			t.Fatalf("Allow() error: %v", err)
		}
		if !ok {
			t.Fatalf("request %d denied within limit", i+1)
		}
	}
}

func TestAllow_OverLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Key: "rl:dm:", Limit: 2, Window: time.Minute}

	l.Allow(ctx, "test_burst", rule)
	l.Allow(ctx, "test_burst", rule)
	ok, err := l.Allow(ctx, "test_burst", rule)
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if ok {
		t.Error("request over the limit was allowed")
	}
}

func TestAllow_IndependentIdentifiers(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Key: "rl:dm:", Limit: 1, Window: time.Minute}

	l.Allow(ctx, "test_a", rule)
	ok, err := l.Allow(ctx, "test_b", rule)
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if !ok {
		t.Error("one user's traffic throttled another user")
	}
}

func TestRemaining(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Key: "rl:report:", Limit: 5, Window: time.Minute}

	n, err := l.Remaining(ctx, "test_fresh", rule)
	if err != nil {
		t.Fatalf("Remaining() error: %v", err)
	}
	if n != 5 {
		t.Errorf("Remaining() = %d for fresh identifier, want 5", n)
	}

	for i := 0; i < 2; i++ {
		l.Allow(ctx, "test_used", rule)
	}
	n, err = l.Remaining(ctx, "test_used", rule)
	if err != nil {
		t.Fatalf("Remaining() error: %v", err)
	}
	if n != 3 {
		t.Errorf("Remaining() = %d after 2 uses, want 3", n)
	}
}
