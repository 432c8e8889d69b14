package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	basecache "github.com/riskibarqy/korfbal-live/internal/platform/cache"
	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
	"github.com/riskibarqy/korfbal-live/internal/platform/resilience"
)

func TestMemoryBreakdownCache_ExpiresWithStoreTTL(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	c := NewMemoryBreakdownCache(time.Hour, basecache.WithClock(clock))
	ctx := context.Background()

	value := []byte(`{"impacts":[]}`)
	if err := c.Set(ctx, "impact-breakdown:md-1:v6:1", value, time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	value[0] = 'X'

	got, ok, err := c.Get(ctx, "impact-breakdown:md-1:v6:1")
	if err != nil || !ok || string(got) != `{"impacts":[]}` {
		t.Fatalf("unexpected hit: %q ok=%v err=%v", got, ok, err)
	}

	clock.Advance(time.Hour + time.Second)
	if _, ok, _ := c.Get(ctx, "impact-breakdown:md-1:v6:1"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestMemoryBreakdownCache_Delete(t *testing.T) {
	t.Parallel()

	c := NewMemoryBreakdownCache(time.Hour)
	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("v"), 0)
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestRedisBreakdownCache_BreakerOpensWhenUnreachable(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	defer client.Close()

	c := NewRedisBreakdownCache(client, RedisConfig{
		KeyPrefix: "korfbal:",
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 1,
			OpenTimeout:      time.Minute,
		},
	}, logging.NewNop())

	ctx := context.Background()
	if _, ok, err := c.Get(ctx, "k"); err == nil || ok {
		t.Fatalf("expected dial failure, got ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected open breaker, got %v", err)
	}
}

func TestIsRedisFailure(t *testing.T) {
	t.Parallel()

	if isRedisFailure(redis.Nil) {
		t.Fatalf("a cache miss is not a failure")
	}
	if !isRedisFailure(errors.New("connection refused")) {
		t.Fatalf("expected connection error to count")
	}
}
