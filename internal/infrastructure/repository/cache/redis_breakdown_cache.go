package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
	"github.com/riskibarqy/korfbal-live/internal/platform/resilience"
)

type RedisConfig struct {
	URL            string
	KeyPrefix      string
	CircuitBreaker resilience.CircuitBreakerConfig
}

// RedisBreakdownCache shares rendered breakdowns between instances. Redis
// faults open the breaker so a cache outage costs one recompute per read
// instead of a stalled request.
type RedisBreakdownCache struct {
	client  redis.UniversalClient
	prefix  string
	breaker *resilience.CircuitBreaker
	logger  *logging.Logger
}

func NewRedisClient(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func NewRedisBreakdownCache(client redis.UniversalClient, cfg RedisConfig, logger *logging.Logger) *RedisBreakdownCache {
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisBreakdownCache{
		client:  client,
		prefix:  cfg.KeyPrefix,
		breaker: resilience.NewOptionalCircuitBreaker(namedCircuit(cfg.CircuitBreaker)),
		logger:  logger.Named("cache.redis"),
	}
}

func (c *RedisBreakdownCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := c.breaker.Execute(func() error {
		raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
		if err != nil {
			return err
		}
		value = raw
		return nil
	}, isRedisFailure)
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		c.logger.WarnContext(ctx, "redis get failed", "key", key, "error", err)
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

func (c *RedisBreakdownCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.breaker.Execute(func() error {
		return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
	}, isRedisFailure)
	if err != nil {
		c.logger.WarnContext(ctx, "redis set failed", "key", key, "error", err)
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *RedisBreakdownCache) Delete(ctx context.Context, key string) error {
	err := c.breaker.Execute(func() error {
		return c.client.Del(ctx, c.prefix+key).Err()
	}, isRedisFailure)
	if err != nil {
		c.logger.WarnContext(ctx, "redis delete failed", "key", key, "error", err)
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity; startup only warns on failure since the cache
// falls through to recompute.
func (c *RedisBreakdownCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisBreakdownCache) Close() error {
	return c.client.Close()
}

func isRedisFailure(err error) bool {
	return err != nil && !errors.Is(err, redis.Nil)
}

func namedCircuit(cfg resilience.CircuitBreakerConfig) resilience.CircuitBreakerConfig {
	if cfg.Name == "" {
		cfg.Name = "redis"
	}
	return cfg
}
