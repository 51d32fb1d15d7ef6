package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/testforge/uidetect/internal/config"
	"github.com/testforge/uidetect/internal/vision"
)

// Cache stores localizer responses keyed by screenshot digest.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// Key prefixes for different cache types
const (
	PrefixLocalization = "uidetect:localization:"
	PrefixRateLimit    = "uidetect:ratelimit:"
)

// RateLimitWindow is the fixed window CheckRateLimit counts in.
const RateLimitWindow = time.Minute

// DefaultTTL applies when no TTL is configured.
const DefaultTTL = 10 * time.Minute

// New creates a new Redis cache client
func New(cfg config.RedisConfig, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewFromClient(client, ttl), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Health checks Redis connectivity
func (c *Cache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetLocalization returns nil, nil on a miss.
func (c *Cache) GetLocalization(ctx context.Context, digest string) (*vision.Localization, error) {
	data, err := c.client.Get(ctx, PrefixLocalization+digest).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var loc vision.Localization
	if err := json.Unmarshal(data, &loc); err != nil {
		return nil, fmt.Errorf("decoding cached localization: %w", err)
	}
	return &loc, nil
}

// SetLocalization caches a localization for the configured TTL.
func (c *Cache) SetLocalization(ctx context.Context, digest string, loc *vision.Localization) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, PrefixLocalization+digest, data, c.ttl).Err()
}

// InvalidateLocalization removes a cached localization.
func (c *Cache) InvalidateLocalization(ctx context.Context, digest string) error {
	return c.client.Del(ctx, PrefixLocalization+digest).Err()
}

// CheckRateLimit checks and increments rate limit counter
func (c *Cache) CheckRateLimit(ctx context.Context, key string, limit int) (bool, int, error) {
	fullKey := PrefixRateLimit + key

	pipe := c.client.Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, RateLimitWindow)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	count := int(incr.Val())
	return count <= limit, count, nil
}
