package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ebarrios/centavo/pkg/logger"
)

const (
	// DefaultTTL is the default lifetime of a cached exchange rate
	DefaultTTL = 15 * time.Minute

	// KeyPrefix is the prefix for rate cache keys
	KeyPrefix = "rate:"
)

// RateCache is a Redis-backed exchange rate cache. It is never authoritative:
// entries expire and the whole keyspace may be dropped at any time.
type RateCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewRateCache creates a new rate cache with the default TTL
func NewRateCache(client *redis.Client, log *logger.Logger) *RateCache {
	return NewRateCacheWithTTL(client, DefaultTTL, log)
}

// NewRateCacheWithTTL creates a new rate cache with a custom TTL
func NewRateCacheWithTTL(client *redis.Client, ttl time.Duration, log *logger.Logger) *RateCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RateCache{
		client: client,
		ttl:    ttl,
		logger: log.WithField("component", "rate_cache"),
	}
}

// cachedRate is the stored cache value with metadata
type cachedRate struct {
	Rate      string    `json:"rate"` // decimal serialized as string
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

func key(from, to string) string {
	return fmt.Sprintf("%s%s:%s", KeyPrefix, from, to)
}

// Get retrieves a cached rate for the ordered pair
func (c *RateCache) Get(ctx context.Context, from, to string) (decimal.Decimal, bool, error) {
	val, err := c.client.Get(ctx, key(from, to)).Result()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("cache miss", "from", from, "to", to)
		return decimal.Decimal{}, false, nil
	}
	if err != nil {
		c.logger.Error("cache error", "operation", "get", "from", from, "to", to, "error", err)
		return decimal.Decimal{}, false, fmt.Errorf("failed to get cached rate: %w", err)
	}

	var cached cachedRate
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("failed to unmarshal cached rate: %w", err)
	}

	rate, err := decimal.NewFromString(cached.Rate)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("failed to parse cached rate: %w", err)
	}

	c.logger.Debug("cache hit", "from", from, "to", to)
	return rate, true, nil
}

// Set stores a rate for the ordered pair with the configured TTL
func (c *RateCache) Set(ctx context.Context, from, to string, rate decimal.Decimal, source string) error {
	cached := cachedRate{
		Rate:      rate.String(),
		Source:    source,
		UpdatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal rate: %w", err)
	}

	if err := c.client.Set(ctx, key(from, to), data, c.ttl).Err(); err != nil {
		c.logger.Error("cache error", "operation", "set", "from", from, "to", to, "error", err)
		return fmt.Errorf("failed to set cached rate: %w", err)
	}
	return nil
}

// Delete removes a cached rate
func (c *RateCache) Delete(ctx context.Context, from, to string) error {
	return c.client.Del(ctx, key(from, to)).Err()
}

// Ping checks Redis connectivity (used by health checks)
func (c *RateCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
