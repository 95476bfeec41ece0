package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chris44528/lux-aged-cases/internal/models"
)

const metricsKey = "aged-cases:metrics"

// Cache keeps dashboard metrics warm between the 60s polling refreshes.
// A nil Cache is valid and disables caching.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(redisURL string, ttl time.Duration) (*Cache, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &Cache{client: redis.NewClient(opts), ttl: ttl}, nil
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Cache) GetMetrics(ctx context.Context) (models.AgedCaseMetrics, bool) {
	var m models.AgedCaseMetrics
	if c == nil {
		return m, false
	}
	raw, err := c.client.Get(ctx, metricsKey).Bytes()
	if err != nil {
		return m, false
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, false
	}
	return m, true
}

func (c *Cache) SetMetrics(ctx context.Context, m models.AgedCaseMetrics) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	c.client.Set(ctx, metricsKey, raw, c.ttl)
}

// InvalidateMetrics drops the cached aggregates after a mutation so the
// next dashboard refetch sees fresh numbers.
func (c *Cache) InvalidateMetrics(ctx context.Context) {
	if c == nil {
		return
	}
	c.client.Del(ctx, metricsKey)
}
