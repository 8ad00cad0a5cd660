// Package services provides infrastructure services used by the business flows
package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/amirphl/detailing-pricing/models"
	"github.com/amirphl/detailing-pricing/utils"
	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

const defaultPriceCacheSize = 1024

var priceCacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pricing_cache_lookups_total",
		Help: "Pricing snapshot cache lookups partitioned by backend and result",
	},
	[]string{"backend", "result"},
)

// PriceCache keeps read-only snapshots of active pricing records keyed by service id
type PriceCache interface {
	Get(ctx context.Context, serviceID string) (*models.DynamicPricing, bool)
	Set(ctx context.Context, pricing *models.DynamicPricing)
	Invalidate(ctx context.Context, serviceID string)
}

// NewPriceCache returns a Redis-backed cache when rc is set and an in-process LRU otherwise.
func NewPriceCache(rc *redis.Client, prefix string, ttl time.Duration, size int, logger *slog.Logger) PriceCache {
	if logger == nil {
		logger = slog.Default()
	}
	if rc != nil {
		return &redisPriceCache{rc: rc, prefix: prefix, ttl: ttl, logger: logger}
	}
	return NewMemoryPriceCache(size, ttl, utils.SystemClock{})
}

type redisPriceCache struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

func (c *redisPriceCache) key(serviceID string) string {
	return c.prefix + "pricing:" + serviceID
}

func (c *redisPriceCache) Get(ctx context.Context, serviceID string) (*models.DynamicPricing, bool) {
	bs, err := c.rc.Get(ctx, c.key(serviceID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("price cache read failed", "service_id", serviceID, "error", err)
		}
		priceCacheLookupsTotal.WithLabelValues("redis", "miss").Inc()
		return nil, false
	}
	var p models.DynamicPricing
	if err := json.Unmarshal(bs, &p); err != nil {
		c.logger.Warn("price cache entry is corrupt", "service_id", serviceID, "error", err)
		priceCacheLookupsTotal.WithLabelValues("redis", "miss").Inc()
		return nil, false
	}
	priceCacheLookupsTotal.WithLabelValues("redis", "hit").Inc()
	return &p, true
}

func (c *redisPriceCache) Set(ctx context.Context, pricing *models.DynamicPricing) {
	bs, err := json.Marshal(pricing)
	if err != nil {
		c.logger.Warn("price cache encode failed", "service_id", pricing.ServiceUUID.String(), "error", err)
		return
	}
	if err := c.rc.Set(ctx, c.key(pricing.ServiceUUID.String()), bs, c.ttl).Err(); err != nil {
		c.logger.Warn("price cache write failed", "service_id", pricing.ServiceUUID.String(), "error", err)
	}
}

func (c *redisPriceCache) Invalidate(ctx context.Context, serviceID string) {
	if err := c.rc.Del(ctx, c.key(serviceID)).Err(); err != nil {
		c.logger.Warn("price cache invalidation failed", "service_id", serviceID, "error", err)
	}
}

// NopPriceCache never stores anything. Used when caching is disabled.
type NopPriceCache struct{}

func (NopPriceCache) Get(context.Context, string) (*models.DynamicPricing, bool) {
	priceCacheLookupsTotal.WithLabelValues("none", "miss").Inc()
	return nil, false
}

func (NopPriceCache) Set(context.Context, *models.DynamicPricing) {}

func (NopPriceCache) Invalidate(context.Context, string) {}

type cachedPricing struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryPriceCache is an LRU of encoded snapshots with a per-entry expiry
type MemoryPriceCache struct {
	cache *lru.Cache
	ttl   time.Duration
	clock utils.Clock
}

// NewMemoryPriceCache creates an in-process cache. ttl <= 0 disables expiry.
func NewMemoryPriceCache(size int, ttl time.Duration, clock utils.Clock) *MemoryPriceCache {
	if size <= 0 {
		size = defaultPriceCacheSize
	}
	cache, _ := lru.New(size)
	return &MemoryPriceCache{cache: cache, ttl: ttl, clock: clock}
}

func (c *MemoryPriceCache) Get(_ context.Context, serviceID string) (*models.DynamicPricing, bool) {
	v, ok := c.cache.Get(serviceID)
	if !ok {
		priceCacheLookupsTotal.WithLabelValues("memory", "miss").Inc()
		return nil, false
	}
	entry := v.(cachedPricing)
	if c.ttl > 0 && !c.clock.Now().Before(entry.expiresAt) {
		c.cache.Remove(serviceID)
		priceCacheLookupsTotal.WithLabelValues("memory", "miss").Inc()
		return nil, false
	}
	var p models.DynamicPricing
	if err := json.Unmarshal(entry.payload, &p); err != nil {
		c.cache.Remove(serviceID)
		priceCacheLookupsTotal.WithLabelValues("memory", "miss").Inc()
		return nil, false
	}
	priceCacheLookupsTotal.WithLabelValues("memory", "hit").Inc()
	return &p, true
}

func (c *MemoryPriceCache) Set(_ context.Context, pricing *models.DynamicPricing) {
	bs, err := json.Marshal(pricing)
	if err != nil {
		return
	}
	c.cache.Add(pricing.ServiceUUID.String(), cachedPricing{
		payload:   bs,
		expiresAt: c.clock.Now().Add(c.ttl),
	})
}

func (c *MemoryPriceCache) Invalidate(_ context.Context, serviceID string) {
	c.cache.Remove(serviceID)
}

// Len reports the number of cached snapshots, expired ones included.
func (c *MemoryPriceCache) Len() int {
	return c.cache.Len()
}
