// Package cache provides the Redis-backed read cache for catalogs.
package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"stokku/internal/core/id"
	"stokku/internal/domain/catalogs/product"
	"stokku/pkg/logger"
)

const productKeyPrefix = "stokku:product:"

// ProductCache implements product.Cache on Redis. Failures degrade to a
// cache miss; the catalog never becomes unavailable because Redis is.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProductCache creates the cache with the given entry TTL.
func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProductCache{client: client, ttl: ttl}
}

// NewRedisClient opens a Redis connection for cache use.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (c *ProductCache) Get(ctx context.Context, productID id.ID) (*product.Product, bool) {
	val, err := c.client.Get(ctx, productKeyPrefix+productID.String()).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Warn(ctx, "product cache get failed", "product_id", productID, "error", err)
		return nil, false
	}

	var p product.Product
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		logger.Warn(ctx, "product cache entry corrupt", "product_id", productID, "error", err)
		return nil, false
	}
	return &p, true
}

func (c *ProductCache) Set(ctx context.Context, p *product.Product) {
	if p == nil {
		return
	}
	payload, err := json.Marshal(p)
	if err != nil {
		logger.Warn(ctx, "product cache marshal failed", "product_id", p.ID, "error", err)
		return
	}
	if err := c.client.Set(ctx, productKeyPrefix+p.ID.String(), payload, c.ttl).Err(); err != nil {
		logger.Warn(ctx, "product cache set failed", "product_id", p.ID, "error", err)
	}
}

func (c *ProductCache) Invalidate(ctx context.Context, productID id.ID) {
	if err := c.client.Del(ctx, productKeyPrefix+productID.String()).Err(); err != nil {
		logger.Warn(ctx, "product cache invalidate failed", "product_id", productID, "error", err)
	}
}
