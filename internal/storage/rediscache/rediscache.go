// Package rediscache provides the Redis-backed read-through cache for hot
// catalog queries and the refresh token store.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/shopora/storefront/internal/domain/product"
)

// ErrCacheMiss is returned when a key is absent. Callers fall back to the
// primary store and repopulate.
var ErrCacheMiss = errors.New("cache miss")

const (
	featuredKey      = "featured_products"
	featuredTTL      = time.Hour
	refreshKeyPrefix = "refresh_token:"
	refreshTTL       = 7 * 24 * time.Hour
)

// Cache wraps a Redis client. The zero value is not usable; construct with
// New.
type Cache struct {
	client *redis.Client
}

// New connects to Redis at the given URL and verifies the connection with a
// ping.
func New(ctx context.Context, url string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}
	return &Cache{client: client}, nil
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping reports connectivity, for readiness checks.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// FeaturedProducts returns the cached featured product list, or ErrCacheMiss.
func (c *Cache) FeaturedProducts(ctx context.Context) ([]product.Product, error) {
	raw, err := c.client.Get(ctx, featuredKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, "get featured products")
	}
	var products []product.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, errors.Wrap(err, "decode featured products")
	}
	return products, nil
}

// SetFeaturedProducts stores the featured product list for one hour.
func (c *Cache) SetFeaturedProducts(ctx context.Context, products []product.Product) error {
	raw, err := json.Marshal(products)
	if err != nil {
		return errors.Wrap(err, "encode featured products")
	}
	if err := c.client.Set(ctx, featuredKey, raw, featuredTTL).Err(); err != nil {
		return errors.Wrap(err, "set featured products")
	}
	return nil
}

// InvalidateFeatured drops the featured product list. Catalog writes call
// this so the next read repopulates from PostgreSQL.
func (c *Cache) InvalidateFeatured(ctx context.Context) error {
	if err := c.client.Del(ctx, featuredKey).Err(); err != nil {
		return errors.Wrap(err, "invalidate featured products")
	}
	return nil
}

// StoreRefreshToken associates a refresh token with a user for seven days.
// Storing a new token replaces the previous one, so each user holds at most
// one live refresh token.
func (c *Cache) StoreRefreshToken(ctx context.Context, userID, token string) error {
	if err := c.client.Set(ctx, refreshKeyPrefix+userID, token, refreshTTL).Err(); err != nil {
		return errors.Wrap(err, "store refresh token")
	}
	return nil
}

// RefreshToken returns the stored refresh token for a user, or ErrCacheMiss.
func (c *Cache) RefreshToken(ctx context.Context, userID string) (string, error) {
	token, err := c.client.Get(ctx, refreshKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", errors.Wrap(err, "get refresh token")
	}
	return token, nil
}

// DeleteRefreshToken revokes a user's refresh token.
func (c *Cache) DeleteRefreshToken(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, refreshKeyPrefix+userID).Err(); err != nil {
		return errors.Wrap(err, "delete refresh token")
	}
	return nil
}
