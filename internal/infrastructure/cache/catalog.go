package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/waste3d/cardvault-api/internal/domain"

	"github.com/redis/go-redis/v9"
)

const catalogKey = "cards:catalog:active"

// CatalogCache keeps the active catalog in redis. Supply counters in a cached
// copy can lag the database by up to the TTL.
type CatalogCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCatalogCache(client *redis.Client, ttl time.Duration) *CatalogCache {
	return &CatalogCache{client: client, ttl: ttl}
}

// GetCatalog reports a miss on any redis or decode error.
func (c *CatalogCache) GetCatalog(ctx context.Context) ([]domain.Collectible, bool) {
	val, err := c.client.Get(ctx, catalogKey).Bytes()
	if err != nil {
		return nil, false
	}

	var items []domain.Collectible
	if err := json.Unmarshal(val, &items); err != nil {
		return nil, false
	}
	return items, true
}

func (c *CatalogCache) SetCatalog(ctx context.Context, items []domain.Collectible) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, catalogKey, data, c.ttl).Err()
}

func (c *CatalogCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, catalogKey).Err()
}
