package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/apperr"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
)

const saleStatusTTL = 30 * time.Second

// SaleCache is the Sale Service's read-path cache-aside store
// (flash_sale_status[_<saleId>], TTL 30s, spec.md §4.D). It is the sole
// writer of the sale-status cache; the Stock Manager and Lifecycle Ticker
// only invalidate through it, never write sale snapshots directly.
type SaleCache struct {
	client *redis.Client
}

// NewSaleCache creates a SaleCache.
func NewSaleCache(client *redis.Client) *SaleCache {
	return &SaleCache{client: client}
}

// Get returns the cached snapshot for saleId, or apperr.ErrNotFound on miss.
// An empty saleID reads the "most recent active sale" slot.
func (c *SaleCache) Get(ctx context.Context, saleID string) (*model.SaleSnapshot, error) {
	raw, err := c.client.Get(ctx, saleStatusKey(saleID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("get sale cache %s: %w", saleID, err)
	}
	var snap model.SaleSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal sale cache %s: %w", saleID, err)
	}
	return &snap, nil
}

// Set writes the snapshot under both the saleId-specific key and, when
// snap is the most-recently-active sale, the unqualified key the Sale
// Service's GetStatus reads when the client omits saleId.
func (c *SaleCache) Set(ctx context.Context, saleID string, snap *model.SaleSnapshot, alsoDefault bool) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal sale snapshot %s: %w", saleID, err)
	}
	pipe := c.client.Pipeline()
	pipe.Set(ctx, saleStatusKey(saleID), data, saleStatusTTL)
	if alsoDefault {
		pipe.Set(ctx, saleStatusKey(""), data, saleStatusTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set sale cache %s: %w", saleID, err)
	}
	return nil
}

// Invalidate deletes the cached snapshot for saleId and the default slot,
// so the next read repopulates from the Durable Store. Errors here are
// expected to be logged and swallowed by callers per spec.md §7 — a stale
// entry self-heals at the 30s TTL boundary regardless.
func (c *SaleCache) Invalidate(ctx context.Context, saleID string) error {
	if err := c.client.Del(ctx, saleStatusKey(saleID), saleStatusKey("")).Err(); err != nil {
		return fmt.Errorf("invalidate sale cache %s: %w", saleID, err)
	}
	return nil
}
