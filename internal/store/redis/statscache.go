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

const statsTTL = 5 * time.Minute

// StatsCache backs the Stats Aggregator's cache (sale_stats:<saleId>, TTL
// 300s, spec.md §4.I).
type StatsCache struct {
	client *redis.Client
}

// NewStatsCache creates a StatsCache.
func NewStatsCache(client *redis.Client) *StatsCache {
	return &StatsCache{client: client}
}

// Get returns the cached stats for saleID, or apperr.ErrNotFound on a miss.
func (c *StatsCache) Get(ctx context.Context, saleID string) (*model.SaleStats, error) {
	raw, err := c.client.Get(ctx, statsKey(saleID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("get stats cache %s: %w", saleID, err)
	}
	var stats model.SaleStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return nil, fmt.Errorf("unmarshal stats cache %s: %w", saleID, err)
	}
	return &stats, nil
}

// Set writes stats for saleID with the fixed 300s TTL.
func (c *StatsCache) Set(ctx context.Context, saleID string, stats *model.SaleStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats %s: %w", saleID, err)
	}
	if err := c.client.Set(ctx, statsKey(saleID), data, statsTTL).Err(); err != nil {
		return fmt.Errorf("set stats cache %s: %w", saleID, err)
	}
	return nil
}

// Invalidate removes the cached stats for saleID, e.g. after an order's
// terminal state changes.
func (c *StatsCache) Invalidate(ctx context.Context, saleID string) error {
	if err := c.client.Del(ctx, statsKey(saleID)).Err(); err != nil {
		return fmt.Errorf("invalidate stats cache %s: %w", saleID, err)
	}
	return nil
}
