//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
	"github.com/fairyhunter13/flashsale-purchase-processor/tests/testenv"
)

// TestStats_Accuracy covers S6: the Stats Aggregator's counts must match
// the orders/stock the pipeline actually produced — 7 confirmed purchases
// against 7 units of stock and 2 jobs rejected for being out of stock. An
// out-of-stock job fails at the reserve step, before any order row is
// inserted, so only the 7 confirmed orders are counted.
func TestStats_Accuracy(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	env.SeedProduct(t, "stats-prod", "Measured Item", 1200)
	env.SeedStock(t, "stats-prod", 7)
	now := time.Now()
	env.SeedSale(t, "stats-sale", "stats-prod", now.Add(-time.Minute), now.Add(time.Hour), model.SaleStatusActive)

	stop := env.StartWorkers(ctx, 6)
	defer stop()

	const winners = 7
	const losers = 2
	total := winners + losers
	for i := 0; i < total; i++ {
		userID := fmt.Sprintf("stats-user-%d", i)
		env.SeedUser(t, userID, testenv.Email(userID))
		_, err := env.Gateway.Admit(ctx, userID, "stats-sale")
		require.NoError(t, err)
	}

	var confirmed, failed int
	for i := 0; i < total; i++ {
		userID := fmt.Sprintf("stats-user-%d", i)
		state := env.PollUntilTerminal(t, userID, 20*time.Second)
		if state.Status == model.JobStatusCompleted && state.Success {
			confirmed++
		} else {
			failed++
		}
	}
	require.Equal(t, winners, confirmed)
	require.Equal(t, losers, failed)

	stats, err := env.Stats.GetStats(ctx, "stats-sale")
	require.NoError(t, err)
	assert.Equal(t, winners, stats.TotalOrders)
	assert.Equal(t, winners, stats.Confirmed)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 7, stats.TotalQuantity)
	assert.Equal(t, 0, stats.AvailableQuantity)
	assert.Equal(t, winners, stats.SoldQuantity)
	assert.InDelta(t, 1.0, stats.ConversionRate, 0.0001)
}

// TestStats_CacheServesStaleUntilInvalidated exercises the Stats
// Aggregator's 300s cache: a second read within the TTL reflects the
// first snapshot even after the underlying stock changes, until
// Invalidate is called.
func TestStats_CacheServesStaleUntilInvalidated(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	env.SeedProduct(t, "stats2-prod", "Cached Item", 300)
	env.SeedStock(t, "stats2-prod", 3)
	now := time.Now()
	env.SeedSale(t, "stats2-sale", "stats2-prod", now.Add(-time.Minute), now.Add(time.Hour), model.SaleStatusActive)

	first, err := env.Stats.GetStats(ctx, "stats2-sale")
	require.NoError(t, err)
	assert.Equal(t, 0, first.TotalOrders)

	env.SeedUser(t, "stats2-user", testenv.Email("stats2-user"))
	stop := env.StartWorkers(ctx, 2)
	_, err = env.Gateway.Admit(ctx, "stats2-user", "stats2-sale")
	require.NoError(t, err)
	env.PollUntilTerminal(t, "stats2-user", 10*time.Second)
	stop()

	stale, err := env.Stats.GetStats(ctx, "stats2-sale")
	require.NoError(t, err)
	assert.Equal(t, 0, stale.TotalOrders, "cached snapshot should not yet reflect the new order")

	env.Stats.Invalidate(ctx, "stats2-sale")

	fresh, err := env.Stats.GetStats(ctx, "stats2-sale")
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.TotalOrders)
	assert.Equal(t, 1, fresh.Confirmed)
}
