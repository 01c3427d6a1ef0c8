//go:build chaos

package chaos

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
	"github.com/fairyhunter13/flashsale-purchase-processor/tests/testenv"
)

// TestMixedLoad_PurchasesLifecycleAndStatsConcurrently runs purchases, the
// Lifecycle Ticker, and repeated stats reads against the same sale at
// once, the way a real deployment would under a live flash sale: nothing
// here should deadlock, error, or report stock that doesn't reconcile with
// the orders actually created.
func TestMixedLoad_PurchasesLifecycleAndStatsConcurrently(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mixed-load test in short mode")
	}
	env := testenv.New(t)
	ctx := context.Background()

	env.SeedProduct(t, "mixed-prod", "Mixed Load Item", 450)
	env.SeedStock(t, "mixed-prod", 20)
	now := time.Now()
	env.SeedSale(t, "mixed-sale", "mixed-prod", now.Add(-time.Minute), now.Add(3*time.Second), model.SaleStatusActive)

	tickerCtx, stopTicker := context.WithCancel(ctx)
	defer stopTicker()
	go env.Ticker.Run(tickerCtx)

	statsCtx, stopStatsReader := context.WithCancel(ctx)
	defer stopStatsReader()
	var statsErrs sync.WaitGroup
	statsErrs.Add(1)
	go func() {
		defer statsErrs.Done()
		for {
			select {
			case <-statsCtx.Done():
				return
			default:
			}
			_, err := env.Stats.GetStats(context.Background(), "mixed-sale")
			assert.NoError(t, err)
			env.Stats.Invalidate(context.Background(), "mixed-sale")
			time.Sleep(20 * time.Millisecond)
		}
	}()

	stopWorkers := env.StartWorkers(ctx, 8)
	defer stopWorkers()

	const userCount = 40
	var wg sync.WaitGroup
	for i := 0; i < userCount; i++ {
		userID := fmt.Sprintf("mixed-user-%d", i)
		env.SeedUser(t, userID, testenv.Email(userID))
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			_, _ = env.Gateway.Admit(ctx, uid, "mixed-sale")
		}(userID)
	}
	wg.Wait()

	var completed int
	for i := 0; i < userCount; i++ {
		userID := fmt.Sprintf("mixed-user-%d", i)
		state := env.PollUntilTerminal(t, userID, 20*time.Second)
		if state.Status == model.JobStatusCompleted && state.Success {
			completed++
		}
	}

	stopStatsReader()
	statsErrs.Wait()

	require.LessOrEqual(t, completed, 20)

	stock := env.StockRow(t, "mixed-prod")
	assert.Equal(t, 0, stock.ReservedQuantity)
	assert.Equal(t, 20-completed, stock.AvailableQuantity)

	counts := env.OrderCountForProduct(t, "mixed-prod")
	assert.Equal(t, completed, counts.Confirmed)
}
