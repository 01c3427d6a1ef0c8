//go:build stress

// Package stress runs the purchase pipeline at larger scale than
// tests/integration to surface contention bugs that only appear once
// enough goroutines are racing the same stock row.
package stress

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

// TestStress_OversellAtScale covers S1 at a scale large enough that the
// reserve/confirm/release protocol's row-level locking, not luck, is what
// keeps the sold count pinned to the seeded stock.
func TestStress_OversellAtScale(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}
	env := testenv.New(t)
	ctx := context.Background()

	const stockSize = 50
	const userCount = 500

	env.SeedProduct(t, "stress-prod", "Flash Item", 1999)
	env.SeedStock(t, "stress-prod", stockSize)
	now := time.Now()
	env.SeedSale(t, "stress-sale", "stress-prod", now.Add(-time.Minute), now.Add(time.Hour), model.SaleStatusActive)

	stop := env.StartWorkers(ctx, 32)
	defer stop()

	var wg sync.WaitGroup
	sem := make(chan struct{}, 64)
	for i := 0; i < userCount; i++ {
		userID := fmt.Sprintf("stress-user-%d", i)
		env.SeedUser(t, userID, testenv.Email(userID))
		wg.Add(1)
		sem <- struct{}{}
		go func(uid string) {
			defer wg.Done()
			defer func() { <-sem }()
			_, _ = env.Gateway.Admit(ctx, uid, "stress-sale")
		}(userID)
	}
	wg.Wait()

	var confirmed int
	for i := 0; i < userCount; i++ {
		userID := fmt.Sprintf("stress-user-%d", i)
		state := env.PollUntilTerminal(t, userID, 60*time.Second)
		if state.Status == model.JobStatusCompleted && state.Success {
			confirmed++
		}
	}

	assert.Equal(t, stockSize, confirmed)

	stock := env.StockRow(t, "stress-prod")
	assert.Equal(t, 0, stock.AvailableQuantity)
	assert.Equal(t, 0, stock.ReservedQuantity)

	counts := env.OrderCountForProduct(t, "stress-prod")
	assert.Equal(t, stockSize, counts.Confirmed)
	require.Equal(t, 0, counts.Failed)
}
