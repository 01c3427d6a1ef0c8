//go:build integration

package integration

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

// TestConcurrency_OversellRace covers S1: many distinct users racing for
// fewer units of stock than there are users must never oversell — the
// number of confirmed orders must equal the seeded stock exactly, and
// available+reserved must never go negative.
func TestConcurrency_OversellRace(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	const stockSize = 5
	const userCount = 30

	env.SeedProduct(t, "race-prod", "Contested Item", 2500)
	env.SeedStock(t, "race-prod", stockSize)
	now := time.Now()
	env.SeedSale(t, "race-sale", "race-prod", now.Add(-time.Minute), now.Add(time.Hour), model.SaleStatusActive)

	stop := env.StartWorkers(ctx, 8)
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < userCount; i++ {
		userID := fmt.Sprintf("race-user-%d", i)
		env.SeedUser(t, userID, testenv.Email(userID))
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			_, _ = env.Gateway.Admit(ctx, uid, "race-sale")
		}(userID)
	}
	wg.Wait()

	var completed, failed int
	for i := 0; i < userCount; i++ {
		userID := fmt.Sprintf("race-user-%d", i)
		state := env.PollUntilTerminal(t, userID, 20*time.Second)
		switch state.Status {
		case model.JobStatusCompleted:
			if state.Success {
				completed++
			} else {
				failed++
			}
		case model.JobStatusFailed:
			failed++
		}
	}

	assert.Equal(t, stockSize, completed, "exactly stockSize purchases should succeed")
	assert.Equal(t, userCount-stockSize, failed)

	stock := env.StockRow(t, "race-prod")
	assert.Equal(t, 0, stock.AvailableQuantity)
	assert.Equal(t, 0, stock.ReservedQuantity)
	assert.GreaterOrEqual(t, stock.AvailableQuantity, 0)
	assert.GreaterOrEqual(t, stock.ReservedQuantity, 0)

	counts := env.OrderCountForProduct(t, "race-prod")
	assert.Equal(t, stockSize, counts.Confirmed)
}

// TestConcurrency_DuplicateSameUser covers S2: the same user firing many
// concurrent purchase attempts at the same sale must result in at most one
// confirmed order, with every other attempt rejected as a duplicate.
func TestConcurrency_DuplicateSameUser(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	env.SeedProduct(t, "dup-prod", "Popular Item", 999)
	env.SeedStock(t, "dup-prod", 10)
	now := time.Now()
	env.SeedSale(t, "dup-sale", "dup-prod", now.Add(-time.Minute), now.Add(time.Hour), model.SaleStatusActive)
	env.SeedUser(t, "dup-user", testenv.Email("dup-user"))

	stop := env.StartWorkers(ctx, 4)
	defer stop()

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	var admitted int
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.Gateway.Admit(ctx, "dup-user", "dup-sale"); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.GreaterOrEqual(t, admitted, 1)

	state := env.PollUntilTerminal(t, "dup-user", 10*time.Second)
	require.Equal(t, model.JobStatusCompleted, state.Status)
	assert.True(t, state.Success)

	counts := env.OrderCountForProduct(t, "dup-prod")
	assert.Equal(t, 1, counts.Confirmed)

	stock := env.StockRow(t, "dup-prod")
	assert.Equal(t, 9, stock.AvailableQuantity)
}
