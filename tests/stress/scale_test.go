//go:build stress

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

// TestStress_QueueStatsUnderLoad admits a large batch of jobs with no
// workers running, checks the queue reports them all as waiting, then
// starts workers and checks the queue drains to zero waiting/active with
// completed+failed accounting for the whole batch.
func TestStress_QueueStatsUnderLoad(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}
	env := testenv.New(t)
	ctx := context.Background()

	env.SeedProduct(t, "scale-prod", "Bulk Item", 199)
	env.SeedStock(t, "scale-prod", 200)
	now := time.Now()
	env.SeedSale(t, "scale-sale", "scale-prod", now.Add(-time.Minute), now.Add(time.Hour), model.SaleStatusActive)

	const batch = 200
	var wg sync.WaitGroup
	for i := 0; i < batch; i++ {
		userID := fmt.Sprintf("scale-user-%d", i)
		env.SeedUser(t, userID, testenv.Email(userID))
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			_, err := env.Gateway.Admit(ctx, uid, "scale-sale")
			require.NoError(t, err)
		}(userID)
	}
	wg.Wait()

	stats, err := env.Queue.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, batch, stats.Waiting+stats.Active)

	stop := env.StartWorkers(ctx, 20)
	defer stop()

	for i := 0; i < batch; i++ {
		userID := fmt.Sprintf("scale-user-%d", i)
		env.PollUntilTerminal(t, userID, 30*time.Second)
	}

	require.Eventually(t, func() bool {
		s, err := env.Queue.GetStats(ctx)
		return err == nil && s.Waiting == 0 && s.Active == 0
	}, 5*time.Second, 50*time.Millisecond)

	final, err := env.Queue.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, batch, final.Completed+final.Failed)
}
