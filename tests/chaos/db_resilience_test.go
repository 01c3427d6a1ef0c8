//go:build chaos

package chaos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/queue"
	"github.com/fairyhunter13/flashsale-purchase-processor/tests/testenv"
)

// neverReturns simulates a worker process that crashed mid-job: it leases
// the job (the queue does that before invoking the handler) and then never
// returns, so the lease is never explicitly released. Recovery depends
// entirely on the queue's own lease TTL plus its background reaper.
func neverReturns(ctx context.Context, job *queue.Job) error {
	<-ctx.Done()
	return ctx.Err()
}

// TestResilience_StalledLeaseIsReapedAndRetried covers S4: a job whose
// worker disappears mid-processing (lease never released) is recovered by
// the stalled-job reaper once its lease expires, and a healthy worker
// pool subsequently completes it.
func TestResilience_StalledLeaseIsReapedAndRetried(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping resilience test that waits out the queue's lease TTL in short mode")
	}
	env := testenv.New(t)
	ctx := context.Background()

	env.SeedProduct(t, "res-prod", "Resilient Item", 750)
	env.SeedStock(t, "res-prod", 5)
	now := time.Now()
	env.SeedSale(t, "res-sale", "res-prod", now.Add(-time.Minute), now.Add(time.Hour), model.SaleStatusActive)
	env.SeedUser(t, "res-user", testenv.Email("res-user"))

	_, err := env.Gateway.Admit(ctx, "res-user", "res-sale")
	require.NoError(t, err)

	// Simulate the crashed worker: it picks the job up (leasing it) and
	// hangs forever. It is never given a chance to unlease, matching a
	// process that died without unwinding its defer.
	crashedCtx, stopCrashed := context.WithCancel(ctx)
	go func() { _ = env.Queue.Process(crashedCtx, 1, neverReturns) }()
	defer stopCrashed()

	require.Eventually(t, func() bool {
		j, err := env.Queue.GetJob(ctx, mustJobID(t, env, "res-user"))
		return err == nil && j != nil && j.Status == model.JobStatusProcessing
	}, 5*time.Second, 100*time.Millisecond, "crashed worker should have picked up the job")

	// Now bring up a real worker pool. The job is still "leased" from the
	// crashed worker's perspective; it only becomes visible again once the
	// queue's reaper notices the lease expired (leaseTTL + reapInterval).
	stopReal := env.StartWorkers(ctx, 2)
	defer stopReal()

	state := env.PollUntilTerminal(t, "res-user", 60*time.Second)
	require.Equal(t, model.JobStatusCompleted, state.Status)
	assert.True(t, state.Success)

	stock := env.StockRow(t, "res-prod")
	assert.Equal(t, 4, stock.AvailableQuantity)
	assert.Equal(t, 0, stock.ReservedQuantity)

	counts := env.OrderCountForProduct(t, "res-prod")
	assert.Equal(t, 1, counts.Confirmed)
}

func mustJobID(t *testing.T, env *testenv.Env, userID string) string {
	t.Helper()
	state, err := env.Status.GetUserStatus(context.Background(), userID)
	require.NoError(t, err)
	return state.JobID
}
