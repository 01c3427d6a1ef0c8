//go:build integration

// Package integration exercises the full purchase pipeline — Admission
// Gateway, Job Queue, Purchase Worker Pool, Sale Service, Stock Manager —
// wired against real Postgres and Redis containers (tests/testenv), the
// way a client would observe it: admit, poll, inspect.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/apperr"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
	"github.com/fairyhunter13/flashsale-purchase-processor/tests/testenv"
)

// TestE2E_HappyPath walks one user through admit -> queued -> processing ->
// completed, and verifies the order and stock rows the pipeline wrote.
func TestE2E_HappyPath(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	env.SeedProduct(t, "prod-1", "Limited Sneaker", 19999)
	env.SeedStock(t, "prod-1", 10)
	now := time.Now()
	env.SeedSale(t, "sale-1", "prod-1", now.Add(-time.Minute), now.Add(time.Hour), model.SaleStatusActive)
	env.SeedUser(t, "user-1", testenv.Email("user-1"))

	stop := env.StartWorkers(ctx, 4)
	defer stop()

	result, err := env.Gateway.Admit(ctx, "user-1", "sale-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, result.Status)
	assert.GreaterOrEqual(t, result.EstimatedWaitTime, 5)
	assert.NotEmpty(t, result.JobID)

	state := env.PollUntilTerminal(t, "user-1", 10*time.Second)
	require.Equal(t, model.JobStatusCompleted, state.Status)
	assert.True(t, state.Success)
	assert.NotEmpty(t, state.OrderID)

	order, err := env.Orders.GetByID(ctx, state.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusConfirmed, order.Status)
	assert.Equal(t, "user-1", order.UserID)
	assert.Equal(t, "prod-1", order.ProductID)

	stock := env.StockRow(t, "prod-1")
	assert.Equal(t, 9, stock.AvailableQuantity)
	assert.Equal(t, 0, stock.ReservedQuantity)
	assert.Equal(t, 10, stock.TotalQuantity)

	jobStatus, err := env.Status.GetJobStatus(ctx, result.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, jobStatus.Status)
	assert.Equal(t, state.OrderID, jobStatus.OrderID)
}

// TestE2E_SaleNotActive covers S3: a purchase admitted against a sale that
// has not opened yet fails terminally with SALE_NOT_ACTIVE, and no order or
// stock mutation occurs.
func TestE2E_SaleNotActive(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	env.SeedProduct(t, "prod-2", "Upcoming Gadget", 4999)
	env.SeedStock(t, "prod-2", 10)
	now := time.Now()
	env.SeedSale(t, "sale-2", "prod-2", now.Add(time.Hour), now.Add(2*time.Hour), model.SaleStatusUpcoming)
	env.SeedUser(t, "user-2", testenv.Email("user-2"))

	stop := env.StartWorkers(ctx, 2)
	defer stop()

	_, err := env.Gateway.Admit(ctx, "user-2", "sale-2")
	require.NoError(t, err)

	state := env.PollUntilTerminal(t, "user-2", 10*time.Second)
	assert.Equal(t, model.JobStatusFailed, state.Status)
	assert.Equal(t, "SALE_NOT_ACTIVE", state.Reason)

	stock := env.StockRow(t, "prod-2")
	assert.Equal(t, 10, stock.AvailableQuantity)
	assert.Equal(t, 0, stock.ReservedQuantity)

	counts := env.OrderCountForProduct(t, "prod-2")
	assert.Equal(t, 0, counts.Confirmed+counts.Pending+counts.Failed)
}

// TestE2E_OutOfStock covers a single admitted purchase against an
// already-exhausted product.
func TestE2E_OutOfStock(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	env.SeedProduct(t, "prod-3", "Sold Out Thing", 999)
	env.SeedStock(t, "prod-3", 0)
	now := time.Now()
	env.SeedSale(t, "sale-3", "prod-3", now.Add(-time.Minute), now.Add(time.Hour), model.SaleStatusActive)
	env.SeedUser(t, "user-3", testenv.Email("user-3"))

	stop := env.StartWorkers(ctx, 2)
	defer stop()

	_, err := env.Gateway.Admit(ctx, "user-3", "sale-3")
	require.NoError(t, err)

	state := env.PollUntilTerminal(t, "user-3", 10*time.Second)
	assert.Equal(t, model.JobStatusFailed, state.Status)
	assert.Equal(t, apperr.Code(apperr.ErrOutOfStock), state.Reason)
}

// TestE2E_SaleStatusRead exercises the Sale Service's cache-aside read
// path (component D): the first read populates the cache, a second read
// within the TTL is served from it, and both report consistent stock.
func TestE2E_SaleStatusRead(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	env.SeedProduct(t, "prod-4", "Status Probe", 1500)
	env.SeedStock(t, "prod-4", 3)
	now := time.Now()
	env.SeedSale(t, "sale-4", "prod-4", now.Add(-time.Minute), now.Add(time.Hour), model.SaleStatusActive)

	snap1, err := env.SaleService.GetStatus(ctx, "sale-4")
	require.NoError(t, err)
	assert.Equal(t, model.SaleStatusActive, snap1.Status)
	assert.Equal(t, 3, snap1.Stock.AvailableQuantity)
	assert.Equal(t, 0, snap1.Stock.SoldQuantity)

	snap2, err := env.SaleService.GetStatus(ctx, "sale-4")
	require.NoError(t, err)
	assert.Equal(t, snap1.Stock.AvailableQuantity, snap2.Stock.AvailableQuantity)
}
