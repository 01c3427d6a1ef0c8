package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
)

type mockStatsAggregator struct {
	stats *model.SaleStats
	err   error
}

func (m *mockStatsAggregator) GetStats(ctx context.Context, saleID string) (*model.SaleStats, error) {
	return m.stats, m.err
}

func TestStatsHandler_GetStats_RequiresAdmin(t *testing.T) {
	app := fiber.New()
	app.Use(withUser("user-1"))
	h := NewStatsHandler(&mockStatsAggregator{stats: &model.SaleStats{SaleID: "sale-1"}})
	app.Get("/admin/flash-sale/:saleId/stats", h.GetStats)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/flash-sale/sale-1/stats", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestStatsHandler_GetStats_AdminAllowed(t *testing.T) {
	app := fiber.New()
	app.Use(withRole("admin-1", "admin"))
	h := NewStatsHandler(&mockStatsAggregator{stats: &model.SaleStats{SaleID: "sale-1", TotalOrders: 10}})
	app.Get("/admin/flash-sale/:saleId/stats", h.GetStats)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/flash-sale/sale-1/stats", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
