package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
)

// StatsAggregator is the service surface StatsHandler drives.
type StatsAggregator interface {
	GetStats(ctx context.Context, saleID string) (*model.SaleStats, error)
}

// StatsHandler handles GET /admin/flash-sale/{saleId}/stats.
type StatsHandler struct {
	stats StatsAggregator
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(stats StatsAggregator) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// GetStats handles GET /admin/flash-sale/{saleId}/stats (admin-only).
func (h *StatsHandler) GetStats(c *fiber.Ctx) error {
	if !requireAdmin(c) {
		return nil
	}

	saleID := c.Params("saleId")
	result, err := h.stats.GetStats(c.Context(), saleID)
	if err != nil {
		return failErr(c, err)
	}

	return ok(c, fiber.StatusOK, result)
}
