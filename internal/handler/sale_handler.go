package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/apperr"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
)

// SaleService is the service surface SaleHandler drives.
type SaleService interface {
	GetStatus(ctx context.Context, saleID string) (*model.SaleSnapshot, error)
}

// SaleHandler handles GET /flash-sale/status.
type SaleHandler struct {
	sale SaleService
}

// NewSaleHandler creates a SaleHandler.
func NewSaleHandler(sale SaleService) *SaleHandler {
	return &SaleHandler{sale: sale}
}

// GetStatus handles GET /flash-sale/status: an optional saleId query param
// resolves to the most recently active sale when omitted (spec.md §4.D).
// No active sale is not an error here: the route returns 200 with a null
// data payload (spec.md §6).
func (h *SaleHandler) GetStatus(c *fiber.Ctx) error {
	saleID := c.Query("saleId")

	snap, err := h.sale.GetStatus(c.Context(), saleID)
	if err != nil {
		if errors.Is(err, apperr.ErrSaleNotActive) {
			return ok(c, fiber.StatusOK, nil)
		}
		return failErr(c, err)
	}

	return ok(c, fiber.StatusOK, snap)
}
