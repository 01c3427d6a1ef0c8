package handler

import (
	"context"
	"fmt"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/apperr"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/gateway"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/validator"
)

// AdmissionGateway is the service surface PurchaseHandler drives.
type AdmissionGateway interface {
	Admit(ctx context.Context, userID, saleID string) (*gateway.Result, error)
}

// PurchaseHandler handles POST /purchase.
type PurchaseHandler struct {
	gateway  AdmissionGateway
	validate *govalidator.Validate
}

// NewPurchaseHandler creates a PurchaseHandler.
func NewPurchaseHandler(gw AdmissionGateway) *PurchaseHandler {
	return &PurchaseHandler{gateway: gw, validate: validator.New()}
}

// purchaseRequest is the optional body for POST /purchase: saleId may be
// omitted to target the most recently activated sale (spec.md §4.F step 3),
// but if present it must not be whitespace-only.
type purchaseRequest struct {
	SaleID string `json:"saleId" validate:"omitempty,notblank"`
}

// Purchase handles POST /purchase: admits a purchase intent and returns
// 202 with the queued job, or a business-error status per spec.md §7.
func (h *PurchaseHandler) Purchase(c *fiber.Ctx) error {
	userID, ok := requireAuth(c)
	if !ok {
		return nil
	}

	var req purchaseRequest
	_ = c.BodyParser(&req) // empty body is valid; ignore parse errors on an optional payload

	if err := h.validate.Struct(req); err != nil {
		return failErr(c, fmt.Errorf("%w: saleId: %w", apperr.ErrInvalidRequest, err))
	}

	result, err := h.gateway.Admit(c.Context(), userID, req.SaleID)
	if err != nil {
		return failErr(c, err)
	}

	return ok(c, fiber.StatusAccepted, result)
}
