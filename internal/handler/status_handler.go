package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/apperr"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
)

// StatusService is the service surface StatusHandler drives.
type StatusService interface {
	GetUserStatus(ctx context.Context, userID string) (*model.UserPurchaseState, error)
	GetJobStatus(ctx context.Context, jobID string) (*model.PurchaseJob, error)
}

// StatusHandler handles GET /purchase/status and GET /purchase/job/{jobId}.
type StatusHandler struct {
	status StatusService
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(status StatusService) *StatusHandler {
	return &StatusHandler{status: status}
}

// GetUserStatus handles GET /purchase/status: the caller's own most recent
// purchase state, or a not-in-flight default if none exists.
func (h *StatusHandler) GetUserStatus(c *fiber.Ctx) error {
	userID, authed := requireAuth(c)
	if !authed {
		return nil
	}

	state, err := h.status.GetUserStatus(c.Context(), userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return ok(c, fiber.StatusOK, model.UserPurchaseState{})
		}
		return failErr(c, err)
	}

	return ok(c, fiber.StatusOK, state)
}

// GetJobStatus handles GET /purchase/job/{jobId}: the full job snapshot.
func (h *StatusHandler) GetJobStatus(c *fiber.Ctx) error {
	if _, authed := requireAuth(c); !authed {
		return nil
	}

	jobID := c.Params("jobId")
	job, err := h.status.GetJobStatus(c.Context(), jobID)
	if err != nil {
		return failErr(c, err)
	}

	return ok(c, fiber.StatusOK, job)
}
