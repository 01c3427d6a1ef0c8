package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
)

// Auth is out of scope (spec.md §1): upstream middleware resolves the
// bearer token and stashes userId/role in Fiber locals before any handler
// in this package runs. These helpers only read what's already there.

func userIDFromContext(c *fiber.Ctx) (string, bool) {
	userID, ok := c.Locals("userId").(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

func roleFromContext(c *fiber.Ctx) model.Role {
	role, ok := c.Locals("role").(string)
	if !ok {
		return model.RoleUser
	}
	return model.Role(role)
}

// requireAuth returns the authenticated userId, or writes a 401 envelope
// and returns ok=false. Callers must return immediately when ok is false.
func requireAuth(c *fiber.Ctx) (userID string, ok bool) {
	userID, present := userIDFromContext(c)
	if !present {
		_ = fail(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
		return "", false
	}
	return userID, true
}

// requireAdmin writes a 401/403 envelope and returns ok=false if the
// caller isn't an authenticated admin. Callers must return immediately
// when ok is false.
func requireAdmin(c *fiber.Ctx) (ok bool) {
	if _, present := userIDFromContext(c); !present {
		_ = fail(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
		return false
	}
	if roleFromContext(c) != model.RoleAdmin {
		_ = fail(c, fiber.StatusForbidden, "FORBIDDEN", "admin role required")
		return false
	}
	return true
}
