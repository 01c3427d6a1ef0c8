// Package middleware holds the thin Fiber middleware this module owns.
// Bearer-token authentication itself is an out-of-scope external
// collaborator (spec.md §1): in production a gateway upstream of this
// service verifies the token and forwards the resolved identity. DevAuth
// stands in for that collaborator so the handlers in internal/handler have
// something to read c.Locals("userId")/("role") from, resolving identity
// from plain headers instead of a signature.
package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
)

// UserStore is the auto-registration surface (spec.md §3: "Created on
// first observed email").
type UserStore interface {
	GetOrCreateByEmail(ctx context.Context, userID, email string) (*model.User, error)
}

// DevAuth resolves userId/role from X-User-Id/X-User-Email/X-User-Role
// headers and stashes them in Fiber locals, auto-registering the user on
// first observed email. Requests without X-User-Id pass through
// unauthenticated; handler.requireAuth/requireAdmin reject those.
func DevAuth(users UserStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-Id")
		if userID == "" {
			return c.Next()
		}

		email := c.Get("X-User-Email")
		if email == "" {
			email = userID + "@example.invalid"
		}

		u, err := users.GetOrCreateByEmail(c.Context(), userID, email)
		if err != nil {
			return c.Next()
		}

		role := string(u.Role)
		if hdr := c.Get("X-User-Role"); hdr == string(model.RoleAdmin) && u.Role == model.RoleAdmin {
			role = hdr
		}

		c.Locals("userId", u.UserID)
		c.Locals("role", role)
		return c.Next()
	}
}
