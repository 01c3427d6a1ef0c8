package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/queue"
)

type mockQueueStats struct {
	stats queue.Stats
	err   error
}

func (m *mockQueueStats) GetStats(ctx context.Context) (queue.Stats, error) {
	return m.stats, m.err
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}

func withRole(userID, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("userId", userID)
		c.Locals("role", role)
		return c.Next()
	}
}

func TestQueueHandler_GetStats_AdminOnly(t *testing.T) {
	app := fiber.New()
	app.Use(withUser("user-1"))
	h := NewQueueHandler(&mockQueueStats{stats: queue.Stats{Total: 5}}, &mockPinger{}, &mockPinger{})
	app.Get("/queue/stats", h.GetStats)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/queue/stats", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestQueueHandler_GetStats_AdminAllowed(t *testing.T) {
	app := fiber.New()
	app.Use(withRole("admin-1", "admin"))
	h := NewQueueHandler(&mockQueueStats{stats: queue.Stats{Total: 5}}, &mockPinger{}, &mockPinger{})
	app.Get("/queue/stats", h.GetStats)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/queue/stats", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestQueueHandler_GetHealth_Healthy(t *testing.T) {
	app := fiber.New()
	h := NewQueueHandler(&mockQueueStats{}, &mockPinger{}, &mockPinger{})
	app.Get("/queue/health", h.GetHealth)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/queue/health", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestQueueHandler_GetHealth_Unhealthy(t *testing.T) {
	app := fiber.New()
	h := NewQueueHandler(&mockQueueStats{}, &mockPinger{err: errors.New("unreachable")}, &mockPinger{})
	app.Get("/queue/health", h.GetHealth)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/queue/health", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
