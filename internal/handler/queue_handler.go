package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/queue"
)

// QueueStatsProvider is the Job Queue surface GET /queue/stats reads.
type QueueStatsProvider interface {
	GetStats(ctx context.Context) (queue.Stats, error)
}

// QueueHandler handles GET /queue/stats and GET /queue/health.
type QueueHandler struct {
	queue QueueStatsProvider
	db    Pinger
	cache Pinger
}

// NewQueueHandler creates a QueueHandler. db and cache are pinged for the
// health check's dependency breakdown.
func NewQueueHandler(q QueueStatsProvider, db, cache Pinger) *QueueHandler {
	return &QueueHandler{queue: q, db: db, cache: cache}
}

// GetStats handles GET /queue/stats (admin-only).
func (h *QueueHandler) GetStats(c *fiber.Ctx) error {
	if !requireAdmin(c) {
		return nil
	}

	stats, err := h.queue.GetStats(c.Context())
	if err != nil {
		return failErr(c, err)
	}

	return ok(c, fiber.StatusOK, stats)
}

// GetHealth handles GET /queue/health: reports the queue's dependencies
// (Durable Store, Coordination Store) individually.
func (h *QueueHandler) GetHealth(c *fiber.Ctx) error {
	system := fiber.Map{}
	healthy := true

	if err := h.db.Ping(c.Context()); err != nil {
		log.Warn().Err(err).Msg("queue health: durable store unreachable")
		system["database"] = "unhealthy"
		healthy = false
	} else {
		system["database"] = "healthy"
	}

	if err := h.cache.Ping(c.Context()); err != nil {
		log.Warn().Err(err).Msg("queue health: coordination store unreachable")
		system["coordinationStore"] = "unhealthy"
		healthy = false
	} else {
		system["coordinationStore"] = "healthy"
	}

	status := "healthy"
	code := fiber.StatusOK
	if !healthy {
		status = "unhealthy"
		code = fiber.StatusServiceUnavailable
	}

	return ok(c, code, fiber.Map{"status": status, "system": system})
}
