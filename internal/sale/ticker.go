package sale

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/flashsale-purchase-processor/pkg/database"
)

const lifecycleLockID = "lifecycle_ticker"

// LockManager is the subset of stock.Manager the Ticker needs to serialize
// its sweep across nodes via a Postgres advisory lock (spec.md §4.J).
type LockManager interface {
	TryAcquireLock(ctx context.Context, lockID string) (*database.AdvisoryLock, bool, error)
}

// TransitionRepository is the Durable Store surface the Ticker mutates.
type TransitionRepository interface {
	TransitionUpcomingToActive(ctx context.Context, now time.Time) ([]string, error)
	TransitionActiveToEnded(ctx context.Context, now time.Time) ([]string, error)
}

// Ticker is the Lifecycle Ticker: a long-lived task, owned by the
// Supervisor, that flips sale status by wall clock on a fixed interval.
type Ticker struct {
	repo     TransitionRepository
	locks    LockManager
	service  *Service
	interval time.Duration
	now      func() time.Time
}

// NewTicker creates a Ticker running at the given interval (spec.md §4.J
// recommends 1s; 5s is acceptable given the 30s cache TTL).
func NewTicker(repo TransitionRepository, locks LockManager, service *Service, interval time.Duration) *Ticker {
	return &Ticker{repo: repo, locks: locks, service: service, interval: interval, now: time.Now}
}

// Run blocks ticking at t.interval until ctx is cancelled.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Ticker) tick(ctx context.Context) {
	lock, ok, err := t.locks.TryAcquireLock(ctx, lifecycleLockID)
	if err != nil {
		log.Error().Err(err).Msg("lifecycle ticker: acquire lock failed")
		return
	}
	if !ok {
		// Another node is running this tick; skip.
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			log.Error().Err(err).Msg("lifecycle ticker: release lock failed")
		}
	}()

	now := t.now()
	activated, err := t.repo.TransitionUpcomingToActive(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("lifecycle ticker: upcoming->active failed")
	}
	ended, err := t.repo.TransitionActiveToEnded(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("lifecycle ticker: active->ended failed")
	}

	for _, saleID := range activated {
		t.service.InvalidateSale(ctx, saleID)
	}
	for _, saleID := range ended {
		t.service.InvalidateSale(ctx, saleID)
	}
	if n := len(activated) + len(ended); n > 0 {
		log.Info().Int("activated", len(activated)).Int("ended", len(ended)).Msg("lifecycle ticker: transitioned sales")
	}
}
