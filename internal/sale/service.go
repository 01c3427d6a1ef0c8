// Package sale implements the Sale Service (spec.md §4.D: cache-aside
// status reads) and the Lifecycle Ticker (spec.md §4.J: periodic
// upcoming->active->ended transitions under an advisory lock).
package sale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/apperr"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/store/postgres"
)

// JoinedSnapshot is an alias for the Durable Store's joined row type, kept
// so callers of this package never need to import the postgres package
// directly.
type JoinedSnapshot = postgres.JoinedSnapshot

// Repository is the Durable Store surface the Sale Service reads through on
// a cache miss.
type Repository interface {
	GetByID(ctx context.Context, saleID string) (*model.FlashSale, error)
	GetMostRecentActive(ctx context.Context) (*model.FlashSale, error)
	GetJoinedSnapshot(ctx context.Context, saleID string) (*JoinedSnapshot, error)
}

// Cache is the coordination-store-backed read cache.
type Cache interface {
	Get(ctx context.Context, saleID string) (*model.SaleSnapshot, error)
	Set(ctx context.Context, saleID string, snap *model.SaleSnapshot, alsoDefault bool) error
	Invalidate(ctx context.Context, saleID string) error
}

// Service is the Sale Service. It is the sole writer of the sale-status
// cache (spec.md §3 Ownership).
type Service struct {
	repo  Repository
	cache Cache
	now   func() time.Time
}

// New creates a Sale Service.
func New(repo Repository, cache Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// GetStatus implements getStatus(saleId?) per spec.md §4.D: cache read,
// and on miss a joined load plus wall-clock status recompute and
// serialization back into the cache.
func (s *Service) GetStatus(ctx context.Context, saleID string) (*model.SaleSnapshot, error) {
	if snap, err := s.cache.Get(ctx, saleID); err == nil {
		return snap, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	joined, resolvedID, err := s.loadJoined(ctx, saleID)
	if err != nil {
		return nil, err
	}

	snap := s.toSnapshot(joined)
	if err := s.cache.Set(ctx, resolvedID, snap, saleID == ""); err != nil {
		return nil, fmt.Errorf("populate sale cache %s: %w", resolvedID, err)
	}
	return snap, nil
}

// GetUncached bypasses the cache entirely; the Worker Pool uses this for
// the authoritative check inside the purchase transaction (spec.md §4.G
// step 2: "from D's uncached path").
func (s *Service) GetUncached(ctx context.Context, saleID string) (*JoinedSnapshot, error) {
	joined, _, err := s.loadJoined(ctx, saleID)
	return joined, err
}

func (s *Service) loadJoined(ctx context.Context, saleID string) (*JoinedSnapshot, string, error) {
	if saleID != "" {
		snap, err := s.repo.GetJoinedSnapshot(ctx, saleID)
		return snap, saleID, err
	}

	active, err := s.repo.GetMostRecentActive(ctx)
	if err != nil {
		return nil, "", apperr.ErrSaleNotActive
	}
	snap, err := s.repo.GetJoinedSnapshot(ctx, active.SaleID)
	return snap, active.SaleID, err
}

func (s *Service) toSnapshot(j *JoinedSnapshot) *model.SaleSnapshot {
	now := s.now()
	status := j.Sale.ComputedStatus(now)

	var untilStart, untilEnd int64
	if status == model.SaleStatusUpcoming {
		untilStart = int64(j.Sale.StartTime.Sub(now).Seconds())
	}
	if status != model.SaleStatusEnded {
		untilEnd = int64(j.Sale.EndTime.Sub(now).Seconds())
	}

	return &model.SaleSnapshot{
		SaleID:         j.Sale.SaleID,
		Product:        j.Product.ToResponse(),
		Status:         status,
		StartTime:      j.Sale.StartTime,
		EndTime:        j.Sale.EndTime,
		TimeUntilStart: nonNegative(untilStart),
		TimeUntilEnd:   nonNegative(untilEnd),
		Stock:          j.Stock.ToResponse(),
	}
}

// GetMostRecentActiveSaleID satisfies gateway.SaleResolver: it resolves an
// omitted saleId to the current active sale without paying for the joined
// snapshot load the status path needs.
func (s *Service) GetMostRecentActiveSaleID(ctx context.Context) (string, error) {
	active, err := s.repo.GetMostRecentActive(ctx)
	if err != nil {
		return "", apperr.ErrNotFound
	}
	return active.SaleID, nil
}

// InvalidateByProductID satisfies stock.CacheInvalidator; the Sale Service
// doesn't know the saleId from a productId alone, so it invalidates the
// default (most-recent-active) slot, which self-heals any saleId-keyed
// entry within its own 30s TTL.
func (s *Service) InvalidateByProductID(ctx context.Context, productID string) {
	_ = s.cache.Invalidate(ctx, "")
}

// InvalidateSale invalidates the cache entry for a specific saleId, used by
// the Lifecycle Ticker after a transition.
func (s *Service) InvalidateSale(ctx context.Context, saleID string) {
	_ = s.cache.Invalidate(ctx, saleID)
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
