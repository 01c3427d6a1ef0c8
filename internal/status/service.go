// Package status implements the Status Service (spec.md §4.H): pure
// coordination-store reads for per-user and per-job purchase state, with
// no Durable Store fallback.
package status

import (
	"context"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
)

// Store is the coordination-store read surface.
type Store interface {
	GetUserState(ctx context.Context, userID string) (*model.UserPurchaseState, error)
	GetJob(ctx context.Context, jobID string) (*model.PurchaseJob, error)
}

// Service is the Status Service.
type Service struct {
	store Store
}

// New creates a Service.
func New(store Store) *Service {
	return &Service{store: store}
}

// GetUserStatus reads B for userId. A miss is returned as-is
// (apperr.ErrNotFound), which callers treat as "no purchase in flight".
func (s *Service) GetUserStatus(ctx context.Context, userID string) (*model.UserPurchaseState, error) {
	return s.store.GetUserState(ctx, userID)
}

// GetJobStatus reads B for jobId.
func (s *Service) GetJobStatus(ctx context.Context, jobID string) (*model.PurchaseJob, error) {
	return s.store.GetJob(ctx, jobID)
}
