// Package gateway implements the Admission Gateway (spec.md §4.F): the
// single entry point that turns an HTTP purchase intent into a queued job,
// enforcing dedup and rate limiting before anything touches the database.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/apperr"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/queue"
	"github.com/fairyhunter13/flashsale-purchase-processor/pkg/idgen"
)

// JobState is the coordination-store surface for dedup admission.
type JobState interface {
	AdmitIfAbsent(ctx context.Context, userID string, job *model.PurchaseJob, state *model.UserPurchaseState) (bool, *model.UserPurchaseState, error)
}

// RateLimiter is the coordination-store surface for per-user throttling.
type RateLimiter interface {
	Allow(ctx context.Context, userID string) (allowed bool, count int, err error)
}

// SaleResolver resolves an omitted saleId to the most recent active sale
// (spec.md §4.F step 3).
type SaleResolver interface {
	GetMostRecentActiveSaleID(ctx context.Context) (string, error)
}

// Result is what admit() returns on success: spec.md §6's
// {jobId, status=queued, estimatedWaitTime}.
type Result struct {
	JobID             string `json:"jobId"`
	Status            model.JobStatus `json:"status"`
	EstimatedWaitTime int    `json:"estimatedWaitTime"`
}

// Gateway is the Admission Gateway.
type Gateway struct {
	jobState JobState
	rate     RateLimiter
	sales    SaleResolver
	jobQueue queue.JobQueue
	now      func() time.Time
}

// New creates a Gateway.
func New(jobState JobState, rate RateLimiter, sales SaleResolver, jobQueue queue.JobQueue) *Gateway {
	return &Gateway{jobState: jobState, rate: rate, sales: sales, jobQueue: jobQueue, now: time.Now}
}

// Admit runs spec.md §4.F's admit(userId, saleId?) operation.
func (g *Gateway) Admit(ctx context.Context, userID string, saleID string) (*Result, error) {
	allowed, _, err := g.rate.Allow(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: rate limit check: %w", apperr.ErrTransient, err)
	}
	if !allowed {
		return nil, apperr.ErrTooManyAttempts
	}

	if saleID == "" {
		saleID, err = g.sales.GetMostRecentActiveSaleID(ctx)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.ErrSaleNotActive
			}
			return nil, fmt.Errorf("%w: resolve active sale: %w", apperr.ErrTransient, err)
		}
	}

	jobID := idgen.NewJobID()
	now := g.now()
	job := &model.PurchaseJob{
		JobID:      jobID,
		UserID:     userID,
		SaleID:     saleID,
		Status:     model.JobStatusQueued,
		EnqueuedAt: now,
	}
	state := &model.UserPurchaseState{
		JobID:   jobID,
		Status:  model.JobStatusQueued,
		Updated: now,
	}

	admitted, existing, err := g.jobState.AdmitIfAbsent(ctx, userID, job, state)
	if err != nil {
		return nil, fmt.Errorf("%w: admit dedup write: %w", apperr.ErrTransient, err)
	}
	if !admitted {
		return nil, classifyExisting(existing)
	}

	if _, err := g.jobQueue.AddJob(ctx, model.PurchaseJobPayload{
		JobID:      jobID,
		UserID:     userID,
		SaleID:     saleID,
		EnqueuedAt: now,
	}, queue.PriorityNormal); err != nil {
		return nil, fmt.Errorf("%w: enqueue job: %w", apperr.ErrTransient, err)
	}

	stats, err := g.jobQueue.GetStats(ctx)
	wait := 5
	if err == nil {
		wait = estimatedWaitSeconds(stats.Waiting, stats.Active)
	}

	// JobID is the gateway's own id, the same one just written to the
	// coordination store by AdmitIfAbsent; the queue's internally
	// generated job id is a distinct identifier callers never see.
	return &Result{
		JobID:             jobID,
		Status:            model.JobStatusQueued,
		EstimatedWaitTime: wait,
	}, nil
}

// estimatedWaitSeconds ~= 5 * (waiting + active) seconds, clamped to >= 5s
// (spec.md §4.F step 6).
func estimatedWaitSeconds(waiting, active int) int {
	wait := 5 * (waiting + active)
	if wait < 5 {
		return 5
	}
	return wait
}

func classifyExisting(existing *model.UserPurchaseState) error {
	if existing == nil {
		return apperr.ErrDuplicateInFlight
	}
	switch existing.Status {
	case model.JobStatusQueued, model.JobStatusProcessing:
		return apperr.ErrDuplicateInFlight
	case model.JobStatusCompleted:
		if existing.Success {
			return apperr.ErrAlreadyPurchased
		}
		return apperr.ErrDuplicateInFlight
	default:
		return apperr.ErrDuplicateInFlight
	}
}
