// Package worker implements the Purchase Worker Pool (spec.md §4.G): the
// handler the Job Queue invokes per job, running the reserve -> insert
// order -> confirm purchase transaction and updating job/user state.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/apperr"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/queue"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/store/postgres"
	"github.com/fairyhunter13/flashsale-purchase-processor/pkg/database"
	"github.com/fairyhunter13/flashsale-purchase-processor/pkg/idgen"
)

// JoinedSnapshot is an alias for the Durable Store's joined row type.
type JoinedSnapshot = postgres.JoinedSnapshot

// SaleChecker is the uncached Sale Service surface the worker validates
// against (spec.md §4.G step 2: "from D's uncached path").
type SaleChecker interface {
	GetUncached(ctx context.Context, saleID string) (*JoinedSnapshot, error)
}

// StockManager is the Stock Manager surface the worker drives.
type StockManager interface {
	Reserve(ctx context.Context, productID string, qty int) (*model.Stock, error)
	Confirm(ctx context.Context, productID string, qty int) (*model.Stock, error)
	Release(ctx context.Context, productID string, qty int) (*model.Stock, error)
	InvalidateCache(ctx context.Context, productID string)
}

// OrderStore is the Durable Store surface for order mutation.
type OrderStore interface {
	Insert(ctx context.Context, tx database.TxQuerier, orderID, userID, productID string) error
	Confirm(ctx context.Context, tx database.TxQuerier, orderID string) error
}

// JobState is the coordination-store surface for job/user state updates.
type JobState interface {
	SetJob(ctx context.Context, job *model.PurchaseJob) error
	SetUserState(ctx context.Context, userID string, state *model.UserPurchaseState) error
	GetJob(ctx context.Context, jobID string) (*model.PurchaseJob, error)
}

// Pool is the Purchase Worker Pool. It is registered with the Job Queue as
// a queue.Handler via Pool.Handle; the queue itself owns concurrency,
// leasing, and retry/backoff (spec.md §9 "pluggable queue providers").
type Pool struct {
	pool   *pgxpool.Pool
	sales  SaleChecker
	stock  StockManager
	orders OrderStore
	jobs   JobState
	now    func() time.Time
}

// New creates a Pool.
func New(pool *pgxpool.Pool, sales SaleChecker, stock StockManager, orders OrderStore, jobs JobState) *Pool {
	return &Pool{pool: pool, sales: sales, stock: stock, orders: orders, jobs: jobs, now: time.Now}
}

// Handle is the queue.Handler the Job Queue's Process loop invokes per job.
// It is also invoked again for stalled/retried jobs under the same jobId,
// which is why purchase() reconciles outstanding bookkeeping at its top
// rather than assuming a clean start.
func (p *Pool) Handle(ctx context.Context, qjob *queue.Job) error {
	userID := qjob.Payload.UserID
	saleID := qjob.Payload.SaleID
	jobID := qjob.Payload.JobID

	job := p.markProcessing(ctx, jobID, userID, saleID)

	orderID, err := p.purchase(ctx, job)
	if err != nil {
		lastAttempt := qjob.Attempts+1 >= qjob.MaxAttempts
		p.markFailed(ctx, job, err, lastAttempt)
		return err
	}

	p.markCompleted(ctx, job, orderID)
	return nil
}

// purchase runs spec.md §4.G steps 2-6: validate, reserve, insert, confirm.
func (p *Pool) purchase(ctx context.Context, job *model.PurchaseJob) (orderID string, err error) {
	snap, err := p.sales.GetUncached(ctx, job.SaleID)
	if err != nil {
		return "", fmt.Errorf("%w: load sale %s: %w", apperr.ErrTransient, job.SaleID, err)
	}
	now := p.now()
	if snap.Sale.ComputedStatus(now) != model.SaleStatusActive {
		return "", apperr.ErrSaleNotActive
	}
	productID := snap.Product.ProductID

	// A prior attempt on this same jobId may have reserved a unit and
	// then died before compensating (lease expiry mid-job, S4). Release
	// it before re-reserving so a retry never leaks a reservation.
	if job.ReservedPending {
		if _, relErr := p.stock.Release(ctx, productID, 1); relErr != nil {
			log.Error().Err(relErr).Str("job_id", job.JobID).Str("product_id", productID).Msg("worker: release of stale reservation failed")
		}
		job.ReservedPending = false
		p.saveJob(ctx, job)
	}

	if _, err := p.stock.Reserve(ctx, productID, 1); err != nil {
		if errors.Is(err, apperr.ErrOutOfStock) {
			return "", apperr.ErrOutOfStock
		}
		return "", fmt.Errorf("%w: reserve stock for %s: %w", apperr.ErrTransient, productID, err)
	}
	job.ReservedPending = true
	p.saveJob(ctx, job)

	newOrderID := idgen.NewOrderID()
	if err := p.insertOrder(ctx, newOrderID, job.UserID, productID); err != nil {
		// The reservation committed in its own transaction, so a failed
		// insert needs an explicit release (spec.md §4.G step 4), not a
		// rollback.
		if _, relErr := p.stock.Release(ctx, productID, 1); relErr != nil {
			log.Error().Err(relErr).Str("job_id", job.JobID).Str("product_id", productID).Msg("worker: compensating release failed")
		}
		job.ReservedPending = false
		p.saveJob(ctx, job)
		if errors.Is(err, apperr.ErrAlreadyPurchased) {
			return "", apperr.ErrAlreadyPurchased
		}
		return "", fmt.Errorf("%w: insert order: %w", apperr.ErrTransient, err)
	}

	if _, err := p.stock.Confirm(ctx, productID, 1); err != nil {
		return "", fmt.Errorf("%w: confirm stock for %s: %w", apperr.ErrTransient, productID, err)
	}
	job.ReservedPending = false
	p.saveJob(ctx, job)

	if err := p.confirmOrder(ctx, newOrderID); err != nil {
		return "", fmt.Errorf("%w: confirm order %s: %w", apperr.ErrTransient, newOrderID, err)
	}

	p.stock.InvalidateCache(ctx, productID)
	return newOrderID, nil
}

func (p *Pool) insertOrder(ctx context.Context, orderID, userID, productID string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin order insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := p.orders.Insert(ctx, tx, orderID, userID, productID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit order insert tx: %w", err)
	}
	return nil
}

func (p *Pool) confirmOrder(ctx context.Context, orderID string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin order confirm tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := p.orders.Confirm(ctx, tx, orderID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit order confirm tx: %w", err)
	}
	return nil
}

// markProcessing loads any existing job record (for a retried/stalled job)
// or starts a fresh one, and marks it processing in both job and user-state
// keys.
func (p *Pool) markProcessing(ctx context.Context, jobID, userID, saleID string) *model.PurchaseJob {
	job, err := p.jobs.GetJob(ctx, jobID)
	if err != nil || job == nil {
		job = &model.PurchaseJob{JobID: jobID, UserID: userID, SaleID: saleID, EnqueuedAt: p.now()}
	}
	job.Status = model.JobStatusProcessing
	p.saveJob(ctx, job)
	p.saveUserState(ctx, job)
	return job
}

func (p *Pool) markCompleted(ctx context.Context, job *model.PurchaseJob, orderID string) {
	job.Status = model.JobStatusCompleted
	job.Success = true
	job.OrderID = orderID
	job.PurchasedAt = p.now()
	p.saveJob(ctx, job)
	p.saveUserState(ctx, job)
	log.Info().Str("job_id", job.JobID).Str("user_id", job.UserID).Str("order_id", orderID).Msg("worker: purchase completed")
}

func (p *Pool) markFailed(ctx context.Context, job *model.PurchaseJob, err error, lastAttempt bool) {
	terminal := apperr.IsBusiness(err)
	reason := apperr.Code(err)
	if !terminal && lastAttempt {
		terminal = true
		reason = apperr.Code(apperr.ErrMaxAttempts)
	}
	if !terminal {
		// Transient and retries remain: leave state as processing: the
		// queue will redeliver this jobId and Handle runs again.
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("worker: purchase failed transiently, will retry")
		return
	}

	job.Status = model.JobStatusFailed
	job.Reason = reason
	job.PurchasedAt = p.now()
	p.saveJob(ctx, job)
	p.saveUserState(ctx, job)
	log.Warn().Str("job_id", job.JobID).Str("user_id", job.UserID).Str("reason", reason).Msg("worker: purchase failed terminally")
}

func (p *Pool) saveJob(ctx context.Context, job *model.PurchaseJob) {
	if err := p.jobs.SetJob(ctx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.JobID).Msg("worker: save job state failed")
	}
}

func (p *Pool) saveUserState(ctx context.Context, job *model.PurchaseJob) {
	state := &model.UserPurchaseState{
		JobID:   job.JobID,
		Status:  job.Status,
		Success: job.Success,
		OrderID: job.OrderID,
		Reason:  job.Reason,
		Updated: p.now(),
	}
	if err := p.jobs.SetUserState(ctx, job.UserID, state); err != nil {
		log.Error().Err(err).Str("user_id", job.UserID).Msg("worker: save user state failed")
	}
}
