// Package stock implements the Stock Manager (spec.md §4.C): reserve,
// confirm, and release semantics over inventory with oversell safety, plus
// the advisory-lock facility the Lifecycle Ticker uses to serialize its
// global transition sweep.
package stock

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
	"github.com/fairyhunter13/flashsale-purchase-processor/pkg/database"
)

// Repository is the subset of postgres.StockRepository the Manager needs.
type Repository interface {
	GetByProductID(ctx context.Context, productID string) (*model.Stock, error)
	Reserve(ctx context.Context, tx database.TxQuerier, productID string, qty int) (*model.Stock, error)
	Confirm(ctx context.Context, tx database.TxQuerier, productID string, qty int) (*model.Stock, error)
	Release(ctx context.Context, tx database.TxQuerier, productID string, qty int) (*model.Stock, error)
}

// CacheInvalidator is implemented by the Sale Service; the Manager calls it
// after every mutation so the read-path cache doesn't serve stale
// availableQuantity longer than necessary (spec.md §4.D).
type CacheInvalidator interface {
	InvalidateByProductID(ctx context.Context, productID string)
}

// Manager is the Stock Manager. Reserve/Confirm/Release each run inside
// their own transaction; the worker pool composes them with the order
// insert in between reserve and confirm, per spec.md §4.C/§4.G.
type Manager struct {
	pool  *pgxpool.Pool
	repo  Repository
	cache CacheInvalidator
}

// New creates a Stock Manager.
func New(pool *pgxpool.Pool, repo Repository, cache CacheInvalidator) *Manager {
	return &Manager{pool: pool, repo: repo, cache: cache}
}

// GetByProductID returns the current stock snapshot without locking.
func (m *Manager) GetByProductID(ctx context.Context, productID string) (*model.Stock, error) {
	return m.repo.GetByProductID(ctx, productID)
}

// Reserve atomically claims qty units for productID, inside its own
// transaction. Fails with apperr.ErrOutOfStock if unavailable.
func (m *Manager) Reserve(ctx context.Context, productID string, qty int) (*model.Stock, error) {
	return m.runInTx(ctx, productID, func(tx database.TxQuerier) (*model.Stock, error) {
		return m.repo.Reserve(ctx, tx, productID, qty)
	})
}

// Confirm finalizes a prior reservation, inside its own transaction.
func (m *Manager) Confirm(ctx context.Context, productID string, qty int) (*model.Stock, error) {
	return m.runInTx(ctx, productID, func(tx database.TxQuerier) (*model.Stock, error) {
		return m.repo.Confirm(ctx, tx, productID, qty)
	})
}

// Release gives back a prior reservation that was never confirmed, inside
// its own transaction. Used to compensate a reservation when order
// creation fails (ALREADY_PURCHASED) or a job's lease expires mid-flight.
func (m *Manager) Release(ctx context.Context, productID string, qty int) (*model.Stock, error) {
	return m.runInTx(ctx, productID, func(tx database.TxQuerier) (*model.Stock, error) {
		return m.repo.Release(ctx, tx, productID, qty)
	})
}

// ReserveTx/ConfirmTx run the step inside a caller-supplied transaction, so
// a caller that shares one transaction between the reserve step and the
// order insert gets the reservation rolled back with it instead of needing
// a compensating Release call. Neither commits nor invalidates the cache.
// The worker pool does not use them: it calls Reserve/Confirm/Release.
func (m *Manager) ReserveTx(ctx context.Context, tx database.TxQuerier, productID string, qty int) (*model.Stock, error) {
	return m.repo.Reserve(ctx, tx, productID, qty)
}

// ConfirmTx mirrors ReserveTx for the confirm step.
func (m *Manager) ConfirmTx(ctx context.Context, tx database.TxQuerier, productID string, qty int) (*model.Stock, error) {
	return m.repo.Confirm(ctx, tx, productID, qty)
}

// ReleaseTx mirrors ReserveTx for the compensating release step.
func (m *Manager) ReleaseTx(ctx context.Context, tx database.TxQuerier, productID string, qty int) (*model.Stock, error) {
	return m.repo.Release(ctx, tx, productID, qty)
}

// InvalidateCache notifies the Sale Service that productID's stock changed,
// after a transaction outside this package's own txn helpers has committed.
func (m *Manager) InvalidateCache(ctx context.Context, productID string) {
	if m.cache != nil {
		m.cache.InvalidateByProductID(ctx, productID)
	}
}

func (m *Manager) runInTx(ctx context.Context, productID string, fn func(database.TxQuerier) (*model.Stock, error)) (*model.Stock, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin stock tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stock, err := fn(tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit stock tx: %w", err)
	}
	if m.cache != nil {
		m.cache.InvalidateByProductID(ctx, productID)
	}
	return stock, nil
}

// AcquireLock wraps a Postgres advisory lock for the named global section
// (e.g. the Lifecycle Ticker's sweep).
func (m *Manager) AcquireLock(ctx context.Context, lockID string) (*database.AdvisoryLock, error) {
	return database.AcquireAdvisoryLock(ctx, m.pool, lockID)
}

// TryAcquireLock is the non-blocking variant; ok is false if another node
// already holds the lock, which the Ticker treats as "someone else is
// running this tick, skip it".
func (m *Manager) TryAcquireLock(ctx context.Context, lockID string) (*database.AdvisoryLock, bool, error) {
	return database.TryAcquireAdvisoryLock(ctx, m.pool, lockID)
}
