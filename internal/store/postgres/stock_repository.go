package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/apperr"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
	"github.com/fairyhunter13/flashsale-purchase-processor/pkg/database"
)

// StockPoolInterface defines the database operations GetByProductID needs,
// split out from the full pool type for easy mocking in tests.
type StockPoolInterface interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StockRepository provides data access for stock rows using pgx. It is the
// sole writer of stock rows (spec.md §3 Ownership); every mutation goes
// through a conditional UPDATE so the row lock and the precondition check
// happen atomically in a single round trip per step of the
// reserve/confirm/release protocol.
type StockRepository struct {
	pool StockPoolInterface
}

// NewStockRepository creates a new StockRepository with the given pool.
func NewStockRepository(pool *pgxpool.Pool) *StockRepository {
	return &StockRepository{pool: pool}
}

// NewStockRepositoryWithPool creates a StockRepository with a custom pool
// interface. Primarily used for testing.
func NewStockRepositoryWithPool(pool StockPoolInterface) *StockRepository {
	return &StockRepository{pool: pool}
}

// GetByProductID retrieves a stock row without locking it.
func (r *StockRepository) GetByProductID(ctx context.Context, productID string) (*model.Stock, error) {
	stock, err := scanStock(r.pool.QueryRow(ctx,
		`SELECT product_id, total_quantity, available_quantity, reserved_quantity, last_updated
		 FROM stocks WHERE product_id = $1`, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return stock, err
}

// GetForUpdate retrieves a stock row with a row lock (SELECT FOR UPDATE),
// held until tx commits or rolls back.
func (r *StockRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, productID string) (*model.Stock, error) {
	stock, err := scanStock(tx.QueryRow(ctx,
		`SELECT product_id, total_quantity, available_quantity, reserved_quantity, last_updated
		 FROM stocks WHERE product_id = $1 FOR UPDATE`, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return stock, err
}

// Reserve atomically decrements available and increments reserved, but only
// if enough stock is available. Returns apperr.ErrOutOfStock if the
// conditional update affects zero rows (spec.md §4.C).
func (r *StockRepository) Reserve(ctx context.Context, tx database.TxQuerier, productID string, qty int) (*model.Stock, error) {
	stock, err := scanStock(tx.QueryRow(ctx, `
		UPDATE stocks
		SET available_quantity = available_quantity - $1,
		    reserved_quantity  = reserved_quantity + $1,
		    last_updated       = now()
		WHERE product_id = $2 AND available_quantity >= $1
		RETURNING product_id, total_quantity, available_quantity, reserved_quantity, last_updated`,
		qty, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrOutOfStock
		}
		return nil, err
	}
	return stock, nil
}

// Confirm atomically decrements reserved only; total stays fixed since
// available was already decremented at reserve. Returns
// apperr.ErrInvariantViolation if reserved_quantity was insufficient.
func (r *StockRepository) Confirm(ctx context.Context, tx database.TxQuerier, productID string, qty int) (*model.Stock, error) {
	stock, err := scanStock(tx.QueryRow(ctx, `
		UPDATE stocks
		SET reserved_quantity = reserved_quantity - $1,
		    last_updated      = now()
		WHERE product_id = $2 AND reserved_quantity >= $1
		RETURNING product_id, total_quantity, available_quantity, reserved_quantity, last_updated`,
		qty, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrInvariantViolation
		}
		return nil, err
	}
	return stock, nil
}

// Release is the inverse of Reserve: available += qty, reserved -= qty.
// Used to compensate a reservation when order creation fails.
func (r *StockRepository) Release(ctx context.Context, tx database.TxQuerier, productID string, qty int) (*model.Stock, error) {
	stock, err := scanStock(tx.QueryRow(ctx, `
		UPDATE stocks
		SET available_quantity = available_quantity + $1,
		    reserved_quantity  = reserved_quantity - $1,
		    last_updated       = now()
		WHERE product_id = $2 AND reserved_quantity >= $1
		RETURNING product_id, total_quantity, available_quantity, reserved_quantity, last_updated`,
		qty, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrInvariantViolation
		}
		return nil, err
	}
	return stock, nil
}

func scanStock(row pgx.Row) (*model.Stock, error) {
	var s model.Stock
	err := row.Scan(&s.ProductID, &s.TotalQuantity, &s.AvailableQuantity, &s.ReservedQuantity, &s.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan stock: %w", err)
	}
	return &s, nil
}
