package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/apperr"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
	"github.com/fairyhunter13/flashsale-purchase-processor/pkg/database"
)

// OrderRepository provides data access for orders using pgx. The worker
// pool is the sole writer of order rows (spec.md §3 Ownership).
// UNIQUE(userId, productId) is the authoritative dedup backstop; Insert
// surfaces its violation as apperr.ErrAlreadyPurchased so callers can run
// the compensating release.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository creates a new OrderRepository with the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Insert creates a pending order row within a transaction.
func (r *OrderRepository) Insert(ctx context.Context, tx database.TxQuerier, orderID, userID, productID string) error {
	query := `INSERT INTO orders (order_id, user_id, product_id, status) VALUES ($1, $2, $3, 'pending')`

	_, err := tx.Exec(ctx, query, orderID, userID, productID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.ErrAlreadyPurchased
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// Confirm transitions an order from pending to confirmed.
func (r *OrderRepository) Confirm(ctx context.Context, tx database.TxQuerier, orderID string) error {
	_, err := tx.Exec(ctx, `UPDATE orders SET status = 'confirmed', updated_at = now() WHERE order_id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("confirm order %s: %w", orderID, err)
	}
	return nil
}

// Fail transitions an order from pending to failed.
func (r *OrderRepository) Fail(ctx context.Context, tx database.TxQuerier, orderID string) error {
	_, err := tx.Exec(ctx, `UPDATE orders SET status = 'failed', updated_at = now() WHERE order_id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("fail order %s: %w", orderID, err)
	}
	return nil
}

// GetByID retrieves an order by id.
func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (*model.Order, error) {
	var o model.Order
	err := r.pool.QueryRow(ctx, `
		SELECT order_id, user_id, product_id, status, created_at, updated_at
		FROM orders WHERE order_id = $1`, orderID).Scan(
		&o.OrderID, &o.UserID, &o.ProductID, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return &o, nil
}

// OrderStatusCounts is the {status: count} breakdown for the Stats
// Aggregator's GROUP BY query (spec.md §4.I).
type OrderStatusCounts struct {
	Confirmed int
	Pending   int
	Failed    int
}

// CountByStatusForProduct groups orders by status for a given product.
func (r *OrderRepository) CountByStatusForProduct(ctx context.Context, productID string) (OrderStatusCounts, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, count(*) FROM orders WHERE product_id = $1 GROUP BY status`, productID)
	if err != nil {
		return OrderStatusCounts{}, fmt.Errorf("count orders by status for %s: %w", productID, err)
	}
	defer rows.Close()

	var counts OrderStatusCounts
	for rows.Next() {
		var status model.OrderStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return OrderStatusCounts{}, fmt.Errorf("scan order status count: %w", err)
		}
		switch status {
		case model.OrderStatusConfirmed:
			counts.Confirmed = n
		case model.OrderStatusPending:
			counts.Pending = n
		case model.OrderStatusFailed:
			counts.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return OrderStatusCounts{}, fmt.Errorf("iterate order status counts: %w", err)
	}
	return counts, nil
}
