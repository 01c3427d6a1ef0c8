package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/apperr"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
)

// SaleRepository provides data access for flash sales using pgx.
type SaleRepository struct {
	pool *pgxpool.Pool
}

// NewSaleRepository creates a new SaleRepository with the given pool.
func NewSaleRepository(pool *pgxpool.Pool) *SaleRepository {
	return &SaleRepository{pool: pool}
}

// GetByID retrieves a sale by id.
func (r *SaleRepository) GetByID(ctx context.Context, saleID string) (*model.FlashSale, error) {
	return scanSale(r.pool.QueryRow(ctx, `
		SELECT sale_id, product_id, start_time, end_time, status, version, created_at, updated_at
		FROM flash_sales WHERE sale_id = $1`, saleID))
}

// GetMostRecentActive returns the most recently started sale with
// status = active, used by the admission gateway to resolve an omitted
// saleId (spec.md §4.F step 3).
func (r *SaleRepository) GetMostRecentActive(ctx context.Context) (*model.FlashSale, error) {
	return scanSale(r.pool.QueryRow(ctx, `
		SELECT sale_id, product_id, start_time, end_time, status, version, created_at, updated_at
		FROM flash_sales WHERE status = 'active'
		ORDER BY start_time DESC LIMIT 1`))
}

// JoinedSnapshot loads the (sale, product, stock) row the Sale Service
// assembles into a SaleSnapshot in one round trip across three tables.
type JoinedSnapshot struct {
	Sale    model.FlashSale
	Product model.Product
	Stock   model.Stock
}

// GetJoinedSnapshot loads the full joined row for a sale.
func (r *SaleRepository) GetJoinedSnapshot(ctx context.Context, saleID string) (*JoinedSnapshot, error) {
	query := `
		SELECT
			s.sale_id, s.product_id, s.start_time, s.end_time, s.status, s.version, s.created_at, s.updated_at,
			p.product_id, p.name, p.description, p.price_cents, p.image_url, p.created_at, p.updated_at,
			st.product_id, st.total_quantity, st.available_quantity, st.reserved_quantity, st.last_updated
		FROM flash_sales s
		JOIN products p ON p.product_id = s.product_id
		JOIN stocks st ON st.product_id = p.product_id
		WHERE s.sale_id = $1`

	var snap JoinedSnapshot
	err := r.pool.QueryRow(ctx, query, saleID).Scan(
		&snap.Sale.SaleID, &snap.Sale.ProductID, &snap.Sale.StartTime, &snap.Sale.EndTime,
		&snap.Sale.Status, &snap.Sale.Version, &snap.Sale.CreatedAt, &snap.Sale.UpdatedAt,
		&snap.Product.ProductID, &snap.Product.Name, &snap.Product.Description,
		&snap.Product.PriceCents, &snap.Product.ImageURL, &snap.Product.CreatedAt, &snap.Product.UpdatedAt,
		&snap.Stock.ProductID, &snap.Stock.TotalQuantity, &snap.Stock.AvailableQuantity,
		&snap.Stock.ReservedQuantity, &snap.Stock.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("get joined sale snapshot %s: %w", saleID, err)
	}
	return &snap, nil
}

// TransitionUpcomingToActive flips every sale whose window has opened.
// Returns the affected sale ids so callers can invalidate their caches.
func (r *SaleRepository) TransitionUpcomingToActive(ctx context.Context, now time.Time) ([]string, error) {
	return r.transition(ctx, `
		UPDATE flash_sales
		SET status = 'active', version = version + 1, updated_at = now()
		WHERE status = 'upcoming' AND start_time <= $1 AND end_time > $1
		RETURNING sale_id`, now)
}

// TransitionActiveToEnded flips every sale whose window has closed.
func (r *SaleRepository) TransitionActiveToEnded(ctx context.Context, now time.Time) ([]string, error) {
	return r.transition(ctx, `
		UPDATE flash_sales
		SET status = 'ended', version = version + 1, updated_at = now()
		WHERE status = 'active' AND end_time < $1
		RETURNING sale_id`, now)
}

func (r *SaleRepository) transition(ctx context.Context, query string, now time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("transition sales: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan transitioned sale id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitioned sales: %w", err)
	}
	return ids, nil
}

func scanSale(row pgx.Row) (*model.FlashSale, error) {
	var s model.FlashSale
	err := row.Scan(&s.SaleID, &s.ProductID, &s.StartTime, &s.EndTime, &s.Status, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("scan sale: %w", err)
	}
	return &s, nil
}
