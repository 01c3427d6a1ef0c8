package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/apperr"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
)

// ProductRepository provides data access for products using pgx.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository creates a new ProductRepository with the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID retrieves a product by id.
func (r *ProductRepository) GetByID(ctx context.Context, productID string) (*model.Product, error) {
	query := `
		SELECT product_id, name, description, price_cents, image_url, created_at, updated_at
		FROM products WHERE product_id = $1`

	var p model.Product
	err := r.pool.QueryRow(ctx, query, productID).Scan(
		&p.ProductID, &p.Name, &p.Description, &p.PriceCents, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("get product by id %s: %w", productID, err)
	}
	return &p, nil
}
