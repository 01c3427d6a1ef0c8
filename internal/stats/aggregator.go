// Package stats implements the Stats Aggregator (spec.md §4.I): derived
// order/stock counts per sale, cached for 300s.
package stats

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/store/postgres"
)

// OrderStatusCounts is an alias for the Durable Store's group-by result.
type OrderStatusCounts = postgres.OrderStatusCounts

// SaleRepository is the Durable Store surface needed to locate a sale's
// product.
type SaleRepository interface {
	GetByID(ctx context.Context, saleID string) (*model.FlashSale, error)
}

// OrderRepository is the Durable Store surface for the GROUP BY query.
type OrderRepository interface {
	CountByStatusForProduct(ctx context.Context, productID string) (OrderStatusCounts, error)
}

// StockRepository is the Durable Store surface for the stock join.
type StockRepository interface {
	GetByProductID(ctx context.Context, productID string) (*model.Stock, error)
}

// Cache is the coordination-store surface for sale_stats:<saleId>.
type Cache interface {
	Get(ctx context.Context, saleID string) (*model.SaleStats, error)
	Set(ctx context.Context, saleID string, stats *model.SaleStats) error
	Invalidate(ctx context.Context, saleID string) error
}

// Aggregator is the Stats Aggregator.
type Aggregator struct {
	sales  SaleRepository
	orders OrderRepository
	stock  StockRepository
	cache  Cache
}

// New creates an Aggregator.
func New(sales SaleRepository, orders OrderRepository, stock StockRepository, cache Cache) *Aggregator {
	return &Aggregator{sales: sales, orders: orders, stock: stock, cache: cache}
}

// GetStats implements getStats(saleId) per spec.md §4.I.
func (a *Aggregator) GetStats(ctx context.Context, saleID string) (*model.SaleStats, error) {
	if cached, err := a.cache.Get(ctx, saleID); err == nil {
		return cached, nil
	}

	sale, err := a.sales.GetByID(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("load sale %s: %w", saleID, err)
	}

	counts, err := a.orders.CountByStatusForProduct(ctx, sale.ProductID)
	if err != nil {
		return nil, fmt.Errorf("count orders for %s: %w", sale.ProductID, err)
	}

	stock, err := a.stock.GetByProductID(ctx, sale.ProductID)
	if err != nil {
		return nil, fmt.Errorf("load stock for %s: %w", sale.ProductID, err)
	}

	total := counts.Confirmed + counts.Pending + counts.Failed
	var conversionRate float64
	if total > 0 {
		conversionRate = float64(counts.Confirmed) / float64(total)
	}

	result := &model.SaleStats{
		SaleID:            saleID,
		TotalOrders:       total,
		Confirmed:         counts.Confirmed,
		Pending:           counts.Pending,
		Failed:            counts.Failed,
		TotalQuantity:     stock.TotalQuantity,
		AvailableQuantity: stock.AvailableQuantity,
		SoldQuantity:      stock.SoldQuantity(),
		ConversionRate:    conversionRate,
	}

	if err := a.cache.Set(ctx, saleID, result); err != nil {
		return nil, fmt.Errorf("cache stats for %s: %w", saleID, err)
	}
	return result, nil
}

// Invalidate drops the cached stats for saleID so the next read recomputes.
func (a *Aggregator) Invalidate(ctx context.Context, saleID string) {
	_ = a.cache.Invalidate(ctx, saleID)
}
