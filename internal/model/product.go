package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the storage layout for the products table.
type Product struct {
	ProductID   string
	Name        string
	Description string
	PriceCents  int64 // fixed-point, 2 decimals
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Price returns the decimal-accurate price, e.g. "19.99".
func (p Product) Price() decimal.Decimal {
	return decimal.New(p.PriceCents, -2)
}

// ProductResponse is the API-facing projection of Product.
type ProductResponse struct {
	ProductID   string `json:"productId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	ImageURL    string `json:"imageUrl"`
}

// ToResponse converts the storage row to its API representation.
func (p Product) ToResponse() ProductResponse {
	return ProductResponse{
		ProductID:   p.ProductID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price().StringFixed(2),
		ImageURL:    p.ImageURL,
	}
}
