package model

import "time"

// Stock is 1:1 with Product. Invariant: available >= 0, reserved >= 0,
// total == available + reserved + sold. total is fixed at creation (see
// SPEC_FULL.md Design Notes) and never mutated by the purchase path; sold
// is always derived, never stored.
type Stock struct {
	ProductID         string
	TotalQuantity     int
	AvailableQuantity int
	ReservedQuantity  int
	LastUpdated       time.Time
}

// SoldQuantity derives the number of confirmed purchases from the
// invariant total = available + reserved + sold.
func (s Stock) SoldQuantity() int {
	sold := s.TotalQuantity - s.AvailableQuantity - s.ReservedQuantity
	if sold < 0 {
		return 0
	}
	return sold
}

// StockResponse is the API-facing projection of Stock.
type StockResponse struct {
	TotalQuantity     int `json:"totalQuantity"`
	AvailableQuantity int `json:"availableQuantity"`
	SoldQuantity      int `json:"soldQuantity"`
}

// ToResponse converts the storage row to its API representation.
func (s Stock) ToResponse() StockResponse {
	return StockResponse{
		TotalQuantity:     s.TotalQuantity,
		AvailableQuantity: s.AvailableQuantity,
		SoldQuantity:      s.SoldQuantity(),
	}
}
