package model

import "time"

// OrderStatus is the lifecycle state of an Order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusFailed    OrderStatus = "failed"
)

// Order is the storage layout for the orders table. UNIQUE(userId,
// productId) is the authoritative dedup backstop against double-purchase.
type Order struct {
	OrderID   string
	UserID    string
	ProductID string
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderResponse is the API-facing projection of Order.
type OrderResponse struct {
	OrderID   string      `json:"orderId"`
	ProductID string      `json:"productId"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

// ToResponse converts the storage row to its API representation.
func (o Order) ToResponse() OrderResponse {
	return OrderResponse{
		OrderID:   o.OrderID,
		ProductID: o.ProductID,
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
	}
}
