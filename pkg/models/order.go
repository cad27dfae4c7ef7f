package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusFailed     OrderStatus = "failed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Terminal reports whether no further pipeline transitions are allowed
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderItem is a single line item in an order
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderPayload is the caller-supplied order data. The pipeline only inspects
// Items and Total; everything else travels through untouched. An absent Total
// decodes as zero and the payment stage rejects it, so callers must declare
// the total explicitly.
type OrderPayload struct {
	OrderID         string            `json:"order_id,omitempty"`
	UserID          string            `json:"user_id,omitempty"`
	Items           []OrderItem       `json:"items"`
	Total           decimal.Decimal   `json:"total"`
	ShippingAddress map[string]string `json:"shipping_address,omitempty"`
}

// OrderHistoryEntry is one append-only history record for an order
type OrderHistoryEntry struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Message   string      `json:"message"`
}

// OrderRecord is the registry's view of an order. History is append-only and
// its last entry always matches Status.
type OrderRecord struct {
	OrderID   string              `json:"order_id"`
	Payload   OrderPayload        `json:"payload"`
	Status    OrderStatus         `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	History   []OrderHistoryEntry `json:"history"`
}
