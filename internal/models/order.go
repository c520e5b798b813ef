package models

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses. An order starts pending and moves when the stock
// service reports back over the broker.
const (
	StatusPending         = "pending"
	StatusConfirmed       = "confirmed"
	StatusStockFailed     = "stock_failed"
	StatusCancelRequested = "cancel_requested"
	StatusCancelled       = "cancelled"
)

type Order struct {
	ID           uuid.UUID   `json:"id"`
	CustomerName string      `json:"customer_name"`
	TotalAmount  float64     `json:"total_amount"`
	Status       string      `json:"status"`
	Items        []OrderItem `json:"items"`
	CreatedAt    time.Time   `json:"created_at"`
}

type OrderItem struct {
	ID          int       `json:"id"`
	OrderID     uuid.UUID `json:"order_id"`
	ProductID   int       `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	Price       float64   `json:"price"`
}

type CreateOrderRequest struct {
	CustomerName string                   `json:"customer_name" binding:"required"`
	Items        []CreateOrderItemRequest `json:"items" binding:"required"`
}

type CreateOrderItemRequest struct {
	ProductID int `json:"product_id" binding:"required"`
	Quantity  int `json:"quantity" binding:"required"`
}
