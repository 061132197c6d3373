package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped: {OrderStatusDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type OrderItem struct {
	ProductID          int64            `json:"product_id"`
	ProductTitle       string           `json:"product_title"`
	Quantity           int              `json:"quantity"`
	Plan               SubscriptionPlan `json:"plan"`
	UnitPrice          decimal.Decimal  `json:"unit_price"`
	EffectiveUnitPrice decimal.Decimal  `json:"effective_unit_price"`
	LineTotal          decimal.Decimal  `json:"line_total"`
}

type Order struct {
	ID             uuid.UUID       `json:"id"`
	UserID         int64           `json:"user_id"`
	IdempotencyKey string          `json:"-"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
	Currency       string          `json:"currency"`
	Status         OrderStatus     `json:"status"`
	PaymentID      string          `json:"payment_id,omitempty"`
	Items          []OrderItem     `json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// OutboxEvent is written in the same transaction as the aggregate it describes
// and published asynchronously.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

const EventOrderPlaced = "order.placed"
