package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is keyed by Owner, which is either "user:<id>" or "guest:<session>".
type Cart struct {
	Owner     string     `bson:"owner" json:"owner"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

type CartItem struct {
	ProductID int64            `bson:"product_id" json:"product_id"`
	Quantity  int              `bson:"quantity" json:"quantity"`
	Plan      SubscriptionPlan `bson:"plan" json:"plan"`
	AddedAt   time.Time        `bson:"added_at" json:"added_at"`
}

// CartLine is a cart item joined with the current unit price of its product.
type CartLine struct {
	ProductID int64            `json:"product_id"`
	Title     string           `json:"title,omitempty"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	Quantity  int              `json:"quantity"`
	Plan      SubscriptionPlan `json:"plan"`
}
