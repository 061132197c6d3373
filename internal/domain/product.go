package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Product is a catalog entry. Price is the base unit price before any
// subscription plan adjustment.
type Product struct {
	ID          int64            `json:"id"`
	CategoryID  int64            `json:"category_id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Features    []string         `json:"features"`
	Price       decimal.Decimal  `json:"price"`
	Plan        SubscriptionPlan `json:"plan"`
	Stock       int              `json:"stock"`
	ImageURL    string           `json:"image_url"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (p Product) Available() bool {
	return p.Stock > 0
}

// StockItem is a quantity of one product taken from or returned to stock.
type StockItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}
