package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartSnapshot is an immutable copy of the cart taken at checkout time.
// Later cart mutations never change an in-flight checkout.
type CartSnapshot struct {
	Items    []CartItem
	Subtotal decimal.Decimal
}
