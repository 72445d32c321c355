package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Order payment statuses
const (
	PayStatusUnpaid            = "unpaid"
	PayStatusCompleted         = "completed"
	PayStatusPartiallyRefunded = "partially_refunded"
	PayStatusFullyRefunded     = "fully_refunded"
)

type Order struct {
	ID                  uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber         string          `gorm:"uniqueIndex;not null" json:"order_number"`
	UserID              uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Subtotal            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	ShippingCost        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"shipping_cost"`
	TaxAmount           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax_amount"`
	TotalAmount         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	TotalRefundedAmount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_refunded_amount"`
	Currency            string          `gorm:"type:varchar(10);not null" json:"currency"`
	Status              string          `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	PaymentStatus       string          `gorm:"type:varchar(30);not null;default:'unpaid'" json:"payment_status"`
	PaymentMethod       string          `gorm:"type:varchar(20)" json:"payment_method"`
	ShippingMethodID    string          `gorm:"type:varchar(64)" json:"shipping_method_id"`
	ShippingAddress     string          `gorm:"type:jsonb" json:"-"`
	CancelledAt         *time.Time      `json:"cancelled_at,omitempty"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt           gorm.DeletedAt  `gorm:"index" json:"-"`
	OrderItems          []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"order_items"`
}

// OrderItem is a price/name snapshot copied from the cart at checkout time,
// never a live product reference.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	Name      string          `gorm:"not null" json:"name"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Subtotal  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
}

// Address is a shipping/billing address, stored on the order as JSON.
type Address struct {
	FullName     string `json:"full_name"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	Phone        string `json:"phone,omitempty"`
}

// Complete reports whether all required address fields are present.
func (a Address) Complete() bool {
	return a.FullName != "" && a.AddressLine1 != "" && a.City != "" &&
		a.PostalCode != "" && a.Country != ""
}

// MaxRefundable returns the amount still refundable on the order.
func (o *Order) MaxRefundable() decimal.Decimal {
	return o.TotalAmount.Sub(o.TotalRefundedAmount)
}

// ApplyRefund returns the updated refund total and payment status for a
// refund of the given amount. Pure; the caller persists the result.
func (o *Order) ApplyRefund(amount decimal.Decimal) (total decimal.Decimal, paymentStatus string) {
	total = o.TotalRefundedAmount.Add(amount)
	if total.GreaterThanOrEqual(o.TotalAmount) {
		return total, PayStatusFullyRefunded
	}
	return total, PayStatusPartiallyRefunded
}
