package models

import "time"

// PaymentEvent is published to Kafka on terminal payment transitions,
// refunds and order cancellations.
type PaymentEvent struct {
	Type      string    `json:"type"` // payment_succeeded, payment_failed, payment_refunded, order_cancelled
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	PaymentID string    `json:"payment_id,omitempty"`
	Method    string    `json:"method,omitempty"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}
