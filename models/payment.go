package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment methods
const (
	MethodPayPal  = "paypal"
	MethodBitcoin = "bitcoin"
	MethodMonero  = "monero"
)

// PayPal rail statuses
const (
	PayPalCreated   = "created"
	PayPalApproved  = "approved"
	PayPalCompleted = "completed"
	PayPalFailed    = "failed"
)

// Bitcoin rail statuses
const (
	BitcoinAwaitingConfirmation = "awaiting_confirmation"
	BitcoinCompleted            = "completed"
	BitcoinUnderpaid            = "underpaid"
	BitcoinExpired              = "expired"
)

// Monero rail statuses
const (
	MoneroPending   = "pending"
	MoneroConfirmed = "confirmed"
	MoneroUnderpaid = "underpaid"
	MoneroExpired   = "expired"
)

// TerminalStatuses are payment states from which no transition is defined.
// Underpaid is deliberately absent: a late top-up can still complete the
// payment before expiry.
var TerminalStatuses = map[string]bool{
	PayPalCompleted: true,
	PayPalFailed:    true,
	MoneroConfirmed: true,
	BitcoinExpired:  true,
}

// Payment is one payment attempt against an order. A failed or expired
// attempt never blocks creating a new one for the same order.
type Payment struct {
	ID       uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	UserID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Method   string          `gorm:"type:varchar(20);not null" json:"method"`
	Amount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"` // fixed at creation, never mutated
	Currency string          `gorm:"type:varchar(10);not null" json:"currency"`
	Status   string          `gorm:"type:varchar(30);not null" json:"status"`

	// PayPal
	PayPalOrderID *string `gorm:"uniqueIndex" json:"paypal_order_id,omitempty"`
	PayerID       *string `gorm:"type:varchar(64)" json:"payer_id,omitempty"`
	PayerEmail    *string `gorm:"type:varchar(255)" json:"payer_email,omitempty"`
	TransactionID *string `gorm:"type:varchar(64)" json:"transaction_id,omitempty"`
	ApprovalURL   *string `gorm:"type:varchar(1024)" json:"approval_url,omitempty"`

	// Bitcoin
	BitcoinAddress *string         `gorm:"type:varchar(128);index" json:"bitcoin_address,omitempty"`
	QRCode         *string         `gorm:"type:text" json:"qr_code,omitempty"`
	BTCAmount      decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"btc_amount"`

	// Monero
	MoneroAddress *string         `gorm:"type:varchar(128);index" json:"monero_address,omitempty"`
	XMRAmount     decimal.Decimal `gorm:"type:numeric(24,12);not null;default:0" json:"xmr_amount"`

	// Shared crypto fields
	AmountReceived decimal.Decimal `gorm:"type:numeric(24,12);not null;default:0" json:"amount_received"`
	Confirmations  int             `gorm:"not null;default:0" json:"confirmations"`
	ExchangeRate   decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"exchange_rate"`
	RateValidUntil *time.Time      `json:"rate_valid_until,omitempty"`
	PaymentExpiry  *time.Time      `json:"payment_expiry,omitempty"`

	RefundAmount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"refund_amount"`
	WebhookData  string          `gorm:"type:jsonb;not null;default:'[]'" json:"-"` // append-only event log

	SucceededAt *time.Time     `json:"succeeded_at,omitempty"`
	FailedAt    *time.Time     `json:"failed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// WebhookEvent is one inbound external status event (webhook payload or
// poll result) recorded on the payment before any state mutation.
type WebhookEvent struct {
	ExternalID     string          `json:"external_id"` // gateway transaction id or tx hash
	Kind           string          `json:"kind"`        // e.g. "capture", "poll", "webhook"
	Status         string          `json:"status,omitempty"`
	Confirmations  int             `json:"confirmations,omitempty"`
	AmountReceived decimal.Decimal `json:"amount_received,omitempty"`
	ReceivedAt     time.Time       `json:"received_at"`
}

// EventLog decodes the append-only webhook log.
func (p *Payment) EventLog() []WebhookEvent {
	var events []WebhookEvent
	if p.WebhookData == "" {
		return events
	}
	_ = json.Unmarshal([]byte(p.WebhookData), &events)
	return events
}

// HasEvent reports whether an event with the given external id was already
// applied. Used for idempotent webhook/poll replay.
func (p *Payment) HasEvent(externalID string) bool {
	if externalID == "" {
		return false
	}
	for _, e := range p.EventLog() {
		if e.ExternalID == externalID {
			return true
		}
	}
	return false
}

// AppendEvent returns the event log with the event appended, encoded for
// storage. Appending happens before any state mutation.
func (p *Payment) AppendEvent(event WebhookEvent) string {
	events := append(p.EventLog(), event)
	data, _ := json.Marshal(events)
	return string(data)
}

// RequiredCryptoAmount returns the locked crypto amount for the payment's
// rail, zero for PayPal.
func (p *Payment) RequiredCryptoAmount() decimal.Decimal {
	switch p.Method {
	case MethodBitcoin:
		return p.BTCAmount
	case MethodMonero:
		return p.XMRAmount
	}
	return decimal.Zero
}
