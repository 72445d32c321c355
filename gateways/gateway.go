package gateways

import (
	"context"
	"fmt"
	"time"

	"checkout-service/models"

	"github.com/shopspring/decimal"
)

// Rail policy constants.
const (
	BitcoinRequiredConfirmations = 2
	MoneroRequiredConfirmations  = 10
	BitcoinPaymentWindow         = 24 * time.Hour
	MoneroPaymentWindow          = 24 * time.Hour
)

// InitiationResult carries everything a freshly initiated payment attempt
// needs persisted. The service layer copies it onto the Payment row inside
// the checkout transaction.
type InitiationResult struct {
	Status         string
	ApprovalURL    *string
	PayPalOrderID  *string
	Address        *string
	QRCode         string
	CryptoAmount   decimal.Decimal
	ExchangeRate   decimal.Decimal
	RateValidUntil *time.Time
	PaymentExpiry  *time.Time
}

// ExternalEvent is a normalized inbound status event: a gateway webhook, a
// capture result, or a blockchain poll result.
type ExternalEvent struct {
	ExternalID     string // gateway transaction id, tx hash, or derived poll id
	Kind           string // "capture", "webhook", "poll"
	Status         string // gateway-reported status, PayPal only
	TransactionID  string
	PayerID        string
	PayerEmail     string
	Confirmations  int
	AmountReceived decimal.Decimal
	GrossAmount    decimal.Decimal // captured amount as reported by the gateway
	Currency       string
	OccurredAt     time.Time
}

// PaymentGateway is the one contract all three rails implement. Initiate
// performs the external calls needed to open a payment attempt; Reconcile
// is a pure transition function from a recorded external event to the next
// payment status, so webhook and poll delivery share one code path.
type PaymentGateway interface {
	Method() string
	Initiate(ctx context.Context, order *models.Order) (*InitiationResult, error)
	Reconcile(payment *models.Payment, event ExternalEvent, now time.Time) (string, error)
}

// Poller is implemented by rails whose reconciliation is poll-driven
// (the on-chain rails; PayPal pushes webhooks instead).
type Poller interface {
	Poll(ctx context.Context, payment *models.Payment) (ExternalEvent, error)
}

// derivePollID builds the deterministic external id for a poll result.
// An unchanged chain view replays as a no-op; once the payment window
// lapses the id changes, so expiry is always evaluated even when the
// chain view was seen before.
func derivePollID(address string, status *AddressStatus, expiry *time.Time) string {
	id := fmt.Sprintf("poll:%s:%d:%s", address, status.Confirmations, status.AmountReceived)
	if expiry != nil && time.Now().After(*expiry) {
		id += ":expired"
	}
	return id
}
