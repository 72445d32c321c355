package gateways

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkout-service/models"

	"github.com/shopspring/decimal"
)

// ErrAmountMismatch signals that the gateway-reported capture total does
// not equal the local order total. The payment is failed; the order is
// left untouched.
var ErrAmountMismatch = errors.New("captured amount does not match order total")

// PayPalOrder is the result of creating a gateway-side order.
type PayPalOrder struct {
	ID          string
	ApprovalURL string
}

// PayPalCapture is the result of capturing an approved gateway order.
type PayPalCapture struct {
	Status        string
	TransactionID string
	PayerEmail    string
	Amount        decimal.Decimal
	Currency      string
}

// PayPalClient abstracts the external PayPal gateway.
type PayPalClient interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency string) (*PayPalOrder, error)
	CaptureOrder(ctx context.Context, paypalOrderID, payerID string) (*PayPalCapture, error)
	GetOrder(ctx context.Context, paypalOrderID string) (*PayPalCapture, error)
}

// PayPalGateway drives the redirect/capture rail:
// created → approved → completed | failed.
type PayPalGateway struct {
	Client PayPalClient
}

func NewPayPalGateway(client PayPalClient) *PayPalGateway {
	return &PayPalGateway{Client: client}
}

func (g *PayPalGateway) Method() string { return models.MethodPayPal }

// Initiate creates a gateway-side order and returns the approval URL the
// payer is redirected to. The local order stays pending/unpaid until
// capture.
func (g *PayPalGateway) Initiate(ctx context.Context, order *models.Order) (*InitiationResult, error) {
	ppOrder, err := g.Client.CreateOrder(ctx, order.TotalAmount, order.Currency)
	if err != nil {
		return nil, fmt.Errorf("paypal create order: %w", err)
	}

	return &InitiationResult{
		Status:        models.PayPalCreated,
		PayPalOrderID: &ppOrder.ID,
		ApprovalURL:   &ppOrder.ApprovalURL,
	}, nil
}

// Capture performs the capture call for an approved gateway order and
// normalizes the result into an external event for reconciliation.
func (g *PayPalGateway) Capture(ctx context.Context, paypalOrderID, payerID string) (ExternalEvent, error) {
	capture, err := g.Client.CaptureOrder(ctx, paypalOrderID, payerID)
	if err != nil {
		return ExternalEvent{}, fmt.Errorf("paypal capture order: %w", err)
	}

	return ExternalEvent{
		ExternalID:    capture.TransactionID,
		Kind:          "capture",
		Status:        capture.Status,
		TransactionID: capture.TransactionID,
		PayerID:       payerID,
		PayerEmail:    capture.PayerEmail,
		GrossAmount:   capture.Amount,
		Currency:      capture.Currency,
		OccurredAt:    time.Now(),
	}, nil
}

// VerifyWebhook re-fetches the gateway order and builds the event from
// gateway-reported state. Webhook bodies arrive unauthenticated, so
// client-supplied statuses and amounts are never honored directly.
func (g *PayPalGateway) VerifyWebhook(ctx context.Context, paypalOrderID string) (ExternalEvent, error) {
	order, err := g.Client.GetOrder(ctx, paypalOrderID)
	if err != nil {
		return ExternalEvent{}, fmt.Errorf("paypal get order: %w", err)
	}

	return ExternalEvent{
		ExternalID:    order.TransactionID,
		Kind:          "webhook",
		Status:        order.Status,
		TransactionID: order.TransactionID,
		PayerEmail:    order.PayerEmail,
		GrossAmount:   order.Amount,
		Currency:      order.Currency,
		OccurredAt:    time.Now(),
	}, nil
}

// Reconcile applies a capture or webhook event. Capture totals must match
// the local order total before the payment may complete; a mismatch fails
// the payment and surfaces ErrAmountMismatch. In-progress gateway states
// leave the payment where it is.
func (g *PayPalGateway) Reconcile(payment *models.Payment, event ExternalEvent, _ time.Time) (string, error) {
	switch event.Kind {
	case "capture", "webhook":
	default:
		return payment.Status, nil
	}

	switch strings.ToUpper(event.Status) {
	case "COMPLETED":
		if !event.GrossAmount.Equal(payment.Amount) {
			return models.PayPalFailed, fmt.Errorf("%w: captured %s, order total %s",
				ErrAmountMismatch, event.GrossAmount, payment.Amount)
		}
		return models.PayPalCompleted, nil
	case "APPROVED":
		return models.PayPalApproved, nil
	case "CREATED", "SAVED", "PAYER_ACTION_REQUIRED":
		return payment.Status, nil
	}

	return models.PayPalFailed, nil
}
