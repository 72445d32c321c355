package gateways

import (
	"context"
	"fmt"
	"time"

	"checkout-service/models"

	"github.com/shopspring/decimal"
)

// MoneroPaymentInfo is a wallet-service payment slot: a receiving address
// bound to an expected amount.
type MoneroPaymentInfo struct {
	Address string
	Amount  decimal.Decimal
}

// MoneroClient abstracts the monero wallet service.
type MoneroClient interface {
	GetExchangeRate(ctx context.Context) (*RateQuote, error)
	CreatePayment(ctx context.Context, amount decimal.Decimal, orderID string) (*MoneroPaymentInfo, error)
	GetPaymentStatus(ctx context.Context, address string) (*AddressStatus, error)
}

// MoneroGateway drives the rate-locked on-chain rail:
// pending → confirmed | underpaid | expired.
// The XMR amount is frozen at initiation and never recomputed, so the
// customer's owed amount is fixed for the whole payment window.
type MoneroGateway struct {
	Client MoneroClient
}

func NewMoneroGateway(client MoneroClient) *MoneroGateway {
	return &MoneroGateway{Client: client}
}

func (g *MoneroGateway) Method() string { return models.MethodMonero }

func (g *MoneroGateway) Initiate(ctx context.Context, order *models.Order) (*InitiationResult, error) {
	quote, err := g.Client.GetExchangeRate(ctx)
	if err != nil {
		return nil, fmt.Errorf("monero exchange rate: %w", err)
	}

	xmrAmount, err := LockCryptoAmount(order.TotalAmount, quote.Rate, 12)
	if err != nil {
		return nil, err
	}
	if err := CheckRateConsistency(xmrAmount, quote.Rate, order.TotalAmount); err != nil {
		return nil, err
	}

	slot, err := g.Client.CreatePayment(ctx, xmrAmount, order.ID.String())
	if err != nil {
		return nil, fmt.Errorf("monero create payment: %w", err)
	}

	expiry := time.Now().Add(MoneroPaymentWindow)
	return &InitiationResult{
		Status:         models.MoneroPending,
		Address:        &slot.Address,
		CryptoAmount:   xmrAmount,
		ExchangeRate:   quote.Rate,
		RateValidUntil: &quote.ValidUntil,
		PaymentExpiry:  &expiry,
	}, nil
}

// Poll queries the wallet service for the payment slot's current state.
func (g *MoneroGateway) Poll(ctx context.Context, payment *models.Payment) (ExternalEvent, error) {
	if payment.MoneroAddress == nil {
		return ExternalEvent{}, fmt.Errorf("payment %s has no monero address", payment.ID)
	}

	status, err := g.Client.GetPaymentStatus(ctx, *payment.MoneroAddress)
	if err != nil {
		return ExternalEvent{}, fmt.Errorf("monero payment status: %w", err)
	}

	return ExternalEvent{
		ExternalID:     derivePollID(*payment.MoneroAddress, status, payment.PaymentExpiry),
		Kind:           "poll",
		Confirmations:  status.Confirmations,
		AmountReceived: status.AmountReceived,
		OccurredAt:     time.Now(),
	}, nil
}

func (g *MoneroGateway) Reconcile(payment *models.Payment, event ExternalEvent, now time.Time) (string, error) {
	received := maxDecimal(event.AmountReceived, payment.AmountReceived)
	return NextMoneroStatus(payment.XMRAmount, received, event.Confirmations, payment.PaymentExpiry, now), nil
}

// NextMoneroStatus mirrors the bitcoin transition with the monero
// confirmation policy. Sufficient funds win over expiry here too.
func NextMoneroStatus(required, received decimal.Decimal, confirmations int, expiry *time.Time, now time.Time) string {
	paid := required.IsPositive() && received.GreaterThanOrEqual(required)

	if paid {
		if confirmations >= MoneroRequiredConfirmations {
			return models.MoneroConfirmed
		}
		return models.MoneroPending
	}
	if expiry != nil && now.After(*expiry) {
		return models.MoneroExpired
	}
	if received.IsPositive() {
		return models.MoneroUnderpaid
	}
	return models.MoneroPending
}
