package gateways

import (
	"context"
	"fmt"
	"time"

	"checkout-service/models"

	"github.com/shopspring/decimal"
)

// AddressInfo is a freshly issued receiving address.
type AddressInfo struct {
	Address string
	QRCode  string
}

// AddressStatus is the current on-chain view of a receiving address.
type AddressStatus struct {
	Confirmations  int
	AmountReceived decimal.Decimal
}

// BitcoinClient abstracts the bitcoin wallet service.
type BitcoinClient interface {
	GenerateAddress(ctx context.Context) (*AddressInfo, error)
	GetExchangeRate(ctx context.Context) (*RateQuote, error)
	GetAddressStatus(ctx context.Context, address string) (*AddressStatus, error)
}

// BitcoinGateway drives the on-chain rail:
// awaiting_confirmation → completed | underpaid | expired.
// Reconciliation is poll-driven; there is no reliable webhook.
type BitcoinGateway struct {
	Client BitcoinClient
}

func NewBitcoinGateway(client BitcoinClient) *BitcoinGateway {
	return &BitcoinGateway{Client: client}
}

func (g *BitcoinGateway) Method() string { return models.MethodBitcoin }

// Initiate issues a fresh receiving address, locks the current BTC rate
// and freezes the owed BTC amount for a 24h payment window.
func (g *BitcoinGateway) Initiate(ctx context.Context, order *models.Order) (*InitiationResult, error) {
	addr, err := g.Client.GenerateAddress(ctx)
	if err != nil {
		return nil, fmt.Errorf("bitcoin generate address: %w", err)
	}

	quote, err := g.Client.GetExchangeRate(ctx)
	if err != nil {
		return nil, fmt.Errorf("bitcoin exchange rate: %w", err)
	}

	btcAmount, err := LockCryptoAmount(order.TotalAmount, quote.Rate, 8)
	if err != nil {
		return nil, err
	}
	if err := CheckRateConsistency(btcAmount, quote.Rate, order.TotalAmount); err != nil {
		return nil, err
	}

	expiry := time.Now().Add(BitcoinPaymentWindow)
	return &InitiationResult{
		Status:         models.BitcoinAwaitingConfirmation,
		Address:        &addr.Address,
		QRCode:         addr.QRCode,
		CryptoAmount:   btcAmount,
		ExchangeRate:   quote.Rate,
		RateValidUntil: &quote.ValidUntil,
		PaymentExpiry:  &expiry,
	}, nil
}

// Poll queries the current on-chain state of the payment's receiving
// address. The derived external id makes replaying an unchanged poll
// result a no-op in the reconciler; the window lapsing changes the id,
// so an unchanged chain view still re-runs the transition past expiry.
func (g *BitcoinGateway) Poll(ctx context.Context, payment *models.Payment) (ExternalEvent, error) {
	if payment.BitcoinAddress == nil {
		return ExternalEvent{}, fmt.Errorf("payment %s has no bitcoin address", payment.ID)
	}

	status, err := g.Client.GetAddressStatus(ctx, *payment.BitcoinAddress)
	if err != nil {
		return ExternalEvent{}, fmt.Errorf("bitcoin address status: %w", err)
	}

	return ExternalEvent{
		ExternalID:     derivePollID(*payment.BitcoinAddress, status, payment.PaymentExpiry),
		Kind:           "poll",
		Confirmations:  status.Confirmations,
		AmountReceived: status.AmountReceived,
		OccurredAt:     time.Now(),
	}, nil
}

// Reconcile folds a poll result into the rail state machine.
func (g *BitcoinGateway) Reconcile(payment *models.Payment, event ExternalEvent, now time.Time) (string, error) {
	received := maxDecimal(event.AmountReceived, payment.AmountReceived)
	return NextBitcoinStatus(payment.BTCAmount, received, event.Confirmations, payment.PaymentExpiry, now), nil
}

// NextBitcoinStatus computes the next rail state. A sufficient payment
// recorded at any point wins over expiry; expiry is terminal only when
// funds were never sufficient, and takes precedence over underpaid.
func NextBitcoinStatus(required, received decimal.Decimal, confirmations int, expiry *time.Time, now time.Time) string {
	paid := required.IsPositive() && received.GreaterThanOrEqual(required)

	if paid {
		if confirmations >= BitcoinRequiredConfirmations {
			return models.BitcoinCompleted
		}
		return models.BitcoinAwaitingConfirmation
	}
	if expiry != nil && now.After(*expiry) {
		return models.BitcoinExpired
	}
	if received.IsPositive() {
		return models.BitcoinUnderpaid
	}
	return models.BitcoinAwaitingConfirmation
}

func maxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
