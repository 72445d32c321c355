package gateways_test

import (
	"context"
	"testing"
	"time"

	"checkout-service/gateways"
	"checkout-service/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNextMoneroStatus(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)
	required := decimal.RequireFromString("4.979087136929")

	tests := []struct {
		name          string
		received      string
		confirmations int
		expiry        *time.Time
		want          string
	}{
		{
			name:          "nothing received stays pending",
			received:      "0",
			confirmations: 0,
			expiry:        &future,
			want:          models.MoneroPending,
		},
		{
			name:          "full amount with nine confirmations stays pending",
			received:      "4.979087136929",
			confirmations: 9,
			expiry:        &future,
			want:          models.MoneroPending,
		},
		{
			name:          "full amount with ten confirmations confirms",
			received:      "4.979087136929",
			confirmations: 10,
			expiry:        &future,
			want:          models.MoneroConfirmed,
		},
		{
			name:          "partial amount before expiry is underpaid",
			received:      "2.5",
			confirmations: 10,
			expiry:        &future,
			want:          models.MoneroUnderpaid,
		},
		{
			name:          "partial amount past the window expires",
			received:      "2.5",
			confirmations: 10,
			expiry:        &past,
			want:          models.MoneroExpired,
		},
		{
			name:          "full confirmed payment past the window still confirms",
			received:      "5",
			confirmations: 12,
			expiry:        &past,
			want:          models.MoneroConfirmed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := gateways.NextMoneroStatus(required, decimal.RequireFromString(tc.received), tc.confirmations, tc.expiry, now)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMoneroInitiateLocksAmountAtQuotedRate(t *testing.T) {
	client := &stubWalletClient{
		quote: &gateways.RateQuote{
			Rate:       decimal.RequireFromString("120.50"),
			ValidUntil: time.Now().Add(5 * time.Minute),
		},
		slot: &gateways.MoneroPaymentInfo{Address: "4AdUndXHHZ9pfQj27iMAjAr"},
	}
	gw := gateways.NewMoneroGateway(client)

	order := &models.Order{
		ID:          uuid.New(),
		TotalAmount: decimal.RequireFromString("599.98"),
		Currency:    "GBP",
	}

	result, err := gw.Initiate(context.Background(), order)
	assert.NoError(t, err)
	assert.Equal(t, models.MoneroPending, result.Status)
	assert.Equal(t, "4.979087136929", result.CryptoAmount.StringFixed(12))
	assert.True(t, client.slotAmount.Equal(result.CryptoAmount))
	assert.NotNil(t, result.PaymentExpiry)
	assert.NotNil(t, result.RateValidUntil)
}

func TestMoneroPollPastExpiryDerivesNewEventID(t *testing.T) {
	addr := "4AdUndXHHZ9pfQj27iMAjAr"
	client := &stubWalletClient{
		status: &gateways.AddressStatus{Confirmations: 0, AmountReceived: decimal.Zero},
	}
	gw := gateways.NewMoneroGateway(client)

	expiry := time.Now().Add(time.Hour)
	payment := &models.Payment{MoneroAddress: &addr, PaymentExpiry: &expiry}
	before, err := gw.Poll(context.Background(), payment)
	assert.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	payment.PaymentExpiry = &past
	after, err := gw.Poll(context.Background(), payment)
	assert.NoError(t, err)
	assert.NotEqual(t, before.ExternalID, after.ExternalID)
}

func TestMoneroInitiateFailsWhenRateUnavailable(t *testing.T) {
	client := &stubWalletClient{quoteErr: assert.AnError}
	gw := gateways.NewMoneroGateway(client)

	order := &models.Order{ID: uuid.New(), TotalAmount: decimal.RequireFromString("100.00")}
	_, err := gw.Initiate(context.Background(), order)
	assert.Error(t, err)
}
