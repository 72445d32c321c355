package gateways_test

import (
	"context"

	"checkout-service/gateways"

	"github.com/shopspring/decimal"
)

// ---- stub chain client (bitcoin) ----

type stubChainClient struct {
	address  *gateways.AddressInfo
	addrErr  error
	quote    *gateways.RateQuote
	quoteErr error
	status   *gateways.AddressStatus
	statErr  error
}

func (c *stubChainClient) GenerateAddress(_ context.Context) (*gateways.AddressInfo, error) {
	return c.address, c.addrErr
}

func (c *stubChainClient) GetExchangeRate(_ context.Context) (*gateways.RateQuote, error) {
	return c.quote, c.quoteErr
}

func (c *stubChainClient) GetAddressStatus(_ context.Context, _ string) (*gateways.AddressStatus, error) {
	return c.status, c.statErr
}

// ---- stub wallet client (monero) ----

type stubWalletClient struct {
	quote      *gateways.RateQuote
	quoteErr   error
	slot       *gateways.MoneroPaymentInfo
	slotErr    error
	status     *gateways.AddressStatus
	statErr    error
	slotAmount decimal.Decimal // records the amount passed to CreatePayment
}

func (c *stubWalletClient) GetExchangeRate(_ context.Context) (*gateways.RateQuote, error) {
	return c.quote, c.quoteErr
}

func (c *stubWalletClient) CreatePayment(_ context.Context, amount decimal.Decimal, _ string) (*gateways.MoneroPaymentInfo, error) {
	c.slotAmount = amount
	return c.slot, c.slotErr
}

func (c *stubWalletClient) GetPaymentStatus(_ context.Context, _ string) (*gateways.AddressStatus, error) {
	return c.status, c.statErr
}

// ---- stub paypal client ----

type stubPayPalClient struct {
	order      *gateways.PayPalOrder
	createErr  error
	capture    *gateways.PayPalCapture
	captureErr error
	detail     *gateways.PayPalCapture
	detailErr  error
}

func (c *stubPayPalClient) CreateOrder(_ context.Context, _ decimal.Decimal, _ string) (*gateways.PayPalOrder, error) {
	return c.order, c.createErr
}

func (c *stubPayPalClient) CaptureOrder(_ context.Context, _, _ string) (*gateways.PayPalCapture, error) {
	return c.capture, c.captureErr
}

func (c *stubPayPalClient) GetOrder(_ context.Context, _ string) (*gateways.PayPalCapture, error) {
	return c.detail, c.detailErr
}
