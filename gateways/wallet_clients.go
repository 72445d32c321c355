package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPBitcoinClient implements BitcoinClient against the bitcoin wallet
// service. The wallet service owns address derivation and chain lookups;
// this client only speaks its JSON API.
type HTTPBitcoinClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPBitcoinClient(baseURL string) *HTTPBitcoinClient {
	return &HTTPBitcoinClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type walletAddressResponse struct {
	Address string `json:"address"`
	QRCode  string `json:"qr_code"`
}

type walletRateResponse struct {
	Rate       decimal.Decimal `json:"rate"`
	ValidUntil time.Time       `json:"valid_until"`
}

type walletStatusResponse struct {
	Confirmations  int             `json:"confirmations"`
	AmountReceived decimal.Decimal `json:"amount_received"`
}

func (c *HTTPBitcoinClient) GenerateAddress(ctx context.Context) (*AddressInfo, error) {
	var out walletAddressResponse
	if err := doJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+"/addresses", nil, &out); err != nil {
		return nil, err
	}
	return &AddressInfo{Address: out.Address, QRCode: out.QRCode}, nil
}

func (c *HTTPBitcoinClient) GetExchangeRate(ctx context.Context) (*RateQuote, error) {
	var out walletRateResponse
	if err := doJSON(ctx, c.httpClient, http.MethodGet, c.baseURL+"/rate", nil, &out); err != nil {
		return nil, err
	}
	return &RateQuote{Rate: out.Rate, ValidUntil: out.ValidUntil}, nil
}

func (c *HTTPBitcoinClient) GetAddressStatus(ctx context.Context, address string) (*AddressStatus, error) {
	var out walletStatusResponse
	endpoint := c.baseURL + "/addresses/" + url.PathEscape(address) + "/status"
	if err := doJSON(ctx, c.httpClient, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return &AddressStatus{Confirmations: out.Confirmations, AmountReceived: out.AmountReceived}, nil
}

// HTTPMoneroClient implements MoneroClient against the monero wallet
// service.
type HTTPMoneroClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPMoneroClient(baseURL string) *HTTPMoneroClient {
	return &HTTPMoneroClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type moneroCreatePaymentRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	OrderID string          `json:"order_id"`
}

type moneroCreatePaymentResponse struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

func (c *HTTPMoneroClient) GetExchangeRate(ctx context.Context) (*RateQuote, error) {
	var out walletRateResponse
	if err := doJSON(ctx, c.httpClient, http.MethodGet, c.baseURL+"/rate", nil, &out); err != nil {
		return nil, err
	}
	return &RateQuote{Rate: out.Rate, ValidUntil: out.ValidUntil}, nil
}

func (c *HTTPMoneroClient) CreatePayment(ctx context.Context, amount decimal.Decimal, orderID string) (*MoneroPaymentInfo, error) {
	var out moneroCreatePaymentResponse
	reqBody := moneroCreatePaymentRequest{Amount: amount, OrderID: orderID}
	if err := doJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+"/payments", reqBody, &out); err != nil {
		return nil, err
	}
	return &MoneroPaymentInfo{Address: out.Address, Amount: out.Amount}, nil
}

func (c *HTTPMoneroClient) GetPaymentStatus(ctx context.Context, address string) (*AddressStatus, error) {
	var out walletStatusResponse
	endpoint := c.baseURL + "/payments/" + url.PathEscape(address) + "/status"
	if err := doJSON(ctx, c.httpClient, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return &AddressStatus{Confirmations: out.Confirmations, AmountReceived: out.AmountReceived}, nil
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("wallet service %s %s failed (%d): %s", method, endpoint, resp.StatusCode, string(respBody))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
