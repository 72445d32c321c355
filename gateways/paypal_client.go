package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPPayPalClient implements PayPalClient against the PayPal REST API.
type HTTPPayPalClient struct {
	baseURL    string
	clientID   string
	secret     string
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewHTTPPayPalClient(baseURL, clientID, secret string) *HTTPPayPalClient {
	return &HTTPPayPalClient{
		baseURL:  baseURL,
		clientID: clientID,
		secret:   secret,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ---- PayPal API request/response structs ----

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalPurchaseUnit struct {
	Amount paypalAmount `json:"amount"`
}

type paypalOrderRequest struct {
	Intent        string               `json:"intent"`
	PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalOrderResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Links  []paypalLink `json:"links"`
}

type paypalCaptureResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Payer  struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string       `json:"id"`
				Status string       `json:"status"`
				Amount paypalAmount `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *HTTPPayPalClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("paypal token request failed (%d): %s", resp.StatusCode, string(body))
	}

	var tok paypalTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", err
	}

	c.accessToken = tok.AccessToken
	// renew a minute early
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	return c.accessToken, nil
}

func (c *HTTPPayPalClient) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *HTTPPayPalClient) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *HTTPPayPalClient) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("paypal %s failed (%d): %s", path, resp.StatusCode, string(respBody))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPPayPalClient) CreateOrder(ctx context.Context, amount decimal.Decimal, currency string) (*PayPalOrder, error) {
	reqBody := paypalOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{
			Amount: paypalAmount{
				CurrencyCode: currency,
				Value:        amount.StringFixed(2),
			},
		}},
	}

	var out paypalOrderResponse
	if err := c.post(ctx, "/v2/checkout/orders", reqBody, &out); err != nil {
		return nil, err
	}

	order := &PayPalOrder{ID: out.ID}
	for _, link := range out.Links {
		if link.Rel == "approve" {
			order.ApprovalURL = link.Href
		}
	}
	return order, nil
}

func (c *HTTPPayPalClient) CaptureOrder(ctx context.Context, paypalOrderID, payerID string) (*PayPalCapture, error) {
	var out paypalCaptureResponse
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", paypalOrderID)
	if err := c.post(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return mapCaptureResponse(&out)
}

// GetOrder fetches the gateway's current view of an order. Used to verify
// webhook deliveries, which are otherwise unauthenticated.
func (c *HTTPPayPalClient) GetOrder(ctx context.Context, paypalOrderID string) (*PayPalCapture, error) {
	var out paypalCaptureResponse
	path := fmt.Sprintf("/v2/checkout/orders/%s", paypalOrderID)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return mapCaptureResponse(&out)
}

func mapCaptureResponse(out *paypalCaptureResponse) (*PayPalCapture, error) {
	capture := &PayPalCapture{
		Status:     out.Status,
		PayerEmail: out.Payer.EmailAddress,
	}
	for _, pu := range out.PurchaseUnits {
		for _, cap := range pu.Payments.Captures {
			capture.TransactionID = cap.ID
			capture.Currency = cap.Amount.CurrencyCode
			amount, err := decimal.NewFromString(cap.Amount.Value)
			if err != nil {
				return nil, fmt.Errorf("paypal capture amount %q: %w", cap.Amount.Value, err)
			}
			capture.Amount = amount
		}
	}
	return capture, nil
}
