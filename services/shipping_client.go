package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"checkout-service/models"

	"github.com/shopspring/decimal"
)

// ShippingRateClient is the shipping-method rate engine collaborator.
type ShippingRateClient interface {
	GetRate(ctx context.Context, shippingMethodID string, destination models.Address) (decimal.Decimal, error)
}

// HTTPShippingClient communicates with the shipping service via HTTP
type HTTPShippingClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPShippingClient creates a new HTTPShippingClient
func NewHTTPShippingClient(baseURL string) *HTTPShippingClient {
	return &HTTPShippingClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type shippingRateRequest struct {
	ShippingMethodID string         `json:"shipping_method_id"`
	Destination      models.Address `json:"destination"`
}

type shippingRateResponse struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// GetRate fetches the shipping cost for a method and destination.
func (c *HTTPShippingClient) GetRate(ctx context.Context, shippingMethodID string, destination models.Address) (decimal.Decimal, error) {
	payload := shippingRateRequest{
		ShippingMethodID: shippingMethodID,
		Destination:      destination,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return decimal.Zero, err
	}

	url := fmt.Sprintf("%s/shipping/rates", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("shipping service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("shipping service returned %d", resp.StatusCode)
	}

	var rate shippingRateResponse
	if err := json.NewDecoder(resp.Body).Decode(&rate); err != nil {
		return decimal.Zero, err
	}
	return rate.Amount, nil
}
