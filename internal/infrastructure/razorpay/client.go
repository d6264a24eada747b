// Package razorpay is the HTTP client for the Razorpay orders and payments API.
package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DanielPopoola/razorpay-reconciler/internal/config"
	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
)

const maxErrorBody = 64 << 10

type Client struct {
	baseURL    string
	keyID      string
	secret     string
	httpClient *http.Client
}

// NewClient builds a client with the key pair of the configured mode.
func NewClient(cfg config.GatewayConfig) (*Client, error) {
	keyID, secret, err := cfg.Credentials()
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		keyID:   keyID,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// KeyID is the public key id the checkout form must use.
func (c *Client) KeyID() string {
	return c.keyID
}

func (c *Client) CreateOrder(ctx context.Context, spec domain.OrderSpec) (*domain.Order, error) {
	req := CreateOrderRequest{
		Amount:   spec.Amount,
		Currency: spec.Currency,
		Receipt:  spec.Receipt,
		Notes:    spec.Notes,
	}
	resp, err := sendRequest[CreateOrderRequest, OrderResponse](c, ctx, http.MethodPost, "/v1/orders", &req)
	if err != nil {
		return nil, err
	}
	return toDomainOrder(resp), nil
}

func (c *Client) FetchOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	resp, err := sendRequest[any, OrderResponse](c, ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, err
	}
	return toDomainOrder(resp), nil
}

func (c *Client) FetchCharge(ctx context.Context, paymentID string) (*domain.Charge, error) {
	resp, err := sendRequest[any, PaymentResponse](c, ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, err
	}
	return &domain.Charge{
		ID:       resp.ID,
		OrderID:  resp.OrderID,
		Status:   resp.Status,
		Method:   resp.Method,
		Amount:   resp.Amount,
		Currency: resp.Currency,
	}, nil
}

func toDomainOrder(resp *OrderResponse) *domain.Order {
	order := &domain.Order{
		ID:       resp.ID,
		Amount:   resp.Amount,
		Currency: resp.Currency,
		Receipt:  resp.Receipt,
		Status:   resp.Status,
	}
	if resp.CreatedAt > 0 {
		order.CreatedAt = time.Unix(resp.CreatedAt, 0)
	}
	return order
}

func sendRequest[Req any, Resp any](c *Client, ctx context.Context, method, path string, reqBody *Req) (*Resp, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.SetBasicAuth(c.keyID, c.secret)
	httpReq.Header.Set("Accept", "application/json")
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, classify(resp.StatusCode, body)
	}

	var out Resp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, transportError(fmt.Errorf("error decoding json response: %w", err))
	}
	return &out, nil
}
