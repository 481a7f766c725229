package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"course-enrollment-service/internal/config"
)

const (
	OrderStatusCreated   = "created"
	OrderStatusAttempted = "attempted"
	OrderStatusPaid      = "paid"
)

// PaymentGateway is the remote payment provider. It holds no business state.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*GatewayOrder, error)
	FetchOrder(ctx context.Context, orderID string) (*GatewayOrder, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
	KeyID() string
}

type CreateOrderRequest struct {
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Receipt     string            `json:"receipt"`
	Notes       map[string]string `json:"notes,omitempty"`
}

type GatewayOrder struct {
	ID         string            `json:"id"`
	Amount     int64             `json:"amount"`
	AmountPaid int64             `json:"amount_paid"`
	AmountDue  int64             `json:"amount_due"`
	Currency   string            `json:"currency"`
	Receipt    string            `json:"receipt"`
	Status     string            `json:"status"`
	Attempts   int               `json:"attempts"`
	Notes      map[string]string `json:"notes"`
	CreatedAt  int64             `json:"created_at"`
}

// Payable reports whether the order can still take a payment.
func (o *GatewayOrder) Payable() bool {
	return o.Status == OrderStatusCreated || o.Status == OrderStatusAttempted
}

// ErrOrderNotFound means the gateway does not know the order under the current key.
var ErrOrderNotFound = errors.New("gateway order not found")

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("razorpay error %d: %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("razorpay error %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

type razorpayClientImpl struct {
	httpClient    *http.Client
	baseApiURL    string
	keyID         string
	keySecret     string
	webhookSecret string
}

func NewRazorpayClient(cfg *config.Razorpay) PaymentGateway {
	return &razorpayClientImpl{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseApiURL:    strings.TrimRight(cfg.BaseApiURL, "/"),
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
	}
}

func (c *razorpayClientImpl) KeyID() string {
	return c.keyID
}

func (c *razorpayClientImpl) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*GatewayOrder, error) {
	if req.AmountMinor <= 0 {
		return nil, errors.New("order amount must be positive")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}

	var order GatewayOrder
	if err := c.do(ctx, http.MethodPost, "/v1/orders", bytes.NewReader(body), &order); err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}

	return &order, nil
}

func (c *razorpayClientImpl) FetchOrder(ctx context.Context, orderID string) (*GatewayOrder, error) {
	if orderID == "" {
		return nil, errors.New("missing order id")
	}

	var order GatewayOrder
	err := c.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), nil, &order)

	// unknown ids come back as 400 BAD_REQUEST_ERROR, not 404
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusNotFound) {
		return nil, fmt.Errorf("razorpay fetch order %s: %w: %w", orderID, ErrOrderNotFound, err)
	}
	if err != nil {
		return nil, fmt.Errorf("razorpay fetch order %s: %w", orderID, err)
	}

	return &order, nil
}

func (c *razorpayClientImpl) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return VerifyPaymentSignature(c.keySecret, orderID, paymentID, signature)
}

func (c *razorpayClientImpl) VerifyWebhookSignature(body []byte, signature string) bool {
	return VerifyWebhookSignature(c.webhookSecret, body, signature)
}

func (c *razorpayClientImpl) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseApiURL+path, body)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Description: string(b)}
		var rErr razorpayError
		if json.Unmarshal(b, &rErr) == nil && rErr.Error.Description != "" {
			apiErr.Code = rErr.Error.Code
			apiErr.Description = rErr.Error.Description
		}
		return apiErr
	}

	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode razorpay response: %w", err)
	}
	return nil
}
