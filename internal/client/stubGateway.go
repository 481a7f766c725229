package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StubGateway keeps orders in memory. It is meant for local development and
// signs callbacks with the configured secret like the real gateway does.
type StubGateway struct {
	mu            sync.Mutex
	orders        map[string]*GatewayOrder
	keyID         string
	keySecret     string
	webhookSecret string
}

var _ PaymentGateway = (*StubGateway)(nil)

func NewStubGateway(keyID, keySecret, webhookSecret string) *StubGateway {
	return &StubGateway{
		orders:        make(map[string]*GatewayOrder),
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
	}
}

func (g *StubGateway) KeyID() string {
	return g.keyID
}

func (g *StubGateway) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*GatewayOrder, error) {
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("order amount must be positive")
	}

	order := &GatewayOrder{
		ID:        "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		Amount:    req.AmountMinor,
		AmountDue: req.AmountMinor,
		Currency:  req.Currency,
		Receipt:   req.Receipt,
		Status:    OrderStatusCreated,
		Notes:     req.Notes,
		CreatedAt: time.Now().Unix(),
	}

	g.mu.Lock()
	g.orders[order.ID] = order
	g.mu.Unlock()

	copied := *order
	return &copied, nil
}

func (g *StubGateway) FetchOrder(ctx context.Context, orderID string) (*GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	order, ok := g.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrOrderNotFound)
	}
	copied := *order
	return &copied, nil
}

// Pay simulates a completed checkout and returns the payment id and the
// signature the browser would post back.
func (g *StubGateway) Pay(orderID string) (paymentID, signature string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	order, ok := g.orders[orderID]
	if !ok {
		return "", "", fmt.Errorf("order %s not found", orderID)
	}
	order.Status = OrderStatusPaid
	order.AmountPaid = order.Amount
	order.AmountDue = 0
	order.Attempts++

	paymentID = "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	return paymentID, PaymentSignature(g.keySecret, orderID, paymentID), nil
}

func (g *StubGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return VerifyPaymentSignature(g.keySecret, orderID, paymentID, signature)
}

func (g *StubGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return VerifyWebhookSignature(g.webhookSecret, body, signature)
}
