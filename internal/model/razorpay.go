package model

const (
	RazorpayEventPaymentCaptured = "payment.captured"
	RazorpayEventPaymentFailed   = "payment.failed"
	RazorpayEventOrderPaid       = "order.paid"
)

type RazorpayPaymentEntity struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type RazorpayOrderEntity struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

type RazorpayWebhookPayload struct {
	Payment struct {
		Entity RazorpayPaymentEntity `json:"entity"`
	} `json:"payment"`
	Order struct {
		Entity RazorpayOrderEntity `json:"entity"`
	} `json:"order"`
}

type RazorpayWebhookEvent struct {
	Entity    string                 `json:"entity"`
	AccountID string                 `json:"account_id"`
	Event     string                 `json:"event"`
	Contains  []string               `json:"contains"`
	Payload   RazorpayWebhookPayload `json:"payload"`
	CreatedAt int64                  `json:"created_at"`
}

// OrderID returns the gateway order the event refers to.
func (e *RazorpayWebhookEvent) OrderID() string {
	if id := e.Payload.Payment.Entity.OrderID; id != "" {
		return id
	}
	return e.Payload.Order.Entity.ID
}
