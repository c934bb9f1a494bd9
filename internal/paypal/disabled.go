package paypal

import (
	"context"
	"net/http"
)

const notConfigured = "payment processor is not configured"

// Disabled stands in for the client when no PayPal credentials are configured.
// Order calls fail permanently and webhooks are never verified.
type Disabled struct{}

func (Disabled) CreateOrder(context.Context, OrderRequest) (*Order, error) {
	return nil, &APIError{Operation: "create order", Message: notConfigured}
}

func (Disabled) CaptureOrder(context.Context, string) (*Capture, error) {
	return nil, &APIError{Operation: "capture order", Message: notConfigured}
}

func (Disabled) VerifyWebhook(context.Context, http.Header, []byte) (bool, error) {
	return false, nil
}
