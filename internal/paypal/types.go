package paypal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	OrderStatusCompleted = "COMPLETED"

	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"

	CurrencyUSD = "USD"

	verificationSuccess = "SUCCESS"
)

// OrderRequest describes a prepaid balance purchase for a company.
type OrderRequest struct {
	CompanyID string
	Amount    decimal.Decimal
	ReturnURL string
	CancelURL string
}

func (r OrderRequest) Validate() error {
	if strings.TrimSpace(r.CompanyID) == "" {
		return fmt.Errorf("%w: company id is required", domain.ErrValidation)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", domain.ErrValidation)
	}
	if strings.TrimSpace(r.ReturnURL) == "" || strings.TrimSpace(r.CancelURL) == "" {
		return fmt.Errorf("%w: return and cancel urls are required", domain.ErrValidation)
	}
	return nil
}

// Order is a created checkout order awaiting buyer approval.
type Order struct {
	ID          string
	Status      string
	ApprovalURL string
}

// Capture is the result of capturing an approved order.
type Capture struct {
	OrderID       string
	Status        string
	TransactionID string
	CompanyID     string
	Amount        decimal.Decimal
	Currency      string
}

func (c Capture) Completed() bool {
	return c.Status == OrderStatusCompleted
}

// PaidIn reports whether the capture currency is code. An empty currency
// matches only when allowUnknown is set.
func (c Capture) PaidIn(code string, allowUnknown bool) bool {
	currency := strings.TrimSpace(c.Currency)
	if currency == "" {
		return allowUnknown
	}
	return strings.EqualFold(currency, code)
}

// WebhookEvent is the subset of a PayPal webhook notification the engine reads.
type WebhookEvent struct {
	ID        string
	EventType string
	Capture   Capture
}

type amountJSON struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type linkJSON struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type captureJSON struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	Amount            amountJSON `json:"amount"`
	CustomID          string     `json:"custom_id"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

type orderResponse struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	Links         []linkJSON `json:"links"`
	PurchaseUnits []struct {
		CustomID string `json:"custom_id"`
		Payments struct {
			Captures []captureJSON `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type purchaseUnitRequest struct {
	ReferenceID string     `json:"reference_id,omitempty"`
	CustomID    string     `json:"custom_id"`
	Description string     `json:"description,omitempty"`
	Amount      amountJSON `json:"amount"`
}

type applicationContext struct {
	ReturnURL          string `json:"return_url"`
	CancelURL          string `json:"cancel_url"`
	BrandName          string `json:"brand_name,omitempty"`
	UserAction         string `json:"user_action"`
	ShippingPreference string `json:"shipping_preference"`
}

type createOrderRequest struct {
	Intent             string                `json:"intent"`
	PurchaseUnits      []purchaseUnitRequest `json:"purchase_units"`
	ApplicationContext applicationContext    `json:"application_context"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type errorResponse struct {
	Name             string `json:"name"`
	Message          string `json:"message"`
	DebugID          string `json:"debug_id"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type verifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

type webhookEventJSON struct {
	ID        string      `json:"id"`
	EventType string      `json:"event_type"`
	Resource  captureJSON `json:"resource"`
}

func (c captureJSON) toCapture(orderID string, fallbackCustomID string) (Capture, error) {
	capture := Capture{
		OrderID:       orderID,
		Status:        c.Status,
		TransactionID: c.ID,
		CompanyID:     c.CustomID,
		Currency:      c.Amount.CurrencyCode,
	}
	if capture.OrderID == "" {
		capture.OrderID = c.SupplementaryData.RelatedIDs.OrderID
	}
	if capture.CompanyID == "" {
		capture.CompanyID = fallbackCustomID
	}

	if value := strings.TrimSpace(c.Amount.Value); value != "" {
		amount, err := decimal.NewFromString(value)
		if err != nil {
			return Capture{}, fmt.Errorf("invalid capture amount %q: %w", value, err)
		}
		capture.Amount = amount
	}
	return capture, nil
}

// ParseWebhookEvent decodes a webhook body without verifying it.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var decoded webhookEventJSON
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: invalid webhook body: %w", domain.ErrValidation, err)
	}
	if decoded.EventType == "" {
		return nil, fmt.Errorf("%w: webhook event_type is required", domain.ErrValidation)
	}

	capture, err := decoded.Resource.toCapture("", "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	return &WebhookEvent{
		ID:        decoded.ID,
		EventType: decoded.EventType,
		Capture:   capture,
	}, nil
}
