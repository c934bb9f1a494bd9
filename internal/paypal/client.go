package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/kursadbilgin/renewal-engine/internal/domain"
)

const (
	SandboxBaseURL = "https://api-m.sandbox.paypal.com"
	LiveBaseURL    = "https://api-m.paypal.com"

	defaultTimeout = 15 * time.Second
	tokenLeeway    = 60 * time.Second
)

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	WebhookID    string
	BrandName    string
	Timeout      time.Duration
}

// Client talks to the PayPal Orders v2 and webhook verification APIs.
// Access tokens are cached until shortly before they expire.
type Client struct {
	client    *resty.Client
	baseURL   string
	clientID  string
	secret    string
	webhookID string
	brandName string
	timeout   time.Duration
	now       func() time.Time

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewClient(cfg Config) (*Client, error) {
	return NewClientWithResty(cfg, resty.New())
}

func NewClientWithResty(cfg Config, client *resty.Client) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = SandboxBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid paypal base url: %w", err)
	}
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("paypal client id and secret are required")
	}
	if client == nil {
		client = resty.New()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client.SetRetryCount(0)

	return &Client{
		client:    client,
		baseURL:   baseURL,
		clientID:  strings.TrimSpace(cfg.ClientID),
		secret:    strings.TrimSpace(cfg.ClientSecret),
		webhookID: strings.TrimSpace(cfg.WebhookID),
		brandName: strings.TrimSpace(cfg.BrandName),
		timeout:   timeout,
		now:       time.Now,
	}, nil
}

// CreateOrder creates a CAPTURE intent order tagged with the company id.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnitRequest{{
			ReferenceID: strings.TrimSpace(req.CompanyID),
			CustomID:    strings.TrimSpace(req.CompanyID),
			Description: fmt.Sprintf("Recarga de %d mensajes", domain.CreditedMessages(req.Amount)),
			Amount:      amountJSON{CurrencyCode: CurrencyUSD, Value: req.Amount.StringFixed(2)},
		}},
		ApplicationContext: applicationContext{
			ReturnURL:          req.ReturnURL,
			CancelURL:          req.CancelURL,
			BrandName:          c.brandName,
			UserAction:         "PAY_NOW",
			ShippingPreference: "NO_SHIPPING",
		},
	}

	var decoded orderResponse
	if err := c.do(ctx, "create order", "/v2/checkout/orders", uuid.NewString(), body, &decoded); err != nil {
		return nil, err
	}

	order := &Order{ID: decoded.ID, Status: decoded.Status}
	for _, link := range decoded.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			order.ApprovalURL = link.Href
			break
		}
	}
	if order.ID == "" || order.ApprovalURL == "" {
		return nil, &APIError{Operation: "create order", Message: "response has no order id or approval link"}
	}
	return order, nil
}

// CaptureOrder captures an approved order. A non COMPLETED status is returned as is.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Capture, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}

	var decoded orderResponse
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	if err := c.do(ctx, "capture order", path, orderID, struct{}{}, &decoded); err != nil {
		return nil, err
	}

	result := &Capture{OrderID: decoded.ID, Status: decoded.Status}
	for _, unit := range decoded.PurchaseUnits {
		for _, capture := range unit.Payments.Captures {
			parsed, err := capture.toCapture(decoded.ID, unit.CustomID)
			if err != nil {
				return nil, &APIError{Operation: "capture order", Message: err.Error()}
			}
			parsed.Status = decoded.Status
			return &parsed, nil
		}
	}
	return result, nil
}

// VerifyWebhook asks PayPal whether the notification was signed for the configured webhook.
// Missing transmission headers are reported as unverified without calling PayPal.
func (c *Client) VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (bool, error) {
	if c.webhookID == "" {
		return false, fmt.Errorf("paypal webhook id is not configured")
	}

	req := verifyRequest{
		AuthAlgo:         headers.Get("Paypal-Auth-Algo"),
		CertURL:          headers.Get("Paypal-Cert-Url"),
		TransmissionID:   headers.Get("Paypal-Transmission-Id"),
		TransmissionSig:  headers.Get("Paypal-Transmission-Sig"),
		TransmissionTime: headers.Get("Paypal-Transmission-Time"),
		WebhookID:        c.webhookID,
		WebhookEvent:     json.RawMessage(body),
	}
	if req.AuthAlgo == "" || req.CertURL == "" || req.TransmissionID == "" || req.TransmissionSig == "" || req.TransmissionTime == "" {
		return false, nil
	}
	if !json.Valid(body) {
		return false, nil
	}

	var decoded verifyResponse
	if err := c.do(ctx, "verify webhook", "/v1/notifications/verify-webhook-signature", "", req, &decoded); err != nil {
		return false, err
	}
	return decoded.VerificationStatus == verificationSuccess, nil
}

func (c *Client) do(ctx context.Context, operation string, path string, requestID string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	req := c.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if requestID != "" {
		req.SetHeader("PayPal-Request-Id", requestID)
	}

	response, err := req.Post(c.baseURL + path)
	if err != nil {
		return transportError(operation, err)
	}
	if response.StatusCode() == http.StatusUnauthorized {
		c.invalidateToken()
	}
	if response.IsError() {
		return statusError(operation, response)
	}

	if out != nil {
		if err := json.Unmarshal(response.Body(), out); err != nil {
			return &APIError{Operation: operation, StatusCode: response.StatusCode(), Message: "invalid response body", Cause: err}
		}
	}
	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.expiresAt) {
		return c.accessToken, nil
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.secret).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		Post(c.baseURL + "/v1/oauth2/token")
	if err != nil {
		return "", transportError("oauth token", err)
	}
	if response.IsError() {
		return "", statusError("oauth token", response)
	}

	var decoded tokenResponse
	if err := json.Unmarshal(response.Body(), &decoded); err != nil || decoded.AccessToken == "" {
		return "", &APIError{Operation: "oauth token", StatusCode: response.StatusCode(), Message: "missing access token", Cause: err}
	}

	c.accessToken = decoded.AccessToken
	c.expiresAt = c.now().Add(time.Duration(decoded.ExpiresIn)*time.Second - tokenLeeway)
	return c.accessToken, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func statusError(operation string, response *resty.Response) *APIError {
	statusCode := response.StatusCode()
	apiErr := &APIError{
		Operation:  operation,
		StatusCode: statusCode,
		Transient:  statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError,
	}

	var decoded errorResponse
	if err := json.Unmarshal(response.Body(), &decoded); err == nil {
		apiErr.Name = firstNonEmpty(decoded.Name, decoded.Error)
		apiErr.Message = firstNonEmpty(decoded.Message, decoded.ErrorDescription)
		apiErr.DebugID = decoded.DebugID
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(response.String())
	}
	return apiErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
