package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/renewal-engine/internal/domain"
)

const DefaultTwilioBaseURL = "https://api.twilio.com"

type TwilioConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	From       string
	Timeout    time.Duration
}

type twilioMessageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// TwilioWhatsApp delivers WhatsApp messages through the Twilio Messages API.
type TwilioWhatsApp struct {
	client   *resty.Client
	endpoint string
	from     string
}

var _ Dispatcher = (*TwilioWhatsApp)(nil)

func NewTwilioWhatsApp(cfg TwilioConfig) (*TwilioWhatsApp, error) {
	return NewTwilioWhatsAppWithClient(cfg, resty.New())
}

func NewTwilioWhatsAppWithClient(cfg TwilioConfig, client *resty.Client) (*TwilioWhatsApp, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTwilioBaseURL
	}
	baseURL, err := validateBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	sid := strings.TrimSpace(cfg.AccountSID)
	token := strings.TrimSpace(cfg.AuthToken)
	from := strings.TrimPrefix(strings.TrimSpace(cfg.From), "+")
	if sid == "" || token == "" {
		return nil, fmt.Errorf("twilio account sid and auth token are required")
	}
	if from == "" {
		return nil, fmt.Errorf("twilio sender number is required")
	}

	client = newRestyClient(client, cfg.Timeout)
	client.SetBasicAuth(sid, token)

	return &TwilioWhatsApp{
		client:   client,
		endpoint: fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", baseURL, url.PathEscape(sid)),
		from:     from,
	}, nil
}

func (p *TwilioWhatsApp) Channel() domain.Channel { return domain.ChannelWhatsApp }

func (p *TwilioWhatsApp) Send(ctx context.Context, msg Message) (*ProviderResponse, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	if msg.Channel != domain.ChannelWhatsApp {
		return nil, fmt.Errorf("%w: twilio whatsapp cannot send %s messages", domain.ErrValidation, msg.Channel)
	}

	response, err := execute(ctx, domain.ChannelWhatsApp, p.client.R().
		SetFormData(map[string]string{
			"From": whatsAppAddress(p.from),
			"To":   whatsAppAddress(msg.To),
			"Body": msg.Body,
		}), p.endpoint)
	if err != nil {
		return nil, err
	}

	body := strings.TrimSpace(response.String())
	var decoded twilioMessageResponse
	_ = json.Unmarshal([]byte(body), &decoded)

	return &ProviderResponse{
		StatusCode: response.StatusCode(),
		Body:       body,
		MessageID:  decoded.SID,
	}, nil
}

func whatsAppAddress(number string) string {
	return "whatsapp:+" + strings.TrimPrefix(strings.TrimSpace(number), "+")
}
