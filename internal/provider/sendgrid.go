package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/renewal-engine/internal/domain"
)

const DefaultSendGridBaseURL = "https://api.sendgrid.com"

type SendGridConfig struct {
	BaseURL  string
	APIKey   string
	From     string
	FromName string
	Timeout  time.Duration
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

// SendGridEmail delivers email through the SendGrid v3 mail send API.
type SendGridEmail struct {
	client   *resty.Client
	endpoint string
	from     sendGridAddress
}

var _ Dispatcher = (*SendGridEmail)(nil)

func NewSendGridEmail(cfg SendGridConfig) (*SendGridEmail, error) {
	return NewSendGridEmailWithClient(cfg, resty.New())
}

func NewSendGridEmailWithClient(cfg SendGridConfig, client *resty.Client) (*SendGridEmail, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSendGridBaseURL
	}
	baseURL, err := validateBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	from := strings.TrimSpace(cfg.From)
	if apiKey == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("sendgrid sender email is required")
	}

	client = newRestyClient(client, cfg.Timeout)
	client.SetAuthToken(apiKey)

	return &SendGridEmail{
		client:   client,
		endpoint: baseURL + "/v3/mail/send",
		from:     sendGridAddress{Email: from, Name: strings.TrimSpace(cfg.FromName)},
	}, nil
}

func (p *SendGridEmail) Channel() domain.Channel { return domain.ChannelEmail }

func (p *SendGridEmail) Send(ctx context.Context, msg Message) (*ProviderResponse, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	if msg.Channel != domain.ChannelEmail {
		return nil, fmt.Errorf("%w: sendgrid cannot send %s messages", domain.ErrValidation, msg.Channel)
	}

	html := msg.HTML
	if strings.TrimSpace(html) == "" {
		html = "<strong>" + msg.Body + "</strong>"
	}

	reqBody := sendGridRequest{
		Personalizations: []sendGridPersonalization{{To: []sendGridAddress{{Email: strings.TrimSpace(msg.To)}}}},
		From:             p.from,
		Subject:          msg.Subject,
		Content: []sendGridContent{
			{Type: "text/plain", Value: msg.Body},
			{Type: "text/html", Value: html},
		},
	}

	response, err := execute(ctx, domain.ChannelEmail, p.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody), p.endpoint)
	if err != nil {
		return nil, err
	}

	return &ProviderResponse{
		StatusCode: response.StatusCode(),
		Body:       strings.TrimSpace(response.String()),
		MessageID:  strings.TrimSpace(response.Header().Get("X-Message-Id")),
	}, nil
}
