package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
)

// Dispatcher is the outbound delivery port for a single channel.
type Dispatcher interface {
	Channel() domain.Channel
	Send(ctx context.Context, msg Message) (*ProviderResponse, error)
}

// Message is a rendered notification ready to be delivered.
// To is a canonical phone for WhatsApp and an address for email.
type Message struct {
	Channel domain.Channel
	To      string
	Subject string
	Body    string
	HTML    string
}

func (m Message) Validate() error {
	if !m.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", domain.ErrValidation, m.Channel)
	}
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: recipient is required", domain.ErrValidation)
	}
	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("%w: body is required", domain.ErrValidation)
	}
	if m.Channel == domain.ChannelEmail && strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: subject is required for email", domain.ErrValidation)
	}
	return nil
}

// ProviderResponse stores provider call metadata for audit and persistence.
type ProviderResponse struct {
	StatusCode int
	Body       string
	MessageID  string
}

// Raw returns the response as JSON suitable for the attempt ledger.
func (r *ProviderResponse) Raw() json.RawMessage {
	if r == nil {
		return nil
	}
	if body := strings.TrimSpace(r.Body); body != "" && json.Valid([]byte(body)) {
		return json.RawMessage(body)
	}

	raw, _ := json.Marshal(map[string]any{
		"statusCode": r.StatusCode,
		"messageId":  r.MessageID,
		"body":       r.Body,
	})
	return raw
}

// ErrorRaw encodes a dispatch failure so it can be stored next to successful responses.
func ErrorRaw(err error) json.RawMessage {
	if err == nil {
		return nil
	}

	payload := map[string]any{"error": err.Error()}
	if pe, ok := AsProviderError(err); ok {
		if pe.StatusCode > 0 {
			payload["statusCode"] = pe.StatusCode
		}
		payload["transient"] = pe.Transient
	}

	raw, _ := json.Marshal(payload)
	return raw
}
