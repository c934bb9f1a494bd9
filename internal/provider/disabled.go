package provider

import (
	"context"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
)

// Disabled rejects every send for a channel that has no credentials configured.
type Disabled struct {
	channel domain.Channel
}

var _ Dispatcher = Disabled{}

func NewDisabled(channel domain.Channel) Disabled {
	return Disabled{channel: channel}
}

func (d Disabled) Channel() domain.Channel { return d.channel }

func (d Disabled) Send(context.Context, Message) (*ProviderResponse, error) {
	return nil, &ProviderError{
		Channel:   d.channel,
		Message:   "channel is not configured",
		Transient: false,
	}
}
