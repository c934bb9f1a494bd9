package ratelimit

import (
	"context"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
)

// RateLimiter throttles outbound sends per delivery channel.
type RateLimiter interface {
	Allow(ctx context.Context, channel domain.Channel) (bool, error)
	Wait(ctx context.Context, channel domain.Channel) error
}

// Unlimited never throttles. It is used when no shared limiter is configured.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, domain.Channel) (bool, error) { return true, nil }

func (Unlimited) Wait(ctx context.Context, _ domain.Channel) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
