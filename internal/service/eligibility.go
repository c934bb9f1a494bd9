package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
	"github.com/kursadbilgin/renewal-engine/internal/repository"
)

// EligibilityGate answers whether a receipt may be notified again right now.
type EligibilityGate struct {
	attempts repository.AttemptRepository
	policy   domain.NotificationPolicy
	now      func() time.Time
}

func NewEligibilityGate(attempts repository.AttemptRepository, policy domain.NotificationPolicy) (*EligibilityGate, error) {
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if policy.MaxAttempts < 1 {
		return nil, fmt.Errorf("%w: notification policy is not configured", domain.ErrValidation)
	}

	return &EligibilityGate{
		attempts: attempts,
		policy:   policy,
		now:      time.Now,
	}, nil
}

// CanNotify checks the WhatsApp history of the receipt, which is the channel
// the reminder runs are bookkept on.
func (g *EligibilityGate) CanNotify(ctx context.Context, receiptID string) (bool, error) {
	return g.CanNotifyOn(ctx, receiptID, domain.ChannelWhatsApp)
}

func (g *EligibilityGate) CanNotifyOn(ctx context.Context, receiptID string, channel domain.Channel) (bool, error) {
	if receiptID == "" {
		return false, fmt.Errorf("%w: receipt id is required", domain.ErrValidation)
	}

	record, err := g.attempts.Get(ctx, receiptID, channel)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return g.policy.Allows(nil, g.now()), nil
		}
		return false, fmt.Errorf("failed to load attempt history: %w", err)
	}

	return g.policy.Allows(record, g.now()), nil
}
