package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
	"github.com/kursadbilgin/renewal-engine/internal/message"
	"github.com/kursadbilgin/renewal-engine/internal/observability"
	"github.com/kursadbilgin/renewal-engine/internal/provider"
	"github.com/kursadbilgin/renewal-engine/internal/ratelimit"
	"github.com/kursadbilgin/renewal-engine/internal/repository"
	"go.uber.org/zap"
)

// reminder is one receipt reminder about to go through gate, dispatch and ledger.
type reminder struct {
	ReceiptID     string
	ClientName    string
	ReceiptStatus string
	To            string
	Placeholders  map[string]string
}

type deliveryOutcome struct {
	Status   domain.DeliveryStatus
	Response *provider.ProviderResponse
	Err      error
}

// deliverer runs the strict per-receipt sequence: eligibility is checked,
// the send is throttled and dispatched, and the outcome is always recorded.
type deliverer struct {
	gate       *EligibilityGate
	attempts   repository.AttemptRepository
	dispatcher provider.Dispatcher
	limiter    ratelimit.RateLimiter
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

func (d *deliverer) deliver(ctx context.Context, r reminder) deliveryOutcome {
	logger := observability.WithContextLogger(d.logger, ctx).With(zap.String("receiptId", r.ReceiptID))
	channel := d.dispatcher.Channel()

	eligible, err := d.gate.CanNotifyOn(ctx, r.ReceiptID, channel)
	if err != nil {
		return deliveryOutcome{Err: err}
	}
	if !eligible {
		return deliveryOutcome{Err: domain.ErrNotEligible}
	}

	if err := d.limiter.Wait(ctx, channel); err != nil {
		return deliveryOutcome{Err: fmt.Errorf("rate limiter wait failed: %w", err)}
	}

	content := message.Reminder(r.Placeholders)
	msg := provider.Message{
		Channel: channel,
		To:      r.To,
		Subject: content.Subject,
		Body:    content.Text,
		HTML:    content.HTML,
	}

	d.metrics.IncDispatchInFlight(channel.String())
	sendStart := d.now()
	resp, sendErr := d.dispatcher.Send(ctx, msg)
	d.metrics.DecDispatchInFlight(channel.String())
	d.metrics.ObserveNotificationSendDuration(channel.String(), d.now().Sub(sendStart))

	outcome := domain.AttemptOutcome{
		Channel:        channel,
		ReceiptID:      r.ReceiptID,
		ClientName:     r.ClientName,
		ReceiptStatus:  r.ReceiptStatus,
		DeliveryStatus: domain.DeliveryStatusSent,
		RawResponse:    resp.Raw(),
	}
	if sendErr != nil {
		outcome.DeliveryStatus = domain.DeliveryStatusFailed
		outcome.RawResponse = provider.ErrorRaw(sendErr)

		reason := "permanent_error"
		if provider.IsTransient(sendErr) {
			reason = "transient_error"
		}
		d.metrics.IncNotificationFailed(channel.String(), reason)
		logger.Warn("notification dispatch failed", zap.Error(sendErr))
	} else {
		d.metrics.IncNotificationSent(channel.String())
	}

	// Recording must happen even when the dispatch failed so the attempt counts.
	if err := d.attempts.Record(ctx, outcome, d.now()); err != nil {
		logger.Error("failed to record notification attempt",
			zap.String("deliveryStatus", outcome.DeliveryStatus.String()),
			zap.Error(err),
		)
		if sendErr == nil {
			return deliveryOutcome{Status: outcome.DeliveryStatus, Response: resp, Err: fmt.Errorf("failed to record attempt: %w", err)}
		}
		return deliveryOutcome{Status: outcome.DeliveryStatus, Err: errors.Join(sendErr, err)}
	}

	if sendErr != nil {
		return deliveryOutcome{Status: outcome.DeliveryStatus, Err: sendErr}
	}
	return deliveryOutcome{Status: outcome.DeliveryStatus, Response: resp}
}
