package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Channel is the outbound delivery channel of a notification attempt.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelWhatsApp, ChannelEmail:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// DeliveryStatus is the outcome of the last dispatch for a receipt.
type DeliveryStatus string

const (
	DeliveryStatusSent   DeliveryStatus = "SENT"
	DeliveryStatusFailed DeliveryStatus = "FAILED"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusSent, DeliveryStatusFailed:
		return true
	}
	return false
}

// AttemptRecord is the single bookkeeping row kept per (receipt, channel).
type AttemptRecord struct {
	ReceiptID      string
	Channel        Channel
	ClientName     string
	ReceiptStatus  string
	LastSentAt     *time.Time
	Attempt        int
	DeliveryStatus DeliveryStatus
	RawResponse    json.RawMessage
}

// AttemptOutcome is what a dispatch produced and what the ledger stores.
type AttemptOutcome struct {
	Channel        Channel
	ReceiptID      string
	ClientName     string
	ReceiptStatus  string
	DeliveryStatus DeliveryStatus
	RawResponse    json.RawMessage
}

func (o AttemptOutcome) Validate() error {
	if strings.TrimSpace(o.ReceiptID) == "" {
		return fmt.Errorf("%w: receipt id is required", ErrValidation)
	}
	if !o.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, o.Channel)
	}
	if !o.DeliveryStatus.IsValid() {
		return fmt.Errorf("%w: invalid delivery status %q", ErrValidation, o.DeliveryStatus)
	}
	if len(o.RawResponse) > 0 && !json.Valid(o.RawResponse) {
		return fmt.Errorf("%w: raw response must be valid JSON", ErrValidation)
	}
	return nil
}
