package domain

import (
	"fmt"
	"time"
)

// NotificationPolicy bounds how often a receipt may be notified.
type NotificationPolicy struct {
	MaxAttempts  int
	CooldownDays int
	Location     *time.Location
}

func NewNotificationPolicy(maxAttempts int, cooldownDays int, loc *time.Location) (NotificationPolicy, error) {
	if maxAttempts < 1 {
		return NotificationPolicy{}, fmt.Errorf("%w: max attempts must be >= 1", ErrValidation)
	}
	if cooldownDays < 0 {
		return NotificationPolicy{}, fmt.Errorf("%w: cooldown days must be >= 0", ErrValidation)
	}
	if loc == nil {
		loc = time.UTC
	}

	return NotificationPolicy{
		MaxAttempts:  maxAttempts,
		CooldownDays: cooldownDays,
		Location:     loc,
	}, nil
}

// Allows decides whether a new attempt may be made now given the existing record.
// A nil record means the receipt was never notified on the channel.
func (p NotificationPolicy) Allows(record *AttemptRecord, now time.Time) bool {
	if record == nil {
		return true
	}
	if record.Attempt > p.MaxAttempts {
		return false
	}
	if record.LastSentAt == nil {
		return true
	}

	return DaysBetween(*record.LastSentAt, now, p.Location) >= p.CooldownDays
}

// DaysBetween counts calendar days from -> to in loc, ignoring the time of day.
func DaysBetween(from time.Time, to time.Time, loc *time.Location) int {
	return int(civilDate(to, loc).Sub(civilDate(from, loc)).Hours() / 24)
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// civilDate maps a local calendar date to UTC midnight so day arithmetic
// is not skewed by DST transitions.
func civilDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
