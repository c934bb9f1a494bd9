package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Policy type and global flag values that decide whose contact data is used.
const (
	PolicyTypeIndividual = "I"
	PolicyTypeCollective = "C"
	GlobalFlagNo         = "N"
)

var startDateLayouts = []string{"2/1/2006", "2-1-2006"}

// Receipt is a pending billing document read from the policy-management store.
// Phone is nil when the raw contact phone could not be normalized.
type Receipt struct {
	ID           string
	Number       string
	StartDate    string
	EndDate      string
	StartsOn     time.Time
	Status       string
	Amount       decimal.Decimal
	ReceiptType  string
	PolicyNumber string
	BranchCode   string
	BranchName   string
	InsurerName  string
	CompanyID    string
	CompanyName  string
	ClientName   string
	RawPhone     string
	Phone        *string
	Email        string
	LastAttempt  *AttemptRecord
}

// ExpiryWindow is the closed range of days around today a start date must fall in.
type ExpiryWindow struct {
	DaysBefore int
	DaysAfter  int
	Location   *time.Location
}

// Contains reports whether start lies within [today-DaysBefore, today+DaysAfter].
func (w ExpiryWindow) Contains(start time.Time, now time.Time) bool {
	today := StartOfDay(now, w.Location)
	day := StartOfDay(start, w.Location)
	from := today.AddDate(0, 0, -w.DaysBefore)
	to := today.AddDate(0, 0, w.DaysAfter)
	return !day.Before(from) && !day.After(to)
}

// ParseStartDate accepts DD/MM/YYYY or DD-MM-YYYY.
func ParseStartDate(raw string, loc *time.Location) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range startDateLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SelectExpiring keeps the candidates whose start date parses and falls in the
// window, drops duplicate receipt ids, normalizes phones and orders the result
// by start date ascending.
func SelectExpiring(candidates []Receipt, now time.Time, window ExpiryWindow) []Receipt {
	seen := make(map[string]struct{}, len(candidates))
	selected := make([]Receipt, 0, len(candidates))

	for _, candidate := range candidates {
		if _, dup := seen[candidate.ID]; dup {
			continue
		}

		startsOn, ok := ParseStartDate(candidate.StartDate, window.Location)
		if !ok || !window.Contains(startsOn, now) {
			continue
		}
		seen[candidate.ID] = struct{}{}

		candidate.StartsOn = startsOn
		candidate.Phone = nil
		if phone, ok := NormalizePhone(candidate.RawPhone); ok {
			candidate.Phone = &phone
		}
		selected = append(selected, candidate)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].StartsOn.Before(selected[j].StartsOn)
	})

	return selected
}
