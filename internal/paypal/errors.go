package paypal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
)

// APIError is a failed PayPal call. Transient failures may be retried by the caller.
type APIError struct {
	Operation  string
	StatusCode int
	Name       string
	Message    string
	DebugID    string
	Transient  bool
	Cause      error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := []string{"paypal " + e.Operation}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.Name != "" {
		parts = append(parts, e.Name)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.DebugID != "" {
		parts = append(parts, "debug_id="+e.DebugID)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *APIError) Is(target error) bool {
	return target == domain.ErrExternalService
}

// IsTransient reports whether a PayPal failure may succeed when retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func transportError(operation string, err error) *APIError {
	return &APIError{
		Operation: operation,
		Message:   "request failed",
		Transient: !errors.Is(err, context.Canceled),
		Cause:     err,
	}
}
