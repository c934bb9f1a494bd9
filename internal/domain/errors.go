package domain

import "errors"

var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrNotEligible     = errors.New("not eligible for notification")
	ErrStorage         = errors.New("storage error")
	ErrExternalService = errors.New("external service error")

	// ErrDuplicateTransaction is reported by storage when a payment transaction
	// was already credited. Callers surface it as a successful no-op.
	ErrDuplicateTransaction = errors.New("duplicate payment transaction")
)

// IsRetriable reports whether the caller may safely retry the failed operation.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrStorage) || errors.Is(err, ErrExternalService)
}
