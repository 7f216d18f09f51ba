package domain

import "errors"

// store level
var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateOrder = errors.New("order already exists")
	ErrInvalidState   = errors.New("order is not pending")
	ErrStore          = errors.New("store failure")
)

// checkout
var (
	ErrValidation         = errors.New("invalid checkout request")
	ErrPreferenceCreation = errors.New("failed to create payment preference")
)

// webhook
var (
	ErrMalformedWebhook         = errors.New("malformed webhook")
	ErrUnsupportedNotification  = errors.New("unsupported notification type")
	ErrPaymentLookup            = errors.New("payment lookup failed")
	ErrPaymentNotFound          = errors.New("payment not found")
	ErrPaymentNotApproved       = errors.New("payment not approved")
	ErrOrderNotFound            = errors.New("order not found")
	ErrAmbiguousOrderResolution = errors.New("order resolution kept losing to concurrent payments")
)

// Retryable reports whether the sender of a notification may usefully redeliver it.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrPaymentLookup) ||
		errors.Is(err, ErrStore) ||
		errors.Is(err, ErrAmbiguousOrderResolution)
}
