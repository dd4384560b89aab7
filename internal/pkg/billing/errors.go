package billing

import "errors"

var (
	// ErrInvalidPayload is returned when the webhook body cannot be parsed
	// into a known event shape. Maps to HTTP 400; the provider should not
	// redeliver.
	ErrInvalidPayload = errors.New("billing: invalid webhook payload")

	// ErrUnresolvedAccount is returned when an event references a customer
	// or account that cannot be mapped locally. Nothing is committed, so the
	// event is not marked applied and a redelivery after the linkage is
	// fixed can still succeed. Maps to HTTP 5xx (NACK).
	ErrUnresolvedAccount = errors.New("billing: account reference could not be resolved")
)
