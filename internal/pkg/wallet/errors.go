package wallet

import "errors"

// Business-rule failures surfaced to callers as typed results. Anything else
// returned by the wallet service is an infrastructure fault (storage
// unavailable, transaction aborted) and should be treated as transient.
var (
	// ErrInvalidAmount is returned when a mutating operation is called with
	// a non-positive amount. Caller bug; never retried.
	ErrInvalidAmount = errors.New("wallet: amount must be positive")

	// ErrInsufficientBalance is returned when a spend would take the balance
	// below zero. The balance is left unchanged and no ledger entry is
	// written.
	ErrInsufficientBalance = errors.New("wallet: insufficient balance")

	// ErrAccountNotFound is returned when the referenced account does not
	// exist.
	ErrAccountNotFound = errors.New("wallet: account not found")

	// ErrInvalidEventType is returned when Grant is called with an event
	// type that is not a credit grant (grant, purchase or bonus). Spends and
	// refunds have their own operations. Caller bug; never retried.
	ErrInvalidEventType = errors.New("wallet: invalid grant event type")
)
