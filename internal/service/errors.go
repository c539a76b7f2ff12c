package service

import "errors"

var (
	// ErrValidation covers malformed input caught before any network call.
	ErrValidation = errors.New("validation failed")

	// ErrLockBusy means another caller holds the reference lock. Transient;
	// the caller may retry.
	ErrLockBusy = errors.New("reference is being processed")

	// ErrEffectFailed is a business-rule rejection at apply time. The payment
	// was captured, so these are audited for manual reconciliation.
	ErrEffectFailed = errors.New("effect application failed")
)

// Verification rejection reasons, surfaced verbatim to the caller.
const (
	ReasonUnknownReference = "unknown reference"
	ReasonAmountMismatch   = "amount mismatch"
	ReasonCurrencyMismatch = "currency mismatch"
)
