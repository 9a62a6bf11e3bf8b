package domain

import "errors"

var (
	// ErrDataUnavailable means the quote source has no usable price. It aborts the whole cycle.
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrInvalidPrice is a zero or negative price. Always wrapped together with ErrDataUnavailable.
	ErrInvalidPrice = errors.New("non-positive price")
	// ErrInvalidState is a ledger integrity failure and is never retried.
	ErrInvalidState = errors.New("invalid portfolio state")
	// ErrInvalidAllocation rejects a malformed target allocation before any quote is fetched.
	ErrInvalidAllocation = errors.New("invalid target allocation")
	// ErrValidation is returned by the metrics calculator for incomplete price input.
	ErrValidation = errors.New("validation failed")
)
