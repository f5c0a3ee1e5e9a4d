package processors

import "errors"

var (
	// ErrRateUnavailable means no exchange rate could be resolved after the
	// full fallback chain, or a resolved rate was zero/near-zero and unusable
	// as a divisor. Recoverable at batch level but never absorbed into a zero.
	ErrRateUnavailable = errors.New("exchange rate unavailable")

	// ErrInvalidCommissionRate means a commission rate outside [0,1] was
	// offered on write. Rejected at the boundary, never stored.
	ErrInvalidCommissionRate = errors.New("commission rate must be between 0 and 1")

	// ErrOverlappingInterval means a new commission interval would start
	// before an existing interval's start for the same PSP.
	ErrOverlappingInterval = errors.New("commission interval overlaps existing interval")
)
