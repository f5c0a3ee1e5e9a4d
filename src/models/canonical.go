package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AmountSource is the resolved origin of a transaction's TRY figures. The
// normalizer resolves it exactly once so downstream code never re-checks the
// nullable mirror columns.
type AmountSource struct {
	precomputed bool
	tryValue    decimal.Decimal
	original    decimal.Decimal
	currency    string
}

// PrecomputedAmount marks a stored TRY mirror value as the source.
func PrecomputedAmount(tryValue decimal.Decimal) AmountSource {
	return AmountSource{precomputed: true, tryValue: tryValue}
}

// RawAmount marks an original-currency value still needing conversion.
func RawAmount(original decimal.Decimal, currency string) AmountSource {
	return AmountSource{original: original, currency: currency}
}

// Precomputed reports whether the source is a stored TRY mirror, returning the
// mirror value when it is.
func (s AmountSource) Precomputed() (decimal.Decimal, bool) {
	return s.tryValue, s.precomputed
}

// Raw returns the original-currency value and its currency code for a source
// that still needs conversion.
func (s AmountSource) Raw() (decimal.Decimal, string) {
	return s.original, s.currency
}

// CanonicalRecord is a transaction after normalization: classified, with all
// amounts expressed in both TRY and USD as positive magnitudes. The caller is
// responsible for subtracting withdrawals; records never carry a sign.
type CanonicalRecord struct {
	TransactionID      string
	Date               time.Time
	Category           Category
	PSP                string
	PaymentMethodClass PaymentMethodClass
	IsDeposit          bool

	AmountTRY     decimal.Decimal
	AmountUSD     decimal.Decimal
	NetAmountTRY  decimal.Decimal
	NetAmountUSD  decimal.Decimal
	CommissionTRY decimal.Decimal
	CommissionUSD decimal.Decimal
}
