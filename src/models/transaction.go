package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is the transaction category code.
type Category string

const (
	CategoryDeposit    Category = "DEP"
	CategoryWithdrawal Category = "WD"
)

// PaymentMethodClass is the coarse payment-method taxonomy derived from the
// free-text payment_method field.
type PaymentMethodClass string

const (
	MethodBank   PaymentMethodClass = "BANK"
	MethodCC     PaymentMethodClass = "CC"
	MethodTether PaymentMethodClass = "TETHER"
	MethodOther  PaymentMethodClass = "OTHER"
)

// UnknownPSP is the group key used when a transaction carries no PSP name.
const UnknownPSP = "Unknown"

// Transaction is a raw PSP transaction as stored. Amounts are in the original
// currency. The TRY mirror fields (AmountTRY etc.) are optional: when they were
// computed at creation time they are authoritative for TRY math, together with
// the ExchangeRate that produced them.
type Transaction struct {
	ID            string          `json:"id"`
	Date          time.Time       `json:"date"` // calendar date, no time component
	Category      Category        `json:"category"`
	Currency      string          `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	Commission    decimal.Decimal `json:"commission"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	PSP           string          `json:"psp"`
	PaymentMethod string          `json:"payment_method"`

	AmountTRY     decimal.NullDecimal `json:"amount_try"`
	CommissionTRY decimal.NullDecimal `json:"commission_try"`
	NetAmountTRY  decimal.NullDecimal `json:"net_amount_try"`
	ExchangeRate  decimal.NullDecimal `json:"exchange_rate"`
}

// PSPName returns the PSP grouping key, never empty.
func (t Transaction) PSPName() string {
	if t.PSP == "" {
		return UnknownPSP
	}
	return t.PSP
}

// HasPrecomputedTRY reports whether the stored TRY mirror is present and must
// be treated as authoritative for TRY math.
func (t Transaction) HasPrecomputedTRY() bool {
	return t.AmountTRY.Valid
}

// nearZeroRate is the threshold below which a stored rate is unusable as a
// divisor.
var nearZeroRate = decimal.New(1, -6)

// OwnRate returns the exchange rate recorded on the transaction itself, if it
// is present and usable as a divisor.
func (t Transaction) OwnRate() (decimal.Decimal, bool) {
	if t.ExchangeRate.Valid && t.ExchangeRate.Decimal.GreaterThan(nearZeroRate) {
		return t.ExchangeRate.Decimal, true
	}
	return decimal.Decimal{}, false
}
