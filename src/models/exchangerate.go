package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is the stored rate row for one calendar date. Manual rows are
// human-edited and must never be overwritten by an automated refresh.
type ExchangeRate struct {
	Date     time.Time           `json:"date"`
	USDToTL  decimal.Decimal     `json:"usd_to_tl"`
	EURToTL  decimal.NullDecimal `json:"eur_to_tl"`
	IsManual bool                `json:"is_manual"`
}

// CurrencyPair identifies a conversion pair for rate lookups.
type CurrencyPair string

const (
	PairUSDTRY CurrencyPair = "USD/TRY"
	PairEURTRY CurrencyPair = "EUR/TRY"
)

// Base returns the pair's base currency code, e.g. "USD" for USD/TRY.
func (p CurrencyPair) Base() string {
	switch p {
	case PairEURTRY:
		return "EUR"
	default:
		return "USD"
	}
}
