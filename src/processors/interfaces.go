package processors

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/treasury/backend/src/models"
)

// ExchangeRateStore is the read side of the persisted rate table. Lookups
// return (nil, nil) when no row matches. LatestOnOrBefore only considers rows
// that carry a value for the requested pair, so a recent row without an EUR
// column never shadows an older row that has one.
type ExchangeRateStore interface {
	GetRate(date time.Time) (*models.ExchangeRate, error)
	LatestOnOrBefore(date time.Time, pair models.CurrencyPair) (*models.ExchangeRate, error)
}

// RateProvider is the external historical-rate source. Network-backed,
// rate-limited, may fail or return no data for a date.
type RateProvider interface {
	HistoricalRate(ctx context.Context, pair models.CurrencyPair, date time.Time) (decimal.Decimal, error)
}

// CommissionRateStore is the persisted commission schedule. ActiveRateFor
// returns (nil, nil) when no interval covers the date. SetNewRate must close
// the currently open interval and insert the new one as a single atomic unit.
type CommissionRateStore interface {
	ActiveRateFor(psp string, date time.Time) (*models.PSPCommissionRate, error)
	SetNewRate(psp string, rate decimal.Decimal, from time.Time, until *time.Time) (*models.PSPCommissionRate, error)
}
