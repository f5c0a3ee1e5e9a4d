package processors

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/treasury/backend/src/logger"
	"github.com/username/treasury/backend/src/models"
	"github.com/username/treasury/backend/src/utils"
)

// nearZeroRate is the threshold below which a rate is unusable as a divisor.
var nearZeroRate = decimal.New(1, -6)

// ExchangeRateResolver resolves a daily or monthly-average rate for a currency
// pair with a fixed fallback chain: stored rate for the exact date (manual
// rates included), most recent stored rate on or before the date, external
// historical provider, then the configured default constant. Resolutions are
// memoized per (pair, date) in a short-TTL cache; manual rate edits must
// invalidate the affected date via Invalidate.
type ExchangeRateResolver struct {
	store    ExchangeRateStore
	provider RateProvider
	cache    *cache.Cache

	defaultUSDRate decimal.Decimal // last-resort USD/TRY constant, zero disables it
	eurMultiplier  decimal.Decimal // USD-rate multiplier when no EUR rate exists
}

func NewExchangeRateResolver(store ExchangeRateStore, provider RateProvider, rateCache *cache.Cache, defaultUSDRate, eurMultiplier decimal.Decimal) *ExchangeRateResolver {
	return &ExchangeRateResolver{
		store:          store,
		provider:       provider,
		cache:          rateCache,
		defaultUSDRate: defaultUSDRate,
		eurMultiplier:  eurMultiplier,
	}
}

func rateCacheKey(pair models.CurrencyPair, date time.Time) string {
	return fmt.Sprintf("rate_%s_%s", pair, utils.FormatDate(date))
}

// DailyRate resolves the rate for one calendar date, first success in the
// fallback chain wins. The default-constant leg is logged as a degraded
// result; if no default is configured the chain ends in ErrRateUnavailable.
func (r *ExchangeRateResolver) DailyRate(ctx context.Context, pair models.CurrencyPair, date time.Time) (decimal.Decimal, error) {
	date = utils.DateOnly(date)
	key := rateCacheKey(pair, date)
	if cached, found := r.cache.Get(key); found {
		return cached.(decimal.Decimal), nil
	}

	rate, err := r.resolveDaily(ctx, pair, date)
	if err != nil {
		return decimal.Decimal{}, err
	}
	r.cache.SetDefault(key, rate)
	return rate, nil
}

func (r *ExchangeRateResolver) resolveDaily(ctx context.Context, pair models.CurrencyPair, date time.Time) (decimal.Decimal, error) {
	// 1. Stored rate for the exact date.
	if row, err := r.store.GetRate(date); err != nil {
		return decimal.Decimal{}, fmt.Errorf("querying exchange rate for %s: %w", utils.FormatDate(date), err)
	} else if rate, ok := rateFromRow(row, pair); ok {
		return rate, nil
	}

	// 2. Most recent stored rate for this pair on or before the date.
	if row, err := r.store.LatestOnOrBefore(date, pair); err != nil {
		return decimal.Decimal{}, fmt.Errorf("querying latest exchange rate before %s: %w", utils.FormatDate(date), err)
	} else if rate, ok := rateFromRow(row, pair); ok {
		return rate, nil
	}

	// 3. External historical provider.
	if r.provider != nil {
		rate, err := r.provider.HistoricalRate(ctx, pair, date)
		if err != nil {
			logger.L.Warn("historical rate provider failed, falling through",
				"pair", string(pair), "date", utils.FormatDate(date), "error", err)
		} else if usableRate(rate) {
			return rate, nil
		}
	}

	// 4. EUR falls back to the USD rate times the configured multiplier.
	if pair == models.PairEURTRY {
		usdRate, err := r.DailyRate(ctx, models.PairUSDTRY, date)
		if err != nil {
			return decimal.Decimal{}, err
		}
		logger.L.Warn("no EUR rate available, deriving from USD rate",
			"date", utils.FormatDate(date), "usdRate", usdRate.String())
		return usdRate.Mul(r.eurMultiplier), nil
	}

	// 5. Configured default constant, logged as a degraded result.
	if !usableRate(r.defaultUSDRate) {
		return decimal.Decimal{}, fmt.Errorf("%w: no rate for %s on %s and no default configured",
			ErrRateUnavailable, string(pair), utils.FormatDate(date))
	}
	logger.L.Warn("exchange rate fallback chain exhausted, using default constant",
		"pair", string(pair), "date", utils.FormatDate(date), "default", r.defaultUSDRate.String())
	return r.defaultUSDRate, nil
}

// MonthlyAverageRate is the arithmetic mean of DailyRate over every calendar
// day of the month. Days with no provider data reuse the nearest prior stored
// rate through the normal chain, so the divisor is always the full day count.
func (r *ExchangeRateResolver) MonthlyAverageRate(ctx context.Context, pair models.CurrencyPair, year int, month time.Month) (decimal.Decimal, error) {
	days := utils.DaysInMonth(year, month)
	sum := decimal.Zero
	for day := 1; day <= days; day++ {
		if err := ctx.Err(); err != nil {
			return decimal.Decimal{}, err
		}
		rate, err := r.DailyRate(ctx, pair, time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
		if err != nil {
			return decimal.Decimal{}, err
		}
		sum = sum.Add(rate)
	}
	return sum.Div(decimal.NewFromInt(int64(days))), nil
}

// Invalidate drops the memoized rates for the given dates, both pairs. Called
// on manual rate edits so a same-process edit is visible immediately.
func (r *ExchangeRateResolver) Invalidate(dates ...time.Time) {
	for _, date := range dates {
		date = utils.DateOnly(date)
		r.cache.Delete(rateCacheKey(models.PairUSDTRY, date))
		r.cache.Delete(rateCacheKey(models.PairEURTRY, date))
	}
}

// rateFromRow extracts the pair's rate from a stored row, if present and
// usable. A row with a null or zero column does not satisfy the lookup.
func rateFromRow(row *models.ExchangeRate, pair models.CurrencyPair) (decimal.Decimal, bool) {
	if row == nil {
		return decimal.Decimal{}, false
	}
	switch pair {
	case models.PairEURTRY:
		if row.EURToTL.Valid && usableRate(row.EURToTL.Decimal) {
			return row.EURToTL.Decimal, true
		}
	default:
		if usableRate(row.USDToTL) {
			return row.USDToTL, true
		}
	}
	return decimal.Decimal{}, false
}

func usableRate(rate decimal.Decimal) bool {
	return rate.GreaterThan(nearZeroRate)
}
