package processors

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/username/treasury/backend/src/models"
	"github.com/username/treasury/backend/src/utils"
)

// fakeRateStore is an in-memory ExchangeRateStore keyed by date string.
type fakeRateStore struct {
	rows map[string]models.ExchangeRate
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{rows: make(map[string]models.ExchangeRate)}
}

func (f *fakeRateStore) put(date string, usd string, eur string, manual bool) {
	row := models.ExchangeRate{IsManual: manual}
	row.Date, _ = utils.ParseDate(date)
	row.USDToTL = decimal.RequireFromString(usd)
	if eur != "" {
		row.EURToTL = decimal.NullDecimal{Decimal: decimal.RequireFromString(eur), Valid: true}
	}
	f.rows[date] = row
}

func (f *fakeRateStore) GetRate(date time.Time) (*models.ExchangeRate, error) {
	if row, ok := f.rows[utils.FormatDate(date)]; ok {
		return &row, nil
	}
	return nil, nil
}

func (f *fakeRateStore) LatestOnOrBefore(date time.Time, pair models.CurrencyPair) (*models.ExchangeRate, error) {
	keys := make([]string, 0, len(f.rows))
	for k := range f.rows {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	target := utils.FormatDate(date)
	for _, k := range keys {
		if k > target {
			continue
		}
		row := f.rows[k]
		if pair == models.PairEURTRY && !row.EURToTL.Valid {
			continue
		}
		return &row, nil
	}
	return nil, nil
}

// fakeProvider is an in-memory RateProvider that counts calls.
type fakeProvider struct {
	rates map[string]decimal.Decimal // key: pair|date
	calls int
	err   error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{rates: make(map[string]decimal.Decimal)}
}

func (f *fakeProvider) put(pair models.CurrencyPair, date string, rate string) {
	f.rates[string(pair)+"|"+date] = decimal.RequireFromString(rate)
}

func (f *fakeProvider) HistoricalRate(ctx context.Context, pair models.CurrencyPair, date time.Time) (decimal.Decimal, error) {
	f.calls++
	if f.err != nil {
		return decimal.Decimal{}, f.err
	}
	if rate, ok := f.rates[string(pair)+"|"+utils.FormatDate(date)]; ok {
		return rate, nil
	}
	return decimal.Decimal{}, fmt.Errorf("no rate for %s on %s", pair, utils.FormatDate(date))
}

// fakeCommissionStore is an in-memory CommissionRateStore mirroring the sql
// store's selection and set-new-rate semantics.
type fakeCommissionStore struct {
	nextID    int64
	intervals []models.PSPCommissionRate
}

func newFakeCommissionStore() *fakeCommissionStore {
	return &fakeCommissionStore{nextID: 1}
}

func (f *fakeCommissionStore) ActiveRateFor(psp string, date time.Time) (*models.PSPCommissionRate, error) {
	var best *models.PSPCommissionRate
	for i := range f.intervals {
		iv := f.intervals[i]
		if iv.PSPName != psp || !iv.IsActive || !iv.Covers(date) {
			continue
		}
		if best == nil || iv.EffectiveFrom.After(best.EffectiveFrom) ||
			(iv.EffectiveFrom.Equal(best.EffectiveFrom) && iv.ID > best.ID) {
			best = &f.intervals[i]
		}
	}
	return best, nil
}

func (f *fakeCommissionStore) SetNewRate(psp string, rate decimal.Decimal, from time.Time, until *time.Time) (*models.PSPCommissionRate, error) {
	for _, iv := range f.intervals {
		if iv.PSPName == psp && iv.IsActive && from.Before(iv.EffectiveFrom) {
			return nil, fmt.Errorf("%w: %s", ErrOverlappingInterval, psp)
		}
	}
	for i := range f.intervals {
		iv := &f.intervals[i]
		if iv.PSPName == psp && iv.IsActive && iv.EffectiveUntil == nil {
			closed := from
			iv.EffectiveUntil = &closed
		}
	}
	created := models.PSPCommissionRate{
		ID: f.nextID, PSPName: psp, CommissionRate: rate,
		EffectiveFrom: from, EffectiveUntil: until, IsActive: true,
	}
	f.nextID++
	f.intervals = append(f.intervals, created)
	return &created, nil
}

func newTestResolver(store ExchangeRateStore, provider RateProvider, defaultUSD string) *ExchangeRateResolver {
	return NewExchangeRateResolver(store, provider, cache.New(5*time.Minute, 0),
		decimal.RequireFromString(defaultUSD), decimal.RequireFromString("1.08"))
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := utils.ParseDate(s)
	require.NoError(t, err)
	return d
}

func assertDecimalEqual(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	exp := decimal.RequireFromString(expected)
	require.True(t, exp.Equal(actual), "expected %s, got %s", expected, actual.String())
}
