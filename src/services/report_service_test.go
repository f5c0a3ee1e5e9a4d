package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/treasury/backend/src/database"
	"github.com/username/treasury/backend/src/models"
	"github.com/username/treasury/backend/src/processors"
	"github.com/username/treasury/backend/src/repository"
	"github.com/username/treasury/backend/src/utils"
)

type fakeProvider struct {
	rates map[string]decimal.Decimal // "pair|date" -> rate
}

func (p *fakeProvider) HistoricalRate(_ context.Context, pair models.CurrencyPair, date time.Time) (decimal.Decimal, error) {
	rate, ok := p.rates[fmt.Sprintf("%s|%s", pair, utils.FormatDate(date))]
	if !ok {
		return decimal.Zero, fmt.Errorf("provider has no %s rate for %s", pair, utils.FormatDate(date))
	}
	return rate, nil
}

type serviceFixture struct {
	service   ReportService
	rateStore *repository.ExchangeRateStore
	provider  *fakeProvider
}

func newTestService(t *testing.T, defaultUSD string, abortOnRecordError bool) serviceFixture {
	t.Helper()
	database.InitDB(":memory:")
	// A pooled :memory: connection would open a fresh empty database per
	// connection; pin to one.
	database.DB.SetMaxOpenConns(1)
	t.Cleanup(func() { database.DB.Close() })

	txStore := repository.NewTransactionStore(database.DB)
	rateStore := repository.NewExchangeRateStore(database.DB)
	commStore := repository.NewCommissionRateStore(database.DB)

	provider := &fakeProvider{rates: map[string]decimal.Decimal{}}
	rateResolver := processors.NewExchangeRateResolver(rateStore, provider,
		cache.New(time.Minute, 0),
		decimal.RequireFromString(defaultUSD), decimal.RequireFromString("1.08"))
	commissions := processors.NewCommissionRateResolver(commStore)
	normalizer := processors.NewTransactionNormalizer(rateResolver, commissions)

	service := NewReportService(txStore, rateStore, commStore, rateResolver, commissions,
		normalizer, processors.NewAggregationEngine(), provider,
		cache.New(time.Minute, 0), abortOnRecordError)
	return serviceFixture{service: service, rateStore: rateStore, provider: provider}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := utils.ParseDate(s)
	require.NoError(t, err)
	return d
}

func assertDecimalEqual(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(expected).Equal(actual),
		append([]any{fmt.Sprintf("expected %s, got %s", expected, actual.String())}, msgAndArgs...)...)
}

func createTx(t *testing.T, svc ReportService, tx models.Transaction) models.Transaction {
	t.Helper()
	created, err := svc.CreateTransaction(tx)
	require.NoError(t, err)
	return created
}

func TestGetBucketTotalsMixedRails(t *testing.T) {
	fx := newTestService(t, "48.0", false)
	date := mustDate(t, "2025-06-10")

	_, err := fx.service.SetManualRate(date, dec("40"), decimal.NullDecimal{})
	require.NoError(t, err)

	createTx(t, fx.service, models.Transaction{
		Date: date, Category: models.CategoryDeposit, Currency: "TRY",
		Amount: dec("1000"), Commission: dec("50"), NetAmount: dec("950"),
		PSP: "Alpha", PaymentMethod: "bank",
	})
	createTx(t, fx.service, models.Transaction{
		Date: date, Category: models.CategoryDeposit, Currency: "USD",
		Amount: dec("100"), Commission: dec("2.5"), NetAmount: dec("97.5"),
		PSP: "Alpha", PaymentMethod: "bank",
		ExchangeRate: decimal.NullDecimal{Decimal: dec("40"), Valid: true},
	})
	createTx(t, fx.service, models.Transaction{
		Date: date, Category: models.CategoryDeposit, Currency: "USD",
		Amount: dec("500"), Commission: dec("10"), NetAmount: dec("490"),
		PSP: "Kasa", PaymentMethod: "usdt",
	})

	report, err := fx.service.GetBucketTotals(context.Background(),
		mustDate(t, "2025-06-01"), mustDate(t, "2025-06-30"),
		models.GroupByNone, processors.NetCashDirect)
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalRecords)
	assert.Equal(t, 0, report.SkippedRecords)
	assert.Empty(t, report.Warnings)
	require.Len(t, report.Buckets, 1)

	bucket := report.Buckets[0]
	assert.Equal(t, "all", bucket.Key)
	assert.Equal(t, 3, bucket.Count)
	assertDecimalEqual(t, "5000", bucket.DepositsTRY, "TRY deposit plus converted USD deposit; Tether stays off the TRY side")
	assertDecimalEqual(t, "625", bucket.DepositsUSD)
	assertDecimalEqual(t, "150", bucket.CommissionTRY)
	assertDecimalEqual(t, "13.75", bucket.CommissionUSD)
	assertDecimalEqual(t, "500", bucket.TetherDepositsUSD)
	assertDecimalEqual(t, "5000", bucket.NetTRY)
	assertDecimalEqual(t, "625", bucket.NetUSD)
}

func TestGetBucketTotalsSkipsFailingRecords(t *testing.T) {
	// Default rate unusable, no stored rates, provider empty: the USD bank
	// record cannot be converted and must be skipped with a warning, while
	// the Tether record still aggregates.
	fx := newTestService(t, "0", false)
	date := mustDate(t, "2025-06-10")

	createTx(t, fx.service, models.Transaction{
		Date: date, Category: models.CategoryDeposit, Currency: "USD",
		Amount: dec("100"), PSP: "Alpha", PaymentMethod: "bank",
	})
	createTx(t, fx.service, models.Transaction{
		Date: date, Category: models.CategoryDeposit, Currency: "USD",
		Amount: dec("500"), Commission: dec("10"), NetAmount: dec("490"),
		PSP: "Kasa", PaymentMethod: "usdt",
	})

	report, err := fx.service.GetBucketTotals(context.Background(),
		time.Time{}, date, models.GroupByNone, processors.NetCashDirect)
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalRecords)
	assert.Equal(t, 1, report.SkippedRecords)
	require.Len(t, report.Warnings, 1)
	require.Len(t, report.Buckets, 1)
	assertDecimalEqual(t, "500", report.Buckets[0].DepositsUSD)
	assertDecimalEqual(t, "0", report.Buckets[0].DepositsTRY)
}

func TestGetBucketTotalsAbortsWhenConfigured(t *testing.T) {
	fx := newTestService(t, "0", true)
	date := mustDate(t, "2025-06-10")

	createTx(t, fx.service, models.Transaction{
		Date: date, Category: models.CategoryDeposit, Currency: "USD",
		Amount: dec("100"), PSP: "Alpha", PaymentMethod: "bank",
	})

	_, err := fx.service.GetBucketTotals(context.Background(),
		time.Time{}, date, models.GroupByNone, processors.NetCashDirect)
	assert.ErrorIs(t, err, ErrReportAborted)
}

func TestGetBucketTotalsCachesAndInvalidatesOnRateEdit(t *testing.T) {
	fx := newTestService(t, "48.0", false)
	date := mustDate(t, "2025-06-10")

	_, err := fx.service.SetManualRate(date, dec("40"), decimal.NullDecimal{})
	require.NoError(t, err)
	createTx(t, fx.service, models.Transaction{
		Date: date, Category: models.CategoryDeposit, Currency: "TRY",
		Amount: dec("1000"), Commission: dec("50"), NetAmount: dec("950"),
		PSP: "Alpha", PaymentMethod: "bank",
	})

	from, to := mustDate(t, "2025-06-01"), mustDate(t, "2025-06-30")
	first, err := fx.service.GetBucketTotals(context.Background(), from, to, models.GroupByNone, processors.NetCashDirect)
	require.NoError(t, err)
	assertDecimalEqual(t, "25", first.Buckets[0].DepositsUSD)

	cached, err := fx.service.GetBucketTotals(context.Background(), from, to, models.GroupByNone, processors.NetCashDirect)
	require.NoError(t, err)
	assert.Same(t, first, cached, "identical query must be served from cache")

	// Correcting the rate has to flush both the memoized daily rate and the
	// cached report.
	_, err = fx.service.SetManualRate(date, dec("50"), decimal.NullDecimal{})
	require.NoError(t, err)

	fresh, err := fx.service.GetBucketTotals(context.Background(), from, to, models.GroupByNone, processors.NetCashDirect)
	require.NoError(t, err)
	assert.NotSame(t, first, fresh)
	assertDecimalEqual(t, "20", fresh.Buckets[0].DepositsUSD)
}

func TestCreateTransactionInvalidatesReports(t *testing.T) {
	fx := newTestService(t, "48.0", false)
	date := mustDate(t, "2025-06-10")

	_, err := fx.service.SetManualRate(date, dec("40"), decimal.NullDecimal{})
	require.NoError(t, err)
	createTx(t, fx.service, models.Transaction{
		Date: date, Category: models.CategoryDeposit, Currency: "TRY",
		Amount: dec("1000"), NetAmount: dec("1000"), PSP: "Alpha", PaymentMethod: "bank",
	})

	from, to := mustDate(t, "2025-06-01"), mustDate(t, "2025-06-30")
	first, err := fx.service.GetBucketTotals(context.Background(), from, to, models.GroupByNone, processors.NetCashDirect)
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalRecords)

	createTx(t, fx.service, models.Transaction{
		Date: date, Category: models.CategoryWithdrawal, Currency: "TRY",
		Amount: dec("-200"), NetAmount: dec("-200"), PSP: "Alpha", PaymentMethod: "bank",
	})

	second, err := fx.service.GetBucketTotals(context.Background(), from, to, models.GroupByNone, processors.NetCashDirect)
	require.NoError(t, err)
	assert.Equal(t, 2, second.TotalRecords)
	assertDecimalEqual(t, "800", second.Buckets[0].NetTRY)
}

func TestSetManualRateRejectsNonPositive(t *testing.T) {
	fx := newTestService(t, "48.0", false)

	_, err := fx.service.SetManualRate(mustDate(t, "2025-06-10"), dec("0"), decimal.NullDecimal{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRefreshDailyRatesSkipsManualRows(t *testing.T) {
	fx := newTestService(t, "48.0", false)
	fx.provider.rates = map[string]decimal.Decimal{
		"USD/TRY|2025-06-01": dec("47"),
		"USD/TRY|2025-06-02": dec("47.2"),
		"USD/TRY|2025-06-03": dec("47.4"),
		"EUR/TRY|2025-06-02": dec("51"),
	}

	_, err := fx.service.SetManualRate(mustDate(t, "2025-06-02"), dec("45"), decimal.NullDecimal{})
	require.NoError(t, err)

	updated, err := fx.service.RefreshDailyRates(context.Background(),
		mustDate(t, "2025-06-01"), mustDate(t, "2025-06-03"))
	require.NoError(t, err)
	assert.Equal(t, 2, updated, "the manual day must not count as written")

	row, err := fx.rateStore.GetRate(mustDate(t, "2025-06-02"))
	require.NoError(t, err)
	require.NotNil(t, row)
	assertDecimalEqual(t, "45", row.USDToTL)
	assert.True(t, row.IsManual)

	row, err = fx.rateStore.GetRate(mustDate(t, "2025-06-03"))
	require.NoError(t, err)
	require.NotNil(t, row)
	assertDecimalEqual(t, "47.4", row.USDToTL)
	assert.False(t, row.IsManual)
}

func TestRefreshDailyRatesSkipsDaysWithoutProviderRate(t *testing.T) {
	fx := newTestService(t, "48.0", false)
	fx.provider.rates = map[string]decimal.Decimal{
		"USD/TRY|2025-06-01": dec("47"),
	}

	updated, err := fx.service.RefreshDailyRates(context.Background(),
		mustDate(t, "2025-06-01"), mustDate(t, "2025-06-02"))
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
}

func TestRefreshDailyRatesRejectsInvertedWindow(t *testing.T) {
	fx := newTestService(t, "48.0", false)

	_, err := fx.service.RefreshDailyRates(context.Background(),
		mustDate(t, "2025-06-10"), mustDate(t, "2025-06-01"))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
