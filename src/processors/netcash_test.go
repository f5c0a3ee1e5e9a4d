package processors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/treasury/backend/src/models"
)

func TestDirectNetCashPerCurrency(t *testing.T) {
	buckets := []models.BucketTotals{{
		Key:            "all",
		DepositsTRY:    dec("5000"),
		WithdrawalsTRY: dec("1200"),
		DepositsUSD:    dec("125"),
		WithdrawalsUSD: dec("30"),
		CommissionTRY:  dec("250"),
	}}
	calc := NewNetCashCalculator(NetCashDirect, newTestResolver(newFakeRateStore(), newFakeProvider(), "48.0"))

	require.NoError(t, calc.Finalize(context.Background(), buckets, mustDate(t, "2025-06-30")))
	// Net cash is deposits minus withdrawals; commission is reported
	// separately and never folded in.
	assertDecimalEqual(t, "3800", buckets[0].NetTRY)
	assertDecimalEqual(t, "95", buckets[0].NetUSD)
}

func TestStrategiesAgreeUnderSingleBucketRate(t *testing.T) {
	// All TRY/USD conversions below used the same rate (40), so the two
	// derivations must coincide. They diverge only when daily rates vary
	// inside the bucket.
	store := newFakeRateStore()
	store.put("2025-06-30", "40", "", false)

	mkBuckets := func() []models.BucketTotals {
		return []models.BucketTotals{{
			Key:                  "all",
			DepositsTRY:          dec("4000"),
			WithdrawalsTRY:       dec("1000"),
			DepositsUSD:          dec("150"), // 4000/40 + 50 Tether
			WithdrawalsUSD:       dec("35"),  // 1000/40 + 10 Tether
			TetherDepositsUSD:    dec("50"),
			TetherWithdrawalsUSD: dec("10"),
		}}
	}

	direct := mkBuckets()
	calc := NewNetCashCalculator(NetCashDirect, newTestResolver(store, newFakeProvider(), "48.0"))
	require.NoError(t, calc.Finalize(context.Background(), direct, mustDate(t, "2025-06-30")))

	usdFirst := mkBuckets()
	calc = NewNetCashCalculator(NetCashUSDFirst, newTestResolver(store, newFakeProvider(), "48.0"))
	require.NoError(t, calc.Finalize(context.Background(), usdFirst, mustDate(t, "2025-06-30")))

	assert.True(t, direct[0].NetUSD.Equal(usdFirst[0].NetUSD),
		"USD nets disagree: direct %s vs usd-first %s", direct[0].NetUSD, usdFirst[0].NetUSD)
	assert.True(t, direct[0].NetTRY.Equal(usdFirst[0].NetTRY),
		"TRY nets disagree: direct %s vs usd-first %s", direct[0].NetTRY, usdFirst[0].NetTRY)
}

func TestStrategiesDivergeWhenRatesVaryInBucket(t *testing.T) {
	// Deposits converted at 40, withdrawals at 50; the bucket rate is 45.
	store := newFakeRateStore()
	store.put("2025-06-30", "45", "", false)

	buckets := []models.BucketTotals{{
		Key:            "all",
		DepositsTRY:    dec("4000"),
		WithdrawalsTRY: dec("1000"),
		DepositsUSD:    dec("100"), // 4000/40
		WithdrawalsUSD: dec("20"),  // 1000/50
	}}
	direct := []models.BucketTotals{buckets[0]}

	calc := NewNetCashCalculator(NetCashDirect, newTestResolver(store, newFakeProvider(), "48.0"))
	require.NoError(t, calc.Finalize(context.Background(), direct, mustDate(t, "2025-06-30")))

	calc = NewNetCashCalculator(NetCashUSDFirst, newTestResolver(store, newFakeProvider(), "48.0"))
	require.NoError(t, calc.Finalize(context.Background(), buckets, mustDate(t, "2025-06-30")))

	assert.False(t, direct[0].NetUSD.Equal(buckets[0].NetUSD),
		"expected divergence, both answered %s", direct[0].NetUSD)
}

func TestUSDFirstDayBucketsUseOwnDayRates(t *testing.T) {
	// Day-grouped buckets settle at their own day's rate, not the report's
	// asOf rate.
	store := newFakeRateStore()
	store.put("2025-06-10", "40", "", false)
	store.put("2025-06-11", "50", "", false)

	buckets := []models.BucketTotals{
		{Key: "2025-06-10", DepositsTRY: dec("4000")},
		{Key: "2025-06-11", DepositsTRY: dec("4000")},
	}
	calc := NewNetCashCalculator(NetCashUSDFirst, newTestResolver(store, newFakeProvider(), "48.0"))

	require.NoError(t, calc.Finalize(context.Background(), buckets, mustDate(t, "2025-06-30")))
	assertDecimalEqual(t, "100", buckets[0].NetUSD)
	assertDecimalEqual(t, "80", buckets[1].NetUSD)
}

func TestUSDFirstMonthBucketUsesMonthlyAverage(t *testing.T) {
	// 40 covers June 1-15 and 44 the rest, so the June average is 42.
	store := newFakeRateStore()
	store.put("2025-06-01", "40", "", false)
	store.put("2025-06-16", "44", "", false)

	buckets := []models.BucketTotals{{Key: "2025-06", DepositsTRY: dec("4200")}}
	calc := NewNetCashCalculator(NetCashUSDFirst, newTestResolver(store, newFakeProvider(), "48.0"))

	require.NoError(t, calc.Finalize(context.Background(), buckets, mustDate(t, "2025-06-30")))
	assertDecimalEqual(t, "100", buckets[0].NetUSD)
	assertDecimalEqual(t, "4200", buckets[0].NetTRY)
}

func TestUSDFirstFailsWithoutBucketRate(t *testing.T) {
	calc := NewNetCashCalculator(NetCashUSDFirst, newTestResolver(newFakeRateStore(), newFakeProvider(), "0"))

	err := calc.Finalize(context.Background(), []models.BucketTotals{{Key: "all"}}, mustDate(t, "2025-06-30"))
	assert.ErrorIs(t, err, ErrRateUnavailable)
}

func TestParseNetCashStrategy(t *testing.T) {
	s, ok := ParseNetCashStrategy("")
	assert.True(t, ok)
	assert.Equal(t, NetCashDirect, s)

	s, ok = ParseNetCashStrategy("usd_first")
	assert.True(t, ok)
	assert.Equal(t, NetCashUSDFirst, s)

	_, ok = ParseNetCashStrategy("sideways")
	assert.False(t, ok)
}
