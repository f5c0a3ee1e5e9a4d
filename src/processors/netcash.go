package processors

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/treasury/backend/src/models"
	"github.com/username/treasury/backend/src/utils"
)

// NetCashStrategy names one of the two net-cash derivations found in the
// business's reporting paths. They agree when a single exchange rate covers
// the whole bucket and diverge when daily rates vary within it, so a report
// must pick one explicitly and never mix them.
type NetCashStrategy string

const (
	// NetCashDirect computes net cash independently per currency from the
	// already-converted deposit and withdrawal sums. This is the default: it
	// never compounds a single day's rate error across the bucket.
	NetCashDirect NetCashStrategy = "direct"

	// NetCashUSDFirst derives the USD net as the TRY net divided by a single
	// authoritative bucket rate plus the USD-native (Tether) net, then
	// re-derives the TRY net from that USD figure.
	NetCashUSDFirst NetCashStrategy = "usd_first"
)

// ParseNetCashStrategy maps a query value to a strategy, defaulting to direct.
func ParseNetCashStrategy(s string) (NetCashStrategy, bool) {
	switch NetCashStrategy(s) {
	case NetCashDirect, NetCashUSDFirst:
		return NetCashStrategy(s), true
	case "":
		return NetCashDirect, true
	}
	return NetCashDirect, false
}

// NetCashCalculator fills in the net figures on aggregated buckets. The
// usd-first strategy resolves one authoritative USD/TRY rate per bucket so
// cross-rate drift cannot creep in within a bucket: temporal buckets use the
// rate for their own date, everything else the report's asOf date.
type NetCashCalculator struct {
	strategy NetCashStrategy
	rates    *ExchangeRateResolver
}

func NewNetCashCalculator(strategy NetCashStrategy, rates *ExchangeRateResolver) *NetCashCalculator {
	return &NetCashCalculator{strategy: strategy, rates: rates}
}

// Finalize computes NetTRY/NetUSD on every bucket in place.
func (c *NetCashCalculator) Finalize(ctx context.Context, buckets []models.BucketTotals, asOf time.Time) error {
	if c.strategy != NetCashUSDFirst {
		for i := range buckets {
			directNetCash(&buckets[i])
		}
		return nil
	}
	for i := range buckets {
		rate, err := c.bucketRate(ctx, buckets[i].Key, asOf)
		if err != nil {
			return fmt.Errorf("resolving bucket rate for net cash: %w", err)
		}
		if !usableRate(rate) {
			return fmt.Errorf("%w: bucket rate %s", ErrRateUnavailable, rate.String())
		}
		usdFirstNetCash(&buckets[i], rate)
	}
	return nil
}

// bucketRate picks the authoritative USD/TRY rate for one bucket. Day buckets
// carry their date in the key and resolve that day's rate; month buckets the
// monthly average. Every other grouping (none, year, PSP, category, payment
// method) shares the asOf rate, which the resolver memoizes across buckets.
func (c *NetCashCalculator) bucketRate(ctx context.Context, key string, asOf time.Time) (decimal.Decimal, error) {
	if date, err := utils.ParseDate(key); err == nil {
		return c.rates.DailyRate(ctx, models.PairUSDTRY, date)
	}
	if month, err := time.Parse("2006-01", key); err == nil {
		return c.rates.MonthlyAverageRate(ctx, models.PairUSDTRY, month.Year(), month.Month())
	}
	return c.rates.DailyRate(ctx, models.PairUSDTRY, asOf)
}

// directNetCash: deposits minus withdrawals, independently per currency.
// Commission stays out of net cash; it is reported separately.
func directNetCash(b *models.BucketTotals) {
	b.NetTRY = b.DepositsTRY.Sub(b.WithdrawalsTRY)
	b.NetUSD = b.DepositsUSD.Sub(b.WithdrawalsUSD)
}

// usdFirstNetCash: USD net = TRY net / bucket rate + Tether-native USD net;
// TRY net is then derived back from the USD figure. The Tether component is
// isolated because its TRY mirrors are zero by construction.
func usdFirstNetCash(b *models.BucketTotals, rate decimal.Decimal) {
	tryNet := b.DepositsTRY.Sub(b.WithdrawalsTRY)
	tetherNet := b.TetherDepositsUSD.Sub(b.TetherWithdrawalsUSD)
	b.NetUSD = tryNet.Div(rate).Add(tetherNet)
	b.NetTRY = b.NetUSD.Sub(tetherNet).Mul(rate)
}
