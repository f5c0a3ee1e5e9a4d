package processors

import (
	"context"
	"sort"

	"github.com/username/treasury/backend/src/models"
	"github.com/username/treasury/backend/src/utils"
)

// AggregationEngine folds canonical records into per-bucket totals. The fold
// is a single linear pass; deposits and withdrawals accumulate separately and
// are never netted here, so net cash can be computed once, consistently, by
// the net-cash calculator afterwards.
type AggregationEngine struct{}

func NewAggregationEngine() *AggregationEngine { return &AggregationEngine{} }

// Accumulator is the streaming form of the fold, for callers that iterate a
// repository cursor instead of materializing all records.
type Accumulator struct {
	spec    models.BucketSpec
	buckets map[string]*models.BucketTotals
}

func (e *AggregationEngine) NewAccumulator(spec models.BucketSpec) *Accumulator {
	return &Accumulator{spec: spec, buckets: make(map[string]*models.BucketTotals)}
}

// Add folds one record into its bucket. Records outside the spec's date
// window are ignored.
func (a *Accumulator) Add(rec models.CanonicalRecord) {
	if !a.spec.InWindow(rec.Date) {
		return
	}
	key := bucketKey(a.spec.GroupBy, rec)
	bucket, ok := a.buckets[key]
	if !ok {
		bucket = &models.BucketTotals{Key: key}
		a.buckets[key] = bucket
	}

	bucket.Count++
	bucket.CommissionTRY = bucket.CommissionTRY.Add(rec.CommissionTRY)
	bucket.CommissionUSD = bucket.CommissionUSD.Add(rec.CommissionUSD)
	if rec.IsDeposit {
		bucket.DepositsTRY = bucket.DepositsTRY.Add(rec.AmountTRY)
		bucket.DepositsUSD = bucket.DepositsUSD.Add(rec.AmountUSD)
		if rec.PaymentMethodClass == models.MethodTether {
			bucket.TetherDepositsUSD = bucket.TetherDepositsUSD.Add(rec.AmountUSD)
		}
	} else {
		bucket.WithdrawalsTRY = bucket.WithdrawalsTRY.Add(rec.AmountTRY)
		bucket.WithdrawalsUSD = bucket.WithdrawalsUSD.Add(rec.AmountUSD)
		if rec.PaymentMethodClass == models.MethodTether {
			bucket.TetherWithdrawalsUSD = bucket.TetherWithdrawalsUSD.Add(rec.AmountUSD)
		}
	}
}

// Totals returns the accumulated buckets ordered by key, for deterministic
// output across identical inputs.
func (a *Accumulator) Totals() []models.BucketTotals {
	keys := make([]string, 0, len(a.buckets))
	for key := range a.buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	totals := make([]models.BucketTotals, 0, len(keys))
	for _, key := range keys {
		totals = append(totals, *a.buckets[key])
	}
	return totals
}

// Aggregate folds a record slice into bucket totals, checking for
// cancellation between records. Partial results are never returned: a
// cancelled fold fails with the context error.
func (e *AggregationEngine) Aggregate(ctx context.Context, records []models.CanonicalRecord, spec models.BucketSpec) ([]models.BucketTotals, error) {
	acc := e.NewAccumulator(spec)
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		acc.Add(rec)
	}
	return acc.Totals(), nil
}

// bucketKey derives the grouping key for a record. Missing dimension values
// map to "Unknown"/"OTHER" group keys, never dropped.
func bucketKey(groupBy models.GroupBy, rec models.CanonicalRecord) string {
	switch groupBy {
	case models.GroupByDay:
		return utils.FormatDate(rec.Date)
	case models.GroupByMonth:
		return rec.Date.Format("2006-01")
	case models.GroupByYear:
		return rec.Date.Format("2006")
	case models.GroupByPSP:
		if rec.PSP == "" {
			return models.UnknownPSP
		}
		return rec.PSP
	case models.GroupByCategory:
		return string(rec.Category)
	case models.GroupByPaymentMethod:
		if rec.PaymentMethodClass == "" {
			return string(models.MethodOther)
		}
		return string(rec.PaymentMethodClass)
	default:
		return "all"
	}
}
