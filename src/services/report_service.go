package services

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/treasury/backend/src/logger"
	"github.com/username/treasury/backend/src/models"
	"github.com/username/treasury/backend/src/processors"
	"github.com/username/treasury/backend/src/repository"
	"github.com/username/treasury/backend/src/utils"
)

const ckBucketReport = "report_%s_%s_%s_%s" // from, to, group_by, strategy

type reportServiceImpl struct {
	txStore      *repository.TransactionStore
	rateStore    *repository.ExchangeRateStore
	rateResolver *processors.ExchangeRateResolver
	commissions  *processors.CommissionRateResolver
	commStore    *repository.CommissionRateStore
	normalizer   *processors.TransactionNormalizer
	engine       *processors.AggregationEngine
	provider     processors.RateProvider
	reportCache  *cache.Cache

	abortOnRecordError bool
}

func NewReportService(
	txStore *repository.TransactionStore,
	rateStore *repository.ExchangeRateStore,
	commStore *repository.CommissionRateStore,
	rateResolver *processors.ExchangeRateResolver,
	commissions *processors.CommissionRateResolver,
	normalizer *processors.TransactionNormalizer,
	engine *processors.AggregationEngine,
	provider processors.RateProvider,
	reportCache *cache.Cache,
	abortOnRecordError bool,
) ReportService {
	return &reportServiceImpl{
		txStore:            txStore,
		rateStore:          rateStore,
		commStore:          commStore,
		rateResolver:       rateResolver,
		commissions:        commissions,
		normalizer:         normalizer,
		engine:             engine,
		provider:           provider,
		reportCache:        reportCache,
		abortOnRecordError: abortOnRecordError,
	}
}

// GetBucketTotals runs the full pipeline: stream transactions in the window,
// normalize each, fold into buckets, finalize net cash with the chosen
// strategy. Per-record failures are skipped and surfaced as warnings unless
// the service is configured to abort; a cancelled context never yields a
// partial report.
func (s *reportServiceImpl) GetBucketTotals(ctx context.Context, from, to time.Time, groupBy models.GroupBy, strategy processors.NetCashStrategy) (*models.Report, error) {
	cacheKey := fmt.Sprintf(ckBucketReport, utils.FormatDate(from), utils.FormatDate(to), groupBy, strategy)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.(*models.Report), nil
	}

	startTime := time.Now()
	it, err := s.txStore.QueryRange(ctx, from, to, repository.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	report := &models.Report{}
	acc := s.engine.NewAccumulator(models.BucketSpec{GroupBy: groupBy, From: from, To: to})
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReportAborted, err)
		}
		tx := it.Transaction()
		report.TotalRecords++

		rec, err := s.normalizer.Normalize(ctx, tx)
		if err != nil {
			if s.abortOnRecordError {
				return nil, fmt.Errorf("%w: %v", ErrReportAborted, err)
			}
			report.SkippedRecords++
			report.Warnings = append(report.Warnings, err.Error())
			logger.L.Warn("skipping transaction in aggregation", "transactionID", tx.ID, "error", err)
			continue
		}
		acc.Add(rec)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	report.Buckets = acc.Totals()

	asOf := utils.DateOnly(time.Now())
	if !to.IsZero() {
		asOf = utils.DateOnly(to)
	}
	netCash := processors.NewNetCashCalculator(strategy, s.rateResolver)
	if err := netCash.Finalize(ctx, report.Buckets, asOf); err != nil {
		return nil, err
	}

	logger.L.Info("bucket report built",
		"groupBy", string(groupBy), "strategy", string(strategy),
		"records", report.TotalRecords, "skipped", report.SkippedRecords,
		"buckets", len(report.Buckets), "duration", time.Since(startTime))

	s.reportCache.SetDefault(cacheKey, report)
	return report, nil
}

func (s *reportServiceImpl) CreateTransaction(tx models.Transaction) (models.Transaction, error) {
	created, err := s.txStore.Insert(tx)
	if err != nil {
		return models.Transaction{}, err
	}
	s.InvalidateReports()
	return created, nil
}

func (s *reportServiceImpl) UpdateTransaction(tx models.Transaction) error {
	if err := s.txStore.Update(tx); err != nil {
		return err
	}
	s.InvalidateReports()
	return nil
}

func (s *reportServiceImpl) DeleteTransaction(id string) error {
	if err := s.txStore.Delete(id); err != nil {
		return err
	}
	s.InvalidateReports()
	return nil
}

// SetManualRate stores a human-edited rate row. The memoized rate for that
// date is dropped immediately so the edit is visible within this process, and
// every cached report is invalidated because totals may shift.
func (s *reportServiceImpl) SetManualRate(date time.Time, usdToTL decimal.Decimal, eurToTL decimal.NullDecimal) (*models.ExchangeRate, error) {
	if !usdToTL.IsPositive() {
		return nil, fmt.Errorf("%w: usd_to_tl must be positive", ErrInvalidRequest)
	}
	saved, err := s.rateStore.SetManual(date, usdToTL, eurToTL)
	if err != nil {
		return nil, err
	}
	s.rateResolver.Invalidate(date)
	s.InvalidateReports()
	logger.L.Info("manual exchange rate set", "date", utils.FormatDate(date), "usdToTL", usdToTL.String())
	return saved, nil
}

// RefreshDailyRates pulls provider rates for each day of the window and
// upserts them, skipping manual rows. Returns how many days were written.
func (s *reportServiceImpl) RefreshDailyRates(ctx context.Context, from, to time.Time) (int, error) {
	if to.Before(from) {
		return 0, fmt.Errorf("%w: refresh window end precedes start", ErrInvalidRequest)
	}
	updated := 0
	for day := utils.DateOnly(from); !day.After(utils.DateOnly(to)); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		usdRate, err := s.provider.HistoricalRate(ctx, models.PairUSDTRY, day)
		if err != nil {
			logger.L.Warn("rate refresh: no USD rate for day", "date", utils.FormatDate(day), "error", err)
			continue
		}
		row := models.ExchangeRate{Date: day, USDToTL: usdRate}
		if eurRate, err := s.provider.HistoricalRate(ctx, models.PairEURTRY, day); err == nil {
			row.EURToTL = decimal.NullDecimal{Decimal: eurRate, Valid: true}
		}
		written, err := s.rateStore.UpsertRefreshed(row)
		if err != nil {
			return updated, err
		}
		if written {
			updated++
			s.rateResolver.Invalidate(day)
		}
	}
	if updated > 0 {
		s.InvalidateReports()
	}
	logger.L.Info("daily rates refreshed", "from", utils.FormatDate(from), "to", utils.FormatDate(to), "updated", updated)
	return updated, nil
}

func (s *reportServiceImpl) SetCommissionRate(psp string, rate decimal.Decimal, from time.Time, until *time.Time) (*models.PSPCommissionRate, error) {
	created, err := s.commissions.SetNewRate(psp, rate, from, until)
	if err != nil {
		return nil, err
	}
	s.InvalidateReports()
	return created, nil
}

func (s *reportServiceImpl) GetCommissionRate(psp string, date time.Time) (decimal.Decimal, error) {
	return s.commissions.RateFor(psp, date)
}

func (s *reportServiceImpl) ListCommissionRates(psp string) ([]models.PSPCommissionRate, error) {
	return s.commStore.ListRates(psp)
}

func (s *reportServiceImpl) InvalidateReports() {
	s.reportCache.Flush()
}
