package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/treasury/backend/src/models"
	"github.com/username/treasury/backend/src/processors"
)

var (
	ErrReportAborted  = errors.New("aggregation aborted")
	ErrInvalidRequest = errors.New("invalid request")
)

// ReportService is the library surface consumed by the HTTP layer: bucketed
// financial summaries plus the write operations whose side effects must
// invalidate cached reports.
type ReportService interface {
	GetBucketTotals(ctx context.Context, from, to time.Time, groupBy models.GroupBy, strategy processors.NetCashStrategy) (*models.Report, error)

	CreateTransaction(tx models.Transaction) (models.Transaction, error)
	UpdateTransaction(tx models.Transaction) error
	DeleteTransaction(id string) error

	SetManualRate(date time.Time, usdToTL decimal.Decimal, eurToTL decimal.NullDecimal) (*models.ExchangeRate, error)
	RefreshDailyRates(ctx context.Context, from, to time.Time) (int, error)

	SetCommissionRate(psp string, rate decimal.Decimal, from time.Time, until *time.Time) (*models.PSPCommissionRate, error)
	GetCommissionRate(psp string, date time.Time) (decimal.Decimal, error)
	ListCommissionRates(psp string) ([]models.PSPCommissionRate, error)

	// InvalidateReports drops every cached report; cheap compared to serving
	// a stale financial figure. Called internally on any mutating operation
	// and exposed for callers that mutate through other paths.
	InvalidateReports()
}
