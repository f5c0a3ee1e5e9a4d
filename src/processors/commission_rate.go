package processors

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/treasury/backend/src/logger"
	"github.com/username/treasury/backend/src/models"
	"github.com/username/treasury/backend/src/utils"
)

// CommissionRateResolver answers "what commission rate did this PSP carry on
// this date" from the time-sliced schedule. Zero is a valid, common answer:
// unknown PSPs and uncovered dates resolve to zero rather than an error.
type CommissionRateResolver struct {
	store CommissionRateStore
}

func NewCommissionRateResolver(store CommissionRateStore) *CommissionRateResolver {
	return &CommissionRateResolver{store: store}
}

// RateFor returns the applicable commission rate for a PSP on a date. Among
// covering intervals the one with the latest EffectiveFrom wins (ties broken
// by most-recently-inserted, which the store resolves by id). Returns zero
// when no interval matches.
func (r *CommissionRateResolver) RateFor(psp string, date time.Time) (decimal.Decimal, error) {
	if psp == "" {
		psp = models.UnknownPSP
	}
	row, err := r.store.ActiveRateFor(psp, utils.DateOnly(date))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("resolving commission rate for %s: %w", psp, err)
	}
	if row == nil {
		return decimal.Zero, nil
	}
	return row.CommissionRate, nil
}

// SetNewRate validates and inserts a new rate interval for a PSP. The store
// closes the currently open interval at the new interval's start and inserts
// the new one in a single transaction, so readers never observe a gap or an
// overlap. A rate outside [0,1] is rejected with ErrInvalidCommissionRate; an
// EffectiveFrom earlier than an existing interval's start is rejected with
// ErrOverlappingInterval rather than silently reordering history.
func (r *CommissionRateResolver) SetNewRate(psp string, rate decimal.Decimal, from time.Time, until *time.Time) (*models.PSPCommissionRate, error) {
	if psp == "" {
		return nil, fmt.Errorf("psp name is required")
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: got %s for %s", ErrInvalidCommissionRate, rate.String(), psp)
	}
	from = utils.DateOnly(from)
	if until != nil {
		u := utils.DateOnly(*until)
		if u.Before(from) {
			return nil, fmt.Errorf("%w: effective_until %s precedes effective_from %s",
				ErrOverlappingInterval, utils.FormatDate(u), utils.FormatDate(from))
		}
		until = &u
	}

	created, err := r.store.SetNewRate(psp, rate, from, until)
	if err != nil {
		return nil, err
	}
	logger.L.Info("commission rate updated",
		"psp", psp, "rate", rate.String(), "effectiveFrom", utils.FormatDate(from))
	return created, nil
}
