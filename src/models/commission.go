package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PSPCommissionRate is one time slice of a PSP's commission schedule.
// EffectiveFrom and EffectiveUntil are both inclusive; a nil EffectiveUntil
// means the slice is still current. At most one open-ended slice exists per
// PSP at any time.
type PSPCommissionRate struct {
	ID             int64           `json:"id"`
	PSPName        string          `json:"psp_name"`
	CommissionRate decimal.Decimal `json:"commission_rate"` // fraction in [0,1]
	EffectiveFrom  time.Time       `json:"effective_from"`
	EffectiveUntil *time.Time      `json:"effective_until,omitempty"`
	IsActive       bool            `json:"is_active"`
}

// Covers reports whether the slice applies on the given date.
func (r PSPCommissionRate) Covers(date time.Time) bool {
	if date.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveUntil == nil || !date.After(*r.EffectiveUntil)
}
