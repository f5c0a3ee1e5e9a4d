package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GroupBy selects the bucket dimension for an aggregation pass.
type GroupBy string

const (
	GroupByNone          GroupBy = "none"
	GroupByDay           GroupBy = "day"
	GroupByMonth         GroupBy = "month"
	GroupByYear          GroupBy = "year"
	GroupByPSP           GroupBy = "psp"
	GroupByCategory      GroupBy = "category"
	GroupByPaymentMethod GroupBy = "payment_method"
)

// ParseGroupBy maps a query-string value to a GroupBy, defaulting to none.
func ParseGroupBy(s string) (GroupBy, bool) {
	switch GroupBy(s) {
	case GroupByNone, GroupByDay, GroupByMonth, GroupByYear, GroupByPSP, GroupByCategory, GroupByPaymentMethod:
		return GroupBy(s), true
	case "":
		return GroupByNone, true
	}
	return GroupByNone, false
}

// BucketSpec selects the grouping key and an optional inclusive date window
// for an aggregation pass. Zero From/To means unbounded on that side.
type BucketSpec struct {
	GroupBy GroupBy
	From    time.Time
	To      time.Time
}

// InWindow reports whether a record date falls inside the spec's window.
func (s BucketSpec) InWindow(date time.Time) bool {
	if !s.From.IsZero() && date.Before(s.From) {
		return false
	}
	if !s.To.IsZero() && date.After(s.To) {
		return false
	}
	return true
}

// BucketTotals accumulates one bucket's figures. Deposits and withdrawals are
// kept separate during the fold; the net figures are filled in afterwards by
// the net-cash calculator. Tether USD sums are tracked on the side because the
// usd-first net-cash formula needs the USD-native component on its own.
type BucketTotals struct {
	Key   string `json:"key"`
	Count int    `json:"count"`

	DepositsTRY    decimal.Decimal `json:"deposits_try"`
	DepositsUSD    decimal.Decimal `json:"deposits_usd"`
	WithdrawalsTRY decimal.Decimal `json:"withdrawals_try"`
	WithdrawalsUSD decimal.Decimal `json:"withdrawals_usd"`
	CommissionTRY  decimal.Decimal `json:"commission_try"`
	CommissionUSD  decimal.Decimal `json:"commission_usd"`

	NetTRY decimal.Decimal `json:"net_try"`
	NetUSD decimal.Decimal `json:"net_usd"`

	TetherDepositsUSD    decimal.Decimal `json:"-"`
	TetherWithdrawalsUSD decimal.Decimal `json:"-"`
}

// Report is the aggregation result envelope. TotalRecords counts every record
// pulled from the repository; SkippedRecords counts the ones that failed
// normalization and were excluded, with one warning line each.
type Report struct {
	Buckets        []BucketTotals `json:"buckets"`
	TotalRecords   int            `json:"total_records"`
	SkippedRecords int            `json:"skipped_records"`
	Warnings       []string       `json:"warnings,omitempty"`
}
