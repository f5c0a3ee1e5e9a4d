package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/username/treasury/backend/src/models"
	"github.com/username/treasury/backend/src/processors"
	"github.com/username/treasury/backend/src/services"
	"github.com/username/treasury/backend/src/utils"
)

type ReportHandler struct {
	reportService services.ReportService
}

func NewReportHandler(reportService services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// bucketTotalsView is the JSON boundary: decimals become rounded floats here
// and nowhere earlier.
type bucketTotalsView struct {
	Key            string  `json:"key"`
	Count          int     `json:"count"`
	DepositsTRY    float64 `json:"deposits_try"`
	DepositsUSD    float64 `json:"deposits_usd"`
	WithdrawalsTRY float64 `json:"withdrawals_try"`
	WithdrawalsUSD float64 `json:"withdrawals_usd"`
	CommissionTRY  float64 `json:"commission_try"`
	CommissionUSD  float64 `json:"commission_usd"`
	NetTRY         float64 `json:"net_try"`
	NetUSD         float64 `json:"net_usd"`
}

type reportView struct {
	Buckets        []bucketTotalsView `json:"buckets"`
	TotalRecords   int                `json:"total_records"`
	SkippedRecords int                `json:"skipped_records"`
	Warnings       []string           `json:"warnings,omitempty"`
}

func newReportView(report *models.Report) reportView {
	view := reportView{
		Buckets:        make([]bucketTotalsView, 0, len(report.Buckets)),
		TotalRecords:   report.TotalRecords,
		SkippedRecords: report.SkippedRecords,
		Warnings:       report.Warnings,
	}
	for _, b := range report.Buckets {
		view.Buckets = append(view.Buckets, bucketTotalsView{
			Key:            b.Key,
			Count:          b.Count,
			DepositsTRY:    utils.AmountToFloat(b.DepositsTRY),
			DepositsUSD:    utils.AmountToFloat(b.DepositsUSD),
			WithdrawalsTRY: utils.AmountToFloat(b.WithdrawalsTRY),
			WithdrawalsUSD: utils.AmountToFloat(b.WithdrawalsUSD),
			CommissionTRY:  utils.AmountToFloat(b.CommissionTRY),
			CommissionUSD:  utils.AmountToFloat(b.CommissionUSD),
			NetTRY:         utils.AmountToFloat(b.NetTRY),
			NetUSD:         utils.AmountToFloat(b.NetUSD),
		})
	}
	return view
}

// HandleGetBucketTotals serves GET /api/reports/buckets with query params
// from, to (inclusive dates), group_by and strategy.
func (h *ReportHandler) HandleGetBucketTotals(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateWindow(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	groupBy, ok := models.ParseGroupBy(r.URL.Query().Get("group_by"))
	if !ok {
		utils.SendJSONError(w, fmt.Sprintf("unknown group_by %q", r.URL.Query().Get("group_by")), http.StatusBadRequest)
		return
	}
	strategy, ok := processors.ParseNetCashStrategy(r.URL.Query().Get("strategy"))
	if !ok {
		utils.SendJSONError(w, fmt.Sprintf("unknown strategy %q", r.URL.Query().Get("strategy")), http.StatusBadRequest)
		return
	}

	report, err := h.reportService.GetBucketTotals(r.Context(), from, to, groupBy, strategy)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("building report: %v", err), http.StatusInternalServerError)
		return
	}

	view := newReportView(report)
	if etag, err := utils.GenerateETag(view); err == nil {
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

func parseDateWindow(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = utils.ParseDate(v); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = utils.ParseDate(v); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("date window end precedes start")
	}
	return from, to, nil
}
