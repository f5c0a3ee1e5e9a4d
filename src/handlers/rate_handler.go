package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/username/treasury/backend/src/services"
	"github.com/username/treasury/backend/src/utils"
)

type RateHandler struct {
	reportService services.ReportService
}

func NewRateHandler(reportService services.ReportService) *RateHandler {
	return &RateHandler{reportService: reportService}
}

type setManualRateRequest struct {
	Date    string   `json:"date"`
	USDToTL float64  `json:"usd_to_tl"`
	EURToTL *float64 `json:"eur_to_tl,omitempty"`
}

// HandleSetManualRate serves POST /api/rates/manual.
func (h *RateHandler) HandleSetManualRate(w http.ResponseWriter, r *http.Request) {
	var req setManualRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	date, err := utils.ParseDate(req.Date)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var eurToTL decimal.NullDecimal
	if req.EURToTL != nil {
		eurToTL = decimal.NullDecimal{Decimal: decimal.NewFromFloat(*req.EURToTL), Valid: true}
	}

	saved, err := h.reportService.SetManualRate(date, decimal.NewFromFloat(req.USDToTL), eurToTL)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("setting manual rate: %v", err), http.StatusBadRequest)
		return
	}
	utils.WriteJSON(w, http.StatusOK, saved)
}

type refreshRatesRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// HandleRefreshRates serves POST /api/rates/refresh: pulls provider rates for
// the window, never touching manual rows.
func (h *RateHandler) HandleRefreshRates(w http.ResponseWriter, r *http.Request) {
	var req refreshRatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	from, err := utils.ParseDate(req.From)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := utils.ParseDate(req.To)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := h.reportService.RefreshDailyRates(r.Context(), from, to)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("refreshing rates: %v", err), http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]int{"updated_days": updated})
}
