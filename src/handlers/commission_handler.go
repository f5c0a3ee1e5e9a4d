package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/treasury/backend/src/processors"
	"github.com/username/treasury/backend/src/services"
	"github.com/username/treasury/backend/src/utils"
)

type CommissionHandler struct {
	reportService services.ReportService
}

func NewCommissionHandler(reportService services.ReportService) *CommissionHandler {
	return &CommissionHandler{reportService: reportService}
}

// HandleGetCommissionRate serves GET /api/commission-rates?psp=&date=. With no
// date it answers for today. The rate is 0 for unknown PSPs, never an error.
func (h *CommissionHandler) HandleGetCommissionRate(w http.ResponseWriter, r *http.Request) {
	psp := r.URL.Query().Get("psp")
	if psp == "" {
		utils.SendJSONError(w, "psp query parameter is required", http.StatusBadRequest)
		return
	}
	date := time.Now()
	if v := r.URL.Query().Get("date"); v != "" {
		var err error
		if date, err = utils.ParseDate(v); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	rate, err := h.reportService.GetCommissionRate(psp, date)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("resolving commission rate: %v", err), http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"psp":             psp,
		"date":            utils.FormatDate(utils.DateOnly(date)),
		"commission_rate": utils.RateToFloat(rate),
	})
}

// HandleListCommissionRates serves GET /api/commission-rates/history?psp=.
func (h *CommissionHandler) HandleListCommissionRates(w http.ResponseWriter, r *http.Request) {
	psp := r.URL.Query().Get("psp")
	if psp == "" {
		utils.SendJSONError(w, "psp query parameter is required", http.StatusBadRequest)
		return
	}
	rates, err := h.reportService.ListCommissionRates(psp)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("listing commission rates: %v", err), http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, rates)
}

type setCommissionRateRequest struct {
	PSPName        string  `json:"psp_name"`
	CommissionRate float64 `json:"commission_rate"`
	EffectiveFrom  string  `json:"effective_from"`
	EffectiveUntil *string `json:"effective_until,omitempty"`
}

// HandleSetCommissionRate serves POST /api/commission-rates: closes the PSP's
// open interval and starts the new one.
func (h *CommissionHandler) HandleSetCommissionRate(w http.ResponseWriter, r *http.Request) {
	var req setCommissionRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	from, err := utils.ParseDate(req.EffectiveFrom)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var until *time.Time
	if req.EffectiveUntil != nil {
		u, err := utils.ParseDate(*req.EffectiveUntil)
		if err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		until = &u
	}

	created, err := h.reportService.SetCommissionRate(req.PSPName, decimal.NewFromFloat(req.CommissionRate), from, until)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, processors.ErrInvalidCommissionRate) || errors.Is(err, processors.ErrOverlappingInterval) {
			status = http.StatusBadRequest
		}
		utils.SendJSONError(w, fmt.Sprintf("setting commission rate: %v", err), status)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, created)
}
