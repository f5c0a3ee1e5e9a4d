package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/username/treasury/backend/src/models"
	"github.com/username/treasury/backend/src/services"
	"github.com/username/treasury/backend/src/utils"
)

type TransactionHandler struct {
	reportService services.ReportService
}

func NewTransactionHandler(reportService services.ReportService) *TransactionHandler {
	return &TransactionHandler{reportService: reportService}
}

type transactionRequest struct {
	ID            string   `json:"id,omitempty"`
	Date          string   `json:"date"`
	Category      string   `json:"category"`
	Currency      string   `json:"currency"`
	Amount        float64  `json:"amount"`
	Commission    float64  `json:"commission"`
	NetAmount     float64  `json:"net_amount"`
	PSP           string   `json:"psp"`
	PaymentMethod string   `json:"payment_method"`
	AmountTRY     *float64 `json:"amount_try,omitempty"`
	CommissionTRY *float64 `json:"commission_try,omitempty"`
	NetAmountTRY  *float64 `json:"net_amount_try,omitempty"`
	ExchangeRate  *float64 `json:"exchange_rate,omitempty"`
}

func (req transactionRequest) toModel() (models.Transaction, error) {
	date, err := utils.ParseDate(req.Date)
	if err != nil {
		return models.Transaction{}, err
	}
	category := models.Category(req.Category)
	if category != models.CategoryDeposit && category != models.CategoryWithdrawal {
		return models.Transaction{}, fmt.Errorf("unknown category %q", req.Category)
	}
	return models.Transaction{
		ID:            req.ID,
		Date:          date,
		Category:      category,
		Currency:      req.Currency,
		Amount:        decimal.NewFromFloat(req.Amount),
		Commission:    decimal.NewFromFloat(req.Commission),
		NetAmount:     decimal.NewFromFloat(req.NetAmount),
		PSP:           req.PSP,
		PaymentMethod: req.PaymentMethod,
		AmountTRY:     optionalDecimal(req.AmountTRY),
		CommissionTRY: optionalDecimal(req.CommissionTRY),
		NetAmountTRY:  optionalDecimal(req.NetAmountTRY),
		ExchangeRate:  optionalDecimal(req.ExchangeRate),
	}, nil
}

func optionalDecimal(v *float64) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(*v), Valid: true}
}

// HandleCreateTransaction serves POST /api/transactions. Creating a
// transaction invalidates every cached report.
func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	tx, err := req.toModel()
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	created, err := h.reportService.CreateTransaction(tx)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("creating transaction: %v", err), http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, created)
}

// HandleUpdateTransaction serves PUT /api/transactions/{id}.
func (h *TransactionHandler) HandleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.ID = r.PathValue("id")
	tx, err := req.toModel()
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.reportService.UpdateTransaction(tx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.SendJSONError(w, "transaction not found", http.StatusNotFound)
			return
		}
		utils.SendJSONError(w, fmt.Sprintf("updating transaction: %v", err), http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, tx)
}

// HandleDeleteTransaction serves DELETE /api/transactions/{id}.
func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		utils.SendJSONError(w, "transaction id is required", http.StatusBadRequest)
		return
	}
	if err := h.reportService.DeleteTransaction(id); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("deleting transaction: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
