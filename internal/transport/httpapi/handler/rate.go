package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ebarrios/centavo/internal/currency"
	"github.com/ebarrios/centavo/internal/transport/httpapi/middleware"
)

// CurrencyServiceInterface defines the operations needed by RateHandler
type CurrencyServiceInterface interface {
	Resolve(ctx context.Context, from, to string) (decimal.Decimal, error)
	Convert(ctx context.Context, amount decimal.Decimal, from, to, convContext, actorID string) (decimal.Decimal, error)
	RefreshAllRates(ctx context.Context) (*currency.RefreshResult, error)
}

// RateHandler handles exchange rate HTTP requests
type RateHandler struct {
	currencyService CurrencyServiceInterface
}

// NewRateHandler creates a new rate handler
func NewRateHandler(currencyService CurrencyServiceInterface) *RateHandler {
	return &RateHandler{currencyService: currencyService}
}

// RateResponse represents a resolved exchange rate
type RateResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
	Rate string `json:"rate"`
}

// ConvertRequest represents a currency conversion request
type ConvertRequest struct {
	Amount  string `json:"amount"`
	From    string `json:"from"`
	To      string `json:"to"`
	Context string `json:"context,omitempty"` // audit tag, defaults to "manual"
}

// ConvertResponse represents a currency conversion result
type ConvertResponse struct {
	Amount    string `json:"amount"`
	From      string `json:"from"`
	To        string `json:"to"`
	Converted string `json:"converted"`
}

// GetRate handles GET /rates?from=USD&to=ARS
func (h *RateHandler) GetRate(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetOwnerIDFromContext(r.Context()); !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	from := strings.ToUpper(r.URL.Query().Get("from"))
	to := strings.ToUpper(r.URL.Query().Get("to"))
	if from == "" || to == "" {
		respondError(w, http.StatusBadRequest, "from and to query parameters are required")
		return
	}

	rate, err := h.currencyService.Resolve(r.Context(), from, to)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, RateResponse{From: from, To: to, Rate: rate.String()})
}

// Convert handles POST /rates/convert
func (h *RateHandler) Convert(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount format")
		return
	}

	from := strings.ToUpper(req.From)
	to := strings.ToUpper(req.To)
	convContext := req.Context
	if convContext == "" {
		convContext = "manual"
	}

	converted, err := h.currencyService.Convert(r.Context(), amount, from, to, convContext, ownerID.String())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ConvertResponse{
		Amount:    amount.String(),
		From:      from,
		To:        to,
		Converted: converted.String(),
	})
}

// RefreshRates handles POST /rates/refresh
func (h *RateHandler) RefreshRates(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetOwnerIDFromContext(r.Context()); !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := h.currencyService.RefreshAllRates(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
