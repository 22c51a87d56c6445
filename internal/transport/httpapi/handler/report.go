package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ebarrios/centavo/internal/report"
	"github.com/ebarrios/centavo/internal/transport/httpapi/middleware"
)

// ReportServiceInterface defines the operations needed by ReportHandler
type ReportServiceInterface interface {
	TotalBalance(ctx context.Context, ownerID uuid.UUID, currency string) (*report.BalanceReport, error)
	Projection(ctx context.Context, ownerID, accountID uuid.UUID, daysAhead int) (*report.Projection, error)
}

// ReportHandler handles reporting HTTP requests
type ReportHandler struct {
	reportService ReportServiceInterface
	baseCurrency  string
}

// NewReportHandler creates a new report handler
func NewReportHandler(reportService ReportServiceInterface, baseCurrency string) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		baseCurrency:  baseCurrency,
	}
}

// GetTotalBalance handles GET /reports/balance?currency=ARS
func (h *ReportHandler) GetTotalBalance(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	currency := strings.ToUpper(r.URL.Query().Get("currency"))
	if currency == "" {
		currency = h.baseCurrency
	}

	balance, err := h.reportService.TotalBalance(r.Context(), ownerID, currency)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, balance)
}

// GetProjection handles GET /reports/projection?account_id=...&days=30
func (h *ReportHandler) GetProjection(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	accountID, err := uuid.Parse(r.URL.Query().Get("account_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account_id")
		return
	}

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days < 0 {
			respondError(w, http.StatusBadRequest, "invalid days")
			return
		}
	}

	projection, err := h.reportService.Projection(r.Context(), ownerID, accountID, days)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, projection)
}
