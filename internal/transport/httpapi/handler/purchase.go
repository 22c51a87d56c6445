package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ebarrios/centavo/internal/installment"
	"github.com/ebarrios/centavo/internal/transport/httpapi/middleware"
)

// InstallmentServiceInterface defines the operations needed by PurchaseHandler
type InstallmentServiceInterface interface {
	CreatePurchase(ctx context.Context, in *installment.CreatePurchaseInput) (*installment.CardPurchase, error)
	PayInstallment(ctx context.Context, purchaseID, ownerID uuid.UUID, n int) (*installment.CardPurchase, error)
	PayEarly(ctx context.Context, purchaseID, ownerID uuid.UUID) (*installment.CardPurchase, error)
	Summarize(ctx context.Context, ownerID uuid.UUID) (*installment.Summary, error)
}

// PurchaseHandler handles installment purchase HTTP requests
type PurchaseHandler struct {
	installmentService InstallmentServiceInterface
}

// NewPurchaseHandler creates a new purchase handler
func NewPurchaseHandler(installmentService InstallmentServiceInterface) *PurchaseHandler {
	return &PurchaseHandler{installmentService: installmentService}
}

// CreatePurchaseRequest represents an installment purchase creation request
type CreatePurchaseRequest struct {
	AccountID            string `json:"account_id"`
	TotalAmount          string `json:"total_amount"`
	Currency             string `json:"currency"`
	TotalInstallments    int    `json:"total_installments"`
	InterestRate         string `json:"interest_rate,omitempty"` // monthly percent
	PurchaseDate         string `json:"purchase_date"`           // YYYY-MM-DD
	FirstInstallmentDate string `json:"first_installment_date"`  // YYYY-MM-DD
	Description          string `json:"description,omitempty"`
}

// PurchaseResponse represents a card purchase response
type PurchaseResponse struct {
	ID                    string `json:"id"`
	AccountID             string `json:"account_id"`
	OriginalTransactionID string `json:"original_transaction_id"`
	TotalAmount           string `json:"total_amount"`
	Currency              string `json:"currency"`
	TotalInstallments     int    `json:"total_installments"`
	InstallmentAmount     string `json:"installment_amount"`
	InterestRate          string `json:"interest_rate"`
	TotalWithInterest     string `json:"total_with_interest"`
	PurchaseDate          string `json:"purchase_date"`
	FirstInstallmentDate  string `json:"first_installment_date"`
	CurrentInstallment    int    `json:"current_installment"`
	RemainingInstallments int    `json:"remaining_installments"`
	RemainingAmount       string `json:"remaining_amount"`
	Status                string `json:"status"`
	Description           string `json:"description,omitempty"`
	CreatedAt             string `json:"created_at"`
}

// CreatePurchase handles POST /purchases
func (h *PurchaseHandler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreatePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account ID")
		return
	}
	totalAmount, err := decimal.NewFromString(req.TotalAmount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid total amount format")
		return
	}
	interestRate := decimal.Zero
	if req.InterestRate != "" {
		interestRate, err = decimal.NewFromString(req.InterestRate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid interest rate format")
			return
		}
	}
	purchaseDate, err := time.Parse(dateLayout, req.PurchaseDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid purchase date format (use YYYY-MM-DD)")
		return
	}
	firstDate, err := time.Parse(dateLayout, req.FirstInstallmentDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid first installment date format (use YYYY-MM-DD)")
		return
	}

	purchase, err := h.installmentService.CreatePurchase(r.Context(), &installment.CreatePurchaseInput{
		OwnerID:              ownerID,
		AccountID:            accountID,
		TotalAmount:          totalAmount,
		Currency:             req.Currency,
		TotalInstallments:    req.TotalInstallments,
		InterestRate:         interestRate,
		PurchaseDate:         purchaseDate,
		FirstInstallmentDate: firstDate,
		Description:          req.Description,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toPurchaseResponse(purchase))
}

// PayInstallment handles POST /purchases/{id}/installments/{n}/pay
func (h *PurchaseHandler) PayInstallment(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	purchaseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid purchase ID")
		return
	}
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid installment number")
		return
	}

	purchase, err := h.installmentService.PayInstallment(r.Context(), purchaseID, ownerID, n)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toPurchaseResponse(purchase))
}

// PayEarly handles POST /purchases/{id}/payoff
func (h *PurchaseHandler) PayEarly(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	purchaseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid purchase ID")
		return
	}

	purchase, err := h.installmentService.PayEarly(r.Context(), purchaseID, ownerID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toPurchaseResponse(purchase))
}

// GetSummary handles GET /purchases/summary
func (h *PurchaseHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summary, err := h.installmentService.Summarize(r.Context(), ownerID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func toPurchaseResponse(p *installment.CardPurchase) PurchaseResponse {
	return PurchaseResponse{
		ID:                    p.ID.String(),
		AccountID:             p.AccountID.String(),
		OriginalTransactionID: p.OriginalTransactionID.String(),
		TotalAmount:           p.TotalAmount.String(),
		Currency:              p.Currency,
		TotalInstallments:     p.TotalInstallments,
		InstallmentAmount:     p.InstallmentAmount.String(),
		InterestRate:          p.InterestRate.String(),
		TotalWithInterest:     p.TotalWithInterest.String(),
		PurchaseDate:          p.PurchaseDate.Format(dateLayout),
		FirstInstallmentDate:  p.FirstInstallmentDate.Format(dateLayout),
		CurrentInstallment:    p.CurrentInstallment,
		RemainingInstallments: p.RemainingInstallments(),
		RemainingAmount:       p.RemainingAmount().String(),
		Status:                string(p.Status),
		Description:           p.Description,
		CreatedAt:             p.CreatedAt.Format(time.RFC3339),
	}
}
