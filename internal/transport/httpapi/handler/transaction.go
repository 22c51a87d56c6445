package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ebarrios/centavo/internal/ledger"
	"github.com/ebarrios/centavo/internal/transport/httpapi/middleware"
)

// dateLayout is the wire format for transaction dates
const dateLayout = "2006-01-02"

// LedgerServiceInterface defines the ledger operations needed by TransactionHandler
type LedgerServiceInterface interface {
	Post(ctx context.Context, t *ledger.Transaction) (*ledger.Transaction, error)
	Update(ctx context.Context, t *ledger.Transaction) (*ledger.Transaction, error)
	Confirm(ctx context.Context, id, ownerID uuid.UUID) (*ledger.Transaction, error)
}

// TransactionHandler handles transaction-related HTTP requests
type TransactionHandler struct {
	ledgerService LedgerServiceInterface
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(ledgerService LedgerServiceInterface) *TransactionHandler {
	return &TransactionHandler{ledgerService: ledgerService}
}

// TransactionRequest represents a transaction create/update request
type TransactionRequest struct {
	AccountID       string                 `json:"account_id"`
	CategoryID      string                 `json:"category_id"`
	Type            string                 `json:"type"` // income, expense, transfer
	Amount          string                 `json:"amount"`
	Currency        string                 `json:"currency"`
	Date            string                 `json:"date"` // YYYY-MM-DD
	Description     string                 `json:"description,omitempty"`
	TargetAccountID *string                `json:"target_account_id,omitempty"`
	Reference       string                 `json:"reference,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	Confirmed       *bool                  `json:"is_confirmed,omitempty"`
}

// TransactionResponse represents a transaction response
type TransactionResponse struct {
	ID              string                 `json:"id"`
	AccountID       string                 `json:"account_id"`
	CategoryID      string                 `json:"category_id"`
	Type            string                 `json:"type"`
	Amount          string                 `json:"amount"`
	Currency        string                 `json:"currency"`
	Date            string                 `json:"date"`
	Description     string                 `json:"description,omitempty"`
	TargetAccountID *string                `json:"target_account_id,omitempty"`
	Origin          string                 `json:"origin"`
	Reference       string                 `json:"reference,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	Confirmed       bool                   `json:"is_confirmed"`
	CreatedAt       string                 `json:"created_at"`
}

// parseTransaction builds a domain transaction from the request body.
// Returns a client-facing message on invalid input.
func parseTransaction(req *TransactionRequest, ownerID uuid.UUID) (*ledger.Transaction, string) {
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return nil, "invalid account ID"
	}
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		return nil, "invalid category ID"
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, "invalid amount format"
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, "invalid date format (use YYYY-MM-DD)"
	}

	var targetID *uuid.UUID
	if req.TargetAccountID != nil && *req.TargetAccountID != "" {
		id, err := uuid.Parse(*req.TargetAccountID)
		if err != nil {
			return nil, "invalid target account ID"
		}
		targetID = &id
	}

	confirmed := true
	if req.Confirmed != nil {
		confirmed = *req.Confirmed
	}

	return &ledger.Transaction{
		OwnerID:         ownerID,
		AccountID:       accountID,
		CategoryID:      categoryID,
		Date:            date,
		Amount:          amount,
		Currency:        req.Currency,
		Type:            ledger.TransactionType(req.Type),
		Description:     req.Description,
		TargetAccountID: targetID,
		Origin:          ledger.OriginManual,
		Reference:       req.Reference,
		Metadata:        req.Metadata,
		Confirmed:       confirmed,
	}, ""
}

// CreateTransaction handles POST /transactions
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, msg := parseTransaction(&req, ownerID)
	if msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	created, err := h.ledgerService.Post(r.Context(), t)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toTransactionResponse(created))
}

// UpdateTransaction handles PUT /transactions/{id}
func (h *TransactionHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid transaction ID")
		return
	}

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, msg := parseTransaction(&req, ownerID)
	if msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}
	t.ID = id

	updated, err := h.ledgerService.Update(r.Context(), t)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toTransactionResponse(updated))
}

// ConfirmTransaction handles POST /transactions/{id}/confirm
func (h *TransactionHandler) ConfirmTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid transaction ID")
		return
	}

	confirmed, err := h.ledgerService.Confirm(r.Context(), id, ownerID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toTransactionResponse(confirmed))
}

func toTransactionResponse(t *ledger.Transaction) TransactionResponse {
	var targetID *string
	if t.TargetAccountID != nil {
		s := t.TargetAccountID.String()
		targetID = &s
	}
	return TransactionResponse{
		ID:              t.ID.String(),
		AccountID:       t.AccountID.String(),
		CategoryID:      t.CategoryID.String(),
		Type:            string(t.Type),
		Amount:          t.Amount.String(),
		Currency:        t.Currency,
		Date:            t.Date.Format(dateLayout),
		Description:     t.Description,
		TargetAccountID: targetID,
		Origin:          string(t.Origin),
		Reference:       t.Reference,
		Metadata:        t.Metadata,
		Confirmed:       t.Confirmed,
		CreatedAt:       t.CreatedAt.Format(time.RFC3339),
	}
}
