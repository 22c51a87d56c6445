package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ebarrios/centavo/internal/autodebit"
	"github.com/ebarrios/centavo/internal/transport/httpapi/middleware"
)

// AutoDebitServiceInterface defines the operations needed by AutoDebitHandler
type AutoDebitServiceInterface interface {
	Create(ctx context.Context, d *autodebit.AutoDebit) (*autodebit.AutoDebit, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*autodebit.AutoDebit, error)
	Pause(ctx context.Context, id, ownerID uuid.UUID) (*autodebit.AutoDebit, error)
	Resume(ctx context.Context, id, ownerID uuid.UUID) (*autodebit.AutoDebit, error)
	Cancel(ctx context.Context, id, ownerID uuid.UUID) (*autodebit.AutoDebit, error)
	ListDue(ctx context.Context, today time.Time) ([]*autodebit.AutoDebit, error)
	RunDuePass(ctx context.Context, today time.Time) (*autodebit.PassResult, error)
}

// AutoDebitHandler handles auto-debit HTTP requests
type AutoDebitHandler struct {
	autoDebitService AutoDebitServiceInterface
}

// NewAutoDebitHandler creates a new auto-debit handler
func NewAutoDebitHandler(autoDebitService AutoDebitServiceInterface) *AutoDebitHandler {
	return &AutoDebitHandler{autoDebitService: autoDebitService}
}

// CreateAutoDebitRequest represents an auto-debit creation request
type CreateAutoDebitRequest struct {
	AccountID   string `json:"account_id"`
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Frequency   string `json:"frequency"`
	StartDate   string `json:"start_date"` // YYYY-MM-DD
	EndDate     string `json:"end_date,omitempty"`
	DayOfMonth  *int   `json:"day_of_month,omitempty"`
}

// AutoDebitResponse represents an auto-debit response
type AutoDebitResponse struct {
	ID             string  `json:"id"`
	AccountID      string  `json:"account_id"`
	CategoryID     string  `json:"category_id"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	Amount         string  `json:"amount"`
	Currency       string  `json:"currency"`
	Frequency      string  `json:"frequency"`
	StartDate      string  `json:"start_date"`
	EndDate        *string `json:"end_date,omitempty"`
	NextExecution  string  `json:"next_execution"`
	LastExecution  *string `json:"last_execution,omitempty"`
	Status         string  `json:"status"`
	ExecutionCount int     `json:"execution_count"`
	FailedAttempts int     `json:"failed_attempts"`
	DayOfMonth     *int    `json:"day_of_month,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

// CreateAutoDebit handles POST /autodebits
func (h *AutoDebitHandler) CreateAutoDebit(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateAutoDebitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account ID")
		return
	}
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid category ID")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount format")
		return
	}
	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid start date format (use YYYY-MM-DD)")
		return
	}

	var endDate *time.Time
	if req.EndDate != "" {
		d, err := time.Parse(dateLayout, req.EndDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid end date format (use YYYY-MM-DD)")
			return
		}
		endDate = &d
	}

	created, err := h.autoDebitService.Create(r.Context(), &autodebit.AutoDebit{
		OwnerID:     ownerID,
		AccountID:   accountID,
		CategoryID:  categoryID,
		Name:        req.Name,
		Description: req.Description,
		Amount:      amount,
		Currency:    req.Currency,
		Frequency:   autodebit.Frequency(req.Frequency),
		StartDate:   startDate,
		EndDate:     endDate,
		DayOfMonth:  req.DayOfMonth,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toAutoDebitResponse(created))
}

// ListAutoDebits handles GET /autodebits
func (h *AutoDebitHandler) ListAutoDebits(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	debits, err := h.autoDebitService.ListByOwner(r.Context(), ownerID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	responses := make([]AutoDebitResponse, len(debits))
	for i, d := range debits {
		responses[i] = toAutoDebitResponse(d)
	}
	respondJSON(w, http.StatusOK, responses)
}

// PauseAutoDebit handles POST /autodebits/{id}/pause
func (h *AutoDebitHandler) PauseAutoDebit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.autoDebitService.Pause)
}

// ResumeAutoDebit handles POST /autodebits/{id}/resume
func (h *AutoDebitHandler) ResumeAutoDebit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.autoDebitService.Resume)
}

// CancelAutoDebit handles DELETE /autodebits/{id}
func (h *AutoDebitHandler) CancelAutoDebit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.autoDebitService.Cancel)
}

func (h *AutoDebitHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, ownerID uuid.UUID) (*autodebit.AutoDebit, error)) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid auto-debit ID")
		return
	}

	updated, err := fn(r.Context(), id, ownerID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toAutoDebitResponse(updated))
}

// ListDue handles GET /autodebits/due. Lists debits scheduled for execution
// today across all owners; companion to RunDuePass for operational checks.
func (h *AutoDebitHandler) ListDue(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetOwnerIDFromContext(r.Context()); !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	due, err := h.autoDebitService.ListDue(r.Context(), time.Now())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	responses := make([]AutoDebitResponse, len(due))
	for i, d := range due {
		responses[i] = toAutoDebitResponse(d)
	}
	respondJSON(w, http.StatusOK, responses)
}

// RunDuePass handles POST /autodebits/run. The batch command is the primary
// driver; this endpoint exists for manual reruns.
func (h *AutoDebitHandler) RunDuePass(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetOwnerIDFromContext(r.Context()); !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := h.autoDebitService.RunDuePass(r.Context(), time.Now())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func toAutoDebitResponse(d *autodebit.AutoDebit) AutoDebitResponse {
	var endDate, lastExecution *string
	if d.EndDate != nil {
		s := d.EndDate.Format(dateLayout)
		endDate = &s
	}
	if d.LastExecution != nil {
		s := d.LastExecution.Format(dateLayout)
		lastExecution = &s
	}
	return AutoDebitResponse{
		ID:             d.ID.String(),
		AccountID:      d.AccountID.String(),
		CategoryID:     d.CategoryID.String(),
		Name:           d.Name,
		Description:    d.Description,
		Amount:         d.Amount.String(),
		Currency:       d.Currency,
		Frequency:      string(d.Frequency),
		StartDate:      d.StartDate.Format(dateLayout),
		EndDate:        endDate,
		NextExecution:  d.NextExecution.Format(dateLayout),
		LastExecution:  lastExecution,
		Status:         string(d.Status),
		ExecutionCount: d.ExecutionCount,
		FailedAttempts: d.FailedAttempts,
		DayOfMonth:     d.DayOfMonth,
		CreatedAt:      d.CreatedAt.Format(time.RFC3339),
	}
}
