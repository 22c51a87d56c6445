package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebarrios/centavo/internal/ledger"
	"github.com/ebarrios/centavo/internal/transport/httpapi/middleware"
)

type stubLedgerService struct {
	postErr    error
	confirmErr error
	lastPosted *ledger.Transaction
}

func (s *stubLedgerService) Post(ctx context.Context, t *ledger.Transaction) (*ledger.Transaction, error) {
	if s.postErr != nil {
		return nil, s.postErr
	}
	t.ID = uuid.New()
	s.lastPosted = t
	return t, nil
}

func (s *stubLedgerService) Update(ctx context.Context, t *ledger.Transaction) (*ledger.Transaction, error) {
	if s.postErr != nil {
		return nil, s.postErr
	}
	return t, nil
}

func (s *stubLedgerService) Confirm(ctx context.Context, id, ownerID uuid.UUID) (*ledger.Transaction, error) {
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	return &ledger.Transaction{ID: id, OwnerID: ownerID, Confirmed: true}, nil
}

func authedRequest(method, target, body string, ownerID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.OwnerIDKey, ownerID)
	return req.WithContext(ctx)
}

func TestCreateTransaction(t *testing.T) {
	ownerID := uuid.New()
	accountID := uuid.New()
	categoryID := uuid.New()

	validBody := `{
		"account_id": "` + accountID.String() + `",
		"category_id": "` + categoryID.String() + `",
		"type": "expense",
		"amount": "120.50",
		"currency": "ARS",
		"date": "2025-03-10",
		"description": "groceries"
	}`

	t.Run("creates transaction", func(t *testing.T) {
		svc := &stubLedgerService{}
		h := NewTransactionHandler(svc)
		rec := httptest.NewRecorder()

		h.CreateTransaction(rec, authedRequest(http.MethodPost, "/transactions", validBody, ownerID))

		require.Equal(t, http.StatusCreated, rec.Code)

		var resp TransactionResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "expense", resp.Type)
		assert.Equal(t, "120.5", resp.Amount)
		assert.Equal(t, "2025-03-10", resp.Date)
		assert.Equal(t, "manual", resp.Origin)

		require.NotNil(t, svc.lastPosted)
		assert.Equal(t, ownerID, svc.lastPosted.OwnerID)
		assert.True(t, svc.lastPosted.Confirmed, "transactions are confirmed unless the request says otherwise")
	})

	t.Run("rejects unauthenticated request", func(t *testing.T) {
		h := NewTransactionHandler(&stubLedgerService{})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(validBody))

		h.CreateTransaction(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		h := NewTransactionHandler(&stubLedgerService{})
		rec := httptest.NewRecorder()

		h.CreateTransaction(rec, authedRequest(http.MethodPost, "/transactions", `{"amount": `, ownerID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects bad amount", func(t *testing.T) {
		h := NewTransactionHandler(&stubLedgerService{})
		rec := httptest.NewRecorder()
		body := strings.Replace(validBody, `"120.50"`, `"a lot"`, 1)

		h.CreateTransaction(rec, authedRequest(http.MethodPost, "/transactions", body, ownerID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps negative balance rejection to 400", func(t *testing.T) {
		h := NewTransactionHandler(&stubLedgerService{postErr: ledger.ErrNegativeBalanceNotAllowed})
		rec := httptest.NewRecorder()

		h.CreateTransaction(rec, authedRequest(http.MethodPost, "/transactions", validBody, ownerID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps foreign account to 404", func(t *testing.T) {
		h := NewTransactionHandler(&stubLedgerService{postErr: ledger.ErrAccountNotOwned})
		rec := httptest.NewRecorder()

		h.CreateTransaction(rec, authedRequest(http.MethodPost, "/transactions", validBody, ownerID))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestConfirmTransaction(t *testing.T) {
	ownerID := uuid.New()
	txID := uuid.New()

	// chi stores URL params in the request context
	withURLParam := func(req *http.Request, key, value string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add(key, value)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	t.Run("confirms transaction", func(t *testing.T) {
		h := NewTransactionHandler(&stubLedgerService{})
		rec := httptest.NewRecorder()
		req := withURLParam(authedRequest(http.MethodPost, "/transactions/"+txID.String()+"/confirm", "", ownerID), "id", txID.String())

		h.ConfirmTransaction(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp TransactionResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.Confirmed)
	})

	t.Run("maps already confirmed to 409", func(t *testing.T) {
		h := NewTransactionHandler(&stubLedgerService{confirmErr: ledger.ErrAlreadyConfirmed})
		rec := httptest.NewRecorder()
		req := withURLParam(authedRequest(http.MethodPost, "/transactions/"+txID.String()+"/confirm", "", ownerID), "id", txID.String())

		h.ConfirmTransaction(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("rejects invalid ID", func(t *testing.T) {
		h := NewTransactionHandler(&stubLedgerService{})
		rec := httptest.NewRecorder()
		req := withURLParam(authedRequest(http.MethodPost, "/transactions/nope/confirm", "", ownerID), "id", "nope")

		h.ConfirmTransaction(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
