package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ebarrios/centavo/internal/autodebit"
	"github.com/ebarrios/centavo/internal/currency"
	"github.com/ebarrios/centavo/internal/installment"
	"github.com/ebarrios/centavo/internal/ledger"
	apperrors "github.com/ebarrios/centavo/internal/shared/errors"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, ErrorResponse{Error: message})
}

// respondServiceError maps a domain error onto an HTTP status. Unrecognized
// errors become opaque 500s so internals never leak to clients.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	// Ownership failures read as 404 to prevent ID enumeration
	case errors.Is(err, ledger.ErrAccountNotOwned),
		errors.Is(err, ledger.ErrCategoryNotOwned),
		errors.Is(err, ledger.ErrTargetNotOwned),
		errors.Is(err, installment.ErrPurchaseNotOwned),
		errors.Is(err, autodebit.ErrDebitNotOwned):
		respondError(w, http.StatusNotFound, "not found")

	case apperrors.Code(err) == apperrors.ErrCodeNotFound:
		respondError(w, http.StatusNotFound, "not found")

	case errors.Is(err, ledger.ErrAlreadyConfirmed),
		errors.Is(err, installment.ErrPurchaseNotActive),
		errors.Is(err, autodebit.ErrInvalidStatus),
		errors.Is(err, autodebit.ErrNotDue):
		respondError(w, http.StatusConflict, err.Error())

	case errors.Is(err, currency.ErrRateUnavailable):
		respondError(w, http.StatusServiceUnavailable, err.Error())

	case errors.Is(err, ledger.ErrNonPositiveAmount),
		errors.Is(err, ledger.ErrInvalidTransactionType),
		errors.Is(err, ledger.ErrInvalidOrigin),
		errors.Is(err, ledger.ErrTransferTargetRequired),
		errors.Is(err, ledger.ErrTransferSameAccount),
		errors.Is(err, ledger.ErrUnconfirmedTransfer),
		errors.Is(err, ledger.ErrTransferNotEditable),
		errors.Is(err, ledger.ErrCategoryKindMismatch),
		errors.Is(err, ledger.ErrNegativeBalanceNotAllowed),
		errors.Is(err, installment.ErrInvalidInstallmentCount),
		errors.Is(err, installment.ErrNotCreditAccount),
		errors.Is(err, installment.ErrFirstInstallmentTooEarly),
		errors.Is(err, installment.ErrNonPositiveAmount),
		errors.Is(err, installment.ErrNegativeInterestRate),
		errors.Is(err, installment.ErrInvalidInstallmentNumber),
		errors.Is(err, autodebit.ErrNonPositiveAmount),
		errors.Is(err, autodebit.ErrInvalidFrequency),
		errors.Is(err, autodebit.ErrEndBeforeStart),
		errors.Is(err, autodebit.ErrNotExpenseCategory),
		errors.Is(err, autodebit.ErrInsufficientBalance),
		errors.Is(err, currency.ErrInvalidCurrencyCode):
		respondError(w, http.StatusBadRequest, err.Error())

	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
