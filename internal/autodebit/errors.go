package autodebit

import "errors"

var (
	ErrNonPositiveAmount    = errors.New("auto-debit amount must be positive")
	ErrInvalidFrequency     = errors.New("invalid auto-debit frequency")
	ErrEndBeforeStart       = errors.New("end date must be after start date")
	ErrNotExpenseCategory   = errors.New("auto-debits require an expense category")
	ErrDebitNotOwned        = errors.New("auto-debit does not belong to the owner")
	ErrInvalidStatus        = errors.New("auto-debit status does not allow this change")
	ErrNotDue               = errors.New("auto-debit is not due")
	ErrInsufficientBalance  = errors.New("insufficient balance for auto-debit")
)
