package installment

import "errors"

var (
	ErrInvalidInstallmentCount  = errors.New("installment count must be between 2 and 60")
	ErrNotCreditAccount         = errors.New("installment purchases require a credit account")
	ErrFirstInstallmentTooEarly = errors.New("first installment date must not precede the purchase date")
	ErrNonPositiveAmount        = errors.New("purchase amount must be positive")
	ErrNegativeInterestRate     = errors.New("interest rate cannot be negative")
	ErrPurchaseNotOwned         = errors.New("card purchase does not belong to the owner")
	ErrPurchaseNotActive        = errors.New("card purchase is not active")
	ErrInvalidInstallmentNumber = errors.New("installment number out of range")
)
