package ledger

import "errors"

// Validation errors: rejected synchronously before any mutation
var (
	ErrNonPositiveAmount      = errors.New("amount must be positive")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidOrigin          = errors.New("invalid transaction origin")
	ErrTransferTargetRequired = errors.New("transfers require a target account")
	ErrTransferSameAccount    = errors.New("cannot transfer to the same account")
	ErrUnconfirmedTransfer    = errors.New("transfers must be posted confirmed")
	ErrTransferNotEditable    = errors.New("transfers cannot be edited")
	ErrAccountNotOwned        = errors.New("account does not belong to the owner")
	ErrCategoryNotOwned       = errors.New("category does not belong to the owner")
	ErrTargetNotOwned         = errors.New("target account does not belong to the owner")
	ErrCategoryKindMismatch   = errors.New("category kind does not match transaction type")
)

// Resource errors
var (
	ErrNegativeBalanceNotAllowed = errors.New("account type does not allow negative balance")
	ErrAlreadyConfirmed          = errors.New("transaction is already confirmed")
)
