package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies the financial effect of a transaction
type TransactionType string

const (
	TypeIncome   TransactionType = "income"
	TypeExpense  TransactionType = "expense"
	TypeTransfer TransactionType = "transfer"
)

// Origin describes what generated a transaction
type Origin string

const (
	OriginManual      Origin = "manual"
	OriginCard        Origin = "card"
	OriginAutoDebit   Origin = "auto_debit"
	OriginInstallment Origin = "installment"
	OriginTransfer    Origin = "transfer"
	OriginImport      Origin = "import"
)

// CategoryKind is the transaction type a category classifies
type CategoryKind string

const (
	KindIncome  CategoryKind = "income"
	KindExpense CategoryKind = "expense"
)

// AccountType carries the two flags that gate balance behavior: whether the
// account may go negative and whether it is a credit line.
type AccountType struct {
	Code                  string `json:"code"`
	Name                  string `json:"name"`
	AllowsNegativeBalance bool   `json:"allows_negative_balance"`
	IsCreditAccount       bool   `json:"is_credit_account"`
}

// Account is an owner-scoped money container. Its balance is mutated only by
// the ledger service; nothing else writes it.
type Account struct {
	ID             uuid.UUID        `json:"id"`
	OwnerID        uuid.UUID        `json:"owner_id"`
	Type           AccountType      `json:"account_type"`
	Name           string           `json:"name"`
	Currency       string           `json:"currency"`
	Balance        decimal.Decimal  `json:"balance"`
	CreditLimit    *decimal.Decimal `json:"credit_limit,omitempty"`
	IsActive       bool             `json:"is_active"`
	IncludeInTotal bool             `json:"include_in_total"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// AvailableBalance is the spendable amount: for credit accounts the limit
// plus the (usually negative) balance, otherwise the balance itself.
func (a *Account) AvailableBalance() decimal.Decimal {
	if a.Type.IsCreditAccount && a.CreditLimit != nil {
		return a.CreditLimit.Add(a.Balance)
	}
	return a.Balance
}

// Category classifies transactions per owner
type Category struct {
	ID        uuid.UUID    `json:"id"`
	OwnerID   uuid.UUID    `json:"owner_id"`
	Name      string       `json:"name"`
	Kind      CategoryKind `json:"kind"`
	IsActive  bool         `json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
}

// ReservedCategory identifies a category the system creates lazily per owner
// on first use (guarded by a uniqueness constraint).
type ReservedCategory struct {
	Name string
	Kind CategoryKind
}

var (
	ReservedTransfer     = ReservedCategory{Name: "Transfer", Kind: KindIncome}
	ReservedCardPurchase = ReservedCategory{Name: "Card Purchases", Kind: KindExpense}
	ReservedInstallment  = ReservedCategory{Name: "Card Installments", Kind: KindExpense}
)

// Transaction is a financial event. Amount is always stored positive; the
// sign of its balance effect is implied by Type. Unconfirmed transactions
// are scheduled and carry no balance effect until confirmed.
type Transaction struct {
	ID              uuid.UUID              `json:"id"`
	OwnerID         uuid.UUID              `json:"owner_id"`
	AccountID       uuid.UUID              `json:"account_id"`
	CategoryID      uuid.UUID              `json:"category_id"`
	Date            time.Time              `json:"date"`
	Amount          decimal.Decimal        `json:"amount"`
	Currency        string                 `json:"currency"`
	Type            TransactionType        `json:"transaction_type"`
	Description     string                 `json:"description"`
	TargetAccountID *uuid.UUID             `json:"target_account_id,omitempty"`
	Origin          Origin                 `json:"origin"`
	Reference       string                 `json:"reference,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	CardPurchaseID  *uuid.UUID             `json:"card_purchase_id,omitempty"`
	AutoDebitID     *uuid.UUID             `json:"auto_debit_id,omitempty"`
	Confirmed       bool                   `json:"is_confirmed"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// Validate checks structural invariants that do not need repository access
func (t *Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	switch t.Type {
	case TypeIncome, TypeExpense:
	case TypeTransfer:
		if t.TargetAccountID == nil {
			return ErrTransferTargetRequired
		}
		if *t.TargetAccountID == t.AccountID {
			return ErrTransferSameAccount
		}
		// Transfers move money immediately: a scheduled transfer would debit
		// the source on confirmation without ever crediting the target, since
		// the mirror leg is only synthesized at posting time.
		if !t.Confirmed {
			return ErrUnconfirmedTransfer
		}
	default:
		return ErrInvalidTransactionType
	}
	switch t.Origin {
	case OriginManual, OriginCard, OriginAutoDebit, OriginInstallment, OriginTransfer, OriginImport:
	default:
		return ErrInvalidOrigin
	}
	return nil
}

// BalanceDelta is the signed effect this transaction has on its primary
// account once confirmed: positive for income, negative for expense and for
// the outgoing leg of a transfer.
func (t *Transaction) BalanceDelta() decimal.Decimal {
	if t.Type == TypeIncome {
		return t.Amount
	}
	return t.Amount.Neg()
}
