package installment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseStatus is the lifecycle state of a card purchase
type PurchaseStatus string

const (
	StatusActive    PurchaseStatus = "active"
	StatusCompleted PurchaseStatus = "completed"
	StatusCancelled PurchaseStatus = "cancelled"
)

const (
	MinInstallments = 2
	MaxInstallments = 60
)

// CardPurchase is a credit-card purchase split into monthly installments.
// The principal hits the card balance immediately; the installments are
// scheduled as unconfirmed transactions and apply one by one as they are paid.
type CardPurchase struct {
	ID                    uuid.UUID       `json:"id"`
	OwnerID               uuid.UUID       `json:"owner_id"`
	AccountID             uuid.UUID       `json:"account_id"`
	OriginalTransactionID uuid.UUID       `json:"original_transaction_id"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	Currency              string          `json:"currency"`
	TotalInstallments     int             `json:"total_installments"`
	InstallmentAmount     decimal.Decimal `json:"installment_amount"`
	InterestRate          decimal.Decimal `json:"interest_rate"`
	TotalWithInterest     decimal.Decimal `json:"total_with_interest"`
	FirstInstallmentDate  time.Time       `json:"first_installment_date"`
	PurchaseDate          time.Time       `json:"purchase_date"`
	CurrentInstallment    int             `json:"current_installment"`
	Status                PurchaseStatus  `json:"status"`
	Description           string          `json:"description"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// RemainingInstallments is how many installments are still unpaid
func (p *CardPurchase) RemainingInstallments() int {
	return p.TotalInstallments - p.CurrentInstallment
}

// RemainingAmount is the scheduled amount still to be paid
func (p *CardPurchase) RemainingAmount() decimal.Decimal {
	return p.InstallmentAmount.Mul(decimal.NewFromInt(int64(p.RemainingInstallments())))
}

// CurrencySummary aggregates the open installment exposure in one currency
type CurrencySummary struct {
	Currency              string          `json:"currency"`
	ActivePurchases       int             `json:"active_purchases"`
	RemainingInstallments int             `json:"remaining_installments"`
	RemainingAmount       decimal.Decimal `json:"remaining_amount"`
}

// Summary is the owner's open installment position across currencies
type Summary struct {
	ActivePurchases int                         `json:"active_purchases"`
	ByCurrency      map[string]*CurrencySummary `json:"by_currency"`
}
