package installment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ebarrios/centavo/internal/ledger"
	"github.com/ebarrios/centavo/pkg/logger"
)

var hundred = decimal.NewFromInt(100)

// Service schedules credit-card purchases in installments. The principal is
// posted immediately against the card; each installment becomes an unconfirmed
// transaction that applies its balance effect only when paid.
type Service struct {
	repo       Repository
	ledger     Ledger
	currencies Currencies
	log        *logger.Logger
	now        func() time.Time
}

// NewService creates a new installment service
func NewService(repo Repository, ldg Ledger, currencies Currencies, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		ledger:     ldg,
		currencies: currencies,
		log:        log.WithField("component", "installment"),
		now:        time.Now,
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreatePurchaseInput carries the parameters of a new installment purchase.
// InterestRate is the monthly rate in percent, compounded per installment.
type CreatePurchaseInput struct {
	OwnerID              uuid.UUID
	AccountID            uuid.UUID
	TotalAmount          decimal.Decimal
	Currency             string
	TotalInstallments    int
	InterestRate         decimal.Decimal
	PurchaseDate         time.Time
	FirstInstallmentDate time.Time
	Description          string
}

func (in *CreatePurchaseInput) validate() error {
	if !in.TotalAmount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if in.TotalInstallments < MinInstallments || in.TotalInstallments > MaxInstallments {
		return ErrInvalidInstallmentCount
	}
	if in.InterestRate.IsNegative() {
		return ErrNegativeInterestRate
	}
	if in.FirstInstallmentDate.Before(in.PurchaseDate) {
		return ErrFirstInstallmentTooEarly
	}
	return nil
}

// CreatePurchase posts the principal as an immediate confirmed expense on the
// credit account and schedules one unconfirmed installment transaction per
// month, all inside one atomic unit.
func (s *Service) CreatePurchase(ctx context.Context, in *CreatePurchaseInput) (*CardPurchase, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	account, err := s.ledger.Account(ctx, in.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if account.OwnerID != in.OwnerID {
		return nil, ledger.ErrAccountNotOwned
	}
	if !account.Type.IsCreditAccount {
		return nil, ErrNotCreditAccount
	}

	places := s.currencies.DecimalPlaces(ctx, in.Currency)
	totalWithInterest := totalWithInterest(in.TotalAmount, in.InterestRate, in.TotalInstallments)
	installmentAmount := totalWithInterest.
		Div(decimal.NewFromInt(int64(in.TotalInstallments))).
		Round(places)

	purchase := &CardPurchase{
		ID:                   uuid.New(),
		OwnerID:              in.OwnerID,
		AccountID:            in.AccountID,
		TotalAmount:          in.TotalAmount,
		Currency:             in.Currency,
		TotalInstallments:    in.TotalInstallments,
		InstallmentAmount:    installmentAmount,
		InterestRate:         in.InterestRate,
		TotalWithInterest:    totalWithInterest,
		FirstInstallmentDate: in.FirstInstallmentDate,
		PurchaseDate:         in.PurchaseDate,
		CurrentInstallment:   0,
		Status:               StatusActive,
		Description:          in.Description,
		CreatedAt:            s.now(),
		UpdatedAt:            s.now(),
	}

	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		cardCategory, err := s.ledger.GetOrCreateReservedCategory(ctx, in.OwnerID, ledger.ReservedCardPurchase)
		if err != nil {
			return fmt.Errorf("resolve card purchase category: %w", err)
		}

		original, err := s.ledger.Post(ctx, &ledger.Transaction{
			OwnerID:        in.OwnerID,
			AccountID:      in.AccountID,
			CategoryID:     cardCategory.ID,
			Date:           in.PurchaseDate,
			Amount:         in.TotalAmount,
			Currency:       in.Currency,
			Type:           ledger.TypeExpense,
			Description:    in.Description,
			Origin:         ledger.OriginCard,
			CardPurchaseID: &purchase.ID,
			Confirmed:      true,
		})
		if err != nil {
			return fmt.Errorf("post purchase: %w", err)
		}
		purchase.OriginalTransactionID = original.ID

		if err := s.repo.CreatePurchase(ctx, purchase); err != nil {
			return fmt.Errorf("create purchase: %w", err)
		}

		installmentCategory, err := s.ledger.GetOrCreateReservedCategory(ctx, in.OwnerID, ledger.ReservedInstallment)
		if err != nil {
			return fmt.Errorf("resolve installment category: %w", err)
		}

		for i := 0; i < in.TotalInstallments; i++ {
			_, err := s.ledger.Post(ctx, &ledger.Transaction{
				OwnerID:        in.OwnerID,
				AccountID:      in.AccountID,
				CategoryID:     installmentCategory.ID,
				Date:           addMonths(in.FirstInstallmentDate, i),
				Amount:         installmentAmount,
				Currency:       in.Currency,
				Type:           ledger.TypeExpense,
				Description:    fmt.Sprintf("%s (%d/%d)", in.Description, i+1, in.TotalInstallments),
				Origin:         ledger.OriginInstallment,
				CardPurchaseID: &purchase.ID,
				Confirmed:      false,
			})
			if err != nil {
				return fmt.Errorf("schedule installment %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("card purchase created",
		"purchase_id", purchase.ID,
		"account_id", purchase.AccountID,
		"installments", purchase.TotalInstallments,
		"installment_amount", purchase.InstallmentAmount,
		"currency", purchase.Currency,
	)
	return purchase, nil
}

// PayInstallment confirms the earliest scheduled installment, applying its
// balance effect, and advances the purchase to installment n. The purchase
// completes when the last installment is paid.
func (s *Service) PayInstallment(ctx context.Context, purchaseID, ownerID uuid.UUID, n int) (*CardPurchase, error) {
	purchase, err := s.repo.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("load purchase: %w", err)
	}
	if purchase.OwnerID != ownerID {
		return nil, ErrPurchaseNotOwned
	}
	if purchase.Status != StatusActive {
		return nil, ErrPurchaseNotActive
	}
	if n <= purchase.CurrentInstallment || n > purchase.TotalInstallments {
		return nil, ErrInvalidInstallmentNumber
	}

	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		txID, err := s.repo.EarliestUnconfirmedTransaction(ctx, purchase.ID)
		if err != nil {
			return fmt.Errorf("find scheduled installment: %w", err)
		}
		if _, err := s.ledger.Confirm(ctx, txID, ownerID); err != nil {
			return fmt.Errorf("confirm installment: %w", err)
		}

		purchase.CurrentInstallment = n
		if n == purchase.TotalInstallments {
			purchase.Status = StatusCompleted
		}
		purchase.UpdatedAt = s.now()
		return s.repo.UpdatePurchase(ctx, purchase)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("installment paid",
		"purchase_id", purchase.ID,
		"installment", n,
		"of", purchase.TotalInstallments,
		"status", purchase.Status,
	)
	return purchase, nil
}

// PayEarly settles a purchase ahead of schedule: the remaining unconfirmed
// installments are deleted and the purchase completes. No compensating balance
// change is made; the principal was already applied at purchase time.
func (s *Service) PayEarly(ctx context.Context, purchaseID, ownerID uuid.UUID) (*CardPurchase, error) {
	purchase, err := s.repo.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("load purchase: %w", err)
	}
	if purchase.OwnerID != ownerID {
		return nil, ErrPurchaseNotOwned
	}
	if purchase.Status != StatusActive {
		return nil, ErrPurchaseNotActive
	}

	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		deleted, err := s.repo.DeleteUnconfirmedTransactions(ctx, purchase.ID)
		if err != nil {
			return fmt.Errorf("delete scheduled installments: %w", err)
		}
		s.log.Info("scheduled installments removed", "purchase_id", purchase.ID, "count", deleted)

		purchase.CurrentInstallment = purchase.TotalInstallments
		purchase.Status = StatusCompleted
		purchase.UpdatedAt = s.now()
		return s.repo.UpdatePurchase(ctx, purchase)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("card purchase settled early", "purchase_id", purchase.ID)
	return purchase, nil
}

// Summarize aggregates the owner's active purchases by currency
func (s *Service) Summarize(ctx context.Context, ownerID uuid.UUID) (*Summary, error) {
	purchases, err := s.repo.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list active purchases: %w", err)
	}

	summary := &Summary{ByCurrency: make(map[string]*CurrencySummary)}
	for _, p := range purchases {
		summary.ActivePurchases++
		cs, ok := summary.ByCurrency[p.Currency]
		if !ok {
			cs = &CurrencySummary{Currency: p.Currency, RemainingAmount: decimal.Zero}
			summary.ByCurrency[p.Currency] = cs
		}
		cs.ActivePurchases++
		cs.RemainingInstallments += p.RemainingInstallments()
		cs.RemainingAmount = cs.RemainingAmount.Add(p.RemainingAmount())
	}
	return summary, nil
}

// totalWithInterest compounds the monthly rate over the installment count:
// principal * (1 + rate/100)^n. A zero rate leaves the principal untouched.
func totalWithInterest(principal, monthlyRate decimal.Decimal, n int) decimal.Decimal {
	if monthlyRate.IsZero() {
		return principal
	}
	factor := decimal.NewFromInt(1).Add(monthlyRate.Div(hundred))
	return principal.Mul(factor.Pow(decimal.NewFromInt(int64(n))))
}

// addMonths advances a date by whole months, clamping the day to the shorter
// target month (Jan 31 + 1 month = Feb 28/29).
func addMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(firstOfTarget); day > last {
		day = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}
