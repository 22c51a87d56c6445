package ledger

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ebarrios/centavo/pkg/logger"
)

// Service is the single writer of account balances. Every posting runs as
// one atomic unit: the transaction record and all balance mutations succeed
// together or not at all.
type Service struct {
	repo Repository
	log  *logger.Logger
	now  func() time.Time
}

// NewService creates a new ledger service
func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.WithField("component", "ledger"),
		now:  time.Now,
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Post validates and records a transaction, applying its balance effect when
// it is confirmed. Transfers additionally synthesize a mirrored income
// transaction on the target account inside the same atomic unit.
func (s *Service) Post(ctx context.Context, t *Transaction) (*Transaction, error) {
	if err := s.validate(ctx, t); err != nil {
		return nil, err
	}

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Date.IsZero() {
		t.Date = s.now()
	}
	t.CreatedAt = s.now()
	t.UpdatedAt = t.CreatedAt

	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateTransaction(ctx, t); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		if !t.Confirmed {
			return nil
		}
		if t.Type == TypeTransfer {
			return s.applyTransfer(ctx, t)
		}
		return s.applyDelta(ctx, t.AccountID, t.BalanceDelta())
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("transaction posted",
		"transaction_id", t.ID,
		"account_id", t.AccountID,
		"type", t.Type,
		"origin", t.Origin,
		"amount", t.Amount,
		"currency", t.Currency,
		"confirmed", t.Confirmed,
	)
	return t, nil
}

// Update replaces a posted transaction. The previously applied balance delta
// is reversed before the new one is applied, so the account balance always
// equals the sum of confirmed transaction effects.
func (s *Service) Update(ctx context.Context, updated *Transaction) (*Transaction, error) {
	existing, err := s.repo.GetTransaction(ctx, updated.ID)
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if existing.OwnerID != updated.OwnerID {
		return nil, ErrAccountNotOwned
	}
	// Editing a transfer cannot reconcile the mirror leg on the target
	// account; the pair has to be reposted instead.
	if existing.Type == TypeTransfer || updated.Type == TypeTransfer {
		return nil, ErrTransferNotEditable
	}
	if err := s.validate(ctx, updated); err != nil {
		return nil, err
	}

	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()

	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		if existing.Confirmed {
			if err := s.applyDelta(ctx, existing.AccountID, existing.BalanceDelta().Neg()); err != nil {
				return fmt.Errorf("reverse previous effect: %w", err)
			}
		}
		if err := s.repo.UpdateTransaction(ctx, updated); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		if updated.Confirmed {
			if err := s.applyDelta(ctx, updated.AccountID, updated.BalanceDelta()); err != nil {
				return fmt.Errorf("apply new effect: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("transaction updated", "transaction_id", updated.ID, "account_id", updated.AccountID)
	return updated, nil
}

// Confirm applies the balance effect of a previously scheduled transaction.
// No currency conversion takes place: the amount was fixed at scheduling time.
func (s *Service) Confirm(ctx context.Context, id, ownerID uuid.UUID) (*Transaction, error) {
	t, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if t.OwnerID != ownerID {
		return nil, ErrAccountNotOwned
	}
	if t.Confirmed {
		return nil, ErrAlreadyConfirmed
	}

	t.Confirmed = true
	t.UpdatedAt = s.now()

	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateTransaction(ctx, t); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		return s.applyDelta(ctx, t.AccountID, t.BalanceDelta())
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("transaction confirmed", "transaction_id", t.ID, "account_id", t.AccountID)
	return t, nil
}

// Account returns an account by ID
func (s *Service) Account(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// Category returns a category by ID
func (s *Service) Category(ctx context.Context, id uuid.UUID) (*Category, error) {
	return s.repo.GetCategory(ctx, id)
}

// AccountsForTotal returns the owner's active accounts that participate in
// balance totals.
func (s *Service) AccountsForTotal(ctx context.Context, ownerID uuid.UUID) ([]*Account, error) {
	return s.repo.ListAccountsForTotal(ctx, ownerID)
}

// ScheduledInstallments returns the account's pending installment
// transactions dated at or before until, ordered by date.
func (s *Service) ScheduledInstallments(ctx context.Context, accountID uuid.UUID, until time.Time) ([]*Transaction, error) {
	return s.repo.ListScheduledByAccount(ctx, accountID, OriginInstallment, until)
}

// GetOrCreateReservedCategory returns the owner's reserved category of the
// given kind, creating it on first use. Idempotent under concurrent callers.
func (s *Service) GetOrCreateReservedCategory(ctx context.Context, ownerID uuid.UUID, rc ReservedCategory) (*Category, error) {
	return s.repo.GetOrCreateCategory(ctx, &Category{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      rc.Name,
		Kind:      rc.Kind,
		IsActive:  true,
		CreatedAt: s.now(),
	})
}

// RecalculateBalance recomputes an account's balance from its confirmed
// transactions and repairs any drift. Returns the calculated balance.
func (s *Service) RecalculateBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	calculated, err := s.repo.NetConfirmedByAccount(ctx, accountID)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("sum confirmed transactions: %w", err)
	}

	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		account, err := s.repo.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if account.Balance.Equal(calculated) {
			return nil
		}
		s.log.Warn("balance drift repaired",
			"account_id", accountID,
			"stored", account.Balance,
			"calculated", calculated,
		)
		return s.repo.UpdateAccountBalance(ctx, accountID, calculated)
	})
	if err != nil {
		return decimal.Decimal{}, err
	}

	return calculated, nil
}

// validate enforces ownership and category invariants before any mutation
func (s *Service) validate(ctx context.Context, t *Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}

	account, err := s.repo.GetAccount(ctx, t.AccountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if account.OwnerID != t.OwnerID {
		return ErrAccountNotOwned
	}

	category, err := s.repo.GetCategory(ctx, t.CategoryID)
	if err != nil {
		return fmt.Errorf("load category: %w", err)
	}
	if category.OwnerID != t.OwnerID {
		return ErrCategoryNotOwned
	}

	switch t.Type {
	case TypeIncome:
		if category.Kind != KindIncome {
			return ErrCategoryKindMismatch
		}
	case TypeExpense:
		if category.Kind != KindExpense {
			return ErrCategoryKindMismatch
		}
	case TypeTransfer:
		target, err := s.repo.GetAccount(ctx, *t.TargetAccountID)
		if err != nil {
			return fmt.Errorf("load target account: %w", err)
		}
		if target.OwnerID != t.OwnerID {
			return ErrTargetNotOwned
		}
	}

	return nil
}

// applyDelta mutates one account balance under its row lock. The negative
// balance guard is the account-type invariant, not an insufficient funds
// policy: ordinary expenses may drive a permissive account negative.
func (s *Service) applyDelta(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) error {
	account, err := s.repo.GetAccountForUpdate(ctx, accountID)
	if err != nil {
		return fmt.Errorf("lock account: %w", err)
	}

	newBalance := account.Balance.Add(delta)
	if newBalance.IsNegative() && !account.Type.AllowsNegativeBalance {
		return ErrNegativeBalanceNotAllowed
	}

	return s.repo.UpdateAccountBalance(ctx, accountID, newBalance)
}

// applyTransfer moves the amount between both accounts and records the
// mirrored income transaction on the target. Both rows are locked in
// ascending account-ID order so concurrent transfers cannot deadlock.
func (s *Service) applyTransfer(ctx context.Context, t *Transaction) error {
	sourceID := t.AccountID
	targetID := *t.TargetAccountID

	lockOrder := []uuid.UUID{sourceID, targetID}
	if bytes.Compare(targetID[:], sourceID[:]) < 0 {
		lockOrder = []uuid.UUID{targetID, sourceID}
	}

	accounts := make(map[uuid.UUID]*Account, 2)
	for _, id := range lockOrder {
		account, err := s.repo.GetAccountForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		accounts[id] = account
	}

	source := accounts[sourceID]
	newSourceBalance := source.Balance.Sub(t.Amount)
	if newSourceBalance.IsNegative() && !source.Type.AllowsNegativeBalance {
		return ErrNegativeBalanceNotAllowed
	}
	if err := s.repo.UpdateAccountBalance(ctx, sourceID, newSourceBalance); err != nil {
		return err
	}

	transferCategory, err := s.GetOrCreateReservedCategory(ctx, t.OwnerID, ReservedTransfer)
	if err != nil {
		return fmt.Errorf("resolve transfer category: %w", err)
	}

	mirror := &Transaction{
		ID:          uuid.New(),
		OwnerID:     t.OwnerID,
		AccountID:   targetID,
		CategoryID:  transferCategory.ID,
		Date:        t.Date,
		Amount:      t.Amount,
		Currency:    t.Currency,
		Type:        TypeIncome,
		Description: fmt.Sprintf("Transfer from %s", source.Name),
		Origin:      OriginTransfer,
		Reference:   t.Reference,
		Metadata:    map[string]interface{}{"transfer_source": t.ID.String()},
		Confirmed:   true,
		CreatedAt:   s.now(),
		UpdatedAt:   s.now(),
	}
	if err := s.repo.CreateTransaction(ctx, mirror); err != nil {
		return fmt.Errorf("create mirror transaction: %w", err)
	}

	target := accounts[targetID]
	return s.repo.UpdateAccountBalance(ctx, targetID, target.Balance.Add(t.Amount))
}
