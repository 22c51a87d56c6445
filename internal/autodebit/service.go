package autodebit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ebarrios/centavo/internal/ledger"
	"github.com/ebarrios/centavo/pkg/logger"
)

// Service executes recurring expenses. Each debit is an independent unit of
// work: an insufficient balance records a failed attempt and leaves the
// schedule untouched so the next pass retries it.
type Service struct {
	repo   Repository
	ledger Ledger
	log    *logger.Logger
	now    func() time.Time
}

// NewService creates a new auto-debit service
func NewService(repo Repository, ldg Ledger, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		ledger: ldg,
		log:    log.WithField("component", "autodebit"),
		now:    time.Now,
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create registers a new auto-debit. The first execution is scheduled at the
// start date.
func (s *Service) Create(ctx context.Context, d *AutoDebit) (*AutoDebit, error) {
	if !d.Amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	if !d.Frequency.Valid() {
		return nil, ErrInvalidFrequency
	}
	if d.EndDate != nil && !d.EndDate.After(d.StartDate) {
		return nil, ErrEndBeforeStart
	}

	account, err := s.ledger.Account(ctx, d.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if account.OwnerID != d.OwnerID {
		return nil, ledger.ErrAccountNotOwned
	}

	category, err := s.ledger.Category(ctx, d.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("load category: %w", err)
	}
	if category.OwnerID != d.OwnerID {
		return nil, ledger.ErrCategoryNotOwned
	}
	if category.Kind != ledger.KindExpense {
		return nil, ErrNotExpenseCategory
	}

	d.ID = uuid.New()
	d.NextExecution = d.StartDate
	d.Status = StatusActive
	d.ExecutionCount = 0
	d.FailedAttempts = 0
	d.CreatedAt = s.now()
	d.UpdatedAt = d.CreatedAt

	if err := s.repo.CreateDebit(ctx, d); err != nil {
		return nil, fmt.Errorf("create auto-debit: %w", err)
	}

	s.log.Info("auto-debit created",
		"debit_id", d.ID,
		"account_id", d.AccountID,
		"amount", d.Amount,
		"currency", d.Currency,
		"frequency", d.Frequency,
		"next_execution", d.NextExecution,
	)
	return d, nil
}

// Execute runs one due auto-debit for the given day. On success the expense
// is posted and the schedule advances from today. An insufficient balance on
// an account that cannot go negative counts a failed attempt without moving
// NextExecution.
func (s *Service) Execute(ctx context.Context, d *AutoDebit, today time.Time) error {
	if !d.IsDue(today) {
		return ErrNotDue
	}

	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		_, err := s.ledger.Post(ctx, &ledger.Transaction{
			OwnerID:     d.OwnerID,
			AccountID:   d.AccountID,
			CategoryID:  d.CategoryID,
			Date:        today,
			Amount:      d.Amount,
			Currency:    d.Currency,
			Type:        ledger.TypeExpense,
			Description: d.Name,
			Origin:      ledger.OriginAutoDebit,
			AutoDebitID: &d.ID,
			Confirmed:   true,
		})
		if err != nil {
			return err
		}

		executed := today
		d.LastExecution = &executed
		d.ExecutionCount++
		d.FailedAttempts = 0
		d.NextExecution = d.NextExecutionAfter(executed)
		d.UpdatedAt = s.now()
		return s.repo.UpdateDebit(ctx, d)
	})
	if errors.Is(err, ledger.ErrNegativeBalanceNotAllowed) {
		d.FailedAttempts++
		d.UpdatedAt = s.now()
		if uerr := s.repo.UpdateDebit(ctx, d); uerr != nil {
			s.log.Error("failed attempt not recorded", "debit_id", d.ID, "error", uerr)
		}
		s.log.Warn("auto-debit skipped, insufficient balance",
			"debit_id", d.ID,
			"account_id", d.AccountID,
			"failed_attempts", d.FailedAttempts,
		)
		return ErrInsufficientBalance
	}
	if err != nil {
		return err
	}

	s.log.Info("auto-debit executed",
		"debit_id", d.ID,
		"amount", d.Amount,
		"currency", d.Currency,
		"next_execution", d.NextExecution,
	)
	return nil
}

// PassError describes one failed item of a batch pass
type PassError struct {
	ID     uuid.UUID `json:"id"`
	Reason string    `json:"reason"`
}

// PassResult reports the outcome of one batch pass
type PassResult struct {
	Executed int         `json:"executed"`
	Failed   int         `json:"failed"`
	Errors   []PassError `json:"errors,omitempty"`
}

// RunDuePass executes every due auto-debit for the given day. Items are
// independent; a failure is recorded and the pass continues.
func (s *Service) RunDuePass(ctx context.Context, today time.Time) (*PassResult, error) {
	due, err := s.repo.ListDue(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("list due auto-debits: %w", err)
	}

	result := &PassResult{}
	for _, d := range due {
		if !d.IsDue(today) {
			continue
		}
		if err := s.Execute(ctx, d, today); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, PassError{ID: d.ID, Reason: err.Error()})
			continue
		}
		result.Executed++
	}

	s.log.Info("auto-debit pass finished",
		"date", today.Format("2006-01-02"),
		"executed", result.Executed,
		"failed", result.Failed,
	)
	return result, nil
}

// ListDue returns the debits that would execute on the given day
func (s *Service) ListDue(ctx context.Context, today time.Time) ([]*AutoDebit, error) {
	candidates, err := s.repo.ListDue(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("list due auto-debits: %w", err)
	}
	due := candidates[:0]
	for _, d := range candidates {
		if d.IsDue(today) {
			due = append(due, d)
		}
	}
	return due, nil
}

// ListByOwner returns all of an owner's auto-debits
func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*AutoDebit, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// ListActiveByAccount returns the active debits charged to the account
func (s *Service) ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]*AutoDebit, error) {
	return s.repo.ListActiveByAccount(ctx, accountID)
}

// Pause suspends future executions until resumed
func (s *Service) Pause(ctx context.Context, id, ownerID uuid.UUID) (*AutoDebit, error) {
	return s.transition(ctx, id, ownerID, StatusActive, StatusPaused)
}

// Resume reactivates a paused auto-debit
func (s *Service) Resume(ctx context.Context, id, ownerID uuid.UUID) (*AutoDebit, error) {
	return s.transition(ctx, id, ownerID, StatusPaused, StatusActive)
}

// Cancel permanently stops an auto-debit
func (s *Service) Cancel(ctx context.Context, id, ownerID uuid.UUID) (*AutoDebit, error) {
	d, err := s.repo.GetDebit(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load auto-debit: %w", err)
	}
	if d.OwnerID != ownerID {
		return nil, ErrDebitNotOwned
	}
	d.Status = StatusCancelled
	d.UpdatedAt = s.now()
	if err := s.repo.UpdateDebit(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) transition(ctx context.Context, id, ownerID uuid.UUID, from, to Status) (*AutoDebit, error) {
	d, err := s.repo.GetDebit(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load auto-debit: %w", err)
	}
	if d.OwnerID != ownerID {
		return nil, ErrDebitNotOwned
	}
	if d.Status != from {
		return nil, ErrInvalidStatus
	}
	d.Status = to
	d.UpdatedAt = s.now()
	if err := s.repo.UpdateDebit(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}
