package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ebarrios/centavo/internal/autodebit"
	"github.com/ebarrios/centavo/internal/ledger"
	"github.com/ebarrios/centavo/pkg/logger"
)

// conversionContext tags audit log entries written while totaling balances
const conversionContext = "balance"

const (
	// defaultProjectionDays is the horizon used when the caller gives none
	defaultProjectionDays = 30
	// maxProjectedExecutions caps recurrence expansion per debit so a daily
	// debit with a distant end date cannot blow up the event list
	maxProjectedExecutions = 365
)

// Accounts is the ledger read surface reports aggregate over
type Accounts interface {
	AccountsForTotal(ctx context.Context, ownerID uuid.UUID) ([]*ledger.Account, error)
	Account(ctx context.Context, id uuid.UUID) (*ledger.Account, error)
	// ScheduledInstallments returns the account's pending installment
	// transactions dated at or before until.
	ScheduledInstallments(ctx context.Context, accountID uuid.UUID, until time.Time) ([]*ledger.Transaction, error)
}

// Debits lists the recurring charges against an account
type Debits interface {
	ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]*autodebit.AutoDebit, error)
}

// Converter converts amounts between currencies with audit logging
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to, convContext, actorID string) (decimal.Decimal, error)
}

// AccountBalance is one account's contribution to a total
type AccountBalance struct {
	AccountID uuid.UUID       `json:"account_id"`
	Name      string          `json:"name"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Converted decimal.Decimal `json:"converted"`
}

// BalanceReport is the owner's total balance expressed in one currency
type BalanceReport struct {
	Currency string           `json:"currency"`
	Total    decimal.Decimal  `json:"total"`
	Accounts []AccountBalance `json:"accounts"`
}

// Event types of a balance projection
const (
	EventAutoDebit   = "auto_debit"
	EventInstallment = "installment"
)

// ProjectionEvent is one anticipated charge within the projection horizon.
// Amount carries the signed balance effect and Balance the running balance
// after the event applies.
type ProjectionEvent struct {
	Date        time.Time       `json:"date"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Balance     decimal.Decimal `json:"balance"`
}

// Projection is an account balance projected over the coming days
type Projection struct {
	AccountID        uuid.UUID         `json:"account_id"`
	Currency         string            `json:"currency"`
	CurrentBalance   decimal.Decimal   `json:"current_balance"`
	ProjectedBalance decimal.Decimal   `json:"projected_balance"`
	ProjectionDate   time.Time         `json:"projection_date"`
	Events           []ProjectionEvent `json:"events"`
}

// Service produces read-side aggregates across accounts and currencies
type Service struct {
	accounts  Accounts
	converter Converter
	debits    Debits
	log       *logger.Logger
	now       func() time.Time
}

// NewService creates a new report service
func NewService(accounts Accounts, converter Converter, debits Debits, log *logger.Logger) *Service {
	return &Service{
		accounts:  accounts,
		converter: converter,
		debits:    debits,
		log:       log.WithField("component", "report"),
		now:       time.Now,
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// TotalBalance sums the owner's active include-in-total accounts in the given
// currency, converting foreign balances through the resolver. A missing rate
// fails the report rather than silently miscounting an account.
func (s *Service) TotalBalance(ctx context.Context, ownerID uuid.UUID, currency string) (*BalanceReport, error) {
	accounts, err := s.accounts.AccountsForTotal(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	report := &BalanceReport{Currency: currency, Total: decimal.Zero}
	for _, a := range accounts {
		converted, err := s.converter.Convert(ctx, a.Balance, a.Currency, currency, conversionContext, ownerID.String())
		if err != nil {
			return nil, fmt.Errorf("convert account %s balance: %w", a.ID, err)
		}
		report.Total = report.Total.Add(converted)
		report.Accounts = append(report.Accounts, AccountBalance{
			AccountID: a.ID,
			Name:      a.Name,
			Currency:  a.Currency,
			Balance:   a.Balance,
			Converted: converted,
		})
	}

	s.log.Debug("total balance computed",
		"owner_id", ownerID,
		"currency", currency,
		"accounts", len(report.Accounts),
		"total", report.Total,
	)
	return report, nil
}

// Projection anticipates the account balance daysAhead days out by expanding
// the account's active auto-debit schedules and collecting its pending
// installment transactions. Events are ordered by date and each carries the
// running balance after it applies. Everything stays in the account's own
// currency, so no conversion is involved.
func (s *Service) Projection(ctx context.Context, ownerID, accountID uuid.UUID, daysAhead int) (*Projection, error) {
	if daysAhead <= 0 {
		daysAhead = defaultProjectionDays
	}

	account, err := s.accounts.Account(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if account.OwnerID != ownerID {
		return nil, ledger.ErrAccountNotOwned
	}

	horizon := s.now().AddDate(0, 0, daysAhead)

	debits, err := s.debits.ListActiveByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list auto-debits: %w", err)
	}

	var events []ProjectionEvent
	for _, d := range debits {
		date := d.NextExecution
		for i := 0; i < maxProjectedExecutions && !date.After(horizon); i++ {
			if d.EndDate != nil && date.After(*d.EndDate) {
				break
			}
			events = append(events, ProjectionEvent{
				Date:        date,
				Type:        EventAutoDebit,
				Description: d.Name,
				Amount:      d.Amount.Neg(),
			})
			date = d.NextExecutionAfter(date)
		}
	}

	pending, err := s.accounts.ScheduledInstallments(ctx, accountID, horizon)
	if err != nil {
		return nil, fmt.Errorf("list scheduled installments: %w", err)
	}
	for _, t := range pending {
		events = append(events, ProjectionEvent{
			Date:        t.Date,
			Type:        EventInstallment,
			Description: t.Description,
			Amount:      t.BalanceDelta(),
		})
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })

	balance := account.Balance
	for i := range events {
		balance = balance.Add(events[i].Amount)
		events[i].Balance = balance
	}

	s.log.Debug("balance projected",
		"owner_id", ownerID,
		"account_id", accountID,
		"days_ahead", daysAhead,
		"events", len(events),
		"projected_balance", balance,
	)
	return &Projection{
		AccountID:        accountID,
		Currency:         account.Currency,
		CurrentBalance:   account.Balance,
		ProjectedBalance: balance,
		ProjectionDate:   horizon,
		Events:           events,
	}, nil
}
