package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebarrios/centavo/internal/autodebit"
	"github.com/ebarrios/centavo/internal/currency"
	"github.com/ebarrios/centavo/internal/ledger"
	"github.com/ebarrios/centavo/internal/report"
	apperrors "github.com/ebarrios/centavo/internal/shared/errors"
	"github.com/ebarrios/centavo/pkg/logger"
)

type mockAccounts struct {
	accounts     []*ledger.Account
	installments []*ledger.Transaction
}

func (m *mockAccounts) AccountsForTotal(ctx context.Context, ownerID uuid.UUID) ([]*ledger.Account, error) {
	var out []*ledger.Account
	for _, a := range m.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAccounts) Account(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	for _, a := range m.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, apperrors.NotFound("account")
}

func (m *mockAccounts) ScheduledInstallments(ctx context.Context, accountID uuid.UUID, until time.Time) ([]*ledger.Transaction, error) {
	var out []*ledger.Transaction
	for _, t := range m.installments {
		if t.AccountID == accountID && !t.Confirmed && !t.Date.After(until) {
			out = append(out, t)
		}
	}
	return out, nil
}

type mockDebits struct {
	debits []*autodebit.AutoDebit
}

func (m *mockDebits) ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]*autodebit.AutoDebit, error) {
	var out []*autodebit.AutoDebit
	for _, d := range m.debits {
		if d.AccountID == accountID && d.Status == autodebit.StatusActive {
			out = append(out, d)
		}
	}
	return out, nil
}

// mockConverter applies fixed pair rates and records the contexts it was
// asked to convert under.
type mockConverter struct {
	rates    map[string]decimal.Decimal // "FROM:TO"
	contexts []string
}

func (m *mockConverter) Convert(ctx context.Context, amount decimal.Decimal, from, to, convContext, actorID string) (decimal.Decimal, error) {
	m.contexts = append(m.contexts, convContext)
	if from == to {
		return amount.Round(2), nil
	}
	rate, ok := m.rates[from+":"+to]
	if !ok {
		return decimal.Decimal{}, currency.ErrRateUnavailable
	}
	return amount.Mul(rate).Round(2), nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func account(ownerID uuid.UUID, name, cur, balance string) *ledger.Account {
	return &ledger.Account{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		Name:           name,
		Currency:       cur,
		Balance:        dec(balance),
		IsActive:       true,
		IncludeInTotal: true,
	}
}

func TestTotalBalance_ConvertsForeignCurrencies(t *testing.T) {
	ownerID := uuid.New()
	accounts := &mockAccounts{accounts: []*ledger.Account{
		account(ownerID, "Checking", "ARS", "150000"),
		account(ownerID, "Savings", "USD", "200"),
		account(uuid.New(), "Not mine", "ARS", "999999"),
	}}
	converter := &mockConverter{rates: map[string]decimal.Decimal{
		"USD:ARS": dec("850"),
	}}
	svc := report.NewService(accounts, converter, &mockDebits{}, logger.NewDefault("test"))

	got, err := svc.TotalBalance(context.Background(), ownerID, "ARS")
	require.NoError(t, err)

	// 150000 + 200 * 850
	assert.True(t, got.Total.Equal(dec("320000")), "got %s", got.Total)
	assert.Equal(t, "ARS", got.Currency)
	require.Len(t, got.Accounts, 2)

	// Conversions are tagged with the balance context for the audit trail
	for _, c := range converter.contexts {
		assert.Equal(t, "balance", c)
	}
}

func TestTotalBalance_FailsWhenRateUnavailable(t *testing.T) {
	ownerID := uuid.New()
	accounts := &mockAccounts{accounts: []*ledger.Account{
		account(ownerID, "Checking", "ARS", "1000"),
		account(ownerID, "Offshore", "CHF", "50"),
	}}
	converter := &mockConverter{rates: map[string]decimal.Decimal{}}
	svc := report.NewService(accounts, converter, &mockDebits{}, logger.NewDefault("test"))

	_, err := svc.TotalBalance(context.Background(), ownerID, "ARS")
	assert.ErrorIs(t, err, currency.ErrRateUnavailable)
}

func TestTotalBalance_NoAccounts(t *testing.T) {
	svc := report.NewService(&mockAccounts{}, &mockConverter{}, &mockDebits{}, logger.NewDefault("test"))

	got, err := svc.TotalBalance(context.Background(), uuid.New(), "ARS")
	require.NoError(t, err)
	assert.True(t, got.Total.IsZero())
	assert.Empty(t, got.Accounts)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestProjection_ExpandsSchedulesAndInstallments(t *testing.T) {
	ownerID := uuid.New()
	checking := account(ownerID, "Checking", "ARS", "1000")
	now := day(2026, 8, 1)

	debits := &mockDebits{debits: []*autodebit.AutoDebit{{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		AccountID:     checking.ID,
		Name:          "Gym",
		Amount:        dec("50"),
		Currency:      "ARS",
		Frequency:     autodebit.FrequencyWeekly,
		NextExecution: day(2026, 8, 4),
		Status:        autodebit.StatusActive,
	}}}
	accounts := &mockAccounts{
		accounts: []*ledger.Account{checking},
		installments: []*ledger.Transaction{{
			ID:          uuid.New(),
			OwnerID:     ownerID,
			AccountID:   checking.ID,
			Date:        day(2026, 8, 8),
			Amount:      dec("200"),
			Currency:    "ARS",
			Type:        ledger.TypeExpense,
			Description: "Phone 2/6",
			Origin:      ledger.OriginInstallment,
		}},
	}
	svc := report.NewService(accounts, &mockConverter{}, debits, logger.NewDefault("test")).
		WithClock(func() time.Time { return now })

	got, err := svc.Projection(context.Background(), ownerID, checking.ID, 14)
	require.NoError(t, err)

	assert.True(t, got.CurrentBalance.Equal(dec("1000")))
	assert.True(t, got.ProjectedBalance.Equal(dec("700")), "got %s", got.ProjectedBalance)
	assert.Equal(t, "ARS", got.Currency)
	require.Len(t, got.Events, 3)

	// Weekly debit on the 4th and 11th with the installment in between
	assert.Equal(t, report.EventAutoDebit, got.Events[0].Type)
	assert.Equal(t, day(2026, 8, 4), got.Events[0].Date)
	assert.True(t, got.Events[0].Amount.Equal(dec("-50")))
	assert.True(t, got.Events[0].Balance.Equal(dec("950")))

	assert.Equal(t, report.EventInstallment, got.Events[1].Type)
	assert.Equal(t, day(2026, 8, 8), got.Events[1].Date)
	assert.True(t, got.Events[1].Amount.Equal(dec("-200")))
	assert.True(t, got.Events[1].Balance.Equal(dec("750")))

	assert.Equal(t, report.EventAutoDebit, got.Events[2].Type)
	assert.Equal(t, day(2026, 8, 11), got.Events[2].Date)
	assert.True(t, got.Events[2].Balance.Equal(dec("700")))
}

func TestProjection_StopsAtEndDate(t *testing.T) {
	ownerID := uuid.New()
	checking := account(ownerID, "Checking", "ARS", "500")
	end := day(2026, 8, 31)

	debits := &mockDebits{debits: []*autodebit.AutoDebit{{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		AccountID:     checking.ID,
		Name:          "Streaming",
		Amount:        dec("120"),
		Currency:      "ARS",
		Frequency:     autodebit.FrequencyMonthly,
		NextExecution: day(2026, 8, 10),
		EndDate:       &end,
		Status:        autodebit.StatusActive,
	}}}
	accounts := &mockAccounts{accounts: []*ledger.Account{checking}}
	svc := report.NewService(accounts, &mockConverter{}, debits, logger.NewDefault("test")).
		WithClock(func() time.Time { return day(2026, 8, 1) })

	got, err := svc.Projection(context.Background(), ownerID, checking.ID, 90)
	require.NoError(t, err)

	// September's execution falls past the end date
	require.Len(t, got.Events, 1)
	assert.Equal(t, day(2026, 8, 10), got.Events[0].Date)
	assert.True(t, got.ProjectedBalance.Equal(dec("380")), "got %s", got.ProjectedBalance)
}

func TestProjection_DefaultHorizon(t *testing.T) {
	ownerID := uuid.New()
	checking := account(ownerID, "Checking", "ARS", "800")

	debits := &mockDebits{debits: []*autodebit.AutoDebit{{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		AccountID:     checking.ID,
		Name:          "Insurance",
		Amount:        dec("300"),
		Currency:      "ARS",
		Frequency:     autodebit.FrequencyMonthly,
		NextExecution: day(2026, 9, 15),
		Status:        autodebit.StatusActive,
	}}}
	accounts := &mockAccounts{accounts: []*ledger.Account{checking}}
	svc := report.NewService(accounts, &mockConverter{}, debits, logger.NewDefault("test")).
		WithClock(func() time.Time { return day(2026, 8, 1) })

	// Zero days falls back to the 30-day window, which ends before the debit
	got, err := svc.Projection(context.Background(), ownerID, checking.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, got.Events)
	assert.True(t, got.ProjectedBalance.Equal(got.CurrentBalance))
	assert.Equal(t, day(2026, 8, 31), got.ProjectionDate)
}

func TestProjection_ForeignAccount(t *testing.T) {
	checking := account(uuid.New(), "Checking", "ARS", "1000")
	accounts := &mockAccounts{accounts: []*ledger.Account{checking}}
	svc := report.NewService(accounts, &mockConverter{}, &mockDebits{}, logger.NewDefault("test"))

	_, err := svc.Projection(context.Background(), uuid.New(), checking.ID, 30)
	assert.ErrorIs(t, err, ledger.ErrAccountNotOwned)
}
