package autodebit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebarrios/centavo/internal/autodebit"
	"github.com/ebarrios/centavo/internal/ledger"
	"github.com/ebarrios/centavo/pkg/logger"
)

type mockRepo struct {
	debits map[uuid.UUID]*autodebit.AutoDebit
}

func (m *mockRepo) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *mockRepo) CreateDebit(ctx context.Context, d *autodebit.AutoDebit) error {
	copied := *d
	m.debits[d.ID] = &copied
	return nil
}

func (m *mockRepo) GetDebit(ctx context.Context, id uuid.UUID) (*autodebit.AutoDebit, error) {
	d, ok := m.debits[id]
	if !ok {
		return nil, assert.AnError
	}
	copied := *d
	return &copied, nil
}

func (m *mockRepo) UpdateDebit(ctx context.Context, d *autodebit.AutoDebit) error {
	copied := *d
	m.debits[d.ID] = &copied
	return nil
}

func (m *mockRepo) ListDue(ctx context.Context, today time.Time) ([]*autodebit.AutoDebit, error) {
	var out []*autodebit.AutoDebit
	for _, d := range m.debits {
		if d.Status == autodebit.StatusActive && !d.NextExecution.After(today) {
			copied := *d
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockRepo) ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]*autodebit.AutoDebit, error) {
	var out []*autodebit.AutoDebit
	for _, d := range m.debits {
		if d.AccountID == accountID && d.Status == autodebit.StatusActive {
			copied := *d
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*autodebit.AutoDebit, error) {
	var out []*autodebit.AutoDebit
	for _, d := range m.debits {
		if d.OwnerID == ownerID {
			copied := *d
			out = append(out, &copied)
		}
	}
	return out, nil
}

// mockLedger tracks balances so the insufficient-funds path is exercised the
// same way the real poster rejects it.
type mockLedger struct {
	accounts   map[uuid.UUID]*ledger.Account
	categories map[uuid.UUID]*ledger.Category
	posted     []*ledger.Transaction
}

func (m *mockLedger) Post(ctx context.Context, t *ledger.Transaction) (*ledger.Transaction, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	account, ok := m.accounts[t.AccountID]
	if !ok {
		return nil, assert.AnError
	}
	if t.Confirmed {
		newBalance := account.Balance.Add(t.BalanceDelta())
		if newBalance.IsNegative() && !account.Type.AllowsNegativeBalance {
			return nil, ledger.ErrNegativeBalanceNotAllowed
		}
		account.Balance = newBalance
	}
	copied := *t
	copied.ID = uuid.New()
	m.posted = append(m.posted, &copied)
	return &copied, nil
}

func (m *mockLedger) Account(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, assert.AnError
	}
	return a, nil
}

func (m *mockLedger) Category(ctx context.Context, id uuid.UUID) (*ledger.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, assert.AnError
	}
	return c, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	repo     *mockRepo
	ldg      *mockLedger
	svc      *autodebit.Service
	ownerID  uuid.UUID
	account  *ledger.Account
	category *ledger.Category
}

func newFixture(t *testing.T, balance string) *fixture {
	t.Helper()
	ldg := &mockLedger{
		accounts:   make(map[uuid.UUID]*ledger.Account),
		categories: make(map[uuid.UUID]*ledger.Category),
	}
	repo := &mockRepo{debits: make(map[uuid.UUID]*autodebit.AutoDebit)}
	ownerID := uuid.New()
	account := &ledger.Account{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Type:    ledger.AccountType{Code: "bank", Name: "Bank"},
		Name:    "Checking", Currency: "ARS",
		Balance: dec(balance), IsActive: true,
	}
	category := &ledger.Category{
		ID: uuid.New(), OwnerID: ownerID,
		Name: "Utilities", Kind: ledger.KindExpense, IsActive: true,
	}
	ldg.accounts[account.ID] = account
	ldg.categories[category.ID] = category
	return &fixture{
		repo:     repo,
		ldg:      ldg,
		svc:      autodebit.NewService(repo, ldg, logger.NewDefault("test")),
		ownerID:  ownerID,
		account:  account,
		category: category,
	}
}

func (f *fixture) debit(amount string, freq autodebit.Frequency, start time.Time) *autodebit.AutoDebit {
	return &autodebit.AutoDebit{
		OwnerID:    f.ownerID,
		AccountID:  f.account.ID,
		CategoryID: f.category.ID,
		Name:       "electricity",
		Amount:     dec(amount),
		Currency:   "ARS",
		Frequency:  freq,
		StartDate:  start,
	}
}

func TestCreate_SchedulesFirstExecutionAtStart(t *testing.T) {
	f := newFixture(t, "1000")
	start := day(2026, 9, 1)

	created, err := f.svc.Create(context.Background(), f.debit("120", autodebit.FrequencyMonthly, start))
	require.NoError(t, err)
	assert.Equal(t, start, created.NextExecution)
	assert.Equal(t, autodebit.StatusActive, created.Status)
	assert.Equal(t, 0, created.ExecutionCount)
	assert.Equal(t, 0, created.FailedAttempts)
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t, "1000")
	start := day(2026, 9, 1)

	d := f.debit("0", autodebit.FrequencyMonthly, start)
	_, err := f.svc.Create(context.Background(), d)
	assert.ErrorIs(t, err, autodebit.ErrNonPositiveAmount)

	d = f.debit("10", "fortnightly", start)
	_, err = f.svc.Create(context.Background(), d)
	assert.ErrorIs(t, err, autodebit.ErrInvalidFrequency)

	d = f.debit("10", autodebit.FrequencyMonthly, start)
	end := start.AddDate(0, 0, -1)
	d.EndDate = &end
	_, err = f.svc.Create(context.Background(), d)
	assert.ErrorIs(t, err, autodebit.ErrEndBeforeStart)

	d = f.debit("10", autodebit.FrequencyMonthly, start)
	d.OwnerID = uuid.New()
	_, err = f.svc.Create(context.Background(), d)
	assert.ErrorIs(t, err, ledger.ErrAccountNotOwned)

	income := &ledger.Category{
		ID: uuid.New(), OwnerID: f.ownerID,
		Name: "Salary", Kind: ledger.KindIncome, IsActive: true,
	}
	f.ldg.categories[income.ID] = income
	d = f.debit("10", autodebit.FrequencyMonthly, start)
	d.CategoryID = income.ID
	_, err = f.svc.Create(context.Background(), d)
	assert.ErrorIs(t, err, autodebit.ErrNotExpenseCategory)
}

func TestIsDue(t *testing.T) {
	today := day(2026, 8, 30)
	end := day(2026, 8, 15)

	cases := []struct {
		name  string
		debit autodebit.AutoDebit
		want  bool
	}{
		{"due today", autodebit.AutoDebit{Status: autodebit.StatusActive, NextExecution: today}, true},
		{"overdue", autodebit.AutoDebit{Status: autodebit.StatusActive, NextExecution: day(2026, 8, 1)}, true},
		{"scheduled later", autodebit.AutoDebit{Status: autodebit.StatusActive, NextExecution: day(2026, 9, 1)}, false},
		{"paused", autodebit.AutoDebit{Status: autodebit.StatusPaused, NextExecution: today}, false},
		{"cancelled", autodebit.AutoDebit{Status: autodebit.StatusCancelled, NextExecution: today}, false},
		{"past end date", autodebit.AutoDebit{Status: autodebit.StatusActive, NextExecution: day(2026, 8, 1), EndDate: &end}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.debit.IsDue(today))
		})
	}
}

func TestNextExecutionAfter(t *testing.T) {
	anchor31 := 31

	cases := []struct {
		name     string
		freq     autodebit.Frequency
		day      *int
		executed time.Time
		want     time.Time
	}{
		{"daily", autodebit.FrequencyDaily, nil, day(2026, 8, 30), day(2026, 8, 31)},
		{"weekly", autodebit.FrequencyWeekly, nil, day(2026, 8, 30), day(2026, 9, 6)},
		{"biweekly", autodebit.FrequencyBiweekly, nil, day(2026, 8, 30), day(2026, 9, 13)},
		{"monthly", autodebit.FrequencyMonthly, nil, day(2026, 8, 15), day(2026, 9, 15)},
		{"monthly clamps to shorter month", autodebit.FrequencyMonthly, nil, day(2026, 1, 31), day(2026, 2, 28)},
		{"monthly anchored day capped at 28", autodebit.FrequencyMonthly, &anchor31, day(2026, 8, 28), day(2026, 9, 28)},
		{"quarterly", autodebit.FrequencyQuarterly, nil, day(2026, 8, 30), day(2026, 11, 30)},
		{"yearly", autodebit.FrequencyYearly, nil, day(2026, 8, 30), day(2027, 8, 30)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := autodebit.AutoDebit{Frequency: tc.freq, DayOfMonth: tc.day}
			assert.Equal(t, tc.want, d.NextExecutionAfter(tc.executed))
		})
	}
}

func TestExecute_Success(t *testing.T) {
	f := newFixture(t, "500")
	today := day(2026, 8, 30)
	d, err := f.svc.Create(context.Background(), f.debit("120", autodebit.FrequencyMonthly, today))
	require.NoError(t, err)

	require.NoError(t, f.svc.Execute(context.Background(), d, today))

	assert.True(t, f.account.Balance.Equal(dec("380")))
	require.NotNil(t, d.LastExecution)
	assert.Equal(t, today, *d.LastExecution)
	assert.Equal(t, 1, d.ExecutionCount)
	assert.Equal(t, 0, d.FailedAttempts)
	assert.Equal(t, day(2026, 9, 30), d.NextExecution)

	require.Len(t, f.ldg.posted, 1)
	posted := f.ldg.posted[0]
	assert.Equal(t, ledger.OriginAutoDebit, posted.Origin)
	assert.Equal(t, ledger.TypeExpense, posted.Type)
	assert.True(t, posted.Confirmed)
	require.NotNil(t, posted.AutoDebitID)
	assert.Equal(t, d.ID, *posted.AutoDebitID)
}

func TestExecute_InsufficientBalanceRecordsFailure(t *testing.T) {
	f := newFixture(t, "50")
	today := day(2026, 8, 30)
	d, err := f.svc.Create(context.Background(), f.debit("120", autodebit.FrequencyMonthly, today))
	require.NoError(t, err)

	err = f.svc.Execute(context.Background(), d, today)
	assert.ErrorIs(t, err, autodebit.ErrInsufficientBalance)

	// No transaction, schedule in place, failure counted
	assert.Empty(t, f.ldg.posted)
	assert.True(t, f.account.Balance.Equal(dec("50")))
	assert.Equal(t, 1, d.FailedAttempts)
	assert.Equal(t, 0, d.ExecutionCount)
	assert.Nil(t, d.LastExecution)
	assert.Equal(t, today, d.NextExecution)

	// A later successful run clears the failure counter
	f.account.Balance = dec("500")
	require.NoError(t, f.svc.Execute(context.Background(), d, today))
	assert.Equal(t, 0, d.FailedAttempts)
	assert.Equal(t, 1, d.ExecutionCount)
}

func TestExecute_NotDue(t *testing.T) {
	f := newFixture(t, "500")
	d, err := f.svc.Create(context.Background(), f.debit("120", autodebit.FrequencyMonthly, day(2026, 9, 1)))
	require.NoError(t, err)

	err = f.svc.Execute(context.Background(), d, day(2026, 8, 30))
	assert.ErrorIs(t, err, autodebit.ErrNotDue)
	assert.Empty(t, f.ldg.posted)
}

func TestRunDuePass_ItemsAreIndependent(t *testing.T) {
	f := newFixture(t, "100")
	today := day(2026, 8, 30)

	// Two payable debits and one that overdraws; the pass must complete all
	_, err := f.svc.Create(context.Background(), f.debit("40", autodebit.FrequencyMonthly, today))
	require.NoError(t, err)
	big, err := f.svc.Create(context.Background(), f.debit("9999", autodebit.FrequencyMonthly, today))
	require.NoError(t, err)
	_, err = f.svc.Create(context.Background(), f.debit("30", autodebit.FrequencyDaily, today))
	require.NoError(t, err)
	// Not yet due, must be skipped silently
	_, err = f.svc.Create(context.Background(), f.debit("10", autodebit.FrequencyDaily, today.AddDate(0, 0, 5)))
	require.NoError(t, err)

	result, err := f.svc.RunDuePass(context.Background(), today)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Executed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, big.ID, result.Errors[0].ID)
	assert.Contains(t, result.Errors[0].Reason, "insufficient balance")

	assert.True(t, f.account.Balance.Equal(dec("30")))
	stored, err := f.repo.GetDebit(context.Background(), big.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.FailedAttempts)
}

func TestRunDuePass_ExcludesEnded(t *testing.T) {
	f := newFixture(t, "1000")
	start := day(2026, 7, 1)
	today := day(2026, 8, 30)

	d := f.debit("10", autodebit.FrequencyMonthly, start)
	end := day(2026, 8, 1)
	d.EndDate = &end
	_, err := f.svc.Create(context.Background(), d)
	require.NoError(t, err)

	result, err := f.svc.RunDuePass(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Executed)
	assert.Equal(t, 0, result.Failed)
	assert.Empty(t, f.ldg.posted)
}

func TestPauseResumeCancel(t *testing.T) {
	f := newFixture(t, "1000")
	d, err := f.svc.Create(context.Background(), f.debit("10", autodebit.FrequencyMonthly, day(2026, 9, 1)))
	require.NoError(t, err)

	paused, err := f.svc.Pause(context.Background(), d.ID, f.ownerID)
	require.NoError(t, err)
	assert.Equal(t, autodebit.StatusPaused, paused.Status)

	_, err = f.svc.Pause(context.Background(), d.ID, f.ownerID)
	assert.ErrorIs(t, err, autodebit.ErrInvalidStatus)

	resumed, err := f.svc.Resume(context.Background(), d.ID, f.ownerID)
	require.NoError(t, err)
	assert.Equal(t, autodebit.StatusActive, resumed.Status)

	_, err = f.svc.Cancel(context.Background(), d.ID, uuid.New())
	assert.ErrorIs(t, err, autodebit.ErrDebitNotOwned)

	cancelled, err := f.svc.Cancel(context.Background(), d.ID, f.ownerID)
	require.NoError(t, err)
	assert.Equal(t, autodebit.StatusCancelled, cancelled.Status)

	_, err = f.svc.Resume(context.Background(), d.ID, f.ownerID)
	assert.ErrorIs(t, err, autodebit.ErrInvalidStatus)
}
