package installment_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebarrios/centavo/internal/installment"
	"github.com/ebarrios/centavo/internal/ledger"
	"github.com/ebarrios/centavo/pkg/logger"
)

type mockRepo struct {
	purchases    map[uuid.UUID]*installment.CardPurchase
	transactions *mockLedger
}

func (m *mockRepo) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *mockRepo) CreatePurchase(ctx context.Context, p *installment.CardPurchase) error {
	copied := *p
	m.purchases[p.ID] = &copied
	return nil
}

func (m *mockRepo) GetPurchase(ctx context.Context, id uuid.UUID) (*installment.CardPurchase, error) {
	p, ok := m.purchases[id]
	if !ok {
		return nil, assert.AnError
	}
	copied := *p
	return &copied, nil
}

func (m *mockRepo) UpdatePurchase(ctx context.Context, p *installment.CardPurchase) error {
	copied := *p
	m.purchases[p.ID] = &copied
	return nil
}

func (m *mockRepo) ListActiveByOwner(ctx context.Context, ownerID uuid.UUID) ([]*installment.CardPurchase, error) {
	var out []*installment.CardPurchase
	for _, p := range m.purchases {
		if p.OwnerID == ownerID && p.Status == installment.StatusActive {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockRepo) EarliestUnconfirmedTransaction(ctx context.Context, purchaseID uuid.UUID) (uuid.UUID, error) {
	var earliest *ledger.Transaction
	for _, t := range m.transactions.posted {
		if t.CardPurchaseID == nil || *t.CardPurchaseID != purchaseID || t.Confirmed {
			continue
		}
		if earliest == nil || t.Date.Before(earliest.Date) {
			earliest = t
		}
	}
	if earliest == nil {
		return uuid.Nil, assert.AnError
	}
	return earliest.ID, nil
}

func (m *mockRepo) DeleteUnconfirmedTransactions(ctx context.Context, purchaseID uuid.UUID) (int64, error) {
	var kept []*ledger.Transaction
	var deleted int64
	for _, t := range m.transactions.posted {
		if t.CardPurchaseID != nil && *t.CardPurchaseID == purchaseID && !t.Confirmed {
			deleted++
			continue
		}
		kept = append(kept, t)
	}
	m.transactions.posted = kept
	return deleted, nil
}

// mockLedger records postings without balance bookkeeping; the posting rules
// themselves are covered by the ledger package tests.
type mockLedger struct {
	accounts   map[uuid.UUID]*ledger.Account
	categories map[ledger.ReservedCategory]*ledger.Category
	posted     []*ledger.Transaction
}

func (m *mockLedger) Post(ctx context.Context, t *ledger.Transaction) (*ledger.Transaction, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	copied := *t
	copied.ID = uuid.New()
	m.posted = append(m.posted, &copied)
	return &copied, nil
}

func (m *mockLedger) Confirm(ctx context.Context, id, ownerID uuid.UUID) (*ledger.Transaction, error) {
	for _, t := range m.posted {
		if t.ID == id {
			if t.Confirmed {
				return nil, ledger.ErrAlreadyConfirmed
			}
			t.Confirmed = true
			return t, nil
		}
	}
	return nil, assert.AnError
}

func (m *mockLedger) Account(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, assert.AnError
	}
	return a, nil
}

func (m *mockLedger) GetOrCreateReservedCategory(ctx context.Context, ownerID uuid.UUID, rc ledger.ReservedCategory) (*ledger.Category, error) {
	if c, ok := m.categories[rc]; ok {
		return c, nil
	}
	c := &ledger.Category{ID: uuid.New(), OwnerID: ownerID, Name: rc.Name, Kind: rc.Kind, IsActive: true}
	m.categories[rc] = c
	return c, nil
}

type fixedPlaces int32

func (p fixedPlaces) DecimalPlaces(ctx context.Context, code string) int32 { return int32(p) }

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	repo    *mockRepo
	ldg     *mockLedger
	svc     *installment.Service
	ownerID uuid.UUID
	card    *ledger.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ldg := &mockLedger{
		accounts:   make(map[uuid.UUID]*ledger.Account),
		categories: make(map[ledger.ReservedCategory]*ledger.Category),
	}
	repo := &mockRepo{
		purchases:    make(map[uuid.UUID]*installment.CardPurchase),
		transactions: ldg,
	}
	ownerID := uuid.New()
	card := &ledger.Account{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Type: ledger.AccountType{
			Code: "credit", Name: "Credit Card",
			AllowsNegativeBalance: true, IsCreditAccount: true,
		},
		Name:     "Visa",
		Currency: "ARS",
		IsActive: true,
	}
	ldg.accounts[card.ID] = card
	return &fixture{
		repo:    repo,
		ldg:     ldg,
		svc:     installment.NewService(repo, ldg, fixedPlaces(2), logger.NewDefault("test")),
		ownerID: ownerID,
		card:    card,
	}
}

func (f *fixture) input(amount string, n int, rate string) *installment.CreatePurchaseInput {
	purchaseDate := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	return &installment.CreatePurchaseInput{
		OwnerID:              f.ownerID,
		AccountID:            f.card.ID,
		TotalAmount:          dec(amount),
		Currency:             "ARS",
		TotalInstallments:    n,
		InterestRate:         dec(rate),
		PurchaseDate:         purchaseDate,
		FirstInstallmentDate: purchaseDate.AddDate(0, 1, 0),
		Description:          "new laptop",
	}
}

func TestCreatePurchase_NoInterest(t *testing.T) {
	f := newFixture(t)

	purchase, err := f.svc.CreatePurchase(context.Background(), f.input("1200", 12, "0"))
	require.NoError(t, err)

	assert.True(t, purchase.TotalWithInterest.Equal(dec("1200")))
	assert.True(t, purchase.InstallmentAmount.Equal(dec("100")))
	assert.Equal(t, 0, purchase.CurrentInstallment)
	assert.Equal(t, installment.StatusActive, purchase.Status)

	// One immediate confirmed expense plus twelve scheduled installments
	require.Len(t, f.ldg.posted, 13)

	original := f.ldg.posted[0]
	assert.Equal(t, original.ID, purchase.OriginalTransactionID)
	assert.Equal(t, ledger.OriginCard, original.Origin)
	assert.True(t, original.Confirmed)
	assert.True(t, original.Amount.Equal(dec("1200")))
	assert.Equal(t, purchase.PurchaseDate, original.Date)

	for i, scheduled := range f.ldg.posted[1:] {
		assert.Equal(t, ledger.OriginInstallment, scheduled.Origin)
		assert.False(t, scheduled.Confirmed)
		assert.True(t, scheduled.Amount.Equal(dec("100")))
		require.NotNil(t, scheduled.CardPurchaseID)
		assert.Equal(t, purchase.ID, *scheduled.CardPurchaseID)
		assert.Equal(t, purchase.FirstInstallmentDate.AddDate(0, i, 0), scheduled.Date)
	}
}

func TestCreatePurchase_CompoundInterest(t *testing.T) {
	f := newFixture(t)

	// 1000 at 10% monthly over 3 installments: 1000 * 1.1^3 = 1331
	purchase, err := f.svc.CreatePurchase(context.Background(), f.input("1000", 3, "10"))
	require.NoError(t, err)

	assert.True(t, purchase.TotalWithInterest.Equal(dec("1331")),
		"got %s", purchase.TotalWithInterest)
	// 1331 / 3 = 443.666... rounds half-up to 443.67; residual drift accepted
	assert.True(t, purchase.InstallmentAmount.Equal(dec("443.67")),
		"got %s", purchase.InstallmentAmount)

	// The immediate expense carries the principal, not the financed total
	assert.True(t, f.ldg.posted[0].Amount.Equal(dec("1000")))
}

func TestCreatePurchase_MonthEndDatesClamped(t *testing.T) {
	f := newFixture(t)

	in := f.input("400", 4, "0")
	in.PurchaseDate = time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	in.FirstInstallmentDate = in.PurchaseDate

	_, err := f.svc.CreatePurchase(context.Background(), in)
	require.NoError(t, err)

	dates := make([]time.Time, 0, 4)
	for _, scheduled := range f.ldg.posted[1:] {
		dates = append(dates, scheduled.Date)
	}
	assert.Equal(t, []time.Time{
		time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
	}, dates)
}

func TestCreatePurchase_Rejections(t *testing.T) {
	f := newFixture(t)

	in := f.input("100", 1, "0")
	_, err := f.svc.CreatePurchase(context.Background(), in)
	assert.ErrorIs(t, err, installment.ErrInvalidInstallmentCount)

	in = f.input("100", 61, "0")
	_, err = f.svc.CreatePurchase(context.Background(), in)
	assert.ErrorIs(t, err, installment.ErrInvalidInstallmentCount)

	in = f.input("0", 3, "0")
	_, err = f.svc.CreatePurchase(context.Background(), in)
	assert.ErrorIs(t, err, installment.ErrNonPositiveAmount)

	in = f.input("100", 3, "0")
	in.FirstInstallmentDate = in.PurchaseDate.AddDate(0, 0, -1)
	_, err = f.svc.CreatePurchase(context.Background(), in)
	assert.ErrorIs(t, err, installment.ErrFirstInstallmentTooEarly)

	in = f.input("100", 3, "0")
	in.OwnerID = uuid.New()
	_, err = f.svc.CreatePurchase(context.Background(), in)
	assert.ErrorIs(t, err, ledger.ErrAccountNotOwned)

	// Debit accounts cannot carry installment purchases
	debit := &ledger.Account{
		ID:      uuid.New(),
		OwnerID: f.ownerID,
		Type:    ledger.AccountType{Code: "bank", Name: "Bank"},
		Name:    "Checking", Currency: "ARS", IsActive: true,
	}
	f.ldg.accounts[debit.ID] = debit
	in = f.input("100", 3, "0")
	in.AccountID = debit.ID
	_, err = f.svc.CreatePurchase(context.Background(), in)
	assert.ErrorIs(t, err, installment.ErrNotCreditAccount)

	assert.Empty(t, f.ldg.posted, "no posting may happen on rejection")
}

func TestPayInstallment_ConfirmsEarliestAndAdvances(t *testing.T) {
	f := newFixture(t)
	purchase, err := f.svc.CreatePurchase(context.Background(), f.input("300", 3, "0"))
	require.NoError(t, err)

	paid, err := f.svc.PayInstallment(context.Background(), purchase.ID, f.ownerID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, paid.CurrentInstallment)
	assert.Equal(t, installment.StatusActive, paid.Status)

	// The earliest scheduled transaction is now confirmed, the rest untouched
	var confirmed, pending int
	for _, tx := range f.ldg.posted[1:] {
		if tx.Confirmed {
			confirmed++
		} else {
			pending++
		}
	}
	assert.Equal(t, 1, confirmed)
	assert.Equal(t, 2, pending)
}

func TestPayInstallment_LastCompletesPurchase(t *testing.T) {
	f := newFixture(t)
	purchase, err := f.svc.CreatePurchase(context.Background(), f.input("200", 2, "0"))
	require.NoError(t, err)

	_, err = f.svc.PayInstallment(context.Background(), purchase.ID, f.ownerID, 1)
	require.NoError(t, err)
	paid, err := f.svc.PayInstallment(context.Background(), purchase.ID, f.ownerID, 2)
	require.NoError(t, err)
	assert.Equal(t, installment.StatusCompleted, paid.Status)

	// A completed purchase accepts no further payments
	_, err = f.svc.PayInstallment(context.Background(), purchase.ID, f.ownerID, 2)
	assert.ErrorIs(t, err, installment.ErrPurchaseNotActive)
}

func TestPayInstallment_NumberOutOfRange(t *testing.T) {
	f := newFixture(t)
	purchase, err := f.svc.CreatePurchase(context.Background(), f.input("300", 3, "0"))
	require.NoError(t, err)

	_, err = f.svc.PayInstallment(context.Background(), purchase.ID, f.ownerID, 0)
	assert.ErrorIs(t, err, installment.ErrInvalidInstallmentNumber)
	_, err = f.svc.PayInstallment(context.Background(), purchase.ID, f.ownerID, 4)
	assert.ErrorIs(t, err, installment.ErrInvalidInstallmentNumber)

	_, err = f.svc.PayInstallment(context.Background(), purchase.ID, f.ownerID, 2)
	require.NoError(t, err)
	_, err = f.svc.PayInstallment(context.Background(), purchase.ID, f.ownerID, 2)
	assert.ErrorIs(t, err, installment.ErrInvalidInstallmentNumber)
}

func TestPayInstallment_ForeignOwnerRejected(t *testing.T) {
	f := newFixture(t)
	purchase, err := f.svc.CreatePurchase(context.Background(), f.input("300", 3, "0"))
	require.NoError(t, err)

	_, err = f.svc.PayInstallment(context.Background(), purchase.ID, uuid.New(), 1)
	assert.ErrorIs(t, err, installment.ErrPurchaseNotOwned)
}

func TestPayEarly_DeletesScheduledAndCompletes(t *testing.T) {
	f := newFixture(t)
	purchase, err := f.svc.CreatePurchase(context.Background(), f.input("600", 6, "0"))
	require.NoError(t, err)

	_, err = f.svc.PayInstallment(context.Background(), purchase.ID, f.ownerID, 1)
	require.NoError(t, err)

	settled, err := f.svc.PayEarly(context.Background(), purchase.ID, f.ownerID)
	require.NoError(t, err)
	assert.Equal(t, installment.StatusCompleted, settled.Status)
	assert.Equal(t, 6, settled.CurrentInstallment)

	// Only the original expense and the one confirmed installment remain
	require.Len(t, f.ldg.posted, 2)
	for _, tx := range f.ldg.posted {
		assert.True(t, tx.Confirmed)
	}

	_, err = f.svc.PayEarly(context.Background(), purchase.ID, f.ownerID)
	assert.ErrorIs(t, err, installment.ErrPurchaseNotActive)
}

func TestSummarize_AggregatesByCurrency(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreatePurchase(context.Background(), f.input("300", 3, "0"))
	require.NoError(t, err)
	second, err := f.svc.CreatePurchase(context.Background(), f.input("1200", 12, "0"))
	require.NoError(t, err)
	_, err = f.svc.PayInstallment(context.Background(), second.ID, f.ownerID, 1)
	require.NoError(t, err)

	// Completed purchases are excluded
	done, err := f.svc.CreatePurchase(context.Background(), f.input("200", 2, "0"))
	require.NoError(t, err)
	_, err = f.svc.PayEarly(context.Background(), done.ID, f.ownerID)
	require.NoError(t, err)

	summary, err := f.svc.Summarize(context.Background(), f.ownerID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ActivePurchases)

	ars := summary.ByCurrency["ARS"]
	require.NotNil(t, ars)
	assert.Equal(t, 2, ars.ActivePurchases)
	assert.Equal(t, 3+11, ars.RemainingInstallments)
	// 3 x 100 + 11 x 100
	assert.True(t, ars.RemainingAmount.Equal(dec("1400")), "got %s", ars.RemainingAmount)
}
