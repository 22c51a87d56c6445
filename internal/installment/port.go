package installment

import (
	"context"

	"github.com/google/uuid"

	"github.com/ebarrios/centavo/internal/ledger"
)

// Repository is the persistence port for card purchases and their linked
// scheduled transactions. WithinTx must join a transaction already carried in
// the context so purchase creation and ledger postings commit together.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreatePurchase(ctx context.Context, p *CardPurchase) error
	GetPurchase(ctx context.Context, id uuid.UUID) (*CardPurchase, error)
	UpdatePurchase(ctx context.Context, p *CardPurchase) error
	ListActiveByOwner(ctx context.Context, ownerID uuid.UUID) ([]*CardPurchase, error)

	// EarliestUnconfirmedTransaction returns the ID of the oldest unconfirmed
	// transaction linked to the purchase, ordered by date.
	EarliestUnconfirmedTransaction(ctx context.Context, purchaseID uuid.UUID) (uuid.UUID, error)
	// DeleteUnconfirmedTransactions removes every unconfirmed transaction
	// linked to the purchase and reports how many were removed.
	DeleteUnconfirmedTransactions(ctx context.Context, purchaseID uuid.UUID) (int64, error)
}

// Ledger is the posting surface the scheduler drives. Balance effects only
// ever happen through it.
type Ledger interface {
	Post(ctx context.Context, t *ledger.Transaction) (*ledger.Transaction, error)
	Confirm(ctx context.Context, id, ownerID uuid.UUID) (*ledger.Transaction, error)
	Account(ctx context.Context, id uuid.UUID) (*ledger.Account, error)
	GetOrCreateReservedCategory(ctx context.Context, ownerID uuid.UUID, rc ledger.ReservedCategory) (*ledger.Category, error)
}

// Currencies exposes the precision registry used to round installment amounts
type Currencies interface {
	DecimalPlaces(ctx context.Context, code string) int32
}
