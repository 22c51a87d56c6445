package autodebit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ebarrios/centavo/internal/ledger"
)

// Repository is the persistence port for auto-debits
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateDebit(ctx context.Context, d *AutoDebit) error
	GetDebit(ctx context.Context, id uuid.UUID) (*AutoDebit, error)
	UpdateDebit(ctx context.Context, d *AutoDebit) error
	// ListDue returns active debits with NextExecution at or before the given
	// day, across all owners. End-date filtering is the service's concern.
	ListDue(ctx context.Context, today time.Time) ([]*AutoDebit, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*AutoDebit, error)
	ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]*AutoDebit, error)
}

// Ledger is the posting surface auto-debit execution drives
type Ledger interface {
	Post(ctx context.Context, t *ledger.Transaction) (*ledger.Transaction, error)
	Account(ctx context.Context, id uuid.UUID) (*ledger.Account, error)
	Category(ctx context.Context, id uuid.UUID) (*ledger.Category, error)
}
