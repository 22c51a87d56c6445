package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository is the persistence port for accounts, categories and
// transactions. Implementations must support nested use of WithinTx by
// joining the transaction already carried in the context.
type Repository interface {
	// WithinTx runs fn inside a database transaction. The balance
	// read-modify-write cycle of a posting happens entirely inside one call.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	// GetAccountForUpdate loads the account with its row locked for the
	// remainder of the surrounding transaction.
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)
	UpdateAccountBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error
	ListAccountsForTotal(ctx context.Context, ownerID uuid.UUID) ([]*Account, error)

	GetCategory(ctx context.Context, id uuid.UUID) (*Category, error)
	// GetOrCreateCategory atomically inserts the category or returns the
	// existing one with the same (owner, name, kind). Concurrent first use
	// must not produce duplicates.
	GetOrCreateCategory(ctx context.Context, category *Category) (*Category, error)

	CreateTransaction(ctx context.Context, t *Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	UpdateTransaction(ctx context.Context, t *Transaction) error
	// NetConfirmedByAccount sums the signed balance effect of all confirmed
	// transactions against the account.
	NetConfirmedByAccount(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	// ListScheduledByAccount returns the account's unconfirmed transactions of
	// the given origin dated at or before until, ordered by date.
	ListScheduledByAccount(ctx context.Context, accountID uuid.UUID, origin Origin, until time.Time) ([]*Transaction, error)
}
