package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ebarrios/centavo/internal/ledger"
	apperrors "github.com/ebarrios/centavo/internal/shared/errors"
)

// LedgerRepository implements ledger.Repository using PostgreSQL
type LedgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// WithinTx runs fn inside a database transaction carried in the context
func (r *LedgerRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithinTx(ctx, fn)
}

const accountColumns = `
	a.id, a.owner_id, a.name, a.currency, a.balance::text, a.credit_limit::text,
	a.is_active, a.include_in_total, a.created_at, a.updated_at,
	t.code, t.name, t.allows_negative_balance, t.is_credit_account
`

// GetAccount retrieves an account by ID
func (r *LedgerRepository) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts a
		JOIN account_types t ON t.code = a.type_code
		WHERE a.id = $1
	`
	q := r.db.getQueryer(ctx)
	return scanAccount(q.QueryRow(ctx, query, id))
}

// GetAccountForUpdate retrieves an account with its row locked for the
// remainder of the surrounding transaction. The join target is read-only
// reference data and stays unlocked.
func (r *LedgerRepository) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts a
		JOIN account_types t ON t.code = a.type_code
		WHERE a.id = $1
		FOR UPDATE OF a
	`
	q := r.db.getQueryer(ctx)
	return scanAccount(q.QueryRow(ctx, query, id))
}

// UpdateAccountBalance writes a new balance for the account
func (r *LedgerRepository) UpdateAccountBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	query := `UPDATE accounts SET balance = $2, updated_at = now() WHERE id = $1`

	q := r.db.getQueryer(ctx)
	tag, err := q.Exec(ctx, query, id, balance.String())
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("account")
	}
	return nil
}

// ListAccountsForTotal retrieves the owner's active accounts included in totals
func (r *LedgerRepository) ListAccountsForTotal(ctx context.Context, ownerID uuid.UUID) ([]*ledger.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts a
		JOIN account_types t ON t.code = a.type_code
		WHERE a.owner_id = $1 AND a.is_active AND a.include_in_total
		ORDER BY a.created_at ASC
	`
	q := r.db.getQueryer(ctx)
	rows, err := q.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*ledger.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

func scanAccount(row pgx.Row) (*ledger.Account, error) {
	var account ledger.Account
	var balanceStr string
	var creditLimit sql.NullString

	err := row.Scan(
		&account.ID,
		&account.OwnerID,
		&account.Name,
		&account.Currency,
		&balanceStr,
		&creditLimit,
		&account.IsActive,
		&account.IncludeInTotal,
		&account.CreatedAt,
		&account.UpdatedAt,
		&account.Type.Code,
		&account.Type.Name,
		&account.Type.AllowsNegativeBalance,
		&account.Type.IsCreditAccount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("account")
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	account.Balance = balance

	if creditLimit.Valid {
		limit, err := decimal.NewFromString(creditLimit.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse credit limit: %w", err)
		}
		account.CreditLimit = &limit
	}

	return &account, nil
}

// Category operations

// GetCategory retrieves a category by ID
func (r *LedgerRepository) GetCategory(ctx context.Context, id uuid.UUID) (*ledger.Category, error) {
	query := `
		SELECT id, owner_id, name, kind, is_active, created_at
		FROM categories
		WHERE id = $1
	`
	var category ledger.Category
	q := r.db.getQueryer(ctx)
	err := q.QueryRow(ctx, query, id).Scan(
		&category.ID,
		&category.OwnerID,
		&category.Name,
		&category.Kind,
		&category.IsActive,
		&category.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("category")
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &category, nil
}

// GetOrCreateCategory atomically inserts a category or returns the existing
// one with the same (owner, name, kind). ON CONFLICT DO NOTHING keeps
// concurrent first use from producing duplicates.
func (r *LedgerRepository) GetOrCreateCategory(ctx context.Context, category *ledger.Category) (*ledger.Category, error) {
	insertQuery := `
		INSERT INTO categories (id, owner_id, name, kind, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id, name, kind) DO NOTHING
	`
	q := r.db.getQueryer(ctx)
	_, err := q.Exec(ctx, insertQuery,
		category.ID,
		category.OwnerID,
		category.Name,
		string(category.Kind),
		category.IsActive,
		category.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert category: %w", err)
	}

	// Always SELECT to get the canonical row (ours or existing)
	selectQuery := `
		SELECT id, owner_id, name, kind, is_active, created_at
		FROM categories
		WHERE owner_id = $1 AND name = $2 AND kind = $3
	`
	var result ledger.Category
	err = q.QueryRow(ctx, selectQuery, category.OwnerID, category.Name, string(category.Kind)).Scan(
		&result.ID,
		&result.OwnerID,
		&result.Name,
		&result.Kind,
		&result.IsActive,
		&result.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &result, nil
}

// Transaction operations

const transactionColumns = `
	id, owner_id, account_id, category_id, date, amount::text, currency, type,
	description, target_account_id, origin, reference, metadata,
	card_purchase_id, auto_debit_id, is_confirmed, created_at, updated_at
`

// CreateTransaction inserts a new transaction
func (r *LedgerRepository) CreateTransaction(ctx context.Context, t *ledger.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	metadataJSON, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	q := r.db.getQueryer(ctx)
	_, err = q.Exec(ctx, query,
		t.ID,
		t.OwnerID,
		t.AccountID,
		t.CategoryID,
		t.Date,
		t.Amount.String(),
		t.Currency,
		string(t.Type),
		t.Description,
		t.TargetAccountID,
		string(t.Origin),
		t.Reference,
		metadataJSON,
		t.CardPurchaseID,
		t.AutoDebitID,
		t.Confirmed,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a transaction by ID
func (r *LedgerRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = $1
	`
	q := r.db.getQueryer(ctx)
	return scanTransaction(q.QueryRow(ctx, query, id))
}

// UpdateTransaction replaces the mutable fields of a transaction
func (r *LedgerRepository) UpdateTransaction(ctx context.Context, t *ledger.Transaction) error {
	metadataJSON, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		UPDATE transactions
		SET account_id = $2, category_id = $3, date = $4, amount = $5,
			currency = $6, type = $7, description = $8, target_account_id = $9,
			reference = $10, metadata = $11, is_confirmed = $12, updated_at = $13
		WHERE id = $1
	`
	q := r.db.getQueryer(ctx)
	tag, err := q.Exec(ctx, query,
		t.ID,
		t.AccountID,
		t.CategoryID,
		t.Date,
		t.Amount.String(),
		t.Currency,
		string(t.Type),
		t.Description,
		t.TargetAccountID,
		t.Reference,
		metadataJSON,
		t.Confirmed,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("transaction")
	}
	return nil
}

// NetConfirmedByAccount sums the signed balance effect of all confirmed
// transactions against the account.
func (r *LedgerRepository) NetConfirmedByAccount(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(
			CASE WHEN type = 'income' THEN amount ELSE -amount END
		), 0)::text
		FROM transactions
		WHERE account_id = $1 AND is_confirmed
	`
	var netStr string
	q := r.db.getQueryer(ctx)
	if err := q.QueryRow(ctx, query, accountID).Scan(&netStr); err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to sum transactions: %w", err)
	}

	net, err := decimal.NewFromString(netStr)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse net balance: %w", err)
	}
	return net, nil
}

// ListScheduledByAccount retrieves the account's unconfirmed transactions of
// the given origin dated at or before until
func (r *LedgerRepository) ListScheduledByAccount(ctx context.Context, accountID uuid.UUID, origin ledger.Origin, until time.Time) ([]*ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1 AND origin = $2 AND NOT is_confirmed AND date <= $3
		ORDER BY date ASC
	`
	q := r.db.getQueryer(ctx)
	rows, err := q.Query(ctx, query, accountID, string(origin), until)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*ledger.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

func scanTransaction(row pgx.Row) (*ledger.Transaction, error) {
	var t ledger.Transaction
	var amountStr string
	var metadataJSON []byte
	var reference sql.NullString

	err := row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.AccountID,
		&t.CategoryID,
		&t.Date,
		&amountStr,
		&t.Currency,
		&t.Type,
		&t.Description,
		&t.TargetAccountID,
		&t.Origin,
		&reference,
		&metadataJSON,
		&t.CardPurchaseID,
		&t.AutoDebitID,
		&t.Confirmed,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("transaction")
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	t.Amount = amount

	if reference.Valid {
		t.Reference = reference.String
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &t.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &t, nil
}
