package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ebarrios/centavo/internal/autodebit"
	apperrors "github.com/ebarrios/centavo/internal/shared/errors"
)

// AutoDebitRepository implements autodebit.Repository using PostgreSQL
type AutoDebitRepository struct {
	db *DB
}

// NewAutoDebitRepository creates a new PostgreSQL auto-debit repository
func NewAutoDebitRepository(db *DB) *AutoDebitRepository {
	return &AutoDebitRepository{db: db}
}

// WithinTx runs fn inside a database transaction carried in the context
func (r *AutoDebitRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithinTx(ctx, fn)
}

const debitColumns = `
	id, owner_id, account_id, category_id, name, description, amount::text,
	currency, frequency, start_date, end_date, next_execution, last_execution,
	status, execution_count, failed_attempts, day_of_month, created_at, updated_at
`

// CreateDebit inserts a new auto-debit
func (r *AutoDebitRepository) CreateDebit(ctx context.Context, d *autodebit.AutoDebit) error {
	query := `
		INSERT INTO auto_debits (` + debitColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	q := r.db.getQueryer(ctx)
	_, err := q.Exec(ctx, query,
		d.ID,
		d.OwnerID,
		d.AccountID,
		d.CategoryID,
		d.Name,
		d.Description,
		d.Amount.String(),
		d.Currency,
		string(d.Frequency),
		d.StartDate,
		d.EndDate,
		d.NextExecution,
		d.LastExecution,
		string(d.Status),
		d.ExecutionCount,
		d.FailedAttempts,
		d.DayOfMonth,
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auto-debit: %w", err)
	}
	return nil
}

// GetDebit retrieves an auto-debit by ID
func (r *AutoDebitRepository) GetDebit(ctx context.Context, id uuid.UUID) (*autodebit.AutoDebit, error) {
	query := `
		SELECT ` + debitColumns + `
		FROM auto_debits
		WHERE id = $1
	`
	q := r.db.getQueryer(ctx)
	return scanDebit(q.QueryRow(ctx, query, id))
}

// UpdateDebit replaces the mutable fields of an auto-debit
func (r *AutoDebitRepository) UpdateDebit(ctx context.Context, d *autodebit.AutoDebit) error {
	query := `
		UPDATE auto_debits
		SET name = $2, description = $3, amount = $4, frequency = $5,
			end_date = $6, next_execution = $7, last_execution = $8, status = $9,
			execution_count = $10, failed_attempts = $11, day_of_month = $12,
			updated_at = $13
		WHERE id = $1
	`
	q := r.db.getQueryer(ctx)
	tag, err := q.Exec(ctx, query,
		d.ID,
		d.Name,
		d.Description,
		d.Amount.String(),
		string(d.Frequency),
		d.EndDate,
		d.NextExecution,
		d.LastExecution,
		string(d.Status),
		d.ExecutionCount,
		d.FailedAttempts,
		d.DayOfMonth,
		d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update auto-debit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("auto-debit")
	}
	return nil
}

// ListDue retrieves active auto-debits scheduled at or before the given day
func (r *AutoDebitRepository) ListDue(ctx context.Context, today time.Time) ([]*autodebit.AutoDebit, error) {
	query := `
		SELECT ` + debitColumns + `
		FROM auto_debits
		WHERE status = 'active' AND next_execution <= $1
		ORDER BY next_execution ASC
	`
	return r.list(ctx, query, today)
}

// ListByOwner retrieves all of an owner's auto-debits
func (r *AutoDebitRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*autodebit.AutoDebit, error) {
	query := `
		SELECT ` + debitColumns + `
		FROM auto_debits
		WHERE owner_id = $1
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, ownerID)
}

// ListActiveByAccount retrieves the active auto-debits charged to the account
func (r *AutoDebitRepository) ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]*autodebit.AutoDebit, error) {
	query := `
		SELECT ` + debitColumns + `
		FROM auto_debits
		WHERE account_id = $1 AND status = 'active'
		ORDER BY next_execution ASC
	`
	return r.list(ctx, query, accountID)
}

func (r *AutoDebitRepository) list(ctx context.Context, query string, args ...any) ([]*autodebit.AutoDebit, error) {
	q := r.db.getQueryer(ctx)
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query auto-debits: %w", err)
	}
	defer rows.Close()

	var debits []*autodebit.AutoDebit
	for rows.Next() {
		d, err := scanDebit(rows)
		if err != nil {
			return nil, err
		}
		debits = append(debits, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auto-debits: %w", err)
	}
	return debits, nil
}

func scanDebit(row pgx.Row) (*autodebit.AutoDebit, error) {
	var d autodebit.AutoDebit
	var amountStr string

	err := row.Scan(
		&d.ID,
		&d.OwnerID,
		&d.AccountID,
		&d.CategoryID,
		&d.Name,
		&d.Description,
		&amountStr,
		&d.Currency,
		&d.Frequency,
		&d.StartDate,
		&d.EndDate,
		&d.NextExecution,
		&d.LastExecution,
		&d.Status,
		&d.ExecutionCount,
		&d.FailedAttempts,
		&d.DayOfMonth,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("auto-debit")
		}
		return nil, fmt.Errorf("failed to scan auto-debit: %w", err)
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	d.Amount = amount
	return &d, nil
}
