package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ebarrios/centavo/internal/installment"
	apperrors "github.com/ebarrios/centavo/internal/shared/errors"
)

// InstallmentRepository implements installment.Repository using PostgreSQL
type InstallmentRepository struct {
	db *DB
}

// NewInstallmentRepository creates a new PostgreSQL installment repository
func NewInstallmentRepository(db *DB) *InstallmentRepository {
	return &InstallmentRepository{db: db}
}

// WithinTx runs fn inside a database transaction carried in the context
func (r *InstallmentRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithinTx(ctx, fn)
}

const purchaseColumns = `
	id, owner_id, account_id, original_transaction_id, total_amount::text,
	currency, total_installments, installment_amount::text, interest_rate::text,
	total_with_interest::text, first_installment_date, purchase_date,
	current_installment, status, description, created_at, updated_at
`

// CreatePurchase inserts a new card purchase
func (r *InstallmentRepository) CreatePurchase(ctx context.Context, p *installment.CardPurchase) error {
	query := `
		INSERT INTO card_purchases (` + purchaseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	q := r.db.getQueryer(ctx)
	_, err := q.Exec(ctx, query,
		p.ID,
		p.OwnerID,
		p.AccountID,
		p.OriginalTransactionID,
		p.TotalAmount.String(),
		p.Currency,
		p.TotalInstallments,
		p.InstallmentAmount.String(),
		p.InterestRate.String(),
		p.TotalWithInterest.String(),
		p.FirstInstallmentDate,
		p.PurchaseDate,
		p.CurrentInstallment,
		string(p.Status),
		p.Description,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create card purchase: %w", err)
	}
	return nil
}

// GetPurchase retrieves a card purchase by ID
func (r *InstallmentRepository) GetPurchase(ctx context.Context, id uuid.UUID) (*installment.CardPurchase, error) {
	query := `
		SELECT ` + purchaseColumns + `
		FROM card_purchases
		WHERE id = $1
	`
	q := r.db.getQueryer(ctx)
	return scanPurchase(q.QueryRow(ctx, query, id))
}

// UpdatePurchase replaces the mutable fields of a card purchase
func (r *InstallmentRepository) UpdatePurchase(ctx context.Context, p *installment.CardPurchase) error {
	query := `
		UPDATE card_purchases
		SET current_installment = $2, status = $3, updated_at = $4
		WHERE id = $1
	`
	q := r.db.getQueryer(ctx)
	tag, err := q.Exec(ctx, query, p.ID, p.CurrentInstallment, string(p.Status), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update card purchase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("card purchase")
	}
	return nil
}

// ListActiveByOwner retrieves the owner's active card purchases
func (r *InstallmentRepository) ListActiveByOwner(ctx context.Context, ownerID uuid.UUID) ([]*installment.CardPurchase, error) {
	query := `
		SELECT ` + purchaseColumns + `
		FROM card_purchases
		WHERE owner_id = $1 AND status = 'active'
		ORDER BY purchase_date ASC
	`
	q := r.db.getQueryer(ctx)
	rows, err := q.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query card purchases: %w", err)
	}
	defer rows.Close()

	var purchases []*installment.CardPurchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating card purchases: %w", err)
	}
	return purchases, nil
}

// EarliestUnconfirmedTransaction returns the ID of the oldest scheduled
// transaction still unconfirmed for the purchase.
func (r *InstallmentRepository) EarliestUnconfirmedTransaction(ctx context.Context, purchaseID uuid.UUID) (uuid.UUID, error) {
	query := `
		SELECT id
		FROM transactions
		WHERE card_purchase_id = $1 AND NOT is_confirmed
		ORDER BY date ASC
		LIMIT 1
	`
	var id uuid.UUID
	q := r.db.getQueryer(ctx)
	if err := q.QueryRow(ctx, query, purchaseID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, apperrors.NotFound("scheduled installment")
		}
		return uuid.Nil, fmt.Errorf("failed to find scheduled installment: %w", err)
	}
	return id, nil
}

// DeleteUnconfirmedTransactions removes every unconfirmed transaction linked
// to the purchase. Confirmed installments are history and stay.
func (r *InstallmentRepository) DeleteUnconfirmedTransactions(ctx context.Context, purchaseID uuid.UUID) (int64, error) {
	query := `DELETE FROM transactions WHERE card_purchase_id = $1 AND NOT is_confirmed`

	q := r.db.getQueryer(ctx)
	tag, err := q.Exec(ctx, query, purchaseID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete scheduled installments: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanPurchase(row pgx.Row) (*installment.CardPurchase, error) {
	var p installment.CardPurchase
	var totalStr, installmentStr, rateStr, withInterestStr string

	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.AccountID,
		&p.OriginalTransactionID,
		&totalStr,
		&p.Currency,
		&p.TotalInstallments,
		&installmentStr,
		&rateStr,
		&withInterestStr,
		&p.FirstInstallmentDate,
		&p.PurchaseDate,
		&p.CurrentInstallment,
		&p.Status,
		&p.Description,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("card purchase")
		}
		return nil, fmt.Errorf("failed to scan card purchase: %w", err)
	}

	for _, field := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&p.TotalAmount, totalStr},
		{&p.InstallmentAmount, installmentStr},
		{&p.InterestRate, rateStr},
		{&p.TotalWithInterest, withInterestStr},
	} {
		parsed, err := decimal.NewFromString(field.src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount: %w", err)
		}
		*field.dst = parsed
	}
	return &p, nil
}
