package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ebarrios/centavo/internal/currency"
	apperrors "github.com/ebarrios/centavo/internal/shared/errors"
)

// CurrencyRepository implements currency.Store using PostgreSQL
type CurrencyRepository struct {
	db *DB
}

// NewCurrencyRepository creates a new PostgreSQL currency repository
func NewCurrencyRepository(db *DB) *CurrencyRepository {
	return &CurrencyRepository{db: db}
}

// LatestRate returns the most recent rate for the ordered pair dated at or
// after since, or nil when none exists. Rates are keyed by day, so since is
// compared at day granularity: a rate dated yesterday is still inside a
// 24-hour window that started yesterday afternoon.
func (r *CurrencyRepository) LatestRate(ctx context.Context, from, to string, since time.Time) (*currency.ExchangeRate, error) {
	query := `
		SELECT id, from_code, to_code, rate::text, date, source, provider, created_at
		FROM exchange_rates
		WHERE from_code = $1 AND to_code = $2 AND date >= $3::date
		ORDER BY date DESC, created_at DESC
		LIMIT 1
	`
	var rate currency.ExchangeRate
	var rateStr string

	q := r.db.getQueryer(ctx)
	err := q.QueryRow(ctx, query, from, to, since).Scan(
		&rate.ID,
		&rate.FromCode,
		&rate.ToCode,
		&rateStr,
		&rate.Date,
		&rate.Source,
		&rate.Provider,
		&rate.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get exchange rate: %w", err)
	}

	parsed, err := decimal.NewFromString(rateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate: %w", err)
	}
	rate.Rate = parsed
	return &rate, nil
}

// UpsertRate persists a rate keyed by (from, to, day). Racing writers for the
// same pair and day overwrite each other: last write wins.
func (r *CurrencyRepository) UpsertRate(ctx context.Context, rate *currency.ExchangeRate) error {
	if err := rate.Validate(); err != nil {
		return fmt.Errorf("invalid exchange rate: %w", err)
	}

	query := `
		INSERT INTO exchange_rates (id, from_code, to_code, rate, date, source, provider, created_at)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, now())
		ON CONFLICT (from_code, to_code, date)
		DO UPDATE SET rate = EXCLUDED.rate, source = EXCLUDED.source, provider = EXCLUDED.provider
	`
	q := r.db.getQueryer(ctx)
	_, err := q.Exec(ctx, query,
		rate.ID,
		rate.FromCode,
		rate.ToCode,
		rate.Rate.String(),
		rate.Date,
		rate.Source,
		rate.Provider,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert exchange rate: %w", err)
	}
	return nil
}

// GetCurrency retrieves a currency by code
func (r *CurrencyRepository) GetCurrency(ctx context.Context, code string) (*currency.Currency, error) {
	query := `
		SELECT code, name, symbol, decimal_places, is_active, is_base, created_at, updated_at
		FROM currencies
		WHERE code = $1
	`
	var c currency.Currency
	q := r.db.getQueryer(ctx)
	err := q.QueryRow(ctx, query, code).Scan(
		&c.Code,
		&c.Name,
		&c.Symbol,
		&c.DecimalPlaces,
		&c.IsActive,
		&c.IsBase,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("currency")
		}
		return nil, fmt.Errorf("failed to get currency: %w", err)
	}
	return &c, nil
}

// ListActiveCurrencies retrieves all active currencies
func (r *CurrencyRepository) ListActiveCurrencies(ctx context.Context) ([]*currency.Currency, error) {
	query := `
		SELECT code, name, symbol, decimal_places, is_active, is_base, created_at, updated_at
		FROM currencies
		WHERE is_active
		ORDER BY code ASC
	`
	q := r.db.getQueryer(ctx)
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query currencies: %w", err)
	}
	defer rows.Close()

	var currencies []*currency.Currency
	for rows.Next() {
		var c currency.Currency
		err := rows.Scan(
			&c.Code,
			&c.Name,
			&c.Symbol,
			&c.DecimalPlaces,
			&c.IsActive,
			&c.IsBase,
			&c.CreatedAt,
			&c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan currency: %w", err)
		}
		currencies = append(currencies, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating currencies: %w", err)
	}
	return currencies, nil
}

// AppendConversionLog writes one audit record. The log is append-only.
func (r *CurrencyRepository) AppendConversionLog(ctx context.Context, entry *currency.ConversionLog) error {
	query := `
		INSERT INTO conversion_logs (id, from_code, to_code, original_amount, converted_amount, rate, source, context, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	q := r.db.getQueryer(ctx)
	_, err := q.Exec(ctx, query,
		entry.ID,
		entry.FromCode,
		entry.ToCode,
		entry.OriginalAmount.String(),
		entry.ConvertedAmount.String(),
		entry.Rate.String(),
		entry.Source,
		entry.Context,
		entry.ActorID,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append conversion log: %w", err)
	}
	return nil
}
