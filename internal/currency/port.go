package currency

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the persistence port for currencies, exchange rate history and
// the conversion audit log. Rate history is append-only.
type Store interface {
	// LatestRate returns the most recent rate for the ordered pair dated at or
	// after since, or nil when none exists. A zero since means any age.
	LatestRate(ctx context.Context, from, to string, since time.Time) (*ExchangeRate, error)

	// UpsertRate persists a rate keyed by (from, to, day). Racing writers for
	// the same pair and day are tolerated: last write wins.
	UpsertRate(ctx context.Context, rate *ExchangeRate) error

	GetCurrency(ctx context.Context, code string) (*Currency, error)
	ListActiveCurrencies(ctx context.Context) ([]*Currency, error)

	AppendConversionLog(ctx context.Context, entry *ConversionLog) error
}

// Cache is the ephemeral rate cache port. Entries expire; the cache is never
// authoritative and may be dropped at any time.
type Cache interface {
	Get(ctx context.Context, from, to string) (decimal.Decimal, bool, error)
	Set(ctx context.Context, from, to string, rate decimal.Decimal, source string) error
}

// RateSource is the external rate provider port. It is unreliable: callers
// treat any error as a failed attempt and fall through the resolution chain.
type RateSource interface {
	Fetch(ctx context.Context, from, to string) (decimal.Decimal, error)
}
