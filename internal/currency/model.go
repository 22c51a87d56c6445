package currency

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rate source tags
const (
	SourceAPI    = "api"
	SourceManual = "manual"
)

// Currency is a money unit supported by the system, keyed by its ISO 4217 code.
// Exactly one currency carries IsBase across the whole system.
type Currency struct {
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Symbol        string    `json:"symbol"`
	DecimalPlaces int32     `json:"decimal_places"`
	IsActive      bool      `json:"is_active"`
	IsBase        bool      `json:"is_base"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Validate checks currency invariants
func (c *Currency) Validate() error {
	if len(c.Code) != 3 {
		return ErrInvalidCurrencyCode
	}
	if c.DecimalPlaces < 0 {
		return ErrInvalidDecimalPlaces
	}
	return nil
}

// ExchangeRate is an observed conversion rate: 1 FromCode = Rate ToCode.
// Rates are append-only facts; at most one per ordered pair per day.
type ExchangeRate struct {
	ID        uuid.UUID       `json:"id"`
	FromCode  string          `json:"from_currency"`
	ToCode    string          `json:"to_currency"`
	Rate      decimal.Decimal `json:"rate"`
	Date      time.Time       `json:"date"`
	Source    string          `json:"source"`
	Provider  string          `json:"provider"`
	CreatedAt time.Time       `json:"created_at"`
}

// Validate checks exchange rate invariants
func (r *ExchangeRate) Validate() error {
	if len(r.FromCode) != 3 || len(r.ToCode) != 3 {
		return ErrInvalidCurrencyCode
	}
	if !r.Rate.IsPositive() {
		return ErrNonPositiveRate
	}
	return nil
}

// ConversionLog is an immutable audit record of one performed conversion.
// It is write-only: nothing in the business logic reads it back.
type ConversionLog struct {
	ID              uuid.UUID       `json:"id"`
	FromCode        string          `json:"from_currency"`
	ToCode          string          `json:"to_currency"`
	OriginalAmount  decimal.Decimal `json:"original_amount"`
	ConvertedAmount decimal.Decimal `json:"converted_amount"`
	Rate            decimal.Decimal `json:"exchange_rate"`
	Source          string          `json:"source"`
	Context         string          `json:"context"`
	ActorID         string          `json:"actor_id"`
	CreatedAt       time.Time       `json:"created_at"`
}
