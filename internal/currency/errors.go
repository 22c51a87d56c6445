package currency

import "errors"

var (
	ErrRateUnavailable      = errors.New("exchange rate unavailable")
	ErrInvalidCurrencyCode  = errors.New("invalid currency code")
	ErrInvalidDecimalPlaces = errors.New("decimal places cannot be negative")
	ErrNonPositiveRate      = errors.New("exchange rate must be positive")
)
