package currency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ebarrios/centavo/pkg/logger"
)

const (
	// rateFreshWindow is how far back a persisted rate still counts as recent
	// enough to serve without consulting the external provider.
	rateFreshWindow = 24 * time.Hour

	// referenceCurrency is the currency the external provider quotes against.
	// Conversions into the system base currency compose through it.
	referenceCurrency = "USD"

	// defaultDecimalPlaces applies when the target currency is not registered.
	defaultDecimalPlaces = int32(2)

	providerName = "exchangeratesapi"
)

var one = decimal.NewFromInt(1)

// Service resolves exchange rates through a layered fallback chain and
// performs audited amount conversions.
//
// Resolution order: cache, persisted rate within 24h, external provider,
// reciprocal of the reversed pair. The reciprocal is a derived approximation
// and is never cached or persisted.
type Service struct {
	store        Store
	cache        Cache
	source       RateSource
	baseCurrency string
	log          *logger.Logger
	now          func() time.Time
}

// NewService creates a new currency service
func NewService(store Store, cache Cache, source RateSource, baseCurrency string, log *logger.Logger) *Service {
	return &Service{
		store:        store,
		cache:        cache,
		source:       source,
		baseCurrency: baseCurrency,
		log:          log.WithField("component", "currency"),
		now:          time.Now,
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Resolve returns the rate expressing "1 unit of from equals rate units of to".
// It returns ErrRateUnavailable when every layer of the fallback chain fails;
// callers must not default to 1.
func (s *Service) Resolve(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		return one, nil
	}

	// Layer 1: cache (exact ordered pair, non-expired)
	if rate, found, err := s.cache.Get(ctx, from, to); err == nil && found {
		return rate, nil
	} else if err != nil {
		s.log.Warn("rate cache read failed", "from", from, "to", to, "error", err)
	}

	// Layer 2: persisted rate within the freshness window
	if r, err := s.store.LatestRate(ctx, from, to, s.now().Add(-rateFreshWindow)); err != nil {
		s.log.Warn("rate store read failed", "from", from, "to", to, "error", err)
	} else if r != nil {
		if err := s.cache.Set(ctx, from, to, r.Rate, r.Source); err != nil {
			s.log.Warn("rate cache write failed", "from", from, "to", to, "error", err)
		}
		return r.Rate, nil
	}

	// Layer 3: external provider, single attempt
	if rate, err := s.fetchFromProvider(ctx, from, to); err != nil {
		s.log.Warn("external rate fetch failed", "from", from, "to", to, "error", err)
	} else {
		s.persistRate(ctx, from, to, rate)
		if err := s.cache.Set(ctx, from, to, rate, SourceAPI); err != nil {
			s.log.Warn("rate cache write failed", "from", from, "to", to, "error", err)
		}
		return rate, nil
	}

	// Layer 4: reciprocal of the reversed pair, any age
	if r, err := s.store.LatestRate(ctx, to, from, time.Time{}); err != nil {
		s.log.Warn("inverse rate read failed", "from", from, "to", to, "error", err)
	} else if r != nil && r.Rate.IsPositive() {
		return one.Div(r.Rate), nil
	}

	s.log.Error("exchange rate unavailable", "from", from, "to", to)
	return decimal.Decimal{}, ErrRateUnavailable
}

// Convert converts amount from one currency to another, rounding half-up to
// the target currency's decimal precision, and appends one audit log entry
// per successful cross-currency conversion.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, from, to, convContext, actorID string) (decimal.Decimal, error) {
	places := s.decimalPlaces(ctx, to)

	// Same-currency conversions skip resolution and auditing but still round
	// to the target precision.
	if from == to {
		return amount.Round(places), nil
	}

	rate, err := s.Resolve(ctx, from, to)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("convert %s to %s: %w", from, to, err)
	}

	converted := amount.Mul(rate).Round(places)

	entry := &ConversionLog{
		ID:              uuid.New(),
		FromCode:        from,
		ToCode:          to,
		OriginalAmount:  amount,
		ConvertedAmount: converted,
		Rate:            rate,
		Source:          SourceAPI,
		Context:         convContext,
		ActorID:         actorID,
		CreatedAt:       s.now(),
	}
	if err := s.store.AppendConversionLog(ctx, entry); err != nil {
		// Audit failures are logged, not propagated: the conversion itself
		// succeeded and the log is write-only.
		s.log.Error("conversion audit log failed", "from", from, "to", to, "error", err)
	}

	return converted, nil
}

// RefreshResult reports the outcome of a bulk rate refresh.
type RefreshResult struct {
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

// RefreshAllRates fetches fresh rates between every active non-base currency
// and the base currency, in both directions. Meant to be driven by an
// out-of-process scheduler; per-currency failures do not abort the pass.
func (s *Service) RefreshAllRates(ctx context.Context) (*RefreshResult, error) {
	currencies, err := s.store.ListActiveCurrencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}

	result := &RefreshResult{}
	for _, c := range currencies {
		if c.Code == s.baseCurrency {
			continue
		}

		if rate, err := s.fetchFromProvider(ctx, c.Code, s.baseCurrency); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", c.Code, err))
		} else {
			s.persistRate(ctx, c.Code, s.baseCurrency, rate)
			result.Updated++
		}

		if rate, err := s.fetchFromProvider(ctx, s.baseCurrency, c.Code); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", c.Code, err))
		} else {
			s.persistRate(ctx, s.baseCurrency, c.Code, rate)
			result.Updated++
		}
	}

	s.log.Info("exchange rates refreshed", "updated", result.Updated, "errors", len(result.Errors))
	return result, nil
}

// fetchFromProvider queries the external source. The provider quotes against
// USD, so conversions into the base currency compose two quotes.
func (s *Service) fetchFromProvider(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if to == s.baseCurrency && from != referenceCurrency {
		refToBase, err := s.source.Fetch(ctx, referenceCurrency, s.baseCurrency)
		if err != nil {
			return decimal.Decimal{}, err
		}
		fromToRef, err := s.source.Fetch(ctx, from, referenceCurrency)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return fromToRef.Mul(refToBase), nil
	}

	return s.source.Fetch(ctx, from, to)
}

func (s *Service) persistRate(ctx context.Context, from, to string, rate decimal.Decimal) {
	r := &ExchangeRate{
		ID:       uuid.New(),
		FromCode: from,
		ToCode:   to,
		Rate:     rate,
		Date:     s.now(),
		Source:   SourceAPI,
		Provider: providerName,
	}
	if err := s.store.UpsertRate(ctx, r); err != nil {
		// Persisting an observed rate is best-effort: the resolved value is
		// still served to the caller.
		s.log.Error("rate persist failed", "from", from, "to", to, "error", err)
	}
}

// DecimalPlaces reports the registered precision for a currency code. Unknown
// codes fall back to 2, matching the converter's rounding behavior.
func (s *Service) DecimalPlaces(ctx context.Context, code string) int32 {
	return s.decimalPlaces(ctx, code)
}

func (s *Service) decimalPlaces(ctx context.Context, code string) int32 {
	c, err := s.store.GetCurrency(ctx, code)
	if err != nil || c == nil {
		return defaultDecimalPlaces
	}
	return c.DecimalPlaces
}
