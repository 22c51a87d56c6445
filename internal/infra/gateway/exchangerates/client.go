package exchangerates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ebarrios/centavo/pkg/logger"
)

const (
	defaultBaseURL = "https://api.exchangeratesapi.io/v1/"
	requestTimeout = 10 * time.Second
)

// Client is an HTTP client for the exchangeratesapi.io REST API. Rate lookups
// are single-attempt: a failed call is a failed resolution layer, not
// something to retry.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger
}

// NewClient creates a new exchange rates API client
func NewClient(apiKey string, log *logger.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		baseURL: defaultBaseURL,
		logger:  log.WithField("component", "exchangerates"),
	}
}

// SetBaseURL overrides the default base URL (useful for testing)
func (c *Client) SetBaseURL(u string) {
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	c.baseURL = u
}

// latestResponse is the provider's /latest payload
type latestResponse struct {
	Success bool                   `json:"success"`
	Rates   map[string]json.Number `json:"rates"`
	Error   struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// Fetch returns the rate expressing "1 from equals rate to", queried from the
// provider's latest quotes.
func (c *Client) Fetch(ctx context.Context, from, to string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("access_key", c.apiKey)
	params.Set("base", from)
	params.Set("symbols", to)
	reqURL := c.baseURL + "latest?" + params.Encode()

	c.logger.Debug("rate request", "from", from, "to", to)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body))
	}

	var payload latestResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if !payload.Success {
		return decimal.Decimal{}, fmt.Errorf("provider error %s: %s", payload.Error.Code, payload.Error.Info)
	}

	raw, ok := payload.Rates[to]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("rate for %s missing from response", to)
	}

	rate, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse rate %q: %w", raw.String(), err)
	}
	if !rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("provider returned non-positive rate %s", rate)
	}

	c.logger.Debug("rate response",
		"from", from,
		"to", to,
		"rate", rate,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rate, nil
}

func truncate(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
