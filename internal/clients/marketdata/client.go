// Package marketdata provides a client for the hosted market-data API
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/folioapp/folio/internal/apperrors"
	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/interfaces"
	"github.com/folioapp/folio/internal/models"
)

const (
	DefaultBaseURL   = "https://data.folio.app/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second

	maxAttempts      = 3
	retryBaseBackoff = 250 * time.Millisecond
)

// Client implements the MarketDataClient interface
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new market-data client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an upstream API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market-data API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET with bounded retries. All endpoints here
// are idempotent reads, so transport failures and 5xx/429 responses are
// retried with exponential backoff before surfacing ErrUpstreamUnavailable.
// 4xx responses are final.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	if c.apiKey != "" {
		params.Set("api_token", c.apiKey)
	}
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := retryBaseBackoff << (attempt - 2)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", apperrors.ErrUpstreamUnavailable, ctx.Err())
			case <-time.After(backoff):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		c.logger.Debug().Str("url", c.baseURL+path).Int("attempt", attempt).Msg("Market-data API request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			apiErr := &APIError{
				StatusCode: resp.StatusCode,
				Message:    strings.TrimSpace(string(body)),
				Endpoint:   path,
			}
			if resp.StatusCode == http.StatusNotFound {
				return fmt.Errorf("%w: %v", apperrors.ErrNotFound, apiErr)
			}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				lastErr = apiErr
				continue
			}
			return apiErr
		}

		err = json.NewDecoder(resp.Body).Decode(result)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", apperrors.ErrUpstreamUnavailable, lastErr)
	}
	return fmt.Errorf("%w: %s failed after %d attempts: %v", apperrors.ErrUpstreamUnavailable, path, maxAttempts, lastErr)
}

// Snapshot retrieves the current quote for one symbol.
func (c *Client) Snapshot(ctx context.Context, symbol string) (*models.Snapshot, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", apperrors.ErrValidation)
	}

	var snap models.Snapshot
	if err := c.get(ctx, fmt.Sprintf("/snapshot/%s", url.PathEscape(symbol)), nil, &snap); err != nil {
		return nil, err
	}
	if snap.Symbol == "" {
		snap.Symbol = symbol
	}
	return &snap, nil
}

// Compare retrieves aligned close-price histories for up to a handful of
// symbols, for side-by-side charting.
func (c *Client) Compare(ctx context.Context, symbols []string) ([]models.ComparisonSeries, error) {
	cleaned := cleanSymbols(symbols)
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: at least one symbol is required", apperrors.ErrValidation)
	}

	params := url.Values{}
	params.Set("symbols", strings.Join(cleaned, ","))

	var series []models.ComparisonSeries
	if err := c.get(ctx, "/compare", params, &series); err != nil {
		return nil, err
	}
	return series, nil
}

// Analytics retrieves per-symbol risk and return figures.
func (c *Client) Analytics(ctx context.Context, symbols []string) (*models.Analytics, error) {
	cleaned := cleanSymbols(symbols)
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: at least one symbol is required", apperrors.ErrValidation)
	}

	params := url.Values{}
	params.Set("symbols", strings.Join(cleaned, ","))

	var analytics models.Analytics
	if err := c.get(ctx, "/analytics", params, &analytics); err != nil {
		return nil, err
	}
	return &analytics, nil
}

// cleanSymbols upper-cases, trims, and drops empty entries.
func cleanSymbols(symbols []string) []string {
	var out []string
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Ensure Client implements MarketDataClient
var _ interfaces.MarketDataClient = (*Client)(nil)
