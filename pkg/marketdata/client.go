// Package marketdata is a typed client for the market-data/analysis
// service: symbol search, historical series with indicators, and strategy
// backtests.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is where the service listens by default.
const DefaultBaseURL = "http://localhost:8000"

// Client issues requests to the service. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the underlying HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit caps outgoing requests at perSec with the given burst.
// A non-positive perSec disables limiting.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *Client) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Search looks up instruments matching query. Queries shorter than
// MinQueryLen are rejected locally.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	if !ValidQuery(query) {
		return nil, &ValidationError{Field: "query", Value: query, Reason: fmt.Sprintf("needs at least %d characters", MinQueryLen)}
	}
	q := url.Values{}
	q.Set("query", strings.TrimSpace(query))

	var results []SearchResult
	if err := c.do(ctx, http.MethodGet, "/api/search", q, "search", &results); err != nil {
		return nil, err
	}
	return results, nil
}

// History fetches the series for symbol over period, ascending by time.
// An unknown symbol yields an empty series and no error.
func (c *Client) History(ctx context.Context, symbol string, period Period) ([]PricePoint, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, &ValidationError{Field: "symbol", Reason: "empty"}
	}
	if !period.Valid() {
		return nil, &ValidationError{Field: "period", Value: string(period), Reason: "unsupported"}
	}
	q := url.Values{}
	q.Set("period", string(period))

	var points []PricePoint
	err := c.do(ctx, http.MethodGet, "/api/data/"+url.PathEscape(symbol), q, "history", &points)
	if err != nil {
		var se *ServiceError
		if errors.As(err, &se) && se.NotFound() {
			return []PricePoint{}, nil
		}
		return nil, err
	}
	SortSeries(points)
	return points, nil
}

// Backtest runs the server-side strategy for symbol with initialCapital.
func (c *Client) Backtest(ctx context.Context, symbol string, initialCapital float64) (*BacktestResult, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, &ValidationError{Field: "symbol", Reason: "empty"}
	}
	if err := ValidateCapital(initialCapital); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("initial_capital", strconv.FormatFloat(initialCapital, 'f', -1, 64))

	var res BacktestResult
	if err := c.do(ctx, http.MethodPost, "/api/backtest", q, "backtest", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Ping checks that the service root answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/", nil, "ping", nil)
}

// WaitReady pings the service with exponential backoff until it answers,
// maxWait elapses, or ctx is done.
func (c *Client) WaitReady(ctx context.Context, maxWait time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxElapsedTime = maxWait

	attempt := 0
	op := func() error {
		attempt++
		err := c.Ping(ctx)
		if err != nil {
			c.log.Debug("service not ready", "attempt", attempt, "error", err)
			var ve *ValidationError
			if errors.As(err, &ve) {
				return backoff.Permanent(err)
			}
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

// ValidateCapital rejects non-positive and non-finite amounts.
func ValidateCapital(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{Field: "initial_capital", Value: strconv.FormatFloat(v, 'f', -1, 64), Reason: "must be a finite number"}
	}
	if v <= 0 {
		return &ValidationError{Field: "initial_capital", Value: strconv.FormatFloat(v, 'f', -1, 64), Reason: "must be positive"}
	}
	return nil
}

// ParseCapital parses user input such as "10000", "10,000" or "$2500.50".
func ParseCapital(s string) (float64, error) {
	clean := strings.NewReplacer(",", "", "$", "", "_", "").Replace(strings.TrimSpace(s))
	if clean == "" {
		return 0, &ValidationError{Field: "initial_capital", Reason: "empty"}
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, &ValidationError{Field: "initial_capital", Value: s, Reason: "not a number"}
	}
	if err := ValidateCapital(v); err != nil {
		return 0, err
	}
	return v, nil
}

// do issues one request and decodes a JSON body into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, op string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &NetworkError{Op: op, Err: err}
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("request failed", "op", op, "url", u, "error", err)
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug("request", "op", op, "method", method, "url", u,
		"status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServiceError{Op: op, StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ServiceError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// readDetail extracts the {"detail": ...} message of an error body, falling
// back to the raw text.
func readDetail(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(body) == 0 {
		return ""
	}
	var e struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &e) == nil && len(e.Detail) > 0 {
		var s string
		if json.Unmarshal(e.Detail, &s) == nil {
			return s
		}
		return string(e.Detail)
	}
	return strings.TrimSpace(string(body))
}
