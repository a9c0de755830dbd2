// Package quotes fetches market quotes and memoizes them behind a
// short-TTL cache so that upstream rate limits never translate into hard
// failures for callers that tolerate a few seconds of staleness.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"tradesim/internal/domain"
)

// Source returns a best-effort current quote for one symbol.
type Source interface {
	Fetch(ctx context.Context, symbol string) (*domain.Quote, error)
}

// Errors returned by the HTTP source.
var (
	ErrNoResult    = errors.New("quote source: no result for symbol")
	ErrRateLimited = errors.New("quote source: rate limited")
)

// Default configuration values.
const (
	DefaultTimeout   = 8 * time.Second
	defaultUserAgent = "tradesim/1.0"
)

// HTTPSource implements Source against a chart-style quote endpoint
// (price, previous close, day high/low per symbol).
type HTTPSource struct {
	baseURL   string
	client    *http.Client
	userAgent string
}

// SourceOption configures HTTPSource.
type SourceOption func(*HTTPSource)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) SourceOption {
	return func(s *HTTPSource) {
		s.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) SourceOption {
	return func(s *HTTPSource) {
		s.client = client
	}
}

// WithUserAgent sets the User-Agent header sent upstream.
func WithUserAgent(ua string) SourceOption {
	return func(s *HTTPSource) {
		s.userAgent = ua
	}
}

// NewHTTPSource creates a quote source against baseURL. The symbol is
// appended as the final path segment of each request.
func NewHTTPSource(baseURL string, opts ...SourceOption) *HTTPSource {
	s := &HTTPSource{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Source = (*HTTPSource)(nil)

// chartResponse mirrors the provider's chart payload. Only the meta block
// is used; the close series is a fallback when meta carries no price.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice   float64 `json:"regularMarketPrice"`
				RegularMarketTime    int64   `json:"regularMarketTime"`
				RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
				ChartPreviousClose   float64 `json:"chartPreviousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"chart"`
}

// Fetch retrieves the current quote for symbol. An HTTP 429 maps to
// ErrRateLimited so the cache can distinguish throttling from a dead
// upstream; both fall through to stale serving anyway.
func (s *HTTPSource) Fetch(ctx context.Context, symbol string) (*domain.Quote, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, ErrNoResult
	}

	endpoint := fmt.Sprintf("%s/%s?interval=1m&range=1d", s.baseURL, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build quote request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch quote %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch quote %s: http %d", symbol, resp.StatusCode)
	}

	var raw chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode quote %s: %w", symbol, err)
	}
	if len(raw.Chart.Result) == 0 {
		return nil, ErrNoResult
	}

	r := raw.Chart.Result[0]
	price := r.Meta.RegularMarketPrice
	asOf := r.Meta.RegularMarketTime * 1000

	// Fallback: last non-zero close when meta carries no price.
	if price <= 0 && len(r.Timestamp) > 0 && len(r.Indicators.Quote) > 0 &&
		len(r.Indicators.Quote[0].Close) == len(r.Timestamp) {
		for i := len(r.Timestamp) - 1; i >= 0; i-- {
			if c := r.Indicators.Quote[0].Close[i]; c > 0 {
				price = c
				asOf = r.Timestamp[i] * 1000
				break
			}
		}
	}
	if price <= 0 {
		return nil, ErrNoResult
	}
	if asOf <= 0 {
		asOf = time.Now().UnixMilli()
	}

	var pctChange float64
	if r.Meta.ChartPreviousClose > 0 {
		pctChange = (price - r.Meta.ChartPreviousClose) / r.Meta.ChartPreviousClose * 100
	}

	return &domain.Quote{
		Symbol:        symbol,
		Price:         price,
		PercentChange: pctChange,
		DayHigh:       r.Meta.RegularMarketDayHigh,
		DayLow:        r.Meta.RegularMarketDayLow,
		AsOf:          asOf,
	}, nil
}
