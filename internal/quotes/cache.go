package quotes

import (
	"context"
	"sync"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/observability"
)

// Default cache configuration.
const (
	DefaultTTL          = 30 * time.Second
	DefaultFetchTimeout = 5 * time.Second
)

// cacheEntry is one stored quote. Entries are never swept: an expired
// entry stays until overwritten so it can be served stale when a refresh
// fails.
type cacheEntry struct {
	quote    domain.Quote
	storedAt time.Time
}

// Cache memoizes quotes from a Source with a short TTL. A fresh entry is
// served without touching the upstream; an expired entry is refreshed, and
// when the refresh fails the expired value is served tagged stale rather
// than propagating the error. Only a symbol with no stored value at all
// surfaces a fetch failure.
type Cache struct {
	source       Source
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	metrics      *observability.Metrics

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// CacheOption configures Cache.
type CacheOption func(*Cache)

// WithTTL sets the freshness window.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithFetchTimeout bounds each upstream fetch. A fetch exceeding the bound
// counts as a failure and falls through to stale serving.
func WithFetchTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.fetchTimeout = d
	}
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *observability.Metrics) CacheOption {
	return func(c *Cache) {
		c.metrics = m
	}
}

// NewCache creates a quote cache in front of source.
func NewCache(source Source, opts ...CacheOption) *Cache {
	c := &Cache{
		source:       source,
		ttl:          DefaultTTL,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
		entries:      make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached quote for symbol if it is still fresh.
func (c *Cache) Get(symbol string) (domain.Quote, bool) {
	symbol = domain.NormalizeSymbol(symbol)

	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[symbol]
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		return domain.Quote{}, false
	}
	q := e.quote
	q.FromCache = true
	return q, true
}

// Set stores a quote, overwriting any previous entry for the symbol.
func (c *Cache) Set(symbol string, q domain.Quote) {
	symbol = domain.NormalizeSymbol(symbol)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[symbol] = cacheEntry{quote: q, storedAt: c.now()}
}

// GetOrFetch returns a quote for symbol: fresh from cache, freshly
// fetched, or stale after a failed refresh. The error is non-nil only
// when the fetch failed and nothing was ever stored for the symbol.
func (c *Cache) GetOrFetch(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = domain.NormalizeSymbol(symbol)

	if q, ok := c.Get(symbol); ok {
		if c.metrics != nil {
			c.metrics.QuoteCacheHits.Inc()
		}
		return q, nil
	}
	if c.metrics != nil {
		c.metrics.QuoteCacheMisses.Inc()
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	start := c.now()
	fetched, err := c.source.Fetch(fetchCtx, symbol)
	if c.metrics != nil {
		c.metrics.QuoteFetchLatency.Observe(time.Since(start).Seconds())
	}
	if err == nil {
		c.Set(symbol, *fetched)
		return *fetched, nil
	}

	if c.metrics != nil {
		c.metrics.QuoteFetchErrors.Inc()
	}

	// Expired entries are retained for exactly this path.
	c.mu.RLock()
	e, ok := c.entries[symbol]
	c.mu.RUnlock()
	if ok {
		if c.metrics != nil {
			c.metrics.QuoteStaleServes.Inc()
		}
		q := e.quote
		q.Stale = true
		return q, nil
	}

	return domain.Quote{}, err
}

// Quotes fetches quotes for all symbols concurrently. Lookups are
// independent: a slow or failed symbol neither blocks nor fails the
// others. A symbol that could not be priced at all comes back with its
// Error field set instead of failing the batch.
func (c *Cache) Quotes(ctx context.Context, symbols []string) []domain.Quote {
	results := make([]domain.Quote, len(symbols))

	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			q, err := c.GetOrFetch(ctx, symbol)
			if err != nil {
				results[i] = domain.Quote{
					Symbol: domain.NormalizeSymbol(symbol),
					Error:  err.Error(),
				}
				return
			}
			results[i] = q
		}(i, symbol)
	}
	wg.Wait()

	return results
}
