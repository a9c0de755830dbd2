package quotes

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tradesim/internal/domain"
)

// stubSource returns canned quotes or errors per symbol and counts calls.
type stubSource struct {
	mu     sync.Mutex
	quotes map[string]*domain.Quote
	errs   map[string]error
	calls  map[string]int
	delay  time.Duration
}

func newStubSource() *stubSource {
	return &stubSource{
		quotes: make(map[string]*domain.Quote),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (s *stubSource) Fetch(ctx context.Context, symbol string) (*domain.Quote, error) {
	s.mu.Lock()
	s.calls[symbol]++
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errs[symbol]; ok {
		return nil, err
	}
	if q, ok := s.quotes[symbol]; ok {
		quoteCopy := *q
		return &quoteCopy, nil
	}
	return nil, ErrNoResult
}

func (s *stubSource) callCount(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[symbol]
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCache_FreshHitSkipsSource(t *testing.T) {
	source := newStubSource()
	source.quotes["AAPL"] = &domain.Quote{Symbol: "AAPL", Price: 150}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := NewCache(source, WithTTL(30*time.Second), WithClock(clock.Now))

	q, err := cache.GetOrFetch(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("first GetOrFetch failed: %v", err)
	}
	if q.FromCache {
		t.Error("first fetch should not be tagged fromCache")
	}

	clock.Advance(10 * time.Second)
	q, err = cache.GetOrFetch(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("second GetOrFetch failed: %v", err)
	}
	if !q.FromCache {
		t.Error("expected fresh cache hit")
	}
	if got := source.callCount("AAPL"); got != 1 {
		t.Errorf("source called %d times, want 1", got)
	}
}

func TestCache_ExpiredEntryRefetches(t *testing.T) {
	source := newStubSource()
	source.quotes["AAPL"] = &domain.Quote{Symbol: "AAPL", Price: 150}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := NewCache(source, WithTTL(30*time.Second), WithClock(clock.Now))

	if _, err := cache.GetOrFetch(context.Background(), "AAPL"); err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}

	clock.Advance(31 * time.Second)
	source.quotes["AAPL"] = &domain.Quote{Symbol: "AAPL", Price: 160}

	q, err := cache.GetOrFetch(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetOrFetch after expiry failed: %v", err)
	}
	if q.Price != 160 || q.FromCache || q.Stale {
		t.Errorf("expected fresh refetch at 160, got %+v", q)
	}
	if got := source.callCount("AAPL"); got != 2 {
		t.Errorf("source called %d times, want 2", got)
	}
}

func TestCache_StaleServedOnRefreshFailure(t *testing.T) {
	source := newStubSource()
	source.quotes["AAPL"] = &domain.Quote{Symbol: "AAPL", Price: 150}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := NewCache(source, WithTTL(30*time.Second), WithClock(clock.Now))

	if _, err := cache.GetOrFetch(context.Background(), "AAPL"); err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}

	clock.Advance(time.Minute)
	source.errs["AAPL"] = ErrRateLimited

	q, err := cache.GetOrFetch(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("expected stale serve, got error: %v", err)
	}
	if !q.Stale {
		t.Error("expected quote tagged stale")
	}
	if q.Price != 150 {
		t.Errorf("stale price: got %f, want 150", q.Price)
	}
}

func TestCache_FailureWithNoStoredValuePropagates(t *testing.T) {
	source := newStubSource()
	source.errs["AAPL"] = errors.New("upstream down")
	cache := NewCache(source)

	_, err := cache.GetOrFetch(context.Background(), "AAPL")
	if err == nil {
		t.Fatal("expected error for never-cached symbol")
	}
}

func TestCache_FetchTimeoutFallsThroughToStale(t *testing.T) {
	source := newStubSource()
	source.quotes["AAPL"] = &domain.Quote{Symbol: "AAPL", Price: 150}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cache := NewCache(source,
		WithTTL(30*time.Second),
		WithFetchTimeout(20*time.Millisecond),
		WithClock(clock.Now))

	if _, err := cache.GetOrFetch(context.Background(), "AAPL"); err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}

	clock.Advance(time.Minute)
	source.mu.Lock()
	source.delay = 200 * time.Millisecond
	source.mu.Unlock()

	start := time.Now()
	q, err := cache.GetOrFetch(context.Background(), "AAPL")
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("expected stale serve after timeout, got %v", err)
	}
	if !q.Stale {
		t.Error("expected quote tagged stale")
	}
	if elapsed > 150*time.Millisecond {
		t.Errorf("fetch not bounded by timeout: took %v", elapsed)
	}
}

func TestCache_SymbolNormalization(t *testing.T) {
	source := newStubSource()
	source.quotes["AAPL"] = &domain.Quote{Symbol: "AAPL", Price: 150}
	cache := NewCache(source)

	if _, err := cache.GetOrFetch(context.Background(), " aapl "); err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}
	if q, ok := cache.Get("AAPL"); !ok || q.Price != 150 {
		t.Errorf("expected normalized key hit, got ok=%v q=%+v", ok, q)
	}
}

func TestQuotes_IndependentPerSymbolFallback(t *testing.T) {
	source := newStubSource()
	source.quotes["AAPL"] = &domain.Quote{Symbol: "AAPL", Price: 150}
	source.quotes["AMD"] = &domain.Quote{Symbol: "AMD", Price: 60}
	source.errs["TSLA"] = errors.New("upstream down")
	cache := NewCache(source)

	results := cache.Quotes(context.Background(), []string{"AAPL", "TSLA", "AMD"})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if results[0].Error != "" || results[0].Price != 150 {
		t.Errorf("AAPL: %+v", results[0])
	}
	if results[1].Error == "" {
		t.Error("TSLA: expected error flag, got none")
	}
	if results[2].Error != "" || results[2].Price != 60 {
		t.Errorf("AMD: %+v", results[2])
	}
}

func TestQuotes_SlowSymbolDoesNotBlockOthersBeyondTimeout(t *testing.T) {
	source := newStubSource()
	source.quotes["AAPL"] = &domain.Quote{Symbol: "AAPL", Price: 150}
	source.quotes["AMD"] = &domain.Quote{Symbol: "AMD", Price: 60}
	source.delay = 300 * time.Millisecond
	cache := NewCache(source, WithFetchTimeout(50*time.Millisecond))

	start := time.Now()
	results := cache.Quotes(context.Background(), []string{"AAPL", "AMD"})
	elapsed := time.Since(start)

	// Both hit the timeout concurrently, so the batch is bounded by one
	// timeout, not the sum.
	if elapsed > 250*time.Millisecond {
		t.Errorf("batch took %v, expected concurrent fan-out", elapsed)
	}
	for _, q := range results {
		if q.Error == "" {
			t.Errorf("%s: expected timeout error, got %+v", q.Symbol, q)
		}
	}
}
