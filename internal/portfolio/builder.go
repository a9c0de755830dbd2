// Package portfolio builds point-in-time valuations of a user's holdings
// from the ledgers and current market quotes.
package portfolio

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"tradesim/internal/cash"
	"tradesim/internal/domain"
	"tradesim/internal/observability"
	"tradesim/internal/position"
	"tradesim/internal/storage"
)

// QuoteGetter returns best-effort quotes for a set of symbols. Individual
// symbols may come back with their Error flag set; the getter itself never
// fails.
type QuoteGetter interface {
	Quotes(ctx context.Context, symbols []string) []domain.Quote
}

// Builder assembles portfolio snapshots.
type Builder struct {
	trades    storage.TradeLedger
	movements storage.CashLedger
	quotes    QuoteGetter
	logger    *log.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// BuilderOption configures Builder.
type BuilderOption func(*Builder)

// WithLogger sets the builder logger.
func WithLogger(l *log.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *observability.Metrics) BuilderOption {
	return func(b *Builder) {
		b.metrics = m
	}
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

// NewBuilder creates a snapshot builder over the ledgers and a quote
// getter.
func NewBuilder(trades storage.TradeLedger, movements storage.CashLedger, quotes QuoteGetter, opts ...BuilderOption) *Builder {
	b := &Builder{
		trades:    trades,
		movements: movements,
		quotes:    quotes,
		logger:    log.New(io.Discard, "", 0),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Snapshot values a user's portfolio at the current quotes. Closed
// positions are dropped from holdings. A holding whose quote is missing or
// errored is valued at its average cost with LivePrice false — quote
// failures degrade per symbol and never fail the snapshot. Ledger failures
// propagate: no snapshot can be built without the ledgers.
func (b *Builder) Snapshot(ctx context.Context, userID string) (*domain.PortfolioSnapshot, error) {
	start := b.now()

	trades, err := b.trades.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read trade ledger: %w", err)
	}
	movements, err := b.movements.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read cash ledger: %w", err)
	}

	positions := position.Aggregate(trades)

	var symbols []string
	for symbol, p := range positions {
		if p.Open() {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)

	quotesBySymbol := make(map[string]domain.Quote, len(symbols))
	if len(symbols) > 0 {
		for _, q := range b.quotes.Quotes(ctx, symbols) {
			quotesBySymbol[q.Symbol] = q
		}
	}

	snapshot := &domain.PortfolioSnapshot{
		UserID:   userID,
		Holdings: make([]domain.Holding, 0, len(symbols)),
		AsOf:     b.now().UnixMilli(),
	}

	for _, symbol := range symbols {
		p := positions[symbol]
		h := domain.Holding{
			Symbol:  symbol,
			Shares:  p.Shares,
			AvgCost: p.AvgCost,
		}

		q, ok := quotesBySymbol[symbol]
		if ok && q.Usable() {
			h.MarketPrice = q.Price
			h.LivePrice = true
			h.Stale = q.Stale
		} else {
			// Degrade to cost basis rather than showing a hole.
			h.MarketPrice = p.AvgCost
			if b.metrics != nil {
				b.metrics.SnapshotFallbacks.Inc()
			}
			if ok && q.Error != "" {
				b.logger.Printf("snapshot %s: quote for %s unavailable, using cost basis: %s", userID, symbol, q.Error)
			}
		}

		h.UnrealizedPnL = (h.MarketPrice - h.AvgCost) * h.Shares
		h.Value = h.MarketPrice * h.Shares

		snapshot.Holdings = append(snapshot.Holdings, h)
		snapshot.TotalValue += h.Value
		snapshot.TotalProfitLoss += h.UnrealizedPnL
	}

	balance := cash.Balance(movements, trades)
	snapshot.AvailableCash = balance.AvailableCash
	snapshot.NetWorth = snapshot.TotalValue + snapshot.AvailableCash

	if b.metrics != nil {
		b.metrics.SnapshotsBuilt.Inc()
		b.metrics.SnapshotLatency.Observe(time.Since(start).Seconds())
	}

	return snapshot, nil
}
