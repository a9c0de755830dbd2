package memory

import (
	"context"
	"sort"
	"sync"

	"tradesim/internal/domain"
	"tradesim/internal/storage"
)

// tradeEntry pairs a stored trade with its insertion sequence number.
type tradeEntry struct {
	trade *domain.Trade
	seq   uint64
}

// TradeLedger is an in-memory implementation of storage.TradeLedger.
type TradeLedger struct {
	mu   sync.RWMutex
	seq  uint64
	data map[string]tradeEntry // keyed by trade ID
}

// NewTradeLedger creates a new in-memory trade ledger.
func NewTradeLedger() *TradeLedger {
	return &TradeLedger{
		data: make(map[string]tradeEntry),
	}
}

var _ storage.TradeLedger = (*TradeLedger)(nil)

// Append adds a new trade. Returns ErrDuplicateKey if the trade ID exists.
func (l *TradeLedger) Append(_ context.Context, t *domain.Trade) error {
	if t == nil || t.ID == "" || t.UserID == "" || t.Symbol == "" {
		return storage.ErrInvalidInput
	}
	if !domain.ValidSide(t.Side) || t.Quantity <= 0 || t.Price <= 0 {
		return storage.ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.data[t.ID]; exists {
		return storage.ErrDuplicateKey
	}

	tradeCopy := *t
	l.seq++
	l.data[t.ID] = tradeEntry{trade: &tradeCopy, seq: l.seq}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (l *TradeLedger) GetByID(_ context.Context, tradeID string) (*domain.Trade, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, exists := l.data[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	tradeCopy := *e.trade
	return &tradeCopy, nil
}

// ListByUser retrieves all trades for a user, ordered by CreatedAt ASC,
// append order as tiebreaker.
func (l *TradeLedger) ListByUser(_ context.Context, userID string) ([]*domain.Trade, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var entries []tradeEntry
	for _, e := range l.data {
		if e.trade.UserID == userID {
			entries = append(entries, e)
		}
	}

	return sortedTradeCopies(entries), nil
}

// ListByUserSymbol retrieves a user's trades for one symbol, ordered by
// CreatedAt ASC, append order as tiebreaker.
func (l *TradeLedger) ListByUserSymbol(_ context.Context, userID, symbol string) ([]*domain.Trade, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var entries []tradeEntry
	for _, e := range l.data {
		if e.trade.UserID == userID && e.trade.Symbol == symbol {
			entries = append(entries, e)
		}
	}

	return sortedTradeCopies(entries), nil
}

// sortedTradeCopies orders entries by CreatedAt ASC, breaking timestamp
// ties by insertion sequence so retrieval preserves append order. The
// position fold over the result is order-dependent, and same-ms trades
// must come back in the order they were committed.
func sortedTradeCopies(entries []tradeEntry) []*domain.Trade {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].trade.CreatedAt != entries[j].trade.CreatedAt {
			return entries[i].trade.CreatedAt < entries[j].trade.CreatedAt
		}
		return entries[i].seq < entries[j].seq
	})

	result := make([]*domain.Trade, 0, len(entries))
	for _, e := range entries {
		tradeCopy := *e.trade
		result = append(result, &tradeCopy)
	}
	return result
}
