package clickhouse

import (
	"context"
	"fmt"

	"tradesim/internal/domain"
	"tradesim/internal/storage"
)

// TradeHistoryStore implements storage.TradeMirror using ClickHouse. It
// is the analytics-side projection of the primary trade ledger: writes
// arrive best-effort from the trading engine and duplicates are absorbed
// by the ReplacingMergeTree key, so an at-least-once writer needs no
// duplicate handling here.
type TradeHistoryStore struct {
	conn *Conn
}

// NewTradeHistoryStore creates a new TradeHistoryStore.
func NewTradeHistoryStore(conn *Conn) *TradeHistoryStore {
	return &TradeHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeMirror = (*TradeHistoryStore)(nil)

// Mirror appends a trade to the history projection.
func (s *TradeHistoryStore) Mirror(ctx context.Context, t *domain.Trade) error {
	query := `
		INSERT INTO trade_history (
			trade_id, user_id, symbol, side, quantity, price, notional, status, created_at
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?, ?
		)
	`

	err := s.conn.Exec(ctx, query,
		t.ID, t.UserID, t.Symbol, string(t.Side), t.Quantity, t.Price, t.Notional(), t.Status, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("mirror trade: %w", err)
	}
	return nil
}

// The projection is queried directly by analytics tooling; no read path
// is served through the application.
