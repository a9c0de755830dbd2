package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tradesim/internal/domain"
	"tradesim/internal/observability"
	"tradesim/internal/storage"
)

// TradeLedger implements storage.TradeLedger using PostgreSQL.
type TradeLedger struct {
	pool    *Pool
	metrics *observability.Metrics
}

// TradeLedgerOption configures TradeLedger.
type TradeLedgerOption func(*TradeLedger)

// WithTradeLedgerMetrics attaches Prometheus query metrics.
func WithTradeLedgerMetrics(m *observability.Metrics) TradeLedgerOption {
	return func(l *TradeLedger) {
		l.metrics = m
	}
}

// NewTradeLedger creates a new TradeLedger.
func NewTradeLedger(pool *Pool, opts ...TradeLedgerOption) *TradeLedger {
	l := &TradeLedger{pool: pool}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *TradeLedger) observe(op string, start time.Time, err error) {
	if l.metrics == nil {
		return
	}
	l.metrics.LedgerQueryDuration.WithLabelValues("trades", op).Observe(time.Since(start).Seconds())
	if err != nil {
		l.metrics.LedgerQueryErrors.WithLabelValues("trades", op).Inc()
	}
}

// Compile-time interface check.
var _ storage.TradeLedger = (*TradeLedger)(nil)

// Append adds a new trade. Returns ErrDuplicateKey if the trade ID exists.
func (l *TradeLedger) Append(ctx context.Context, t *domain.Trade) error {
	if t == nil || t.ID == "" || t.UserID == "" || t.Symbol == "" {
		return storage.ErrInvalidInput
	}
	if !domain.ValidSide(t.Side) || t.Quantity <= 0 || t.Price <= 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trades (
			trade_id, user_id, symbol, side, quantity, price, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	start := time.Now()
	_, err := l.pool.Exec(ctx, query,
		t.ID, t.UserID, t.Symbol, string(t.Side), t.Quantity, t.Price, t.Status, t.CreatedAt,
	)
	l.observe("append", start, err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isCheckViolationError(err) {
			return storage.ErrInvalidInput
		}
		return fmt.Errorf("append trade: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (l *TradeLedger) GetByID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	query := `
		SELECT trade_id, user_id, symbol, side, quantity, price, status, created_at
		FROM trades
		WHERE trade_id = $1
	`

	start := time.Now()
	row := l.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTrade(row)
	if isNotFoundError(err) {
		// A miss is a successful query, not a ledger failure.
		l.observe("get_by_id", start, nil)
	} else {
		l.observe("get_by_id", start, err)
	}
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// ListByUser retrieves all trades for a user, ordered by created_at ASC
// with the insert-order seq column breaking same-millisecond ties, so
// retrieval preserves append order.
func (l *TradeLedger) ListByUser(ctx context.Context, userID string) ([]*domain.Trade, error) {
	query := `
		SELECT trade_id, user_id, symbol, side, quantity, price, status, created_at
		FROM trades
		WHERE user_id = $1
		ORDER BY created_at ASC, seq ASC
	`

	start := time.Now()
	rows, err := l.pool.Query(ctx, query, userID)
	l.observe("list_by_user", start, err)
	if err != nil {
		return nil, fmt.Errorf("list trades by user: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// ListByUserSymbol retrieves a user's trades for one symbol, ordered by
// created_at ASC, seq ASC.
func (l *TradeLedger) ListByUserSymbol(ctx context.Context, userID, symbol string) ([]*domain.Trade, error) {
	query := `
		SELECT trade_id, user_id, symbol, side, quantity, price, status, created_at
		FROM trades
		WHERE user_id = $1 AND symbol = $2
		ORDER BY created_at ASC, seq ASC
	`

	start := time.Now()
	rows, err := l.pool.Query(ctx, query, userID, symbol)
	l.observe("list_by_user_symbol", start, err)
	if err != nil {
		return nil, fmt.Errorf("list trades by user/symbol: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade
	var side string

	err := row.Scan(&t.ID, &t.UserID, &t.Symbol, &side, &t.Quantity, &t.Price, &t.Status, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Side = domain.Side(side)

	return &t, nil
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		var t domain.Trade
		var side string

		err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &side, &t.Quantity, &t.Price, &t.Status, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		t.Side = domain.Side(side)

		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
