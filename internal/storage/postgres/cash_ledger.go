package postgres

import (
	"context"
	"fmt"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/observability"
	"tradesim/internal/storage"
)

// CashLedger implements storage.CashLedger using PostgreSQL.
type CashLedger struct {
	pool    *Pool
	metrics *observability.Metrics
}

// CashLedgerOption configures CashLedger.
type CashLedgerOption func(*CashLedger)

// WithCashLedgerMetrics attaches Prometheus query metrics.
func WithCashLedgerMetrics(m *observability.Metrics) CashLedgerOption {
	return func(l *CashLedger) {
		l.metrics = m
	}
}

// NewCashLedger creates a new CashLedger.
func NewCashLedger(pool *Pool, opts ...CashLedgerOption) *CashLedger {
	l := &CashLedger{pool: pool}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *CashLedger) observe(op string, start time.Time, err error) {
	if l.metrics == nil {
		return
	}
	l.metrics.LedgerQueryDuration.WithLabelValues("cash_movements", op).Observe(time.Since(start).Seconds())
	if err != nil {
		l.metrics.LedgerQueryErrors.WithLabelValues("cash_movements", op).Inc()
	}
}

// Compile-time interface check.
var _ storage.CashLedger = (*CashLedger)(nil)

// Append adds a new movement. Returns ErrDuplicateKey if the ID exists,
// ErrInvalidInput for a non-positive amount or unknown kind.
func (l *CashLedger) Append(ctx context.Context, m *domain.CashMovement) error {
	if m == nil || m.ID == "" || m.UserID == "" {
		return storage.ErrInvalidInput
	}
	if !domain.ValidMovementKind(m.Kind) || m.Amount <= 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO cash_movements (
			movement_id, user_id, kind, amount, created_at
		) VALUES (
			$1, $2, $3, $4, $5
		)
	`

	start := time.Now()
	_, err := l.pool.Exec(ctx, query, m.ID, m.UserID, string(m.Kind), m.Amount, m.CreatedAt)
	l.observe("append", start, err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isCheckViolationError(err) {
			return storage.ErrInvalidInput
		}
		return fmt.Errorf("append cash movement: %w", err)
	}
	return nil
}

// ListByUser retrieves all movements for a user, ordered by created_at ASC
// with the insert-order seq column breaking same-millisecond ties.
func (l *CashLedger) ListByUser(ctx context.Context, userID string) ([]*domain.CashMovement, error) {
	query := `
		SELECT movement_id, user_id, kind, amount, created_at
		FROM cash_movements
		WHERE user_id = $1
		ORDER BY created_at ASC, seq ASC
	`

	start := time.Now()
	rows, err := l.pool.Query(ctx, query, userID)
	l.observe("list_by_user", start, err)
	if err != nil {
		return nil, fmt.Errorf("list cash movements by user: %w", err)
	}
	defer rows.Close()

	var movements []*domain.CashMovement
	for rows.Next() {
		var m domain.CashMovement
		var kind string

		if err := rows.Scan(&m.ID, &m.UserID, &kind, &m.Amount, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cash movement row: %w", err)
		}
		m.Kind = domain.MovementKind(kind)

		movements = append(movements, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cash movement rows: %w", err)
	}

	return movements, nil
}
