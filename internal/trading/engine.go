// Package trading validates proposed trades and cash movements against the
// derived ledger state and commits the accepted ones.
package trading

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradesim/internal/cash"
	"tradesim/internal/domain"
	"tradesim/internal/observability"
	"tradesim/internal/position"
	"tradesim/internal/storage"
)

// userLockStripes is the size of the per-user mutex stripe table.
const userLockStripes = 64

// mirrorTimeout bounds the best-effort history mirror write.
const mirrorTimeout = 5 * time.Second

// Engine is the trade validator and commit path.
//
// Validation reads the ledgers, checks the proposal against the derived
// cash and share figures, and appends on acceptance. Check-then-append is
// racy on its own, so the engine serializes all mutating operations per
// user through a striped mutex: two concurrent requests for the same user
// validate sequentially, and their combined effect is exactly what
// sequential submission would have produced. Requests for different users
// proceed in parallel (modulo stripe collisions).
type Engine struct {
	trades    storage.TradeLedger
	movements storage.CashLedger
	mirror    storage.TradeMirror
	logger    *log.Logger
	metrics   *observability.Metrics
	now       func() time.Time

	userLocks [userLockStripes]sync.Mutex
}

// EngineOption configures Engine.
type EngineOption func(*Engine)

// WithMirror attaches a best-effort history mirror. Mirror failures are
// logged and never roll back the primary trade.
func WithMirror(m storage.TradeMirror) EngineOption {
	return func(e *Engine) {
		e.mirror = m
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a trading engine over the two ledgers.
func NewEngine(trades storage.TradeLedger, movements storage.CashLedger, opts ...EngineOption) *Engine {
	e := &Engine{
		trades:    trades,
		movements: movements,
		logger:    log.New(io.Discard, "", 0),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// lockUser locks the stripe for userID and returns the unlock func.
func (e *Engine) lockUser(userID string) func() {
	h := fnv.New32a()
	h.Write([]byte(userID))
	mu := &e.userLocks[h.Sum32()%userLockStripes]
	mu.Lock()
	return mu.Unlock
}

// ValidateAndRecordTrade checks a proposed trade against the derived cash
// and share state and appends it to the ledger on acceptance. Checks run
// in order: input validity, then funds for a BUY, then owned shares for a
// SELL. Rejections implement Rejection and carry the computed figure; any
// other error is a ledger failure.
func (e *Engine) ValidateAndRecordTrade(ctx context.Context, userID, symbol string, side domain.Side, qty, price float64) (*domain.Trade, error) {
	start := e.now()

	symbol = domain.NormalizeSymbol(symbol)
	if reject := validateTradeInput(userID, symbol, side, qty, price); reject != nil {
		e.countRejection(reject)
		return nil, reject
	}

	unlock := e.lockUser(userID)
	defer unlock()

	trades, err := e.trades.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read trade ledger: %w", err)
	}

	switch side {
	case domain.SideBuy:
		movements, err := e.movements.ListByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("read cash ledger: %w", err)
		}
		balance := cash.Balance(movements, trades)
		required := qty * price
		if balance.AvailableCash < required {
			reject := &InsufficientFundsError{Available: balance.AvailableCash, Required: required}
			e.countRejection(reject)
			return nil, reject
		}

	case domain.SideSell:
		owned := position.OwnedShares(trades, symbol)
		if owned < qty {
			reject := &InsufficientSharesError{Symbol: symbol, Owned: owned, Requested: qty}
			e.countRejection(reject)
			return nil, reject
		}
	}

	trade := &domain.Trade{
		ID:        uuid.NewString(),
		UserID:    userID,
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		Price:     price,
		Status:    domain.TradeStatusFilled,
		CreatedAt: e.now().UnixMilli(),
	}

	if err := e.trades.Append(ctx, trade); err != nil {
		return nil, fmt.Errorf("append trade: %w", err)
	}

	e.mirrorTrade(trade)

	if e.metrics != nil {
		e.metrics.TradesAccepted.WithLabelValues(string(side)).Inc()
		e.metrics.TradeLatency.Observe(time.Since(start).Seconds())
	}

	return trade, nil
}

// RecordCashMovement appends a deposit or withdrawal. A withdrawal that
// would drive the derived available cash negative is rejected with
// InsufficientFundsError, under the same per-user serialization as trades.
func (e *Engine) RecordCashMovement(ctx context.Context, userID string, kind domain.MovementKind, amount float64) (*domain.CashMovement, error) {
	if userID == "" {
		reject := &InvalidInputError{Field: "userId", Detail: "must not be empty"}
		e.countRejection(reject)
		return nil, reject
	}
	if !domain.ValidMovementKind(kind) {
		reject := &InvalidInputError{Field: "kind", Detail: fmt.Sprintf("unknown kind %q", kind)}
		e.countRejection(reject)
		return nil, reject
	}
	if amount <= 0 {
		reject := &InvalidInputError{Field: "amount", Detail: "must be positive"}
		e.countRejection(reject)
		return nil, reject
	}

	unlock := e.lockUser(userID)
	defer unlock()

	if kind == domain.MovementWithdraw {
		balance, err := e.cashBalance(ctx, userID)
		if err != nil {
			return nil, err
		}
		if balance.AvailableCash < amount {
			reject := &InsufficientFundsError{Available: balance.AvailableCash, Required: amount}
			e.countRejection(reject)
			return nil, reject
		}
	}

	movement := &domain.CashMovement{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Amount:    amount,
		CreatedAt: e.now().UnixMilli(),
	}

	if err := e.movements.Append(ctx, movement); err != nil {
		return nil, fmt.Errorf("append cash movement: %w", err)
	}

	if e.metrics != nil {
		e.metrics.CashMovements.WithLabelValues(string(kind)).Inc()
	}

	return movement, nil
}

// CashBalance returns the derived cash state for a user.
func (e *Engine) CashBalance(ctx context.Context, userID string) (domain.CashBalance, error) {
	return e.cashBalance(ctx, userID)
}

// TradeHistory returns a user's trades, oldest first.
func (e *Engine) TradeHistory(ctx context.Context, userID string) ([]*domain.Trade, error) {
	trades, err := e.trades.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read trade ledger: %w", err)
	}
	return trades, nil
}

func (e *Engine) cashBalance(ctx context.Context, userID string) (domain.CashBalance, error) {
	movements, err := e.movements.ListByUser(ctx, userID)
	if err != nil {
		return domain.CashBalance{}, fmt.Errorf("read cash ledger: %w", err)
	}
	trades, err := e.trades.ListByUser(ctx, userID)
	if err != nil {
		return domain.CashBalance{}, fmt.Errorf("read trade ledger: %w", err)
	}
	return cash.Balance(movements, trades), nil
}

// mirrorTrade forwards an accepted trade to the history projection,
// fire-and-forget. The commit path never waits on or fails with it.
func (e *Engine) mirrorTrade(t *domain.Trade) {
	if e.mirror == nil {
		return
	}

	tradeCopy := *t
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()

		if err := e.mirror.Mirror(ctx, &tradeCopy); err != nil {
			e.logger.Printf("trade %s: history mirror failed: %v", tradeCopy.ID, err)
			if e.metrics != nil {
				e.metrics.MirrorFailures.Inc()
			}
		}
	}()
}

func (e *Engine) countRejection(r Rejection) {
	if e.metrics != nil {
		e.metrics.TradesRejected.WithLabelValues(r.RejectionReason()).Inc()
	}
}

// validateTradeInput runs the pre-ledger checks. Returns nil when the
// proposal is well formed.
func validateTradeInput(userID, symbol string, side domain.Side, qty, price float64) Rejection {
	if userID == "" {
		return &InvalidInputError{Field: "userId", Detail: "must not be empty"}
	}
	if symbol == "" {
		return &InvalidInputError{Field: "symbol", Detail: "must not be empty"}
	}
	if !domain.ValidSide(side) {
		return &InvalidInputError{Field: "side", Detail: fmt.Sprintf("unknown side %q", side)}
	}
	if qty <= 0 {
		return &InvalidInputError{Field: "quantity", Detail: "must be positive"}
	}
	if price <= 0 {
		return &InvalidInputError{Field: "price", Detail: "must be positive"}
	}
	return nil
}
