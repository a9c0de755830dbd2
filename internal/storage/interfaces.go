package storage

import (
	"context"

	"tradesim/internal/domain"
)

// TradeLedger provides access to the append-only trades ledger.
//
// Implementations must return a user's trades ordered by CreatedAt ASC,
// with append order breaking ties between trades recorded in the same
// millisecond: position derivation depends on chronological order for
// correct average-cost accumulation.
type TradeLedger interface {
	// Append adds a new trade. Returns ErrDuplicateKey if the trade ID exists.
	Append(ctx context.Context, t *domain.Trade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.Trade, error)

	// ListByUser retrieves all trades for a user, ordered by CreatedAt ASC.
	ListByUser(ctx context.Context, userID string) ([]*domain.Trade, error)

	// ListByUserSymbol retrieves a user's trades for one symbol, ordered by
	// CreatedAt ASC.
	ListByUserSymbol(ctx context.Context, userID, symbol string) ([]*domain.Trade, error)
}

// CashLedger provides access to the append-only cash movements ledger.
type CashLedger interface {
	// Append adds a new movement. Returns ErrDuplicateKey if the ID exists,
	// ErrInvalidInput for a non-positive amount or unknown kind.
	Append(ctx context.Context, m *domain.CashMovement) error

	// ListByUser retrieves all movements for a user, ordered by CreatedAt ASC.
	ListByUser(ctx context.Context, userID string) ([]*domain.CashMovement, error)
}

// TradeMirror receives best-effort copies of accepted trades for the
// history projection. Failures are logged by the caller, never propagated
// to the trade commit path.
type TradeMirror interface {
	Mirror(ctx context.Context, t *domain.Trade) error
}
