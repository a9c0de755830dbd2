package domain

import "strings"

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade status values. Status is free-form in the ledger; the engine
// writes FILLED for every accepted trade.
const (
	TradeStatusFilled  = "FILLED"
	TradeStatusPending = "PENDING"
)

// Trade is one executed order in a user's append-only trade ledger.
// Trades are never mutated or deleted once recorded.
type Trade struct {
	ID        string // uuid
	UserID    string
	Symbol    string // normalized upper-case
	Side      Side
	Quantity  float64 // shares, > 0
	Price     float64 // currency units per share, > 0
	Status    string
	CreatedAt int64 // unix milliseconds
}

// Notional returns the cash value of the trade (quantity * price).
func (t *Trade) Notional() float64 {
	return t.Quantity * t.Price
}

// NormalizeSymbol canonicalizes a ticker symbol: trimmed, upper-case.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidSide reports whether s is a recognized trade side.
func ValidSide(s Side) bool {
	return s == SideBuy || s == SideSell
}
