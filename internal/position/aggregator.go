// Package position derives share counts and weighted-average cost basis
// from a user's trade ledger.
package position

import "tradesim/internal/domain"

// Aggregate folds a time-ascending trade slice into per-symbol positions.
//
// Trades must be ordered by CreatedAt ASC: the weighted-average cost
// accumulation is order-dependent, and an out-of-order slice silently
// corrupts the average. The ledger guarantees this ordering.
//
// Aggregate performs no validation. A SELL that exceeds the running share
// count clamps the position to zero; the trading engine rejects such
// trades before they reach the ledger.
func Aggregate(trades []*domain.Trade) map[string]*domain.Position {
	positions := make(map[string]*domain.Position)

	for _, t := range trades {
		p := positions[t.Symbol]
		if p == nil {
			p = &domain.Position{Symbol: t.Symbol}
			positions[t.Symbol] = p
		}

		switch t.Side {
		case domain.SideBuy:
			newShares := p.Shares + t.Quantity
			divisor := newShares
			if divisor == 0 {
				divisor = 1 // unused result, avoids division by zero
			}
			p.AvgCost = (p.AvgCost*p.Shares + t.Price*t.Quantity) / divisor
			if p.Shares <= 0 && newShares > 0 {
				ts := t.CreatedAt
				p.FirstHeldAt = &ts
			}
			p.Shares = newShares

		case domain.SideSell:
			p.Shares -= t.Quantity
			if p.Shares <= 0 {
				p.Shares = 0
				p.AvgCost = 0
				p.FirstHeldAt = nil
			}
		}
	}

	return positions
}

// OwnedShares returns the signed share total for one symbol: sum of BUY
// quantities minus sum of SELL quantities, unclamped. This is the figure
// the trading engine checks a SELL against.
func OwnedShares(trades []*domain.Trade, symbol string) float64 {
	var owned float64
	for _, t := range trades {
		if t.Symbol != symbol {
			continue
		}
		switch t.Side {
		case domain.SideBuy:
			owned += t.Quantity
		case domain.SideSell:
			owned -= t.Quantity
		}
	}
	return owned
}
