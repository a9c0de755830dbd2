// Package cash derives a user's available cash from the cash-movement and
// trade ledgers. Cash is never stored as a mutable balance: every figure
// is a sum over append-only records, so the ledgers are the single source
// of truth and a balance can never drift from its history.
package cash

import "tradesim/internal/domain"

// Balance computes the derived cash state from a user's movements and
// trades. Pure aggregation: sums are commutative, so ordering of the
// inputs does not matter. Callers must not pass negative amounts,
// quantities, or prices (the ledgers reject them at append).
func Balance(movements []*domain.CashMovement, trades []*domain.Trade) domain.CashBalance {
	var b domain.CashBalance

	for _, m := range movements {
		switch m.Kind {
		case domain.MovementDeposit:
			b.Deposits += m.Amount
		case domain.MovementWithdraw:
			b.Withdrawals += m.Amount
		}
	}

	for _, t := range trades {
		switch t.Side {
		case domain.SideBuy:
			b.BuyCost += t.Notional()
		case domain.SideSell:
			b.SellProceeds += t.Notional()
		}
	}

	b.AvailableCash = b.Deposits - b.Withdrawals - b.BuyCost + b.SellProceeds
	return b
}
