package cash

import (
	"math"
	"testing"

	"tradesim/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBalance_DepositsAndWithdrawals(t *testing.T) {
	movements := []*domain.CashMovement{
		{UserID: "u1", Kind: domain.MovementDeposit, Amount: 500, CreatedAt: 1000},
		{UserID: "u1", Kind: domain.MovementDeposit, Amount: 250, CreatedAt: 2000},
		{UserID: "u1", Kind: domain.MovementWithdraw, Amount: 100, CreatedAt: 3000},
	}

	b := Balance(movements, nil)
	if b.Deposits != 750 {
		t.Errorf("deposits: got %f, want 750", b.Deposits)
	}
	if b.Withdrawals != 100 {
		t.Errorf("withdrawals: got %f, want 100", b.Withdrawals)
	}
	if b.AvailableCash != 650 {
		t.Errorf("availableCash: got %f, want 650", b.AvailableCash)
	}
}

func TestBalance_TradesReduceAndRestoreCash(t *testing.T) {
	movements := []*domain.CashMovement{
		{Kind: domain.MovementDeposit, Amount: 500},
	}
	trades := []*domain.Trade{
		{Symbol: "AMD", Side: domain.SideBuy, Quantity: 4, Price: 56},
		{Symbol: "AMD", Side: domain.SideSell, Quantity: 2, Price: 60},
	}

	b := Balance(movements, trades)
	if !almostEqual(b.BuyCost, 224) {
		t.Errorf("buyCost: got %f, want 224", b.BuyCost)
	}
	if !almostEqual(b.SellProceeds, 120) {
		t.Errorf("sellProceeds: got %f, want 120", b.SellProceeds)
	}
	if !almostEqual(b.AvailableCash, 500-224+120) {
		t.Errorf("availableCash: got %f, want %f", b.AvailableCash, 500-224+120.0)
	}
}

func TestBalance_InvariantUnderReordering(t *testing.T) {
	movements := []*domain.CashMovement{
		{Kind: domain.MovementDeposit, Amount: 300, CreatedAt: 1000},
		{Kind: domain.MovementWithdraw, Amount: 50, CreatedAt: 1000},
	}
	trades := []*domain.Trade{
		{Symbol: "AAPL", Side: domain.SideBuy, Quantity: 1, Price: 100, CreatedAt: 2000},
		{Symbol: "AAPL", Side: domain.SideSell, Quantity: 1, Price: 90, CreatedAt: 3000},
	}

	forward := Balance(movements, trades)

	reversedMovements := []*domain.CashMovement{movements[1], movements[0]}
	reversedTrades := []*domain.Trade{trades[1], trades[0]}
	backward := Balance(reversedMovements, reversedTrades)

	if !almostEqual(forward.AvailableCash, backward.AvailableCash) {
		t.Errorf("availableCash changed under reordering: %f != %f",
			forward.AvailableCash, backward.AvailableCash)
	}
}

func TestBalance_Empty(t *testing.T) {
	b := Balance(nil, nil)
	if b.AvailableCash != 0 || b.Deposits != 0 || b.BuyCost != 0 {
		t.Errorf("expected zero balance, got %+v", b)
	}
}
