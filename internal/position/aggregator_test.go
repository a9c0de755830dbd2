package position

import (
	"math"
	"testing"

	"tradesim/internal/domain"
)

func buy(symbol string, qty, price float64, at int64) *domain.Trade {
	return &domain.Trade{Symbol: symbol, Side: domain.SideBuy, Quantity: qty, Price: price, CreatedAt: at}
}

func sell(symbol string, qty, price float64, at int64) *domain.Trade {
	return &domain.Trade{Symbol: symbol, Side: domain.SideSell, Quantity: qty, Price: price, CreatedAt: at}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAggregate_WeightedAverageCost(t *testing.T) {
	trades := []*domain.Trade{
		buy("AAPL", 2, 100, 1000),
		buy("AAPL", 3, 60, 2000),
	}

	positions := Aggregate(trades)
	p := positions["AAPL"]
	if p == nil {
		t.Fatal("expected AAPL position")
	}
	if p.Shares != 5 {
		t.Errorf("shares: got %f, want 5", p.Shares)
	}
	// (2*100 + 3*60) / 5 = 76
	if !almostEqual(p.AvgCost, 76) {
		t.Errorf("avgCost: got %f, want 76", p.AvgCost)
	}
	if p.FirstHeldAt == nil || *p.FirstHeldAt != 1000 {
		t.Errorf("firstHeldAt: got %v, want 1000", p.FirstHeldAt)
	}
}

func TestAggregate_BuysOnlyMatchVolumeWeightedAverage(t *testing.T) {
	trades := []*domain.Trade{
		buy("AMD", 4, 56, 1000),
		buy("AMD", 1, 70, 2000),
		buy("AMD", 2.5, 61.2, 3000),
	}

	var totalQty, totalCost float64
	for _, tr := range trades {
		totalQty += tr.Quantity
		totalCost += tr.Quantity * tr.Price
	}

	p := Aggregate(trades)["AMD"]
	if !almostEqual(p.Shares, totalQty) {
		t.Errorf("shares: got %f, want %f", p.Shares, totalQty)
	}
	if !almostEqual(p.AvgCost, totalCost/totalQty) {
		t.Errorf("avgCost: got %f, want %f", p.AvgCost, totalCost/totalQty)
	}
}

func TestAggregate_SellAllResetsPosition(t *testing.T) {
	trades := []*domain.Trade{
		buy("AAPL", 5, 100, 1000),
		sell("AAPL", 5, 120, 2000),
	}

	p := Aggregate(trades)["AAPL"]
	if p.Shares != 0 {
		t.Errorf("shares: got %f, want 0", p.Shares)
	}
	if p.AvgCost != 0 {
		t.Errorf("avgCost: got %f, want 0", p.AvgCost)
	}
	if p.FirstHeldAt != nil {
		t.Errorf("firstHeldAt: got %v, want nil", *p.FirstHeldAt)
	}
}

func TestAggregate_RebuyAfterFlatStartsFreshCostBasis(t *testing.T) {
	trades := []*domain.Trade{
		buy("AAPL", 5, 100, 1000),
		sell("AAPL", 5, 120, 2000),
		buy("AAPL", 2, 200, 3000),
	}

	p := Aggregate(trades)["AAPL"]
	if p.Shares != 2 {
		t.Errorf("shares: got %f, want 2", p.Shares)
	}
	if !almostEqual(p.AvgCost, 200) {
		t.Errorf("avgCost after rebuy: got %f, want 200", p.AvgCost)
	}
	if p.FirstHeldAt == nil || *p.FirstHeldAt != 3000 {
		t.Errorf("firstHeldAt after rebuy: got %v, want 3000", p.FirstHeldAt)
	}
}

func TestAggregate_PartialSellKeepsAvgCost(t *testing.T) {
	trades := []*domain.Trade{
		buy("AAPL", 4, 50, 1000),
		sell("AAPL", 1, 80, 2000),
	}

	p := Aggregate(trades)["AAPL"]
	if p.Shares != 3 {
		t.Errorf("shares: got %f, want 3", p.Shares)
	}
	if !almostEqual(p.AvgCost, 50) {
		t.Errorf("avgCost unchanged by sell: got %f, want 50", p.AvgCost)
	}
}

func TestAggregate_OversellClampsToZero(t *testing.T) {
	// The engine never lets this reach the ledger; the aggregator must
	// still tolerate it.
	trades := []*domain.Trade{
		buy("AAPL", 2, 100, 1000),
		sell("AAPL", 5, 100, 2000),
	}

	p := Aggregate(trades)["AAPL"]
	if p.Shares != 0 {
		t.Errorf("shares: got %f, want 0 (clamped)", p.Shares)
	}
	if p.AvgCost != 0 {
		t.Errorf("avgCost: got %f, want 0", p.AvgCost)
	}
}

func TestAggregate_MultipleSymbolsIndependent(t *testing.T) {
	trades := []*domain.Trade{
		buy("AAPL", 1, 100, 1000),
		buy("AMD", 2, 50, 2000),
		sell("AAPL", 1, 110, 3000),
	}

	positions := Aggregate(trades)
	if positions["AAPL"].Shares != 0 {
		t.Errorf("AAPL shares: got %f, want 0", positions["AAPL"].Shares)
	}
	if positions["AMD"].Shares != 2 || !almostEqual(positions["AMD"].AvgCost, 50) {
		t.Errorf("AMD position: got %+v", positions["AMD"])
	}
}

func TestAggregate_Empty(t *testing.T) {
	positions := Aggregate(nil)
	if len(positions) != 0 {
		t.Errorf("expected empty map, got %d entries", len(positions))
	}
}

func TestOwnedShares(t *testing.T) {
	trades := []*domain.Trade{
		buy("AAPL", 5, 100, 1000),
		sell("AAPL", 2, 110, 2000),
		buy("AMD", 3, 50, 3000),
	}

	if got := OwnedShares(trades, "AAPL"); !almostEqual(got, 3) {
		t.Errorf("AAPL owned: got %f, want 3", got)
	}
	if got := OwnedShares(trades, "AMD"); !almostEqual(got, 3) {
		t.Errorf("AMD owned: got %f, want 3", got)
	}
	if got := OwnedShares(trades, "TSLA"); got != 0 {
		t.Errorf("TSLA owned: got %f, want 0", got)
	}
}
