package domain

// Holding is one line of a portfolio snapshot: an open position valued at
// the best available price.
type Holding struct {
	Symbol        string
	Shares        float64
	AvgCost       float64
	MarketPrice   float64 // live quote price, or AvgCost when no quote was usable
	UnrealizedPnL float64 // (marketPrice - avgCost) * shares
	Value         float64 // marketPrice * shares
	LivePrice     bool    // false when MarketPrice fell back to cost basis
	Stale         bool    // true when the price came from an expired cache entry
}

// PortfolioSnapshot is a point-in-time valuation of a user's portfolio.
// It is derived from the ledgers and current quotes, never stored.
type PortfolioSnapshot struct {
	UserID          string
	Holdings        []Holding
	TotalValue      float64 // sum of holding values
	TotalProfitLoss float64 // sum of holding unrealized P/L
	AvailableCash   float64
	NetWorth        float64 // totalValue + availableCash
	AsOf            int64   // unix milliseconds
}
