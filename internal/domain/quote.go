package domain

// Quote is a best-effort market quote for one symbol. A quote never
// "throws": when the upstream fetch failed and no cached value existed,
// Error is set and the price fields are zero.
type Quote struct {
	Symbol        string
	Price         float64
	PercentChange float64
	DayHigh       float64
	DayLow        float64
	AsOf          int64 // unix milliseconds at fetch time

	FromCache bool   // served from a fresh cache entry
	Stale     bool   // served from an expired cache entry after a failed refresh
	Error     string // set when no value could be produced at all
}

// Usable reports whether the quote carries a price that can be used for
// valuation.
func (q *Quote) Usable() bool {
	return q.Error == "" && q.Price > 0
}
