package domain

// Position is a user's derived holding in one symbol: current share count
// and volume-weighted average cost basis. Positions are computed from the
// trade ledger on demand and never persisted.
type Position struct {
	Symbol      string
	Shares      float64 // never negative after derivation
	AvgCost     float64 // per share; 0 whenever Shares == 0
	FirstHeldAt *int64  // trade timestamp that opened the position; nil when flat
}

// Open reports whether the position currently holds shares.
func (p *Position) Open() bool {
	return p.Shares > 0
}
