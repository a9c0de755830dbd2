package domain

// MovementKind discriminates cash movements. Amount is always positive;
// the kind determines the sign of its effect on available cash. This is
// the single convention for the ledger — signed amounts are not used.
type MovementKind string

const (
	MovementDeposit  MovementKind = "DEPOSIT"
	MovementWithdraw MovementKind = "WITHDRAW"
)

// CashMovement is one entry in a user's append-only cash ledger.
type CashMovement struct {
	ID        string // uuid
	UserID    string
	Kind      MovementKind
	Amount    float64 // always > 0
	CreatedAt int64   // unix milliseconds
}

// ValidMovementKind reports whether k is a recognized movement kind.
func ValidMovementKind(k MovementKind) bool {
	return k == MovementDeposit || k == MovementWithdraw
}

// CashBalance is the derived cash state of a user. Every field is a sum
// over the underlying ledgers; nothing here is stored.
type CashBalance struct {
	Deposits      float64 // sum of DEPOSIT amounts
	Withdrawals   float64 // sum of WITHDRAW amounts
	BuyCost       float64 // sum of BUY notionals
	SellProceeds  float64 // sum of SELL notionals
	AvailableCash float64 // deposits - withdrawals - buyCost + sellProceeds
}
