package trading

import (
	"errors"
	"fmt"
)

// Rejection is the interface all trade/movement rejections implement.
// A rejection means the request was refused on its merits; anything else
// coming out of the engine is a ledger failure and is fatal for the call.
type Rejection interface {
	error
	RejectionReason() string
}

// Rejection reason codes, used for metrics labels and API payloads.
const (
	ReasonInvalidInput       = "INVALID_INPUT"
	ReasonInsufficientFunds  = "INSUFFICIENT_FUNDS"
	ReasonInsufficientShares = "INSUFFICIENT_SHARES"
)

// InvalidInputError rejects a malformed request before any ledger read.
type InvalidInputError struct {
	Field  string
	Detail string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}

func (e *InvalidInputError) RejectionReason() string { return ReasonInvalidInput }

// InsufficientFundsError rejects a BUY or WITHDRAW the derived cash
// balance cannot cover. Available carries the computed figure for
// user-facing messaging.
type InsufficientFundsError struct {
	Available float64
	Required  float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available cash %.2f, required %.2f",
		e.Available, e.Required)
}

func (e *InsufficientFundsError) RejectionReason() string { return ReasonInsufficientFunds }

// InsufficientSharesError rejects a SELL exceeding the owned share count.
// Owned carries the computed figure for user-facing messaging.
type InsufficientSharesError struct {
	Symbol    string
	Owned     float64
	Requested float64
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares: own %g %s, requested %g",
		e.Owned, e.Symbol, e.Requested)
}

func (e *InsufficientSharesError) RejectionReason() string { return ReasonInsufficientShares }

// IsRejection reports whether err is a trade/movement rejection as
// opposed to a ledger failure.
func IsRejection(err error) bool {
	var r Rejection
	return errors.As(err, &r)
}
