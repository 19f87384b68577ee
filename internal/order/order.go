// Package order
package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/guanacodev/guanaco/internal/symbol"
)

// Side of an order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Type of rule to execute during an order.
type Type string

const (
	// Market orders fill immediately at the current best available price.
	Market Type = "market"

	// Limit orders fill at or better than the specified price.
	Limit Type = "limit"

	// Stop orders only fill once the market moves past the specified price.
	Stop Type = "stop"
)

// ErrUnsupportedType is fatal for a simulation run: the matching engine has
// no rule for the order's type.
var ErrUnsupportedType = errors.New("unsupported order type")

// ErrNotFound is the recoverable response to cancelling an order that does
// not exist or was already executed. It never aborts a run.
var ErrNotFound = errors.New("order not found or already executed")

// Validate checks that t is one of the supported order types.
func (t Type) Validate() error {
	switch t {
	case Market, Limit, Stop:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedType, string(t))
	}
}

// ID uniquely identifies an order. Simulated clients assign IDs from a
// monotonic counter, unique within a run; live exchanges return their own.
type ID string

// Order is a single buy or sell instruction. Executed transitions
// false -> true at most once, on execution or cancellation, and never
// reverts.
type Order struct {
	ID          ID            `json:"id"`
	Symbol      symbol.Symbol `json:"symbol"`
	Side        Side          `json:"side"`
	Type        Type          `json:"type"`
	Amount      float64       `json:"amount"`
	Price       float64       `json:"price"` // limit or stop price
	SubmittedAt time.Time     `json:"submitted_at"`
	Executed    bool          `json:"executed"`
}

// Status of an order response.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Response acknowledges an order placement or cancellation.
type Response struct {
	ID      ID     `json:"id,omitempty"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}
