// Package exchange
package exchange

import (
	"context"

	"github.com/guanacodev/guanaco/internal/order"
	"github.com/guanacodev/guanaco/internal/symbol"
)

// Client is the capability set a strategy trades through. The simulated
// backtest client implements the same interface, so a strategy is
// source-compatible between live and simulated execution.
type Client interface {
	// Info returns the current ticker for the given symbol.
	Info(ctx context.Context, sym symbol.Symbol) (symbol.Info, error)

	// Buy places a buy order for amount units at price per unit.
	Buy(ctx context.Context, sym symbol.Symbol, amount, price float64, typ order.Type) (order.Response, error)

	// Sell places a sell order for amount units at price per unit.
	Sell(ctx context.Context, sym symbol.Symbol, amount, price float64, typ order.Type) (order.Response, error)

	// Cancel cancels the order with the given id. Cancelling an unknown or
	// already executed order returns order.ErrNotFound and changes nothing.
	Cancel(ctx context.Context, id order.ID) (order.Response, error)

	// CancelAll cancels every open order.
	CancelAll(ctx context.Context) (order.Response, error)

	// History returns the orders placed through this client.
	History(ctx context.Context) ([]order.Order, error)
}
