// Package strategy
package strategy

import (
	"context"
	"errors"

	"github.com/guanacodev/guanaco/internal/exchange"
	"github.com/guanacodev/guanaco/internal/order"
	"github.com/guanacodev/guanaco/internal/symbol"
)

// Func is a trading strategy. It is invoked once per tick during a backtest
// (or once per schedule slot in live mode) with a client scoped to that
// moment; its only effects are the calls it makes on the client.
type Func func(ctx context.Context, client exchange.Client) error

// DipBuyer returns a strategy that market-buys amount units of sym
// whenever the price has dropped by at least dropPct percent since the
// previous invocation.
func DipBuyer(sym symbol.Symbol, amount, dropPct float64) Func {
	var lastPrice float64
	return func(ctx context.Context, client exchange.Client) error {
		info, err := client.Info(ctx, sym)
		if err != nil {
			// Untradeable this tick; try again next time.
			return nil
		}
		price := info.Ticker.Last
		defer func() { lastPrice = price }()

		if lastPrice == 0 || price >= lastPrice*(1-dropPct/100) {
			return nil
		}
		if _, err := client.Buy(ctx, sym, amount, price, order.Market); err != nil {
			return err
		}
		return nil
	}
}

// LimitLadder returns a strategy that keeps one limit buy resting below the
// market and cancels it before re-placing, so at most one order is pending
// at a time.
func LimitLadder(sym symbol.Symbol, amount, belowPct float64) Func {
	var pending order.ID
	return func(ctx context.Context, client exchange.Client) error {
		info, err := client.Info(ctx, sym)
		if err != nil {
			return nil
		}

		if pending != "" {
			if _, err := client.Cancel(ctx, pending); err != nil && !errors.Is(err, order.ErrNotFound) {
				return err
			}
			pending = ""
		}

		limit := info.Ticker.Last * (1 - belowPct/100)
		resp, err := client.Buy(ctx, sym, amount, limit, order.Limit)
		if err != nil {
			return err
		}
		pending = resp.ID
		return nil
	}
}
