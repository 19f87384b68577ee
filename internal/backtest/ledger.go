// Package backtest
package backtest

import (
	"errors"

	"github.com/guanacodev/guanaco/internal/symbol"
)

// ErrEmptyLedger means no asset had a starting quantity, so there is
// nothing to simulate against.
var ErrEmptyLedger = errors.New("cannot backtest without starting balances")

// Ledger maps assets to held quantities. It is owned by the orchestrator
// and handed to exactly one simulated client at a time; only successful
// order executions mutate it.
type Ledger map[symbol.Asset]float64

// Copy returns an independent copy of the ledger.
func (l Ledger) Copy() Ledger {
	out := make(Ledger, len(l))
	for asset, qty := range l {
		out[asset] = qty
	}
	return out
}

// Validate checks that at least one asset has a non-zero starting quantity.
func (l Ledger) Validate() error {
	for _, qty := range l {
		if qty != 0 {
			return nil
		}
	}
	return ErrEmptyLedger
}

// Delta computes l[asset] - final[asset] for every asset present in l. It
// is the run's result: the signed difference between starting and ending
// holdings.
func (l Ledger) Delta(final Ledger) Ledger {
	out := make(Ledger, len(l))
	for asset, qty := range l {
		out[asset] = qty - final[asset]
	}
	return out
}
