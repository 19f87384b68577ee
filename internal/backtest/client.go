package backtest

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/guanacodev/guanaco/internal/exchange"
	"github.com/guanacodev/guanaco/internal/history"
	"github.com/guanacodev/guanaco/internal/order"
	"github.com/guanacodev/guanaco/internal/symbol"
)

// book holds the order table and the FIFO queue of pending order ids. It is
// threaded tick-to-tick by the orchestrator.
type book struct {
	orders map[order.ID]*order.Order
	queue  []order.ID
	nextID int64
}

func newBook() *book {
	return &book{orders: make(map[order.ID]*order.Order)}
}

// Client simulates exchange transactions against a single tick. It exposes
// the same capability set as a live exchange client plus ExecuteOrders,
// which the orchestrator (or the strategy itself) calls to run the matching
// pass.
type Client struct {
	ledger Ledger
	book   *book
	tick   history.Tick
	logger *zap.Logger
}

var _ exchange.Client = (*Client)(nil)

// newClient scopes a simulated client to the current ledger, order state
// and tick. The client takes exclusive ownership of ledger and book for the
// duration of the tick.
func newClient(ledger Ledger, bk *book, tick history.Tick, logger *zap.Logger) *Client {
	return &Client{
		ledger: ledger,
		book:   bk,
		tick:   tick,
		logger: logger,
	}
}

// Info returns a synthetic ticker for sym: bid, ask and last are all this
// tick's typical price, volume is the tick's remaining volume. Symbols with
// no sample this tick are untradeable and yield an error.
func (c *Client) Info(_ context.Context, sym symbol.Symbol) (symbol.Info, error) {
	sample, ok := c.tick.Sample(sym)
	if !ok {
		return symbol.Info{}, fmt.Errorf("no sample for %s at %s", sym, c.tick.Time)
	}
	return symbol.Info{
		Ticker: symbol.Ticker{
			Bid:    sample.TypicalPrice,
			Ask:    sample.TypicalPrice,
			Last:   sample.TypicalPrice,
			Volume: sample.RemainingVolume,
		},
	}, nil
}

// Buy queues a buy order. The order is not executed until a matching pass.
func (c *Client) Buy(_ context.Context, sym symbol.Symbol, amount, price float64, typ order.Type) (order.Response, error) {
	return c.placeOrder(order.Buy, sym, amount, price, typ)
}

// Sell queues a sell order. The order is not executed until a matching pass.
func (c *Client) Sell(_ context.Context, sym symbol.Symbol, amount, price float64, typ order.Type) (order.Response, error) {
	return c.placeOrder(order.Sell, sym, amount, price, typ)
}

func (c *Client) placeOrder(side order.Side, sym symbol.Symbol, amount, price float64, typ order.Type) (order.Response, error) {
	if err := typ.Validate(); err != nil {
		return order.Response{Status: order.StatusFailure}, err
	}

	c.book.nextID++
	id := order.ID(strconv.FormatInt(c.book.nextID, 10))
	c.book.orders[id] = &order.Order{
		ID:          id,
		Symbol:      sym,
		Side:        side,
		Type:        typ,
		Amount:      amount,
		Price:       price,
		SubmittedAt: c.tick.Time,
	}
	c.book.queue = append(c.book.queue, id)

	c.logger.Debug("order placed",
		zap.String("id", string(id)),
		zap.String("symbol", string(sym)),
		zap.String("side", string(side)),
		zap.String("type", string(typ)),
		zap.Float64("amount", amount),
		zap.Float64("price", price))
	return order.Response{
		ID:      id,
		Status:  order.StatusSuccess,
		Message: "backtest order placed",
	}, nil
}

// Cancel cancels a pending order. An unknown or already executed id is a
// recoverable failure: nothing changes and order.ErrNotFound is returned.
func (c *Client) Cancel(_ context.Context, id order.ID) (order.Response, error) {
	ord, ok := c.book.orders[id]
	if !ok || ord.Executed {
		return order.Response{
			Status:  order.StatusFailure,
			Message: fmt.Sprintf("could not cancel order %s", id),
		}, order.ErrNotFound
	}

	ord.Executed = true
	for i, queued := range c.book.queue {
		if queued == id {
			c.book.queue = append(c.book.queue[:i], c.book.queue[i+1:]...)
			break
		}
	}
	return order.Response{
		ID:      id,
		Status:  order.StatusSuccess,
		Message: fmt.Sprintf("cancelled backtest order %s", id),
	}, nil
}

// CancelAll cancels every queued order and empties the queue. It always
// succeeds.
func (c *Client) CancelAll(_ context.Context) (order.Response, error) {
	for _, id := range c.book.queue {
		c.book.orders[id].Executed = true
	}
	c.book.queue = nil
	return order.Response{
		Status:  order.StatusSuccess,
		Message: "cancelled all backtest orders",
	}, nil
}

// History returns every order placed during the run, oldest first.
func (c *Client) History(_ context.Context) ([]order.Order, error) {
	out := make([]order.Order, 0, len(c.book.orders))
	for _, ord := range c.book.orders {
		out = append(out, *ord)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.ParseInt(string(out[i].ID), 10, 64)
		b, _ := strconv.ParseInt(string(out[j].ID), 10, 64)
		return a < b
	})
	return out, nil
}

// ExecuteOrders processes up to count pending orders strictly in FIFO
// submission order; count <= 0 drains the entire queue. A dequeued order
// that does not match is left unexecuted in the order table and is not
// re-enqueued. An unsupported order type is fatal for the run.
func (c *Client) ExecuteOrders(count int) error {
	n := len(c.book.queue)
	if count > 0 && count < n {
		n = count
	}

	for i := 0; i < n; i++ {
		id := c.book.queue[0]
		c.book.queue = c.book.queue[1:]
		ord := c.book.orders[id]

		matched, err := c.match(ord)
		if err != nil {
			return err
		}
		if matched {
			ord.Executed = true
			c.logger.Debug("order executed",
				zap.String("id", string(id)),
				zap.String("symbol", string(ord.Symbol)),
				zap.Float64("amount", ord.Amount))
		}
	}
	return nil
}

// match applies the side x type rule table against the current tick sample
// and mutates ledger and remaining volume on success. A symbol with no
// sample this tick never matches.
func (c *Client) match(ord *order.Order) (bool, error) {
	sample, ok := c.tick.Sample(ord.Symbol)
	if !ok {
		return false, nil
	}

	actual := sample.TypicalPrice
	notional := ord.Amount * actual
	quote := ord.Symbol.Quote()
	avail := c.ledger[quote]

	switch ord.Side {
	case order.Buy:
		canFund := avail >= notional && sample.RemainingVolume > ord.Amount
		var triggered bool
		switch ord.Type {
		case order.Market:
			triggered = true
		case order.Limit:
			triggered = actual <= ord.Price
		case order.Stop:
			triggered = actual > ord.Price
		default:
			return false, fmt.Errorf("%w: %q", order.ErrUnsupportedType, string(ord.Type))
		}
		if !triggered || !canFund {
			return false, nil
		}
		c.ledger[quote] -= notional
		sample.RemainingVolume -= ord.Amount
		return true, nil

	case order.Sell:
		var triggered bool
		switch ord.Type {
		case order.Market:
			triggered = true
		case order.Limit:
			triggered = actual >= ord.Price
		case order.Stop:
			triggered = actual < ord.Price
		default:
			return false, fmt.Errorf("%w: %q", order.ErrUnsupportedType, string(ord.Type))
		}
		if !triggered {
			return false, nil
		}
		c.ledger[quote] += notional
		sample.RemainingVolume += ord.Amount
		return true, nil

	default:
		return false, fmt.Errorf("unknown order side: %q", string(ord.Side))
	}
}
