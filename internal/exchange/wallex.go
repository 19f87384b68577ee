package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	wallex "github.com/wallexchange/wallex-go"
	"go.uber.org/zap"

	"github.com/guanacodev/guanaco/internal/order"
	"github.com/guanacodev/guanaco/internal/symbol"
)

// Wallex adapts the Wallex exchange SDK to the Client interface. Wallex
// quotes crypto against USDT, so usd-quoted symbols map onto their USDT
// markets.
type Wallex struct {
	client *wallex.Client
	logger *zap.Logger

	mu     sync.Mutex
	placed []order.Order // local record; the API has no list-orders call
}

var _ Client = (*Wallex)(nil)

// NewWallex constructs a live Wallex client.
func NewWallex(apiKey string, logger *zap.Logger) *Wallex {
	return &Wallex{
		client: wallex.New(wallex.ClientOptions{APIKey: apiKey}),
		logger: logger,
	}
}

// wallexSymbol converts a Symbol to Wallex market notation
// ("btcusd" -> "BTCUSDT").
func wallexSymbol(sym symbol.Symbol) string {
	base := strings.ToUpper(string(sym.Base()))
	quote := strings.ToUpper(string(sym.Quote()))
	if quote == "USD" {
		quote = "USDT"
	}
	return base + quote
}

// Info returns the market stats for sym.
func (w *Wallex) Info(ctx context.Context, sym symbol.Symbol) (symbol.Info, error) {
	if err := ctx.Err(); err != nil {
		return symbol.Info{}, err
	}

	markets, err := w.client.Markets()
	if err != nil {
		return symbol.Info{}, fmt.Errorf("fetching markets: %w", err)
	}

	want := wallexSymbol(sym)
	for _, market := range markets {
		if market.Symbol != want {
			continue
		}
		return symbol.Info{
			Ticker: symbol.Ticker{
				Bid:    parseNumber(&market.Stats.BidPrice),
				Ask:    parseNumber(&market.Stats.AskPrice),
				Last:   parseNumber(&market.Stats.LastPrice),
				Volume: parseNumber(&market.Stats.Volume24H),
			},
		}, nil
	}
	return symbol.Info{}, fmt.Errorf("no market found for %s", sym)
}

// Buy places a live buy order.
func (w *Wallex) Buy(ctx context.Context, sym symbol.Symbol, amount, price float64, typ order.Type) (order.Response, error) {
	return w.placeOrder(ctx, order.Buy, sym, amount, price, typ)
}

// Sell places a live sell order.
func (w *Wallex) Sell(ctx context.Context, sym symbol.Symbol, amount, price float64, typ order.Type) (order.Response, error) {
	return w.placeOrder(ctx, order.Sell, sym, amount, price, typ)
}

func (w *Wallex) placeOrder(ctx context.Context, side order.Side, sym symbol.Symbol, amount, price float64, typ order.Type) (order.Response, error) {
	if err := typ.Validate(); err != nil {
		return order.Response{Status: order.StatusFailure}, err
	}
	if typ == order.Stop {
		// Wallex only supports market and limit orders.
		return order.Response{Status: order.StatusFailure},
			fmt.Errorf("%w: stop orders are not supported by wallex", order.ErrUnsupportedType)
	}
	if err := ctx.Err(); err != nil {
		return order.Response{Status: order.StatusFailure}, err
	}

	resp, err := w.client.PlaceOrder(&wallex.OrderParams{
		Symbol:   wallexSymbol(sym),
		Type:     strings.ToUpper(string(typ)),
		Side:     strings.ToUpper(string(side)),
		Price:    wallex.Number(strconv.FormatFloat(price, 'f', 8, 64)),
		Quantity: wallex.Number(strconv.FormatFloat(amount, 'f', 8, 64)),
	})
	if err != nil {
		return order.Response{Status: order.StatusFailure}, fmt.Errorf("placing %s order for %s: %w", side, sym, err)
	}

	placed := order.Order{
		ID:          order.ID(resp.ClientOrderID),
		Symbol:      sym,
		Side:        side,
		Type:        typ,
		Amount:      amount,
		Price:       price,
		SubmittedAt: resp.CreatedAt.UTC(),
	}
	w.mu.Lock()
	w.placed = append(w.placed, placed)
	w.mu.Unlock()

	w.logger.Info("wallex order placed",
		zap.String("id", resp.ClientOrderID),
		zap.String("symbol", string(sym)),
		zap.String("side", string(side)))
	return order.Response{
		ID:      placed.ID,
		Status:  order.StatusSuccess,
		Message: fmt.Sprintf("order placed: %s", resp.Status),
	}, nil
}

// Cancel cancels a live order.
func (w *Wallex) Cancel(ctx context.Context, id order.ID) (order.Response, error) {
	if err := ctx.Err(); err != nil {
		return order.Response{Status: order.StatusFailure}, err
	}
	if err := w.client.CancelOrder(string(id)); err != nil {
		return order.Response{
			Status:  order.StatusFailure,
			Message: err.Error(),
		}, fmt.Errorf("%w: %s", order.ErrNotFound, id)
	}
	return order.Response{ID: id, Status: order.StatusSuccess}, nil
}

// CancelAll cancels every order placed through this client that is still
// open.
func (w *Wallex) CancelAll(ctx context.Context) (order.Response, error) {
	w.mu.Lock()
	ids := make([]order.ID, 0, len(w.placed))
	for _, o := range w.placed {
		ids = append(ids, o.ID)
	}
	w.mu.Unlock()

	cancelled := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return order.Response{Status: order.StatusFailure}, err
		}
		if err := w.client.CancelOrder(string(id)); err != nil {
			continue // already filled or cancelled
		}
		cancelled++
	}
	return order.Response{
		Status:  order.StatusSuccess,
		Message: fmt.Sprintf("cancelled %d orders", cancelled),
	}, nil
}

// History returns the orders placed through this client, with execution
// state refreshed from the exchange.
func (w *Wallex) History(ctx context.Context) ([]order.Order, error) {
	w.mu.Lock()
	out := make([]order.Order, len(w.placed))
	copy(out, w.placed)
	w.mu.Unlock()

	for i := range out {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := w.client.Order(string(out[i].ID))
		if err != nil {
			continue
		}
		status := strings.ToUpper(resp.Status)
		out[i].Executed = status == "FILLED" || status == "CANCELED"
	}
	return out, nil
}

// parseNumber safely converts a *wallex.Number to float64.
func parseNumber(n *wallex.Number) float64 {
	if n == nil {
		return 0
	}
	out, _ := strconv.ParseFloat(string(*n), 64)
	return out
}
