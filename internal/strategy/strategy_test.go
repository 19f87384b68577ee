package strategy

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guanacodev/guanaco/internal/order"
	"github.com/guanacodev/guanaco/internal/symbol"
)

// fakeClient scripts the exchange side of a strategy conversation.
type fakeClient struct {
	price     float64
	infoErr   error
	cancelErr error

	buys    []order.Order
	cancels []order.ID
	nextID  int
}

func (f *fakeClient) Info(context.Context, symbol.Symbol) (symbol.Info, error) {
	if f.infoErr != nil {
		return symbol.Info{}, f.infoErr
	}
	return symbol.Info{Ticker: symbol.Ticker{Last: f.price, Bid: f.price, Ask: f.price}}, nil
}

func (f *fakeClient) Buy(_ context.Context, sym symbol.Symbol, amount, price float64, typ order.Type) (order.Response, error) {
	f.nextID++
	id := order.ID(strconv.Itoa(f.nextID))
	f.buys = append(f.buys, order.Order{ID: id, Symbol: sym, Side: order.Buy, Type: typ, Amount: amount, Price: price})
	return order.Response{ID: id, Status: order.StatusSuccess}, nil
}

func (f *fakeClient) Sell(context.Context, symbol.Symbol, float64, float64, order.Type) (order.Response, error) {
	return order.Response{Status: order.StatusSuccess}, nil
}

func (f *fakeClient) Cancel(_ context.Context, id order.ID) (order.Response, error) {
	f.cancels = append(f.cancels, id)
	if f.cancelErr != nil {
		return order.Response{Status: order.StatusFailure}, f.cancelErr
	}
	return order.Response{ID: id, Status: order.StatusSuccess}, nil
}

func (f *fakeClient) CancelAll(context.Context) (order.Response, error) {
	return order.Response{Status: order.StatusSuccess}, nil
}

func (f *fakeClient) History(context.Context) ([]order.Order, error) {
	return nil, nil
}

func TestDipBuyer(t *testing.T) {
	ctx := context.Background()
	fn := DipBuyer(symbol.BTCUSD, 0.5, 5)

	client := &fakeClient{price: 100}
	require.NoError(t, fn(ctx, client))
	assert.Empty(t, client.buys, "first tick only seeds the reference price")

	client.price = 97
	require.NoError(t, fn(ctx, client))
	assert.Empty(t, client.buys, "a 3 percent drop is below the 5 percent trigger")

	client.price = 90
	require.NoError(t, fn(ctx, client))
	require.Len(t, client.buys, 1)
	assert.Equal(t, order.Market, client.buys[0].Type)
	assert.Equal(t, 0.5, client.buys[0].Amount)

	// The reference resets each tick: no further drop, no further buy.
	require.NoError(t, fn(ctx, client))
	assert.Len(t, client.buys, 1)
}

func TestDipBuyerSkipsUntradeableTicks(t *testing.T) {
	fn := DipBuyer(symbol.BTCUSD, 1, 5)
	client := &fakeClient{infoErr: errors.New("no sample")}
	assert.NoError(t, fn(context.Background(), client))
	assert.Empty(t, client.buys)
}

func TestLimitLadder(t *testing.T) {
	ctx := context.Background()
	fn := LimitLadder(symbol.BTCUSD, 1, 10)
	client := &fakeClient{price: 100}

	require.NoError(t, fn(ctx, client))
	require.Len(t, client.buys, 1)
	assert.Empty(t, client.cancels)
	assert.Equal(t, order.Limit, client.buys[0].Type)
	assert.InDelta(t, 90.0, client.buys[0].Price, 1e-9)

	// The next tick replaces the resting order.
	client.price = 80
	require.NoError(t, fn(ctx, client))
	require.Len(t, client.cancels, 1)
	assert.Equal(t, client.buys[0].ID, client.cancels[0])
	require.Len(t, client.buys, 2)
	assert.InDelta(t, 72.0, client.buys[1].Price, 1e-9)
}

func TestLimitLadderToleratesFilledOrder(t *testing.T) {
	ctx := context.Background()
	fn := LimitLadder(symbol.BTCUSD, 1, 10)
	client := &fakeClient{price: 100}
	require.NoError(t, fn(ctx, client))

	// The resting order filled in between: cancel reports not found, the
	// ladder shrugs and places the next rung.
	client.cancelErr = order.ErrNotFound
	require.NoError(t, fn(ctx, client))
	assert.Len(t, client.buys, 2)

	// Any other cancel failure is fatal.
	client.cancelErr = errors.New("exchange down")
	assert.Error(t, fn(ctx, client))
}
