package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/guanacodev/guanaco/internal/order"
	"github.com/guanacodev/guanaco/internal/symbol"
)

const coinbaseBaseURL = "https://api.exchange.coinbase.com"

// CoinbaseOptions carries the API credentials for a Coinbase client.
type CoinbaseOptions struct {
	Key        string
	Secret     string // base64-encoded API secret
	Passphrase string
	BaseURL    string // defaults to the production endpoint
}

// Coinbase is a live client for the Coinbase Exchange API.
type Coinbase struct {
	opts   CoinbaseOptions
	client *http.Client
	logger *zap.Logger
}

var _ Client = (*Coinbase)(nil)

// NewCoinbase constructs a live Coinbase client.
func NewCoinbase(opts CoinbaseOptions, logger *zap.Logger) *Coinbase {
	if opts.BaseURL == "" {
		opts.BaseURL = coinbaseBaseURL
	}
	return &Coinbase{
		opts:   opts,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

type coinbaseTicker struct {
	Bid    string `json:"bid"`
	Ask    string `json:"ask"`
	Price  string `json:"price"`
	Volume string `json:"volume"`
}

// Info returns the current ticker for sym.
func (c *Coinbase) Info(ctx context.Context, sym symbol.Symbol) (symbol.Info, error) {
	var ticker coinbaseTicker
	path := fmt.Sprintf("/products/%s/ticker", sym.Product())
	if err := c.do(ctx, http.MethodGet, path, nil, &ticker); err != nil {
		return symbol.Info{}, fmt.Errorf("fetching ticker for %s: %w", sym, err)
	}
	return symbol.Info{
		Ticker: symbol.Ticker{
			Bid:    parseFloat(ticker.Bid),
			Ask:    parseFloat(ticker.Ask),
			Last:   parseFloat(ticker.Price),
			Volume: parseFloat(ticker.Volume),
		},
	}, nil
}

// Buy places a live buy order.
func (c *Coinbase) Buy(ctx context.Context, sym symbol.Symbol, amount, price float64, typ order.Type) (order.Response, error) {
	return c.placeOrder(ctx, order.Buy, sym, amount, price, typ)
}

// Sell places a live sell order.
func (c *Coinbase) Sell(ctx context.Context, sym symbol.Symbol, amount, price float64, typ order.Type) (order.Response, error) {
	return c.placeOrder(ctx, order.Sell, sym, amount, price, typ)
}

type coinbaseOrder struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Side      string `json:"side"`
	Type      string `json:"type"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Settled   bool   `json:"settled"`
	CreatedAt string `json:"created_at"`
	Status    string `json:"status"`
}

func (c *Coinbase) placeOrder(ctx context.Context, side order.Side, sym symbol.Symbol, amount, price float64, typ order.Type) (order.Response, error) {
	if err := typ.Validate(); err != nil {
		return order.Response{Status: order.StatusFailure}, err
	}

	body := map[string]string{
		"product_id": sym.Product(),
		"side":       string(side),
		"size":       strconv.FormatFloat(amount, 'f', -1, 64),
	}
	switch typ {
	case order.Market:
		body["type"] = "market"
	case order.Limit:
		body["type"] = "limit"
		body["price"] = strconv.FormatFloat(price, 'f', -1, 64)
	case order.Stop:
		// Stop orders rest until the market crosses the stop price, then
		// submit as market orders.
		body["type"] = "market"
		body["stop"] = "loss"
		body["stop_price"] = strconv.FormatFloat(price, 'f', -1, 64)
	}

	var placed coinbaseOrder
	if err := c.do(ctx, http.MethodPost, "/orders", body, &placed); err != nil {
		return order.Response{Status: order.StatusFailure}, fmt.Errorf("placing %s order for %s: %w", side, sym, err)
	}
	return order.Response{
		ID:      order.ID(placed.ID),
		Status:  order.StatusSuccess,
		Message: fmt.Sprintf("order placed: %s", placed.Status),
	}, nil
}

// Cancel cancels a live order. An unknown id is reported as the recoverable
// order.ErrNotFound.
func (c *Coinbase) Cancel(ctx context.Context, id order.ID) (order.Response, error) {
	err := c.do(ctx, http.MethodDelete, "/orders/"+string(id), nil, nil)
	if err != nil {
		return order.Response{
			Status:  order.StatusFailure,
			Message: err.Error(),
		}, fmt.Errorf("%w: %s", order.ErrNotFound, id)
	}
	return order.Response{ID: id, Status: order.StatusSuccess}, nil
}

// CancelAll cancels every open order for the account.
func (c *Coinbase) CancelAll(ctx context.Context) (order.Response, error) {
	var cancelled []string
	if err := c.do(ctx, http.MethodDelete, "/orders", nil, &cancelled); err != nil {
		return order.Response{Status: order.StatusFailure, Message: err.Error()}, err
	}
	return order.Response{
		Status:  order.StatusSuccess,
		Message: fmt.Sprintf("cancelled %d orders", len(cancelled)),
	}, nil
}

// History returns the account's orders, oldest first.
func (c *Coinbase) History(ctx context.Context) ([]order.Order, error) {
	var raw []coinbaseOrder
	if err := c.do(ctx, http.MethodGet, "/orders?status=all", nil, &raw); err != nil {
		return nil, fmt.Errorf("fetching order history: %w", err)
	}

	out := make([]order.Order, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- { // API returns latest first
		o := raw[i]
		sym, err := symbol.FromProduct(o.ProductID)
		if err != nil {
			continue
		}
		created, _ := time.Parse(time.RFC3339, o.CreatedAt)
		out = append(out, order.Order{
			ID:          order.ID(o.ID),
			Symbol:      sym,
			Side:        order.Side(o.Side),
			Type:        order.Type(o.Type),
			Amount:      parseFloat(o.Size),
			Price:       parseFloat(o.Price),
			SubmittedAt: created,
			Executed:    o.Settled,
		})
	}
	return out, nil
}

// do issues a signed request and decodes the JSON response into result.
func (c *Coinbase) do(ctx context.Context, method, path string, body map[string]string, result any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature, err := c.sign(timestamp + method + path + string(payload))
	if err != nil {
		return err
	}
	req.Header.Set("CB-ACCESS-KEY", c.opts.Key)
	req.Header.Set("CB-ACCESS-SIGN", signature)
	req.Header.Set("CB-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("CB-ACCESS-PASSPHRASE", c.opts.Passphrase)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Coinbase) sign(message string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(c.opts.Secret)
	if err != nil {
		return "", fmt.Errorf("decoding API secret: %w", err)
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// parseFloat converts an API decimal string to a float64, flooring at zero.
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}
