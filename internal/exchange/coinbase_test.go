package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/guanacodev/guanaco/internal/order"
	"github.com/guanacodev/guanaco/internal/symbol"
)

const testSecret = "c2VjcmV0LWtleQ==" // base64("secret-key")

func testCoinbase(t *testing.T, handler http.HandlerFunc) *Coinbase {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewCoinbase(CoinbaseOptions{
		Key:        "api-key",
		Secret:     testSecret,
		Passphrase: "hunter2",
		BaseURL:    srv.URL,
	}, zap.NewNop())
}

func TestCoinbaseInfo(t *testing.T) {
	client := testCoinbase(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/BTC-USD/ticker", r.URL.Path)
		assert.Equal(t, "api-key", r.Header.Get("CB-ACCESS-KEY"))
		assert.Equal(t, "hunter2", r.Header.Get("CB-ACCESS-PASSPHRASE"))
		assert.NotEmpty(t, r.Header.Get("CB-ACCESS-TIMESTAMP"))

		// The signature must be HMAC-SHA256(timestamp+method+path, secret).
		secret, err := base64.StdEncoding.DecodeString(testSecret)
		require.NoError(t, err)
		mac := hmac.New(sha256.New, secret)
		mac.Write([]byte(r.Header.Get("CB-ACCESS-TIMESTAMP") + r.Method + r.URL.Path))
		want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
		assert.Equal(t, want, r.Header.Get("CB-ACCESS-SIGN"))

		_ = json.NewEncoder(w).Encode(map[string]string{
			"bid": "49990.1", "ask": "50010.9", "price": "50000.5", "volume": "123.4",
		})
	})

	info, err := client.Info(context.Background(), symbol.BTCUSD)
	require.NoError(t, err)
	assert.Equal(t, 49990.1, info.Ticker.Bid)
	assert.Equal(t, 50010.9, info.Ticker.Ask)
	assert.Equal(t, 50000.5, info.Ticker.Last)
	assert.Equal(t, 123.4, info.Ticker.Volume)
}

func TestCoinbasePlaceOrder(t *testing.T) {
	var got map[string]string
	client := testCoinbase(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_ = json.NewEncoder(w).Encode(coinbaseOrder{ID: "d50ec984", Status: "pending"})
	})

	t.Run("limit buy", func(t *testing.T) {
		resp, err := client.Buy(context.Background(), symbol.BTCUSD, 0.5, 48000, order.Limit)
		require.NoError(t, err)
		assert.Equal(t, order.StatusSuccess, resp.Status)
		assert.Equal(t, order.ID("d50ec984"), resp.ID)
		assert.Equal(t, "buy", got["side"])
		assert.Equal(t, "limit", got["type"])
		assert.Equal(t, "48000", got["price"])
		assert.Equal(t, "0.5", got["size"])
		assert.Equal(t, "BTC-USD", got["product_id"])
	})

	t.Run("stop sell maps to stop loss", func(t *testing.T) {
		_, err := client.Sell(context.Background(), symbol.BTCUSD, 1, 45000, order.Stop)
		require.NoError(t, err)
		assert.Equal(t, "sell", got["side"])
		assert.Equal(t, "market", got["type"])
		assert.Equal(t, "loss", got["stop"])
		assert.Equal(t, "45000", got["stop_price"])
	})

	t.Run("unsupported type never hits the wire", func(t *testing.T) {
		resp, err := client.Buy(context.Background(), symbol.BTCUSD, 1, 0, order.Type("trailing"))
		require.ErrorIs(t, err, order.ErrUnsupportedType)
		assert.Equal(t, order.StatusFailure, resp.Status)
	})
}

func TestCoinbaseCancel(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := testCoinbase(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/orders/d50ec984", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		})
		resp, err := client.Cancel(context.Background(), order.ID("d50ec984"))
		require.NoError(t, err)
		assert.Equal(t, order.StatusSuccess, resp.Status)
	})

	t.Run("unknown order maps to not found", func(t *testing.T) {
		client := testCoinbase(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"order not found"}`, http.StatusNotFound)
		})
		resp, err := client.Cancel(context.Background(), order.ID("nope"))
		assert.ErrorIs(t, err, order.ErrNotFound)
		assert.Equal(t, order.StatusFailure, resp.Status)
	})
}

func TestCoinbaseHistory(t *testing.T) {
	client := testCoinbase(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all", r.URL.Query().Get("status"))
		_ = json.NewEncoder(w).Encode([]coinbaseOrder{
			{ID: "b", ProductID: "ETH-USD", Side: "sell", Type: "limit", Price: "3000", Size: "2", Settled: false, CreatedAt: "2024-03-02T00:00:00Z"},
			{ID: "a", ProductID: "BTC-USD", Side: "buy", Type: "market", Size: "1", Settled: true, CreatedAt: "2024-03-01T00:00:00Z"},
			{ID: "x", ProductID: "DOGE-USD", Side: "buy", Type: "market", Size: "1"}, // unsupported pair, dropped
		})
	})

	hist, err := client.History(context.Background())
	require.NoError(t, err)
	require.Len(t, hist, 2)

	// Oldest first, regardless of API ordering.
	assert.Equal(t, order.ID("a"), hist[0].ID)
	assert.Equal(t, symbol.BTCUSD, hist[0].Symbol)
	assert.True(t, hist[0].Executed)
	assert.Equal(t, order.ID("b"), hist[1].ID)
	assert.Equal(t, 3000.0, hist[1].Price)
	assert.False(t, hist[1].Executed)
}
