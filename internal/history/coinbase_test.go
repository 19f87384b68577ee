package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCoinbaseSourceGetCandles(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/BTC-USD/candles", r.URL.Path)
		assert.Equal(t, "3600", r.URL.Query().Get("granularity"))
		assert.Equal(t, start.Format(time.RFC3339), r.URL.Query().Get("start"))
		assert.Equal(t, end.Format(time.RFC3339), r.URL.Query().Get("end"))

		// Wire format: [time, low, high, open, close, volume].
		_ = json.NewEncoder(w).Encode([][]float64{
			{float64(start.Add(time.Hour).Unix()), 95, 110, 100, 105, 3.5},
			{float64(start.Unix()), 90, 108, 95, 100, 5},
			{float64(start.Unix())}, // malformed short row, skipped
		})
	}))
	defer srv.Close()

	source := NewCoinbaseSource(zap.NewNop(),
		WithBaseURL(srv.URL),
		WithRequestEvery(time.Microsecond))

	buckets, err := source.GetCandles(context.Background(), "BTC-USD", start, end, 3600)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	assert.Equal(t, start.Add(time.Hour), buckets[0].Time)
	assert.Equal(t, 95.0, buckets[0].Low)
	assert.Equal(t, 110.0, buckets[0].High)
	assert.Equal(t, 100.0, buckets[0].Open)
	assert.Equal(t, 105.0, buckets[0].Close)
	assert.Equal(t, 3.5, buckets[0].Volume)
	assert.Empty(t, buckets[0].Symbol, "the source never tags symbols")

	assert.Equal(t, start, buckets[1].Time)
}

func TestCoinbaseSourceRetries(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "rate limit", http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode([][]float64{
			{float64(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Unix()), 90, 110, 95, 100, 5},
		})
	}))
	defer srv.Close()

	source := NewCoinbaseSource(zap.NewNop(),
		WithBaseURL(srv.URL),
		WithRequestEvery(time.Microsecond),
		WithRetry(3, time.Millisecond))

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	buckets, err := source.GetCandles(context.Background(), "BTC-USD", start, start.Add(time.Hour), 3600)
	require.NoError(t, err)
	assert.Len(t, buckets, 1)
	assert.Equal(t, int64(2), hits.Load())
}

func TestCoinbaseSourceGivesUp(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	source := NewCoinbaseSource(zap.NewNop(),
		WithBaseURL(srv.URL),
		WithRequestEvery(time.Microsecond),
		WithRetry(3, time.Millisecond))

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := source.GetCandles(context.Background(), "BTC-USD", start, start.Add(time.Hour), 3600)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int64(3), hits.Load())
}

func TestCoinbaseSourceContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	source := NewCoinbaseSource(zap.NewNop(),
		WithBaseURL(srv.URL),
		WithRequestEvery(time.Microsecond),
		WithRetry(5, time.Hour)) // backoff would block forever without ctx

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := source.GetCandles(ctx, "BTC-USD", start, start.Add(time.Hour), 3600)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
