package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guanacodev/guanaco/internal/history"
	"github.com/guanacodev/guanaco/internal/symbol"
)

func testBucket(sym symbol.Symbol, ts time.Time, close float64) history.Bucket {
	return history.Bucket{
		Time: ts, Low: close - 10, High: close + 10, Open: close - 5,
		Close: close, Volume: 1, Symbol: sym,
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()

	buckets := []history.Bucket{
		testBucket(symbol.BTCUSD, base.Add(2*time.Hour), 300),
		testBucket(symbol.BTCUSD, base, 100),
		testBucket(symbol.BTCUSD, base.Add(time.Hour), 200),
		testBucket(symbol.ETHUSD, base, 50),
	}
	require.NoError(t, m.SaveCandles(ctx, 3600, buckets))

	t.Run("sorted ascending", func(t *testing.T) {
		got, err := m.GetCandles(ctx, symbol.BTCUSD, 3600, base, base.Add(3*time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, 100.0, got[0].Close)
		assert.Equal(t, 200.0, got[1].Close)
		assert.Equal(t, 300.0, got[2].Close)
	})

	t.Run("range is half open", func(t *testing.T) {
		got, err := m.GetCandles(ctx, symbol.BTCUSD, 3600, base, base.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("keyed by symbol", func(t *testing.T) {
		got, err := m.GetCandles(ctx, symbol.ETHUSD, 3600, base, base.Add(3*time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 50.0, got[0].Close)
	})

	t.Run("keyed by granularity", func(t *testing.T) {
		got, err := m.GetCandles(ctx, symbol.BTCUSD, 60, base, base.Add(3*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestMemoryOverwritesDuplicates(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()

	require.NoError(t, m.SaveCandles(ctx, 3600, []history.Bucket{testBucket(symbol.BTCUSD, base, 100)}))
	require.NoError(t, m.SaveCandles(ctx, 3600, []history.Bucket{testBucket(symbol.BTCUSD, base, 150)}))

	got, err := m.GetCandles(ctx, symbol.BTCUSD, 3600, base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 150.0, got[0].Close)
}

func TestMemoryRejectsInvalidBuckets(t *testing.T) {
	m := NewMemory()
	bad := testBucket(symbol.BTCUSD, time.Time{}, 100)
	assert.Error(t, m.SaveCandles(context.Background(), 3600, []history.Bucket{bad}))
}
