// Package store
package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/guanacodev/guanaco/internal/history"
	"github.com/guanacodev/guanaco/internal/symbol"
)

// Memory is an in-memory candle cache, used in tests and cache-less runs.
type Memory struct {
	mu sync.RWMutex

	// Buckets keyed by symbol|granularity|timestamp.
	buckets map[string]history.Bucket
}

// NewMemory constructs an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]history.Bucket)}
}

func bucketKey(sym symbol.Symbol, granularity int64, ts time.Time) string {
	return string(sym) + "|" + strconv.FormatInt(granularity, 10) + "|" + ts.UTC().Format(time.RFC3339)
}

// SaveCandles stores buckets under the given granularity, overwriting
// duplicates.
func (m *Memory) SaveCandles(ctx context.Context, granularity int64, buckets []history.Bucket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range buckets {
		if err := b.Validate(); err != nil {
			return err
		}
		b.Time = b.Time.UTC()
		m.buckets[bucketKey(b.Symbol, granularity, b.Time)] = b
	}
	return nil
}

// GetCandles returns cached buckets for sym at the given granularity inside
// [start, end), sorted by ascending time.
func (m *Memory) GetCandles(ctx context.Context, sym symbol.Symbol, granularity int64, start, end time.Time) ([]history.Bucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := string(sym) + "|" + strconv.FormatInt(granularity, 10) + "|"
	var out []history.Bucket
	for key, b := range m.buckets {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		if b.Time.Before(start) || !b.Time.Before(end) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}
