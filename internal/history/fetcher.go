package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/guanacodev/guanaco/internal/symbol"
)

// ErrEmptyHistory signals that no buckets were retrievable for the
// requested range. Callers must not silently consume an empty timeline.
var ErrEmptyHistory = errors.New("no history available for the requested range")

// Storage is an optional candle cache consulted before the remote source.
type Storage interface {
	GetCandles(ctx context.Context, sym symbol.Symbol, granularity int64, start, end time.Time) ([]Bucket, error)
	SaveCandles(ctx context.Context, granularity int64, buckets []Bucket) error
}

// Fetcher retrieves historical buckets for a set of symbols and merges the
// per-symbol streams into a single chronological timeline.
type Fetcher struct {
	source  Source
	cache   Storage
	symbols []symbol.Symbol
	logger  *zap.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithCache consults st before issuing remote requests and saves freshly
// downloaded buckets back into it.
func WithCache(st Storage) FetcherOption {
	return func(f *Fetcher) { f.cache = st }
}

// NewFetcher constructs a fetcher over the given source and symbols.
func NewFetcher(source Source, symbols []symbol.Symbol, logger *zap.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		source:  source,
		symbols: symbols,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type fetchWindow struct {
	sym        symbol.Symbol
	start, end time.Time
}

// Fetch retrieves buckets for every symbol over [start, end) at the given
// interval and returns the merged timeline. Retrievals run concurrently and
// complete in any order; the phase fails as a whole if any of them fails.
// An empty result yields ErrEmptyHistory.
func (f *Fetcher) Fetch(ctx context.Context, interval Interval, start, end time.Time) (Timeline, error) {
	if err := interval.Validate(); err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("start %s must be before end %s", start, end)
	}

	var all []Bucket
	var misses []symbol.Symbol
	for _, sym := range f.symbols {
		cached, err := f.lookupCache(ctx, sym, interval, start, end)
		if err != nil {
			return nil, err
		}
		if len(cached) > 0 {
			all = append(all, cached...)
			continue
		}
		misses = append(misses, sym)
	}

	if len(misses) > 0 {
		fetched, err := f.fetchRemote(ctx, interval, start, end, misses)
		if err != nil {
			return nil, err
		}
		all = append(all, fetched...)
	}

	timeline := BuildTimeline(all)
	if len(timeline) == 0 {
		return nil, ErrEmptyHistory
	}
	f.logger.Info("assembled timeline",
		zap.Int("ticks", len(timeline)),
		zap.Int("symbols", len(f.symbols)),
		zap.Time("start", start),
		zap.Time("end", end))
	return timeline, nil
}

func (f *Fetcher) lookupCache(ctx context.Context, sym symbol.Symbol, interval Interval, start, end time.Time) ([]Bucket, error) {
	if f.cache == nil {
		return nil, nil
	}
	cached, err := f.cache.GetCandles(ctx, sym, interval.Seconds(), start, end)
	if err != nil {
		return nil, fmt.Errorf("loading cached candles for %s: %w", sym, err)
	}
	return cached, nil
}

// fetchRemote issues one retrieval per (symbol, window) pair. Windows are
// sized so that no request exceeds the source's pagination cap.
func (f *Fetcher) fetchRemote(ctx context.Context, interval Interval, start, end time.Time, symbols []symbol.Symbol) ([]Bucket, error) {
	windowLen := time.Duration(MaxBucketsPerRequest) * interval.Duration()

	var windows []fetchWindow
	for _, sym := range symbols {
		for cur := start; cur.Before(end); cur = cur.Add(windowLen) {
			next := cur.Add(windowLen)
			if next.After(end) {
				next = end
			}
			windows = append(windows, fetchWindow{sym: sym, start: cur, end: next})
		}
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		bySymbol = make(map[symbol.Symbol][]Bucket, len(symbols))
	)
	errCh := make(chan error, len(windows))

	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(w fetchWindow) {
			defer wg.Done()
			buckets, err := f.source.GetCandles(ctx, w.sym.Product(), w.start, w.end, interval.Seconds())
			if err != nil {
				errCh <- fmt.Errorf("fetching %s [%s, %s): %w",
					w.sym, w.start.Format(time.RFC3339), w.end.Format(time.RFC3339), err)
				return
			}
			tagged := make([]Bucket, 0, len(buckets))
			for _, b := range buckets {
				b.Symbol = w.sym
				if err := b.Validate(); err != nil {
					f.logger.Warn("skipping invalid bucket",
						zap.String("symbol", string(w.sym)), zap.Error(err))
					continue
				}
				tagged = append(tagged, b)
			}
			mu.Lock()
			bySymbol[w.sym] = append(bySymbol[w.sym], tagged...)
			mu.Unlock()
		}(w)
	}

	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return nil, err
	}

	var all []Bucket
	for sym, buckets := range bySymbol {
		if f.cache != nil && len(buckets) > 0 {
			if err := f.cache.SaveCandles(ctx, interval.Seconds(), buckets); err != nil {
				return nil, fmt.Errorf("caching candles for %s: %w", sym, err)
			}
		}
		all = append(all, buckets...)
	}
	return all, nil
}
