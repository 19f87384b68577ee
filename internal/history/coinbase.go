package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Source retrieves OHLCV buckets for one product over one window. The
// returned buckets carry no symbol; the fetcher tags them.
type Source interface {
	GetCandles(ctx context.Context, product string, start, end time.Time, granularity int64) ([]Bucket, error)
}

const (
	// MaxBucketsPerRequest is the pagination cap of the candle endpoint.
	// Requests spanning more buckets than this are rejected upstream, so
	// the fetcher windows its date ranges accordingly.
	MaxBucketsPerRequest = 300

	// defaultRequestEvery keeps requests under the public API rate limit.
	defaultRequestEvery = 350 * time.Millisecond

	defaultBaseURL = "https://api.exchange.coinbase.com"
)

// CoinbaseSource fetches historic rates from the Coinbase Exchange public
// API. Calls are throttled through a token bucket so that concurrent
// retrievals stay under the external rate limit; exceeding it causes
// request failures, so the throttle is a correctness requirement.
type CoinbaseSource struct {
	baseURL     string
	client      *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	retryDelay  time.Duration
	logger      *zap.Logger
}

// SourceOption configures a CoinbaseSource.
type SourceOption func(*CoinbaseSource)

// WithBaseURL points the source at a different API endpoint.
func WithBaseURL(u string) SourceOption {
	return func(s *CoinbaseSource) { s.baseURL = u }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) SourceOption {
	return func(s *CoinbaseSource) { s.client = c }
}

// WithRequestEvery sets the minimum spacing between candle requests.
func WithRequestEvery(d time.Duration) SourceOption {
	return func(s *CoinbaseSource) { s.limiter = rate.NewLimiter(rate.Every(d), 1) }
}

// WithRetry sets the attempt count and base backoff delay for failed calls.
func WithRetry(attempts int, delay time.Duration) SourceOption {
	return func(s *CoinbaseSource) {
		s.maxAttempts = attempts
		s.retryDelay = delay
	}
}

// NewCoinbaseSource constructs a source with sane public-API defaults.
func NewCoinbaseSource(logger *zap.Logger, opts ...SourceOption) *CoinbaseSource {
	s := &CoinbaseSource{
		baseURL:     defaultBaseURL,
		client:      &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(rate.Every(defaultRequestEvery), 1),
		maxAttempts: 3,
		retryDelay:  2 * time.Second,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetCandles retrieves buckets for product over [start, end), honoring the
// rate limit and retrying transient failures with exponential backoff.
func (s *CoinbaseSource) GetCandles(ctx context.Context, product string, start, end time.Time, granularity int64) ([]Bucket, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	values := url.Values{}
	values.Set("start", start.UTC().Format(time.RFC3339))
	values.Set("end", end.UTC().Format(time.RFC3339))
	values.Set("granularity", strconv.FormatInt(granularity, 10))
	endpoint := fmt.Sprintf("%s/products/%s/candles?%s", s.baseURL, product, values.Encode())

	var raw [][]float64
	backoff := s.retryDelay
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		raw, lastErr = s.getCandlesOnce(ctx, endpoint)
		if lastErr == nil {
			break
		}
		s.logger.Warn("candle request failed",
			zap.String("product", product),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.maxAttempts),
			zap.Error(lastErr))
		if attempt == s.maxAttempts {
			return nil, fmt.Errorf("fetching candles for %s: %w", product, lastErr)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	buckets := make([]Bucket, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 6 {
			continue
		}
		// Wire format: [time, low, high, open, close, volume].
		buckets = append(buckets, Bucket{
			Time:   time.Unix(int64(entry[0]), 0).UTC(),
			Low:    entry[1],
			High:   entry[2],
			Open:   entry[3],
			Close:  entry[4],
			Volume: entry[5],
		})
	}
	return buckets, nil
}

func (s *CoinbaseSource) getCandlesOnce(ctx context.Context, endpoint string) ([][]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var raw [][]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding candle response: %w", err)
	}
	return raw, nil
}
