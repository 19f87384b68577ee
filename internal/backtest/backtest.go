package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/guanacodev/guanaco/internal/history"
	"github.com/guanacodev/guanaco/internal/strategy"
)

// ErrInvalidConfig is returned at construction time when the execution
// interval is shorter than the backtest interval.
var ErrInvalidConfig = errors.New("execution interval cannot be less than the backtest interval")

// HistoryProvider supplies the timeline a run replays. history.Fetcher
// satisfies it.
type HistoryProvider interface {
	Fetch(ctx context.Context, interval history.Interval, start, end time.Time) (history.Timeline, error)
}

// State of a backtest run.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateComplete
	StateFailed
)

// Config drives a Backtester.
type Config struct {
	// Interval is the tick sampling interval of the replay.
	Interval history.Interval

	// ExecutionInterval, if non-zero, is the cadence at which queued
	// orders are matched. Zero matches the queue on every tick. Must not
	// be smaller than Interval.
	ExecutionInterval history.Interval

	// ExecutionCount caps how many orders each matching pass evaluates.
	// Zero evaluates the entire queue.
	ExecutionCount int

	// Start and End bound the replayed range. A zero End means now.
	Start time.Time
	End   time.Time
}

// Backtester replays a strategy against historical data and reports the
// effect on a holdings ledger.
type Backtester struct {
	cfg      Config
	provider HistoryProvider
	state    State
	logger   *zap.Logger
}

// New validates cfg and constructs a Backtester. An execution interval
// smaller than the sampling interval fails immediately with
// ErrInvalidConfig, before any fetch occurs.
func New(cfg Config, provider HistoryProvider, logger *zap.Logger) (*Backtester, error) {
	if err := cfg.Interval.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.ExecutionInterval != 0 && cfg.ExecutionInterval < cfg.Interval {
		return nil, ErrInvalidConfig
	}
	if cfg.End.IsZero() {
		cfg.End = time.Now().UTC()
	}
	return &Backtester{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
	}, nil
}

// State reports where the most recent run got to.
func (bt *Backtester) State() State { return bt.state }

// Run replays fn against the historical timeline, starting from a copy of
// initial, and returns the per-asset delta initial[asset] - final[asset].
// Fetch failures, an empty history, a strategy error and an unsupported
// order type are all fatal: the run aborts and no partial result is
// returned.
func (bt *Backtester) Run(ctx context.Context, initial Ledger, fn strategy.Func) (Ledger, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}

	bt.state = StateRunning
	delta, err := bt.run(ctx, initial, fn)
	if err != nil {
		bt.state = StateFailed
		return nil, err
	}
	bt.state = StateComplete
	return delta, nil
}

func (bt *Backtester) run(ctx context.Context, initial Ledger, fn strategy.Func) (Ledger, error) {
	bt.logger.Info("fetching historicals",
		zap.Time("start", bt.cfg.Start),
		zap.Time("end", bt.cfg.End),
		zap.Duration("interval", bt.cfg.Interval.Duration()))

	timeline, err := bt.provider.Fetch(ctx, bt.cfg.Interval, bt.cfg.Start, bt.cfg.End)
	if err != nil {
		return nil, fmt.Errorf("getting historicals for backtesting: %w", err)
	}
	if len(timeline) == 0 {
		return nil, history.ErrEmptyHistory
	}

	ledger := initial.Copy()
	bk := newBook()

	// The countdown mirrors the execution-interval trigger: it decrements
	// by the sampling interval each tick and is reflected back positive
	// whenever it crosses zero, which is when a matching pass runs.
	countdown := bt.cfg.ExecutionInterval.Duration()

	for _, tick := range timeline {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		client := newClient(ledger, bk, tick, bt.logger)
		if err := fn(ctx, client); err != nil {
			return nil, fmt.Errorf("strategy failed at %s: %w", tick.Time.Format(time.RFC3339), err)
		}

		if bt.cfg.ExecutionInterval == 0 {
			if err := client.ExecuteOrders(bt.cfg.ExecutionCount); err != nil {
				return nil, fmt.Errorf("matching pass at %s: %w", tick.Time.Format(time.RFC3339), err)
			}
		} else {
			countdown -= bt.cfg.Interval.Duration()
			if countdown < 0 {
				countdown = -countdown
				if err := client.ExecuteOrders(bt.cfg.ExecutionCount); err != nil {
					return nil, fmt.Errorf("matching pass at %s: %w", tick.Time.Format(time.RFC3339), err)
				}
			}
		}

		// Adopt the client's resulting state for the next tick.
		ledger = client.ledger
		bk = client.book
	}

	delta := initial.Delta(ledger)
	bt.logger.Info("backtest complete",
		zap.Int("ticks", len(timeline)),
		zap.Int("orders", len(bk.orders)),
		zap.Any("delta", delta))
	return delta, nil
}
