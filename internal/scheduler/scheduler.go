// Package scheduler
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a function the scheduler runs on a cadence.
type Task func(ctx context.Context)

// Scheduler runs market actions ahead of time: strategies on trading
// intervals, housekeeping on daily slots. All tasks stop when Stop is
// called or their context is cancelled.
type Scheduler struct {
	logger *zap.Logger

	mu      sync.Mutex
	cancels []context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs an empty scheduler.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Every runs task once per interval until the context is cancelled or the
// scheduler stops.
func (s *Scheduler) Every(ctx context.Context, interval time.Duration, task Task) error {
	if interval <= 0 {
		return fmt.Errorf("invalid schedule interval: %s", interval)
	}
	s.launch(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				task(ctx)
			}
		}
	})
	return nil
}

// Daily runs task once per day at the given hour and minute (UTC).
func (s *Scheduler) Daily(ctx context.Context, hour, minute int, task Task) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid schedule time: %02d:%02d", hour, minute)
	}
	s.launch(ctx, func(ctx context.Context) {
		for {
			now := time.Now().UTC()
			next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
			if !next.After(now) {
				next = next.Add(24 * time.Hour)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(next.Sub(now)):
				task(ctx)
			}
		}
	})
	return nil
}

func (s *Scheduler) launch(ctx context.Context, run func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancels = append(s.cancels, cancel)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run(ctx)
	}()
}

// Stop cancels every scheduled task and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}
