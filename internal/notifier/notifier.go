// Package notifier
package notifier

import (
	"time"

	"go.uber.org/zap"
)

// Notifier sends out-of-band notifications (e.g. Telegram).
type Notifier interface {
	Send(msg string) error
	SendWithRetry(msg string) error
}

// Noop discards every notification. Used when no notifier is configured.
type Noop struct{}

func (Noop) Send(string) error          { return nil }
func (Noop) SendWithRetry(string) error { return nil }

// Retrying wraps a Notifier with a fixed retry policy.
type Retrying struct {
	inner    Notifier
	attempts int
	delay    time.Duration
	logger   *zap.Logger
}

// WithRetry wraps n so SendWithRetry retries failed sends.
func WithRetry(n Notifier, attempts int, delay time.Duration, logger *zap.Logger) *Retrying {
	return &Retrying{inner: n, attempts: attempts, delay: delay, logger: logger}
}

func (r *Retrying) Send(msg string) error { return r.inner.Send(msg) }

func (r *Retrying) SendWithRetry(msg string) error {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err = r.inner.Send(msg); err == nil {
			return nil
		}
		r.logger.Warn("notification send failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.attempts),
			zap.Error(err))
		time.Sleep(r.delay)
	}
	return err
}
