// Package history
package history

import (
	"fmt"
	"time"
)

// Interval is the sampling granularity of historical buckets. The values
// mirror the granularities accepted by the candle endpoint.
type Interval time.Duration

const (
	OneMin     Interval = Interval(time.Minute)
	FiveMin    Interval = Interval(5 * time.Minute)
	FifteenMin Interval = Interval(15 * time.Minute)
	OneHour    Interval = Interval(time.Hour)
	SixHours   Interval = Interval(6 * time.Hour)
	OneDay     Interval = Interval(24 * time.Hour)
)

// Duration returns the interval as a time.Duration.
func (i Interval) Duration() time.Duration { return time.Duration(i) }

// Seconds returns the interval in whole seconds, the unit the candle
// endpoint expects for granularity.
func (i Interval) Seconds() int64 { return int64(i.Duration() / time.Second) }

// Validate checks that the interval is one of the supported granularities.
func (i Interval) Validate() error {
	switch i {
	case OneMin, FiveMin, FifteenMin, OneHour, SixHours, OneDay:
		return nil
	default:
		return fmt.Errorf("unsupported interval: %s", i.Duration())
	}
}

// ParseInterval converts a granularity in seconds into an Interval.
func ParseInterval(seconds int64) (Interval, error) {
	i := Interval(time.Duration(seconds) * time.Second)
	if err := i.Validate(); err != nil {
		return 0, err
	}
	return i, nil
}
