package history

import (
	"sort"
	"time"

	"github.com/guanacodev/guanaco/internal/symbol"
)

// TickSample is the per-symbol view of one Tick. RemainingVolume is the
// only mutable field of a built timeline: executions decrement or increment
// it while the tick is being processed.
type TickSample struct {
	TypicalPrice    float64
	RemainingVolume float64
}

// Tick is one discrete timestep of the replayed timeline. A symbol with no
// bucket at this timestamp is simply absent from Samples and is untradeable
// for the duration of the tick.
type Tick struct {
	Time    time.Time
	Samples map[symbol.Symbol]*TickSample
}

// Sample returns the sample for s this tick, if one exists.
func (t Tick) Sample(s symbol.Symbol) (*TickSample, bool) {
	sample, ok := t.Samples[s]
	return sample, ok
}

// Timeline is a sequence of ticks strictly ordered by ascending timestamp,
// each timestamp unique.
type Timeline []Tick

// BuildTimeline folds per-symbol bucket streams into a single chronological
// timeline. The fold is deterministic and insensitive to the order buckets
// arrive in.
func BuildTimeline(buckets []Bucket) Timeline {
	byTime := make(map[time.Time]Tick)
	for _, b := range buckets {
		tick, ok := byTime[b.Time]
		if !ok {
			tick = Tick{Time: b.Time, Samples: make(map[symbol.Symbol]*TickSample)}
			byTime[b.Time] = tick
		}
		tick.Samples[b.Symbol] = &TickSample{
			TypicalPrice:    b.TypicalPrice(),
			RemainingVolume: b.Volume,
		}
	}

	timeline := make(Timeline, 0, len(byTime))
	for _, tick := range byTime {
		timeline = append(timeline, tick)
	}
	sort.Slice(timeline, func(i, j int) bool {
		return timeline[i].Time.Before(timeline[j].Time)
	})
	return timeline
}
