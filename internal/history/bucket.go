package history

import (
	"errors"
	"time"

	"github.com/guanacodev/guanaco/internal/symbol"
)

// Bucket is one OHLCV sample for one symbol over one interval. Immutable
// once fetched.
type Bucket struct {
	Time   time.Time     `json:"time"`
	Low    float64       `json:"low"`
	High   float64       `json:"high"`
	Open   float64       `json:"open"`
	Close  float64       `json:"close"`
	Volume float64       `json:"volume"`
	Symbol symbol.Symbol `json:"symbol"`
}

// Validate checks that a bucket has coherent data.
func (b *Bucket) Validate() error {
	if b.Time.IsZero() {
		return errors.New("bucket time is zero")
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return errors.New("bucket prices must be positive")
	}
	if b.High < b.Low {
		return errors.New("bucket high cannot be less than low")
	}
	if b.Volume < 0 {
		return errors.New("bucket volume cannot be negative")
	}
	if b.Symbol == "" {
		return errors.New("bucket symbol cannot be empty")
	}
	return nil
}

// TypicalPrice is the single-price proxy used for all matching and quoting.
func (b *Bucket) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}
