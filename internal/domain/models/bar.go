package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoBars            = errors.New("no bars")
	ErrNonIncreasingTime = errors.New("bar timestamps must be strictly increasing")
	ErrInvalidPrice      = errors.New("invalid bar prices")
	ErrInvalidVolume     = errors.New("invalid bar volume")
)

// Bar is one OHLCV interval.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Candle is a stored bar for a symbol.
type Candle struct {
	Bar
	Symbol string
}

// ValidateBars checks ordering and OHLC consistency of a bar sequence.
func ValidateBars(bars []Bar) error {
	if len(bars) == 0 {
		return ErrNoBars
	}
	for i, b := range bars {
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return fmt.Errorf("bar %d at %s: %w", i, b.Time.Format(time.RFC3339), ErrNonIncreasingTime)
		}
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return fmt.Errorf("bar %d: non-positive price: %w", i, ErrInvalidPrice)
		}
		if b.High < b.Open || b.High < b.Close || b.Low > b.Open || b.Low > b.Close {
			return fmt.Errorf("bar %d: high/low do not bound open/close: %w", i, ErrInvalidPrice)
		}
		if b.Volume < 0 {
			return fmt.Errorf("bar %d: %w", i, ErrInvalidVolume)
		}
	}
	return nil
}

// Closes extracts close prices.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
