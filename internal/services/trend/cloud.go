// Package trend classifies market direction from a fast and a slow
// exponential moving average of closes.
package trend

import (
	"math"

	"LevelScope/internal/domain/models"
)

const (
	DefaultShort         = 20
	DefaultMid           = 50
	DefaultFlatThreshold = 0.002

	minDivisor = 1e-12
)

type Options struct {
	Short         int
	Mid           int
	FlatThreshold float64
}

func (o Options) withDefaults() Options {
	if o.Short <= 0 {
		o.Short = DefaultShort
	}
	if o.Mid <= 0 {
		o.Mid = DefaultMid
	}
	if o.FlatThreshold == 0 {
		o.FlatThreshold = DefaultFlatThreshold
	}
	return o
}

// Alpha is the smoothing factor 2/(window+1).
func Alpha(window int) float64 {
	return 2 / (float64(window) + 1)
}

func step(prev, x, alpha float64) float64 {
	return alpha*x + (1-alpha)*prev
}

// EMA returns the exponential moving average of values, seeded with the first value.
func EMA(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := Alpha(window)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = step(out[i-1], values[i], alpha)
	}
	return out
}

// Classify maps a fast/slow pair to a trend state. The averages count as
// flat when their relative gap is below threshold.
func Classify(fast, slow, threshold float64) models.TrendState {
	if math.Abs(fast-slow)/math.Max(math.Abs(slow), minDivisor) < threshold {
		return models.TrendFlat
	}
	if fast > slow {
		return models.TrendUp
	}
	return models.TrendDown
}

// Point is the cloud at one bar.
type Point struct {
	Fast  float64
	Slow  float64
	State models.TrendState
}

// Cloud recomputes both averages and the state for every close.
func Cloud(closes []float64, opts Options) []Point {
	opts = opts.withDefaults()
	fast := EMA(closes, opts.Short)
	slow := EMA(closes, opts.Mid)
	out := make([]Point, len(closes))
	for i := range closes {
		out[i] = Point{Fast: fast[i], Slow: slow[i], State: Classify(fast[i], slow[i], opts.FlatThreshold)}
	}
	return out
}

// Tracker maintains the cloud one close at a time. After n updates its
// values equal the last point of Cloud over the same n closes.
type Tracker struct {
	opts      Options
	fastAlpha float64
	slowAlpha float64
	fast      float64
	slow      float64
	seeded    bool
}

func NewTracker(opts Options) *Tracker {
	opts = opts.withDefaults()
	return &Tracker{
		opts:      opts,
		fastAlpha: Alpha(opts.Short),
		slowAlpha: Alpha(opts.Mid),
	}
}

// Update folds one close into both averages and returns the new state.
func (t *Tracker) Update(close float64) models.TrendState {
	if !t.seeded {
		t.fast, t.slow, t.seeded = close, close, true
	} else {
		t.fast = step(t.fast, close, t.fastAlpha)
		t.slow = step(t.slow, close, t.slowAlpha)
	}
	return t.State()
}

// State is flat until the first update.
func (t *Tracker) State() models.TrendState {
	if !t.seeded {
		return models.TrendFlat
	}
	return Classify(t.fast, t.slow, t.opts.FlatThreshold)
}

func (t *Tracker) Fast() float64 { return t.fast }
func (t *Tracker) Slow() float64 { return t.slow }
