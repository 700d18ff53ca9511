// Package signals proposes trades when price trades at a resolved level in
// the direction of the trend and sentiment does not disagree.
package signals

import (
	"math"

	"LevelScope/internal/domain/models"
)

type Options struct {
	// EntryTolerance is the relative distance from a level that still counts as at the level.
	EntryTolerance float64
	// SentimentThreshold suppresses longs below -threshold and shorts above +threshold.
	SentimentThreshold float64
	StopFloor          float64
	StopFraction       float64
	// FallbackTarget is the relative target used when no level lies beyond the entry level.
	FallbackTarget float64
}

func DefaultOptions() Options {
	return Options{
		EntryTolerance:     0.0015,
		SentimentThreshold: 0.05,
		StopFloor:          0.5,
		StopFraction:       0.005,
		FallbackTarget:     0.01,
	}
}

// Generate evaluates every level independently and returns signals in level order.
func Generate(price float64, trend models.TrendState, sentiment float64, levels []models.Level, opts Options) []models.Signal {
	if trend == models.TrendFlat {
		return nil
	}

	var out []models.Signal
	for _, lv := range levels {
		p := lv.Price
		if math.Abs(price-p) > p*opts.EntryTolerance {
			continue
		}

		stopDistance := math.Max(opts.StopFloor, p*opts.StopFraction)
		sig := models.Signal{Level: p, Entry: price, Trend: trend, Sentiment: sentiment}

		switch {
		case trend == models.TrendUp && price >= p:
			if sentiment < -opts.SentimentThreshold {
				continue
			}
			sig.Side = models.SideLong
			sig.StopLoss = p - stopDistance
			sig.TakeProfit = p * (1 + opts.FallbackTarget)
			if above, ok := nearestAbove(levels, p); ok {
				sig.TakeProfit = above
			}
		case trend == models.TrendDown && price <= p:
			if sentiment > opts.SentimentThreshold {
				continue
			}
			sig.Side = models.SideShort
			sig.StopLoss = p + stopDistance
			sig.TakeProfit = p * (1 - opts.FallbackTarget)
			if below, ok := nearestBelow(levels, p); ok {
				sig.TakeProfit = below
			}
		default:
			continue
		}
		out = append(out, sig)
	}
	return out
}

func nearestAbove(levels []models.Level, p float64) (float64, bool) {
	best, found := 0.0, false
	for _, lv := range levels {
		if lv.Price > p && (!found || lv.Price < best) {
			best, found = lv.Price, true
		}
	}
	return best, found
}

func nearestBelow(levels []models.Level, p float64) (float64, bool) {
	best, found := 0.0, false
	for _, lv := range levels {
		if lv.Price < p && (!found || lv.Price > best) {
			best, found = lv.Price, true
		}
	}
	return best, found
}
