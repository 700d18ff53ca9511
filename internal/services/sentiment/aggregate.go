package sentiment

import (
	"math"
	"strings"
	"time"

	"LevelScope/internal/domain/models"
)

const weightFloor = 1e-9

type AggregateOptions struct {
	SourceWeights map[string]float64
	DefaultWeight float64
	// DecayMinutes is the e-folding time of the recency weight.
	DecayMinutes float64
}

func DefaultAggregateOptions() AggregateOptions {
	return AggregateOptions{
		SourceWeights: map[string]float64{"news": 0.5, "newsapi": 0.5, "reddit": 0.3, "twitter": 0.2},
		DefaultWeight: 0.2,
		DecayMinutes:  180,
	}
}

// Aggregate combines scored items into one point at now: a weighted mean where
// each item is weighted by its source and exp(-age/decay). Items published
// after now are ignored. Returns the point and the number of items used.
func Aggregate(items []models.ScoredItem, now time.Time, opts AggregateOptions) (models.SentimentPoint, int) {
	var num, den float64
	used := 0
	for _, it := range items {
		age := now.Sub(it.Published).Minutes()
		if age < 0 {
			continue
		}
		w := opts.weight(it.Source) * math.Exp(-age/opts.DecayMinutes)
		num += w * math.Max(-1, math.Min(1, it.Score))
		den += w
		used++
	}
	if used == 0 {
		return models.SentimentPoint{Time: now}, 0
	}
	return models.SentimentPoint{Time: now, Score: num / math.Max(den, weightFloor)}, used
}

func (o AggregateOptions) weight(source string) float64 {
	if w, ok := o.SourceWeights[strings.ToLower(source)]; ok {
		return w
	}
	return o.DefaultWeight
}
