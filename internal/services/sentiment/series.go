// Package sentiment provides point-in-time lookup over a sentiment time series
// and aggregation of scored items into a single score.
package sentiment

import (
	"context"
	"math"
	"sort"
	"time"

	"LevelScope/internal/domain/models"
)

// Series is a time-ordered sentiment series. The zero value is an empty series.
type Series struct {
	points []models.SentimentPoint
}

// NewSeries sorts points by time, clamps scores to [-1, 1] and keeps the last
// point for duplicate timestamps.
func NewSeries(points []models.SentimentPoint) *Series {
	sorted := make([]models.SentimentPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	out := sorted[:0]
	for _, p := range sorted {
		p.Score = math.Max(-1, math.Min(1, p.Score))
		if n := len(out); n > 0 && out[n-1].Time.Equal(p.Time) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return &Series{points: out}
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.points)
}

func (s *Series) Points() []models.SentimentPoint {
	if s == nil {
		return nil
	}
	return s.points
}

// At returns the most recent score at or before ts, or 0 when there is none.
func (s *Series) At(ts time.Time) float64 {
	if s.Len() == 0 {
		return 0
	}
	i := sort.Search(len(s.points), func(i int) bool { return s.points[i].Time.After(ts) })
	if i == 0 {
		return 0
	}
	return s.points[i-1].Score
}

// Cursor returns a forward-only reader for non-decreasing lookups.
func (s *Series) Cursor() *Cursor {
	return &Cursor{series: s}
}

// GetSentiment serves the series as a provider, filtered to [from, to].
// The most recent point before from is kept so lookups at from still see it.
func (s *Series) GetSentiment(_ context.Context, _ string, from, to time.Time) ([]models.SentimentPoint, error) {
	var out []models.SentimentPoint
	for i, p := range s.Points() {
		if p.Time.After(to) {
			break
		}
		if p.Time.Before(from) {
			next := i + 1
			if next < len(s.points) && !s.points[next].Time.After(from) {
				continue
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// Cursor walks a series in time order. Lookups must not go back in time.
type Cursor struct {
	series *Series
	next   int
	score  float64
}

// At returns the same value as Series.At for non-decreasing ts.
func (c *Cursor) At(ts time.Time) float64 {
	points := c.series.Points()
	for c.next < len(points) && !points[c.next].Time.After(ts) {
		c.score = points[c.next].Score
		c.next++
	}
	return c.score
}
