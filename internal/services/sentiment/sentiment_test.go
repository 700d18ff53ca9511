package sentiment

import (
	"context"
	"math"
	"testing"
	"time"

	"LevelScope/internal/domain/models"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

func TestSeriesAt(t *testing.T) {
	s := NewSeries([]models.SentimentPoint{
		{Time: at(10), Score: 0.4},
		{Time: at(0), Score: -0.2},
		{Time: at(10), Score: 0.3},
		{Time: at(20), Score: 3},
	})
	if s.Len() != 3 {
		t.Fatalf("expected duplicates collapsed, got %d points", s.Len())
	}

	cases := []struct {
		ts   time.Time
		want float64
	}{
		{at(-1), 0},
		{at(0), -0.2},
		{at(5), -0.2},
		{at(10), 0.3},
		{at(25), 1},
	}
	for _, c := range cases {
		if got := s.At(c.ts); got != c.want {
			t.Fatalf("At(%v) = %v, want %v", c.ts, got, c.want)
		}
	}

	var empty *Series
	if empty.At(base) != 0 {
		t.Fatalf("nil series should read as neutral")
	}
}

func TestCursorMatchesAt(t *testing.T) {
	s := NewSeries([]models.SentimentPoint{
		{Time: at(3), Score: 0.1},
		{Time: at(7), Score: -0.4},
		{Time: at(8), Score: 0.2},
	})
	c := s.Cursor()
	for m := 0; m <= 10; m++ {
		if got, want := c.At(at(m)), s.At(at(m)); got != want {
			t.Fatalf("minute %d: cursor %v != series %v", m, got, want)
		}
	}
}

func TestSeriesAsProvider(t *testing.T) {
	s := NewSeries([]models.SentimentPoint{
		{Time: at(0), Score: 0.1},
		{Time: at(5), Score: 0.2},
		{Time: at(15), Score: 0.3},
		{Time: at(30), Score: 0.4},
	})
	got, err := s.GetSentiment(context.Background(), "X", at(10), at(20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Score != 0.2 || got[1].Score != 0.3 {
		t.Fatalf("unexpected window %+v", got)
	}
}

func TestAggregateWeights(t *testing.T) {
	opts := DefaultAggregateOptions()
	items := []models.ScoredItem{
		{Source: "news", Published: base, Score: 0.8},
		{Source: "twitter", Published: base.Add(-180 * time.Minute), Score: -0.5},
		{Source: "reddit", Published: base.Add(time.Minute), Score: 1},
	}
	p, used := Aggregate(items, base, opts)
	if used != 2 {
		t.Fatalf("expected future item to be skipped, used=%d", used)
	}
	w1 := 0.5
	w2 := 0.2 * math.Exp(-1)
	want := (w1*0.8 + w2*-0.5) / (w1 + w2)
	if math.Abs(p.Score-want) > 1e-12 {
		t.Fatalf("score = %v, want %v", p.Score, want)
	}
	if !p.Time.Equal(base) {
		t.Fatalf("unexpected time %v", p.Time)
	}
}

func TestAggregateEmpty(t *testing.T) {
	p, used := Aggregate(nil, base, DefaultAggregateOptions())
	if used != 0 || p.Score != 0 {
		t.Fatalf("expected neutral score, got %+v used=%d", p, used)
	}
}
