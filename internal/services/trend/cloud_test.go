package trend

import (
	"math"
	"testing"

	"LevelScope/internal/domain/models"
)

func TestEMASeededWithFirstValue(t *testing.T) {
	got := EMA([]float64{10, 20, 30}, 3)
	// alpha = 0.5
	want := []float64{10, 15, 22.5}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("ema[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if len(EMA(nil, 5)) != 0 {
		t.Fatalf("expected empty output for empty input")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		fast, slow float64
		want       models.TrendState
	}{
		{100.1, 100, models.TrendFlat},
		{100.3, 100, models.TrendUp},
		{99.7, 100, models.TrendDown},
		{100, 100, models.TrendFlat},
	}
	for _, c := range cases {
		if got := Classify(c.fast, c.slow, DefaultFlatThreshold); got != c.want {
			t.Fatalf("Classify(%v, %v) = %s, want %s", c.fast, c.slow, got, c.want)
		}
	}
}

func TestTrackerMatchesFullRecomputation(t *testing.T) {
	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = 100 + 5*math.Sin(float64(i)/17) + float64(i%7)*0.13
	}

	tr := NewTracker(Options{})
	for n := 1; n <= len(closes); n++ {
		state := tr.Update(closes[n-1])
		full := Cloud(closes[:n], Options{})
		last := full[n-1]
		if tr.Fast() != last.Fast || tr.Slow() != last.Slow {
			t.Fatalf("prefix %d: tracker (%v, %v) != cloud (%v, %v)", n, tr.Fast(), tr.Slow(), last.Fast, last.Slow)
		}
		if state != last.State {
			t.Fatalf("prefix %d: state %s != %s", n, state, last.State)
		}
	}
}

func TestTrackerDirection(t *testing.T) {
	tr := NewTracker(Options{Short: 3, Mid: 10})
	if tr.State() != models.TrendFlat {
		t.Fatalf("expected flat before any update")
	}
	price := 100.0
	for i := 0; i < 30; i++ {
		price += 1
		tr.Update(price)
	}
	if tr.State() != models.TrendUp {
		t.Fatalf("expected up after a rally, got %s", tr.State())
	}
	for i := 0; i < 60; i++ {
		price -= 1
		tr.Update(price)
	}
	if tr.State() != models.TrendDown {
		t.Fatalf("expected down after a selloff, got %s", tr.State())
	}
}
