package signals

import (
	"math"
	"testing"

	"LevelScope/internal/domain/models"
)

func lv(prices ...float64) []models.Level {
	out := make([]models.Level, len(prices))
	for i, p := range prices {
		out[i] = models.Level{Price: p, Volume: 1, Touches: 1}
	}
	return out
}

func TestGenerateLongAtLevel(t *testing.T) {
	opts := DefaultOptions()
	opts.EntryTolerance = 0.005

	got := Generate(100, models.TrendUp, 0, lv(100), opts)
	if len(got) != 1 {
		t.Fatalf("expected one signal, got %+v", got)
	}
	s := got[0]
	if s.Side != models.SideLong || s.Entry != 100 || s.StopLoss != 99.5 || math.Abs(s.TakeProfit-101) > 1e-9 {
		t.Fatalf("unexpected signal %+v", s)
	}
}

func TestGenerateTargetsNearestLevel(t *testing.T) {
	levels := lv(90, 100, 104, 102)

	long := Generate(100.05, models.TrendUp, 0, levels, DefaultOptions())
	if len(long) != 1 || long[0].TakeProfit != 102 {
		t.Fatalf("expected long targeting 102, got %+v", long)
	}

	short := Generate(99.95, models.TrendDown, 0, levels, DefaultOptions())
	if len(short) != 1 || short[0].TakeProfit != 90 || short[0].StopLoss != 100.5 {
		t.Fatalf("expected short targeting 90 with stop 100.5, got %+v", short)
	}
}

func TestGenerateStopUsesFractionForHighPrices(t *testing.T) {
	got := Generate(1000, models.TrendUp, 0, lv(1000), DefaultOptions())
	if len(got) != 1 || got[0].StopLoss != 995 {
		t.Fatalf("expected stop at 995, got %+v", got)
	}
}

func TestGenerateDirectionGate(t *testing.T) {
	levels := lv(100)
	// price below the level in an uptrend is not a long
	if got := Generate(99.95, models.TrendUp, 0, levels, DefaultOptions()); len(got) != 0 {
		t.Fatalf("expected no signal, got %+v", got)
	}
	// price above the level in a downtrend is not a short
	if got := Generate(100.05, models.TrendDown, 0, levels, DefaultOptions()); len(got) != 0 {
		t.Fatalf("expected no signal, got %+v", got)
	}
	if got := Generate(100, models.TrendFlat, 0, levels, DefaultOptions()); len(got) != 0 {
		t.Fatalf("flat trend must not signal, got %+v", got)
	}
}

func TestGenerateProximityGate(t *testing.T) {
	if got := Generate(100.2, models.TrendUp, 0, lv(100), DefaultOptions()); len(got) != 0 {
		t.Fatalf("price outside tolerance must not signal, got %+v", got)
	}
}

func TestGenerateSentimentGate(t *testing.T) {
	cases := []struct {
		name      string
		trend     models.TrendState
		price     float64
		sentiment float64
		want      int
	}{
		{"long suppressed by bearish sentiment", models.TrendUp, 100, -0.06, 0},
		{"long allowed at threshold", models.TrendUp, 100, -0.05, 1},
		{"short suppressed by bullish sentiment", models.TrendDown, 100, 0.06, 0},
		{"short allowed at threshold", models.TrendDown, 100, 0.05, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Generate(c.price, c.trend, c.sentiment, lv(100), DefaultOptions())
			if len(got) != c.want {
				t.Fatalf("expected %d signals, got %+v", c.want, got)
			}
			if c.want == 1 && got[0].Sentiment != c.sentiment {
				t.Fatalf("signal does not carry sentiment: %+v", got[0])
			}
		})
	}
}

func TestGenerateKeepsLevelOrder(t *testing.T) {
	got := Generate(100, models.TrendUp, 0, lv(100.1, 99.9), DefaultOptions())
	if len(got) != 1 || got[0].Level != 99.9 {
		t.Fatalf("only the level at or below price qualifies for a long, got %+v", got)
	}
	got = Generate(100, models.TrendUp, 0, lv(99.95, 99.9), DefaultOptions())
	if len(got) != 2 || got[0].Level != 99.95 || got[1].Level != 99.9 {
		t.Fatalf("unexpected order %+v", got)
	}
}
