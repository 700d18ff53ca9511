package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"LevelScope/internal/domain/models"
	domrepo "LevelScope/internal/domain/repository"
	"LevelScope/internal/repository"
	"LevelScope/internal/services/levels"
	"LevelScope/internal/services/sentiment"
	"LevelScope/internal/services/trend"
	"LevelScope/internal/services/volumeprofile"
	"LevelScope/pkg/cache"
)

var day0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

type memBars struct {
	bars []models.Bar
	err  error
}

func (m *memBars) GetBars(_ context.Context, _ string, from, to time.Time, _ domrepo.Timeframe) ([]models.Bar, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.Bar
	for _, b := range m.bars {
		if !b.Time.Before(from) && !b.Time.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

type failingSentiment struct{}

func (failingSentiment) GetSentiment(context.Context, string, time.Time, time.Time) ([]models.SentimentPoint, error) {
	return nil, errors.New("store down")
}

type recordingPublisher struct {
	mu     sync.Mutex
	trades []models.Trade
}

func (p *recordingPublisher) PublishTrade(_ context.Context, _, _ string, t models.Trade) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trades = append(p.trades, t)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func flat(at time.Time, c, vol float64) models.Bar {
	return models.Bar{Time: at, Open: c, High: c + 0.1, Low: c - 0.1, Close: c, Volume: vol}
}

// history builds two sessions that trade mostly at 100, with a thin cycle
// through 96..104 around it.
func history() []models.Bar {
	closes := []float64{96, 98, 100, 102, 104}
	vols := []float64{1, 2, 20, 2, 1}
	var out []models.Bar
	for d := 0; d < 2; d++ {
		for i := 0; i < 30; i++ {
			at := day0.AddDate(0, 0, d).Add(time.Duration(i) * time.Minute)
			out = append(out, flat(at, closes[i%5], vols[i%5]))
		}
	}
	return out
}

// window rallies into the level at 100 and then runs through the 1% target.
func window() []models.Bar {
	start := day0.AddDate(0, 0, 2)
	closes := []float64{95, 96, 97, 98, 99, 100.05}
	var out []models.Bar
	for i, c := range closes {
		out = append(out, flat(start.Add(time.Duration(i)*time.Minute), c, 1))
	}
	out = append(out, models.Bar{Time: start.Add(6 * time.Minute), Open: 100.1, High: 101.5, Low: 100, Close: 101.2, Volume: 1})
	return out
}

func testBuildOptions() levels.BuildOptions {
	opts := levels.DefaultBuildOptions()
	opts.Profile = volumeprofile.Options{Bins: 21, Mode: volumeprofile.ModeClose}
	return opts
}

func testBacktestConfig() BacktestConfig {
	engine := DefaultEngineOptions()
	engine.Trend = trend.Options{Short: 2, Mid: 5}
	return BacktestConfig{
		Build:      testBuildOptions(),
		Engine:     engine,
		Lookback:   72 * time.Hour,
		ProfileTTL: time.Minute,
	}
}

func TestBacktestUseCaseRun(t *testing.T) {
	bars := &memBars{bars: append(history(), window()...)}
	ledger := repository.NewMemoryLedger()
	pub := &recordingPublisher{}
	profiles := cache.NewMemoryCache()
	uc := NewBacktestUseCase(bars, nil, ledger, pub, profiles, nil, testBacktestConfig(), nil)

	var streamed []models.Trade
	from := day0.AddDate(0, 0, 2)
	rep, err := uc.Run(context.Background(), BacktestParams{
		Symbol:    "BTCUSDT",
		From:      from,
		To:        from.Add(time.Hour),
		Timeframe: domrepo.TF1m,
	}, func(t models.Trade) { streamed = append(streamed, t) })
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(rep.Levels) != 1 || math.Abs(rep.Levels[0].Price-100) > 1e-4 || rep.Levels[0].Touches != 2 {
		t.Fatalf("levels = %+v", rep.Levels)
	}
	if len(rep.Trades) != 1 {
		t.Fatalf("trades = %+v", rep.Trades)
	}
	tr := rep.Trades[0]
	if tr.Side != models.SideLong || tr.ExitReason != models.ExitTakeProfit || tr.Entry != 100.05 {
		t.Fatalf("trade = %+v", tr)
	}
	if math.Abs(tr.ExitPrice-101) > 1e-4 {
		t.Fatalf("exit = %v, want 101", tr.ExitPrice)
	}
	if rep.Summary.TotalTrades != 1 || rep.Summary.Wins != 1 || rep.Partial {
		t.Fatalf("summary = %+v partial=%v", rep.Summary, rep.Partial)
	}
	if rep.BarsProcessed != 67 {
		t.Fatalf("bars processed = %d, want 67", rep.BarsProcessed)
	}
	if rep.RunID == "" {
		t.Fatal("missing run id")
	}

	if len(streamed) != 1 || len(pub.trades) != 1 {
		t.Fatalf("streamed=%d published=%d", len(streamed), len(pub.trades))
	}
	stored, err := uc.Ledger(context.Background(), rep.RunID)
	if err != nil || len(stored) != 1 {
		t.Fatalf("ledger = %+v err=%v", stored, err)
	}
	if profiles.Len() != 0 {
		t.Fatalf("profile store not purged: %d entries", profiles.Len())
	}
}

func TestBacktestUseCaseRequiresHistory(t *testing.T) {
	uc := NewBacktestUseCase(&memBars{bars: window()}, nil, nil, nil, nil, nil, testBacktestConfig(), nil)
	from := day0.AddDate(0, 0, 2)
	_, err := uc.Run(context.Background(), BacktestParams{Symbol: "BTCUSDT", From: from, To: from.Add(time.Hour)}, nil)
	if !errors.Is(err, ErrNoHistory) {
		t.Fatalf("err = %v, want ErrNoHistory", err)
	}
}

func TestBacktestUseCaseRejectsBadParams(t *testing.T) {
	uc := NewBacktestUseCase(&memBars{}, nil, nil, nil, nil, nil, testBacktestConfig(), nil)
	if _, err := uc.Run(context.Background(), BacktestParams{From: day0, To: day0.Add(time.Hour)}, nil); !errors.Is(err, ErrSymbolRequired) {
		t.Fatalf("err = %v, want ErrSymbolRequired", err)
	}
	if _, err := uc.Run(context.Background(), BacktestParams{Symbol: "X", From: day0, To: day0}, nil); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
}

func TestBacktestUseCaseSentimentFailureIsNeutral(t *testing.T) {
	bars := &memBars{bars: append(history(), window()...)}
	uc := NewBacktestUseCase(bars, failingSentiment{}, nil, nil, nil, nil, testBacktestConfig(), nil)
	from := day0.AddDate(0, 0, 2)
	rep, err := uc.Run(context.Background(), BacktestParams{Symbol: "BTCUSDT", From: from, To: from.Add(time.Hour)}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rep.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(rep.Trades))
	}
}

func TestBacktestUseCaseCancelled(t *testing.T) {
	bars := &memBars{bars: append(history(), window()...)}
	uc := NewBacktestUseCase(bars, nil, nil, nil, nil, nil, testBacktestConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	from := day0.AddDate(0, 0, 2)
	_, err := uc.Run(ctx, BacktestParams{Symbol: "BTCUSDT", From: from, To: from.Add(time.Hour)}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestBacktestUseCaseOverridesPolicies(t *testing.T) {
	bars := append(history(), window()[:6]...)
	uc := NewBacktestUseCase(&memBars{bars: bars}, nil, nil, nil, nil, nil, testBacktestConfig(), nil)
	from := day0.AddDate(0, 0, 2)
	rep, err := uc.Run(context.Background(), BacktestParams{
		Symbol:   "BTCUSDT",
		From:     from,
		To:       from.Add(time.Hour),
		Notional: 100,
		EndOfRun: CloseAtLast,
	}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rep.Trades) != 1 || rep.Trades[0].ExitReason != models.ExitEndOfData || rep.Open != nil {
		t.Fatalf("trades = %+v open = %+v", rep.Trades, rep.Open)
	}
	if math.Abs(rep.Trades[0].Units-100/100.05) > 1e-9 {
		t.Fatalf("units = %v", rep.Trades[0].Units)
	}
}

func TestLevelsUseCase(t *testing.T) {
	uc := NewLevelsUseCase(&memBars{bars: history()}, cache.NewMemoryCache(), time.Minute, testBuildOptions(), nil)
	res, err := uc.GetLevels(context.Background(), GetLevelsParams{
		Symbol: "BTCUSDT",
		From:   day0,
		To:     day0.AddDate(0, 0, 2),
	})
	if err != nil {
		t.Fatalf("levels: %v", err)
	}
	if res.Bars != 60 || len(res.Sessions) != 2 || len(res.Levels) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Zones) == 0 || !res.Zones[0].Contains(100, 0) {
		t.Fatalf("zones = %+v", res.Zones)
	}
}

func TestLevelsUseCaseNoBars(t *testing.T) {
	uc := NewLevelsUseCase(&memBars{}, nil, 0, testBuildOptions(), nil)
	_, err := uc.GetLevels(context.Background(), GetLevelsParams{Symbol: "X", From: day0, To: day0.Add(time.Hour)})
	if !errors.Is(err, models.ErrNoBars) {
		t.Fatalf("err = %v, want ErrNoBars", err)
	}
}

type memSentiment struct {
	symbol string
	points []models.SentimentPoint
}

func (m *memSentiment) StoreSentiment(_ context.Context, symbol string, points []models.SentimentPoint) error {
	m.symbol = symbol
	m.points = append(m.points, points...)
	return nil
}

func TestSentimentHandlerAggregatesItems(t *testing.T) {
	w := &memSentiment{}
	h := NewSentimentHandler("sentiment.scores", w, nil, sentiment.DefaultAggregateOptions())
	at := day0.Add(time.Hour)
	msg, _ := json.Marshal(SentimentMessage{
		Symbol: "BTCUSDT",
		TS:     at,
		Items: []models.ScoredItem{
			{Source: "news", Published: at, Score: 0.4},
			{Source: "reddit", Published: at, Score: -0.4},
		},
		Points: []models.SentimentPoint{{Time: day0, Score: 2}},
	})
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if w.symbol != "BTCUSDT" || len(w.points) != 2 {
		t.Fatalf("stored %s %+v", w.symbol, w.points)
	}
	if w.points[0].Score != 1 {
		t.Fatalf("explicit point not clamped: %v", w.points[0].Score)
	}
	// (0.5*0.4 - 0.3*0.4) / 0.8
	if got := w.points[1].Score; math.Abs(got-0.1) > 1e-9 || !w.points[1].Time.Equal(at) {
		t.Fatalf("aggregated = %+v", w.points[1])
	}
}

func TestSentimentHandlerRejects(t *testing.T) {
	h := NewSentimentHandler("sentiment.scores", &memSentiment{}, nil, sentiment.DefaultAggregateOptions())
	if err := h.Handle(context.Background(), []byte("{")); err == nil {
		t.Fatal("expected decode error")
	}
	if err := h.Handle(context.Background(), []byte(`{"points":[{"ts":"2024-05-01T00:00:00Z","score":0.1}]}`)); !errors.Is(err, ErrSymbolRequired) {
		t.Fatalf("err = %v, want ErrSymbolRequired", err)
	}
	if err := h.Handle(context.Background(), []byte(`{"symbol":"BTCUSDT"}`)); !errors.Is(err, ErrEmptySentiment) {
		t.Fatalf("err = %v, want ErrEmptySentiment", err)
	}
}
