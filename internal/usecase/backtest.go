package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"LevelScope/internal/domain/models"
	domrepo "LevelScope/internal/domain/repository"
	"LevelScope/internal/repository"
	"LevelScope/internal/services/levels"
	"LevelScope/internal/services/report"
	"LevelScope/internal/services/sentiment"
	"LevelScope/pkg/cache"
	"LevelScope/pkg/logger"
)

// ErrNoHistory means no bars precede the start of the run, so no levels can be resolved.
var ErrNoHistory = errors.New("no bars before run start")

type BacktestConfig struct {
	Build  levels.BuildOptions
	Engine EngineOptions
	// Lookback is how much history before From feeds levels and trend warmup.
	Lookback   time.Duration
	ProfileTTL time.Duration
}

// BacktestUseCase runs one backtest end to end: it loads history, resolves
// levels from bars before the run window, replays the window and records the ledger.
type BacktestUseCase struct {
	bars      domrepo.BarProvider
	sentiment domrepo.SentimentProvider
	ledger    domrepo.LedgerStorage
	publisher domrepo.TradePublisher
	profiles  cache.Service
	metrics   domrepo.Metrics
	cfg       BacktestConfig
	log       *logger.Logger
}

// NewBacktestUseCase wires the collaborators. sentiment, publisher, profiles
// and metrics may be nil.
func NewBacktestUseCase(
	bars domrepo.BarProvider,
	sentimentProvider domrepo.SentimentProvider,
	ledger domrepo.LedgerStorage,
	publisher domrepo.TradePublisher,
	profiles cache.Service,
	metrics domrepo.Metrics,
	cfg BacktestConfig,
	log *logger.Logger,
) *BacktestUseCase {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &BacktestUseCase{
		bars:      bars,
		sentiment: sentimentProvider,
		ledger:    ledger,
		publisher: publisher,
		profiles:  profiles,
		metrics:   metrics,
		cfg:       cfg,
		log:       log.Component("backtest"),
	}
}

type BacktestParams struct {
	Symbol    string
	From      time.Time
	To        time.Time
	Timeframe domrepo.Timeframe
	// Zero values keep the configured defaults.
	Notional  float64
	FeeRate   float64
	Selection SelectionPolicy
	EndOfRun  EndOfRunPolicy
}

type BacktestReport struct {
	RunID         string           `json:"run_id"`
	Symbol        string           `json:"symbol"`
	Timeframe     string           `json:"tf"`
	From          time.Time        `json:"from"`
	To            time.Time        `json:"to"`
	Levels        []models.Level   `json:"levels"`
	Trades        []models.Trade   `json:"trades"`
	Open          *models.Position `json:"open,omitempty"`
	BarsProcessed int              `json:"bars_processed"`
	SignalsSeen   int              `json:"signals_seen"`
	Summary       report.Summary   `json:"summary"`
	// Partial is set when the run was cut short by cancellation.
	Partial  bool          `json:"partial"`
	Duration time.Duration `json:"duration_ns"`
}

// Run executes a backtest. Each closed trade is passed to sink (which may be
// nil) as soon as it happens. On cancellation the partial report is returned
// together with the context error.
func (uc *BacktestUseCase) Run(ctx context.Context, p BacktestParams, sink TradeSink) (*BacktestReport, error) {
	start := time.Now()
	if p.Symbol == "" {
		return nil, ErrSymbolRequired
	}
	if !p.From.Before(p.To) {
		return nil, ErrInvalidRange
	}
	runID := uuid.NewString()
	log := uc.log.With(logger.String("run_id", runID), logger.String("symbol", p.Symbol))

	bars, err := uc.bars.GetBars(ctx, p.Symbol, p.From.Add(-uc.cfg.Lookback), p.To, p.Timeframe)
	if err != nil {
		uc.metrics.RecordError("bars")
		return nil, fmt.Errorf("get bars: %w", err)
	}
	uc.metrics.RecordLatency("load_bars", time.Since(start).Seconds())

	split := sort.Search(len(bars), func(i int) bool { return !bars[i].Time.Before(p.From) })
	if split == 0 {
		return nil, ErrNoHistory
	}
	if split == len(bars) {
		return nil, fmt.Errorf("window %s..%s: %w", p.From.Format(time.RFC3339), p.To.Format(time.RFC3339), models.ErrNoBars)
	}

	var store domrepo.ProfileStore
	if uc.profiles != nil {
		store = repository.NewCacheProfileStore(uc.profiles, runID, uc.cfg.ProfileTTL)
		defer purge(ctx, store, log)
	}
	buildStart := time.Now()
	build, err := levels.NewBuilder(uc.cfg.Build, store, log).Build(ctx, bars[:split])
	if err != nil {
		uc.metrics.RecordError("levels")
		return nil, fmt.Errorf("build levels: %w", err)
	}
	uc.metrics.RecordLatency("build_levels", time.Since(buildStart).Seconds())

	series := uc.loadSentiment(ctx, p, log)

	engine := NewEngine(uc.engineOptions(p), log)
	result, runErr := engine.Run(ctx, BacktestInput{
		Bars:      bars,
		Levels:    build.Levels,
		Sentiment: series,
		TradeFrom: p.From,
	}, uc.tradeSink(ctx, runID, p.Symbol, sink, log))
	if result == nil {
		uc.metrics.RecordError("engine")
		return nil, runErr
	}

	// the ledger of a cancelled run is still recorded
	storeCtx := context.WithoutCancel(ctx)
	if uc.ledger != nil {
		if err := uc.ledger.StoreTrades(storeCtx, runID, p.Symbol, result.Trades); err != nil {
			uc.metrics.RecordError("ledger")
			return nil, fmt.Errorf("store ledger: %w", err)
		}
	}

	rep := &BacktestReport{
		RunID:         runID,
		Symbol:        p.Symbol,
		Timeframe:     string(p.Timeframe),
		From:          p.From,
		To:            p.To,
		Levels:        build.Levels,
		Trades:        result.Trades,
		Open:          result.Open,
		BarsProcessed: result.BarsProcessed,
		SignalsSeen:   result.SignalsSeen,
		Summary:       report.Summarize(result.Trades),
		Partial:       runErr != nil,
		Duration:      time.Since(start),
	}
	uc.metrics.RecordRun(p.Symbol, rep.Duration.Seconds(), len(rep.Trades))
	log.Info("backtest finished",
		logger.Int("bars", rep.BarsProcessed),
		logger.Int("levels", len(rep.Levels)),
		logger.Int("trades", len(rep.Trades)),
		logger.String("net_pnl", rep.Summary.NetPnL.StringFixed(4)),
		logger.Bool("partial", rep.Partial),
		logger.Duration("duration_ms", rep.Duration),
	)
	return rep, runErr
}

// Ledger returns the stored trades of a previous run.
func (uc *BacktestUseCase) Ledger(ctx context.Context, runID string) ([]models.Trade, error) {
	if uc.ledger == nil {
		return nil, nil
	}
	return uc.ledger.QueryTrades(ctx, runID)
}

// loadSentiment falls back to an empty series (score 0 everywhere) when the
// provider is missing or fails.
func (uc *BacktestUseCase) loadSentiment(ctx context.Context, p BacktestParams, log *logger.Logger) *sentiment.Series {
	if uc.sentiment == nil {
		return sentiment.NewSeries(nil)
	}
	points, err := uc.sentiment.GetSentiment(ctx, p.Symbol, p.From.Add(-uc.cfg.Lookback), p.To)
	if err != nil {
		uc.metrics.RecordError("sentiment")
		log.Warn("sentiment unavailable, using neutral score", logger.Error(err))
		return sentiment.NewSeries(nil)
	}
	return sentiment.NewSeries(points)
}

func (uc *BacktestUseCase) engineOptions(p BacktestParams) EngineOptions {
	opts := uc.cfg.Engine
	if p.Notional > 0 {
		opts.Notional = p.Notional
	}
	if p.FeeRate > 0 {
		opts.FeeRate = p.FeeRate
	}
	if p.Selection != "" {
		opts.Selection = p.Selection
	}
	if p.EndOfRun != "" {
		opts.EndOfRun = p.EndOfRun
	}
	return opts
}

func (uc *BacktestUseCase) tradeSink(ctx context.Context, runID, symbol string, next TradeSink, log *logger.Logger) TradeSink {
	return func(t models.Trade) {
		uc.metrics.RecordTrade(string(t.Side), string(t.ExitReason), t.PnL)
		if uc.publisher != nil {
			if err := uc.publisher.PublishTrade(ctx, runID, symbol, t); err != nil {
				uc.metrics.RecordError("publish")
				log.Warn("publish trade failed", logger.Error(err))
			}
		}
		if next != nil {
			next(t)
		}
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordRun(string, float64, int)       {}
func (nopMetrics) RecordTrade(string, string, float64) {}
func (nopMetrics) RecordError(string)                  {}
func (nopMetrics) RecordLatency(string, float64)       {}
