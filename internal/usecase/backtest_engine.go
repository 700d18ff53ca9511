package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"LevelScope/internal/domain/models"
	"LevelScope/internal/services/sentiment"
	"LevelScope/internal/services/signals"
	"LevelScope/internal/services/trend"
	"LevelScope/pkg/logger"
)

// SelectionPolicy decides which signal opens a position when several qualify on one bar.
type SelectionPolicy string

const (
	SelectFirst   SelectionPolicy = "first"
	SelectNearest SelectionPolicy = "nearest"
)

// EndOfRunPolicy decides what happens to a position still open after the last bar.
type EndOfRunPolicy string

const (
	LeaveOpen   EndOfRunPolicy = "leave_open"
	CloseAtLast EndOfRunPolicy = "close_at_last"
)

var ErrInvalidNotional = errors.New("notional must be positive")

type EngineOptions struct {
	Notional  float64
	FeeRate   float64
	Trend     trend.Options
	Signals   signals.Options
	Selection SelectionPolicy
	EndOfRun  EndOfRunPolicy
}

func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		Notional:  10,
		FeeRate:   0.0006,
		Signals:   signals.DefaultOptions(),
		Selection: SelectFirst,
		EndOfRun:  LeaveOpen,
	}
}

type BacktestInput struct {
	Bars      []models.Bar
	Levels    []models.Level
	Sentiment *sentiment.Series
	// TradeFrom marks the first bar that may trade. Earlier bars only warm up the trend.
	TradeFrom time.Time
}

type BacktestResult struct {
	Trades        []models.Trade
	Open          *models.Position
	BarsProcessed int
	SignalsSeen   int
}

// TradeSink receives each trade as soon as it is appended to the ledger.
type TradeSink func(models.Trade)

// Engine replays bars through the level strategy. It holds no per-run state,
// so one Engine can serve concurrent runs.
type Engine struct {
	opts EngineOptions
	log  *logger.Logger
}

func NewEngine(opts EngineOptions, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Selection == "" {
		opts.Selection = SelectFirst
	}
	if opts.EndOfRun == "" {
		opts.EndOfRun = LeaveOpen
	}
	return &Engine{opts: opts, log: log.Component("backtest_engine")}
}

func (e *Engine) Options() EngineOptions { return e.opts }

// Run walks the bars once in time order. On cancellation it returns the
// ledger built so far together with the context error.
func (e *Engine) Run(ctx context.Context, in BacktestInput, sink TradeSink) (*BacktestResult, error) {
	if err := models.ValidateBars(in.Bars); err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	if e.opts.Notional <= 0 {
		return nil, fmt.Errorf("backtest: %w", ErrInvalidNotional)
	}

	res := &BacktestResult{}
	tracker := trend.NewTracker(e.opts.Trend)
	mood := in.Sentiment.Cursor()
	var pos *models.Position

	emit := func(t models.Trade) {
		res.Trades = append(res.Trades, t)
		if sink != nil {
			sink(t)
		}
	}

	for _, bar := range in.Bars {
		if err := ctx.Err(); err != nil {
			res.Open = pos
			return res, err
		}
		res.BarsProcessed++

		state := tracker.Update(bar.Close)
		if bar.Time.Before(in.TradeFrom) {
			continue
		}

		if pos != nil {
			if t, ok := e.checkExit(pos, bar); ok {
				emit(t)
				pos = nil
			}
		}
		if pos != nil {
			continue
		}

		score := mood.At(bar.Time)
		sigs := signals.Generate(bar.Close, state, score, in.Levels, e.opts.Signals)
		if len(sigs) == 0 {
			continue
		}
		res.SignalsSeen += len(sigs)
		pos = e.open(e.pick(sigs, bar.Close), bar)
		e.log.Debug("position opened",
			logger.String("side", string(pos.Side)),
			logger.Float64("entry", pos.Entry),
			logger.Float64("level", pos.Level),
			logger.Time("at", bar.Time),
		)
	}

	if pos != nil && e.opts.EndOfRun == CloseAtLast {
		last := in.Bars[len(in.Bars)-1]
		emit(e.close(pos, last.Time, last.Close, models.ExitEndOfData))
		pos = nil
	}
	res.Open = pos
	return res, nil
}

func (e *Engine) pick(sigs []models.Signal, price float64) models.Signal {
	if e.opts.Selection != SelectNearest {
		return sigs[0]
	}
	best := sigs[0]
	for _, s := range sigs[1:] {
		if math.Abs(price-s.Level) < math.Abs(price-best.Level) {
			best = s
		}
	}
	return best
}

func (e *Engine) open(sig models.Signal, bar models.Bar) *models.Position {
	return &models.Position{
		Side:       sig.Side,
		Level:      sig.Level,
		Entry:      sig.Entry,
		Units:      e.opts.Notional / sig.Entry,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		EntryTime:  bar.Time,
		EntryFee:   e.opts.Notional * e.opts.FeeRate,
	}
}

// checkExit tests the stop before the target, so a bar touching both closes at the stop.
func (e *Engine) checkExit(pos *models.Position, bar models.Bar) (models.Trade, bool) {
	switch pos.Side {
	case models.SideLong:
		if bar.Low <= pos.StopLoss {
			return e.close(pos, bar.Time, pos.StopLoss, models.ExitStopLoss), true
		}
		if bar.High >= pos.TakeProfit {
			return e.close(pos, bar.Time, pos.TakeProfit, models.ExitTakeProfit), true
		}
	case models.SideShort:
		if bar.High >= pos.StopLoss {
			return e.close(pos, bar.Time, pos.StopLoss, models.ExitStopLoss), true
		}
		if bar.Low <= pos.TakeProfit {
			return e.close(pos, bar.Time, pos.TakeProfit, models.ExitTakeProfit), true
		}
	}
	return models.Trade{}, false
}

func (e *Engine) close(pos *models.Position, at time.Time, price float64, reason models.ExitReason) models.Trade {
	gross := (price - pos.Entry) * pos.Units
	if pos.Side == models.SideShort {
		gross = (pos.Entry - price) * pos.Units
	}
	exitFee := math.Abs(price*pos.Units) * e.opts.FeeRate
	return models.Trade{
		Position:   *pos,
		ExitTime:   at,
		ExitPrice:  price,
		ExitReason: reason,
		GrossPnL:   gross,
		Fees:       pos.EntryFee + exitFee,
		PnL:        gross - pos.EntryFee - exitFee,
	}
}
