package repository

import (
	"context"
	"time"

	"LevelScope/internal/domain/models"
)

// BarProvider supplies ordered OHLCV bars for a symbol.
type BarProvider interface {
	GetBars(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Bar, error)
}

// SentimentProvider supplies the sentiment time series for a symbol.
type SentimentProvider interface {
	GetSentiment(ctx context.Context, symbol string, from, to time.Time) ([]models.SentimentPoint, error)
}

type SentimentWriter interface {
	StoreSentiment(ctx context.Context, symbol string, points []models.SentimentPoint) error
}

// LedgerStorage persists closed trades per backtest run.
type LedgerStorage interface {
	Init(ctx context.Context) error
	StoreTrades(ctx context.Context, runID, symbol string, trades []models.Trade) error
	QueryTrades(ctx context.Context, runID string) ([]models.Trade, error)
	Close() error
}

// TradePublisher emits closed trades as they happen.
type TradePublisher interface {
	PublishTrade(ctx context.Context, runID, symbol string, t models.Trade) error
	Close() error
}

// ProfileStore caches volume profiles for the lifetime of one run.
// The owner of the run purges it when the run ends.
type ProfileStore interface {
	GetProfile(ctx context.Context, key string) (*models.VolumeProfile, bool, error)
	PutProfile(ctx context.Context, key string, p *models.VolumeProfile) error
	Purge(ctx context.Context) error
}

type Metrics interface {
	RecordRun(symbol string, seconds float64, trades int)
	RecordTrade(side, reason string, pnl float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
