package repository

import (
	"context"
	"time"

	"LevelScope/internal/domain/models"
	domrepo "LevelScope/internal/domain/repository"
	pkgkafka "LevelScope/pkg/kafka"
)

// KafkaTradePublisher emits closed trades keyed by symbol.
type KafkaTradePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaTradePublisher(producer *pkgkafka.Producer, topic string) domrepo.TradePublisher {
	return &KafkaTradePublisher{producer: producer, topic: topic}
}

// TradeEvent is the wire form of a closed trade.
type TradeEvent struct {
	RunID      string    `json:"run_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Level      float64   `json:"level"`
	Entry      float64   `json:"entry"`
	Units      float64   `json:"units"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	ExitPrice  float64   `json:"exit_price"`
	ExitReason string    `json:"exit_reason"`
	Fees       float64   `json:"fees"`
	PnL        float64   `json:"pnl"`
}

func NewTradeEvent(runID, symbol string, t models.Trade) TradeEvent {
	return TradeEvent{
		RunID:      runID,
		Symbol:     symbol,
		Side:       string(t.Side),
		Level:      t.Level,
		Entry:      t.Entry,
		Units:      t.Units,
		StopLoss:   t.StopLoss,
		TakeProfit: t.TakeProfit,
		EntryTime:  t.EntryTime,
		ExitTime:   t.ExitTime,
		ExitPrice:  t.ExitPrice,
		ExitReason: string(t.ExitReason),
		Fees:       t.Fees,
		PnL:        t.PnL,
	}
}

func (p *KafkaTradePublisher) PublishTrade(ctx context.Context, runID, symbol string, t models.Trade) error {
	return p.producer.Publish(ctx, p.topic, []byte(symbol), NewTradeEvent(runID, symbol, t))
}

func (p *KafkaTradePublisher) Close() error {
	return p.producer.Close()
}
