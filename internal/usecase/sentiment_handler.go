package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"LevelScope/internal/domain/models"
	domrepo "LevelScope/internal/domain/repository"
	"LevelScope/internal/services/sentiment"
	pkgkafka "LevelScope/pkg/kafka"
)

var ErrEmptySentiment = errors.New("sentiment message has neither items nor points")

// SentimentMessage is the payload on the sentiment topic. Items are scored
// texts aggregated into one point at TS; Points are stored as they are.
type SentimentMessage struct {
	Symbol string                  `json:"symbol"`
	TS     time.Time               `json:"ts"`
	Items  []models.ScoredItem     `json:"items,omitempty"`
	Points []models.SentimentPoint `json:"points,omitempty"`
}

// SentimentHandler consumes sentiment messages and writes points to storage.
type SentimentHandler struct {
	topic   string
	writer  domrepo.SentimentWriter
	metrics domrepo.Metrics
	opts    sentiment.AggregateOptions
	now     func() time.Time
}

func NewSentimentHandler(topic string, writer domrepo.SentimentWriter, metrics domrepo.Metrics, opts sentiment.AggregateOptions) *SentimentHandler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &SentimentHandler{topic: topic, writer: writer, metrics: metrics, opts: opts, now: time.Now}
}

func (h *SentimentHandler) Topic() string { return h.topic }

func (h *SentimentHandler) Handle(ctx context.Context, b []byte) error {
	var m SentimentMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("sentiment_unmarshal")
		return fmt.Errorf("decode sentiment: %w", err)
	}
	if m.Symbol == "" {
		h.metrics.RecordError("sentiment_invalid")
		return ErrSymbolRequired
	}

	points := sentiment.NewSeries(m.Points).Points()
	if len(m.Items) > 0 {
		at := m.TS
		if at.IsZero() {
			at = h.now().UTC()
		}
		if p, used := sentiment.Aggregate(m.Items, at, h.opts); used > 0 {
			points = append(points, p)
		}
	}
	if len(points) == 0 {
		h.metrics.RecordError("sentiment_invalid")
		return ErrEmptySentiment
	}

	start := time.Now()
	err := h.writer.StoreSentiment(ctx, m.Symbol, points)
	h.metrics.RecordLatency("sentiment_store", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("sentiment_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*SentimentHandler)(nil)
