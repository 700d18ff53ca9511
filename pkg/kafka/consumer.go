package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"LevelScope/pkg/logger"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Consumer reads registered topics in a consumer group and fans messages out
// to a worker pool. Messages of one partition always go to the same worker,
// so per-partition order is kept.
type Consumer struct {
	cfg      *ConsumerConfig
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	dlq      MessageWriter
	log      *logger.Logger

	lanes  []chan fetched
	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once
}

type fetched struct {
	reader *kafka.Reader
	msg    kafka.Message
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "levelscope",
		WorkerCount: 1,
		BufferSize:  64,
		RetryMax:    3,
		BackoffMin:  100 * time.Millisecond,
		BackoffMax:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	c := &Consumer{
		cfg:      cfg,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		log:      cfg.Logger.Component("kafka_consumer"),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Topic: cfg.DLQTopic, Balancer: &kafka.LeastBytes{}}
	}
	initConsumerMetrics()
	return c, nil
}

// RegisterHandler must be called before Start.
func (c *Consumer) RegisterHandler(h MessageHandler) error {
	if _, ok := c.handlers[h.Topic()]; ok {
		return fmt.Errorf("kafka consumer: handler already registered for %s", h.Topic())
	}
	c.handlers[h.Topic()] = h
	return nil
}

// Start launches the readers and workers. They run until Stop or ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	ctx, c.cancel = context.WithCancel(ctx)

	c.lanes = make([]chan fetched, c.cfg.WorkerCount)
	for i := range c.lanes {
		c.lanes[i] = make(chan fetched, c.cfg.BufferSize)
		c.wg.Add(1)
		go c.work(ctx, c.lanes[i])
	}

	for topic := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers: c.cfg.Brokers,
			Topic:   topic,
			GroupID: c.cfg.GroupID,
		})
		c.readers[topic] = r
		c.wg.Add(1)
		go c.read(ctx, r)
	}

	c.log.Info("consumer started",
		logger.Int("workers", c.cfg.WorkerCount),
		logger.Int("topics", len(c.readers)),
	)
	return nil
}

// Stop cancels reading and waits for in-flight messages until ctx expires.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer stop: %w", ctx.Err())
		}
		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Warn("close reader", logger.String("topic", topic), logger.Error(cerr))
			}
		}
		if c.dlq != nil {
			_ = c.dlq.Close()
		}
	})
	return err
}

func (c *Consumer) read(ctx context.Context, r *kafka.Reader) {
	defer c.wg.Done()
	topic := r.Config().Topic
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("fetch failed", logger.String("topic", topic), logger.Error(err))
			continue
		}
		lane := c.lanes[msg.Partition%len(c.lanes)]
		select {
		case lane <- fetched{reader: r, msg: msg}:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(lane)))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) work(ctx context.Context, lane <-chan fetched) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-lane:
			c.process(ctx, f)
		}
	}
}

func (c *Consumer) process(ctx context.Context, f fetched) {
	topic := f.msg.Topic
	h := c.handlers[topic]
	start := time.Now()

	err := c.handleWithRetry(ctx, h, f.msg.Value)
	consumerHandleLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		consumerFailures.WithLabelValues(topic).Inc()
		c.log.Error("message failed", logger.String("topic", topic), logger.Int64("offset", f.msg.Offset), logger.Error(err))
		if c.dlq == nil {
			// leave uncommitted so the group redelivers it
			return
		}
		if derr := c.dlq.WriteMessages(ctx, kafka.Message{
			Key:     f.msg.Key,
			Value:   f.msg.Value,
			Headers: []kafka.Header{{Key: "source_topic", Value: []byte(topic)}, {Key: "error", Value: []byte(err.Error())}},
		}); derr != nil {
			c.log.Error("dlq write failed", logger.String("topic", topic), logger.Error(derr))
			return
		}
	}

	if cerr := f.reader.CommitMessages(ctx, f.msg); cerr != nil {
		c.log.Warn("commit failed", logger.String("topic", topic), logger.Error(cerr))
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, h MessageHandler, data []byte) (err error) {
	for attempt := 1; ; attempt++ {
		err = safeHandle(ctx, h, data)
		if err == nil || attempt > c.cfg.RetryMax {
			return err
		}
		select {
		case <-time.After(Backoff(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func safeHandle(ctx context.Context, h MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, data)
}

// Backoff returns an exponential delay for attempt (1-based), capped at max,
// with up to 50% jitter removed.
func Backoff(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := max
	if attempt < 31 {
		if exp := min << uint(attempt-1); exp > 0 && exp < max {
			d = exp
		}
	}
	if half := int64(d) / 2; half > 0 {
		d -= time.Duration(rand.Int63n(half))
	}
	return d
}

var (
	consumerOnce          sync.Once
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerFailures      *prometheus.CounterVec
)

func initConsumerMetrics() {
	consumerOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "levelscope", Subsystem: "kafka_consumer", Name: "queue_depth",
			Help: "Messages waiting in a worker lane",
		}, []string{"topic"})
		consumerHandleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "levelscope", Subsystem: "kafka_consumer", Name: "handle_seconds",
			Help: "Handling time per message including retries",
		}, []string{"topic"})
		consumerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "levelscope", Subsystem: "kafka_consumer", Name: "failures_total",
			Help: "Messages that exhausted their retries",
		}, []string{"topic"})
	})
}
