package di

import (
	"context"
	"fmt"
	"time"

	"LevelScope/internal/domain/repository"
	"LevelScope/internal/handler/api"
	internalrepo "LevelScope/internal/repository"
	"LevelScope/internal/service/ratelimit"
	"LevelScope/internal/services/levels"
	"LevelScope/internal/services/sentiment"
	"LevelScope/internal/services/signals"
	"LevelScope/internal/services/trend"
	"LevelScope/internal/services/volumeprofile"
	"LevelScope/internal/usecase"
	"LevelScope/pkg/cache"
	pkgch "LevelScope/pkg/clickhouse"
	"LevelScope/pkg/config"
	pkgkafka "LevelScope/pkg/kafka"
	"LevelScope/pkg/logger"
	"LevelScope/pkg/metrics"
	"LevelScope/pkg/server"
)

// ProvideLogger builds the root logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideClickHouseClient creates a ClickHouse client and applies the schema.
// Returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config, log *logger.Logger) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5, time.Hour),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	log.Info("clickhouse ready",
		logger.String("host", cfg.ClickHouse.Host),
		logger.String("database", client.Database()))
	return client, nil
}

// ProvideRedisCache connects to Redis when the redis cache backend is selected.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if cfg.Cache.Backend != "redis" {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.RedisAddr),
		cache.WithRedisPassword(cfg.Cache.RedisPassword),
		cache.WithRedisDB(cfg.Cache.RedisDB),
		cache.WithRedisPool(10, 2),
		cache.WithRedisPrefix(cfg.Cache.KeyPrefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideProfileCache backs per-run profile stores: in-process only, or an
// in-process L1 over Redis.
func ProvideProfileCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	opts := []cache.MemoryOption{
		cache.WithMemoryMaxSize(4096),
		cache.WithMemoryDefaultTTL(cfg.Cache.TTL),
	}
	if rc == nil {
		return cache.NewMemoryCache(opts...)
	}
	return cache.NewLayeredCache(rc, opts...)
}

// ProvideBarProvider selects the bar source named by data.source.
func ProvideBarProvider(cfg *config.Config, ch *pkgch.Client, log *logger.Logger) (repository.BarProvider, error) {
	switch cfg.Data.Source {
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("bar provider: clickhouse source without clickhouse client")
		}
		store := internalrepo.NewCHBarStore(ch)
		store.SetLogger(log)
		return store, nil
	default:
		return internalrepo.NewCSVBarProvider(cfg.Data.CSVPath), nil
	}
}

// ProvideSentimentProvider reads stored sentiment. Nil without ClickHouse,
// which runs every backtest with a neutral score.
func ProvideSentimentProvider(ch *pkgch.Client) repository.SentimentProvider {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHSentimentStore(ch)
}

// ProvideLedger keeps trades in ClickHouse when enabled, in memory otherwise.
func ProvideLedger(ch *pkgch.Client) (repository.LedgerStorage, error) {
	if ch == nil {
		return internalrepo.NewMemoryLedger(), nil
	}
	ledger := internalrepo.NewCHLedger(ch)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ledger.Init(ctx); err != nil {
		return nil, fmt.Errorf("ledger init: %w", err)
	}
	return ledger, nil
}

// ProvideKafkaProducer creates a Kafka producer. Nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression("snappy"),
		pkgkafka.WithRequiredAcks(-1),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithBatching(100, 50*time.Millisecond),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideTradePublisher streams closed trades to Kafka.
func ProvideTradePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.TradePublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaTradePublisher(producer, cfg.Kafka.TradesTopic)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideBacktestConfig maps the profile, trend and strategy sections onto
// the level builder and engine options.
func ProvideBacktestConfig(cfg *config.Config) usecase.BacktestConfig {
	build := levels.BuildOptions{
		Profile: volumeprofile.Options{
			Bins: cfg.Profile.Bins,
			Mode: volumeprofile.Mode(cfg.Profile.Mode),
		},
		ReferenceBars:   cfg.Profile.ReferenceBars,
		PeaksPerSession: cfg.Profile.PeaksPerSession,
		Location:        cfg.SessionLocation(),
		Resolve: levels.Options{
			ZoneCutoff:    cfg.Profile.ZoneCutoff,
			ZoneTolerance: cfg.Profile.ZoneTolerance,
			MergeRelative: cfg.Profile.MergeRelative,
			MergeAbsolute: cfg.Profile.MergeAbsolute,
		},
	}
	engine := usecase.EngineOptions{
		Notional: cfg.Strategy.Notional,
		FeeRate:  cfg.Strategy.FeeRate,
		Trend: trend.Options{
			Short:         cfg.Trend.Short,
			Mid:           cfg.Trend.Mid,
			FlatThreshold: cfg.Trend.FlatThreshold,
		},
		Signals: signals.Options{
			EntryTolerance:     cfg.Strategy.EntryTolerance,
			SentimentThreshold: cfg.Strategy.SentimentThreshold,
			StopFloor:          cfg.Strategy.StopFloor,
			StopFraction:       cfg.Strategy.StopFraction,
			FallbackTarget:     cfg.Strategy.FallbackTarget,
		},
		Selection: usecase.SelectionPolicy(cfg.Strategy.Selection),
		EndOfRun:  usecase.EndOfRunPolicy(cfg.Strategy.EndOfRun),
	}
	return usecase.BacktestConfig{
		Build:      build,
		Engine:     engine,
		Lookback:   time.Duration(cfg.Data.LookbackDays) * 24 * time.Hour,
		ProfileTTL: cfg.Cache.TTL,
	}
}

func ProvideBacktestUseCase(
	bars repository.BarProvider,
	sent repository.SentimentProvider,
	ledger repository.LedgerStorage,
	pub repository.TradePublisher,
	profiles cache.Service,
	m repository.Metrics,
	btcfg usecase.BacktestConfig,
	log *logger.Logger,
) *usecase.BacktestUseCase {
	return usecase.NewBacktestUseCase(bars, sent, ledger, pub, profiles, m, btcfg, log)
}

func ProvideLevelsUseCase(
	bars repository.BarProvider,
	profiles cache.Service,
	btcfg usecase.BacktestConfig,
	log *logger.Logger,
) *usecase.LevelsUseCase {
	return usecase.NewLevelsUseCase(bars, profiles, btcfg.ProfileTTL, btcfg.Build, log)
}

// ProvideSentimentHandler persists sentiment from Kafka. Nil unless both
// Kafka and ClickHouse are enabled.
func ProvideSentimentHandler(cfg *config.Config, ch *pkgch.Client, m repository.Metrics) *usecase.SentimentHandler {
	if !cfg.Kafka.Enabled || ch == nil {
		return nil
	}
	return usecase.NewSentimentHandler(
		cfg.Kafka.SentimentTopic,
		internalrepo.NewCHSentimentStore(ch),
		m,
		sentiment.DefaultAggregateOptions(),
	)
}

// ProvideKafkaConsumer creates the sentiment consumer. Nil without a handler.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger, h *usecase.SentimentHandler) (*pkgkafka.Consumer, error) {
	if h == nil {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.RetryMax, cfg.Kafka.BackoffMin, cfg.Kafka.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.DLQTopic),
		pkgkafka.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	if err := consumer.RegisterHandler(h); err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RatePerMinute, cfg.Server.RatePerMinute)
}

// ProvideHealthChecks probes the enabled backing stores.
func ProvideHealthChecks(ch *pkgch.Client, rc *cache.RedisCache) map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{}
	if ch != nil {
		checks["clickhouse"] = ch.Health
	}
	if rc != nil {
		checks["redis"] = func(ctx context.Context) error { return rc.Client().Ping(ctx).Err() }
	}
	return checks
}

func ProvideBacktestHandler(
	log *logger.Logger,
	bt *usecase.BacktestUseCase,
	lv *usecase.LevelsUseCase,
	limiter *ratelimit.Limiter,
	checks map[string]api.HealthCheck,
	cfg *config.Config,
) *api.BacktestHandler {
	return api.NewBacktestHandler(log, bt, lv, limiter, cfg.Server.RunTimeout, checks)
}

// ProvideApp assembles the application and registers resources to close on shutdown.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	handler *api.BacktestHandler,
	bt *usecase.BacktestUseCase,
	consumer *pkgkafka.Consumer,
	ch *pkgch.Client,
	profiles cache.Service,
	ledger repository.LedgerStorage,
	pub repository.TradePublisher,
) *server.App {
	app := server.New(cfg, log, handler, bt, consumer)
	if ch != nil {
		app.OnShutdown("clickhouse", ch.Close)
	}
	app.OnShutdown("profile_cache", profiles.Close)
	app.OnShutdown("ledger", ledger.Close)
	if pub != nil {
		app.OnShutdown("trade_publisher", pub.Close)
	}
	return app
}
