//go:build wireinject
// +build wireinject

package di

import (
	"LevelScope/pkg/config"
	"LevelScope/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideKafkaProducer,

		// Repositories
		ProvideProfileCache,
		ProvideBarProvider,
		ProvideSentimentProvider,
		ProvideLedger,
		ProvideTradePublisher,

		// Use cases
		ProvideBacktestConfig,
		ProvideBacktestUseCase,
		ProvideLevelsUseCase,
		ProvideSentimentHandler,
		ProvideKafkaConsumer,

		// HTTP
		ProvideRateLimiter,
		ProvideHealthChecks,
		ProvideBacktestHandler,

		ProvideApp,
	)
	return &server.App{}, nil
}
