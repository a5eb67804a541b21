//go:build wireinject
// +build wireinject

package di

import (
	"SignalBT/internal/domain/repository"
	"SignalBT/internal/usecase"
	"SignalBT/pkg/config"
	applogger "SignalBT/pkg/logger"
	"SignalBT/pkg/server"

	"github.com/google/wire"
)

var resolverSet = wire.NewSet(
	ProvideLexicon,
	ProvideNormalizer,
	ProvideRuleExtractor,
	ProvideResolverCache,
	ProvideAIResolver,
	ProvideSignalResolver,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,

		// Repositories
		ProvideStorage,
		ProvidePriceSource,
		ProvidePublisher,

		// Extraction and backtesting
		resolverSet,
		ProvideSimulator,
		ProvideBacktester,

		// Use cases
		ProvideBacktestUseCase,
		ProvideMessageProcessor,
		ProvideIngestPipeline,
		ProvideMessageCollector,
		ProvideKafkaConsumer,
		ProvideKafkaMessagesHandler,

		// Application server
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeSignalResolver builds the resolver used by the batch parse command.
func InitializeSignalResolver(cfg *config.Config, log *applogger.Logger) (*usecase.SignalResolver, error) {
	wire.Build(ProvideMetrics, resolverSet)
	return &usecase.SignalResolver{}, nil
}

// InitializeBacktester builds a backtester over the given price source.
func InitializeBacktester(cfg *config.Config, log *applogger.Logger, prices repository.PriceSource) (*usecase.Backtester, error) {
	wire.Build(ProvideMetrics, ProvideSimulator, ProvideLexicon, ProvideNormalizer, ProvideBacktester)
	return &usecase.Backtester{}, nil
}
