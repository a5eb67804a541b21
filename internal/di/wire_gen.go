// Maintained by hand to match the injectors in wire.go; running
// go generate replaces it with Wire's output.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package di

import (
	"SignalBT/internal/domain/repository"
	"SignalBT/internal/usecase"
	"SignalBT/pkg/config"
	"SignalBT/pkg/logger"
	"SignalBT/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	loggerLogger, err := ProvideLogger(cfg, producer)
	if err != nil {
		return nil, err
	}
	client, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	lexicon, err := ProvideLexicon(cfg)
	if err != nil {
		return nil, err
	}
	normalizer := ProvideNormalizer(lexicon, cfg)
	ruleExtractor := ProvideRuleExtractor(lexicon, normalizer, cfg)
	bytesCache, err := ProvideResolverCache(cfg)
	if err != nil {
		return nil, err
	}
	resolver := ProvideAIResolver(cfg, normalizer, bytesCache, loggerLogger)
	metrics := ProvideMetrics()
	signalResolver, err := ProvideSignalResolver(cfg, ruleExtractor, resolver, metrics, loggerLogger)
	if err != nil {
		return nil, err
	}
	storage, err := ProvideStorage(client)
	if err != nil {
		return nil, err
	}
	priceSource := ProvidePriceSource(client, cfg, loggerLogger)
	simulator, err := ProvideSimulator(cfg)
	if err != nil {
		return nil, err
	}
	backtester := ProvideBacktester(priceSource, simulator, normalizer, cfg, metrics, loggerLogger)
	publisher := ProvidePublisher(producer, cfg)
	backtestUseCase := ProvideBacktestUseCase(storage, publisher, backtester, simulator)
	messageProcessor, err := ProvideMessageProcessor(signalResolver, publisher, storage, metrics, cfg, loggerLogger)
	if err != nil {
		return nil, err
	}
	ingestPipeline := ProvideIngestPipeline(messageProcessor, metrics, cfg)
	messageCollector := ProvideMessageCollector(cfg, messageProcessor, ingestPipeline, metrics, loggerLogger)
	httpServer := ProvideHTTPServer(cfg, loggerLogger, signalResolver, backtestUseCase, storage, messageCollector)
	consumer, err := ProvideKafkaConsumer(cfg, loggerLogger)
	if err != nil {
		return nil, err
	}
	kafkaMessagesHandler := ProvideKafkaMessagesHandler(cfg, messageProcessor, metrics)
	app := ProvideApp(cfg, loggerLogger, httpServer, consumer, kafkaMessagesHandler, messageCollector, client, producer)
	return app, nil
}

// InitializeSignalResolver builds the resolver used by the batch parse command.
func InitializeSignalResolver(cfg *config.Config, log *logger.Logger) (*usecase.SignalResolver, error) {
	lexicon, err := ProvideLexicon(cfg)
	if err != nil {
		return nil, err
	}
	normalizer := ProvideNormalizer(lexicon, cfg)
	ruleExtractor := ProvideRuleExtractor(lexicon, normalizer, cfg)
	bytesCache, err := ProvideResolverCache(cfg)
	if err != nil {
		return nil, err
	}
	resolver := ProvideAIResolver(cfg, normalizer, bytesCache, log)
	metrics := ProvideMetrics()
	signalResolver, err := ProvideSignalResolver(cfg, ruleExtractor, resolver, metrics, log)
	if err != nil {
		return nil, err
	}
	return signalResolver, nil
}

// InitializeBacktester builds a backtester over the given price source.
func InitializeBacktester(cfg *config.Config, log *logger.Logger, prices repository.PriceSource) (*usecase.Backtester, error) {
	metrics := ProvideMetrics()
	simulator, err := ProvideSimulator(cfg)
	if err != nil {
		return nil, err
	}
	lexicon, err := ProvideLexicon(cfg)
	if err != nil {
		return nil, err
	}
	normalizer := ProvideNormalizer(lexicon, cfg)
	backtester := ProvideBacktester(prices, simulator, normalizer, cfg, metrics, log)
	return backtester, nil
}
