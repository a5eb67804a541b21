package di

import (
	"context"
	"fmt"
	"time"

	"SignalBT/internal/domain/repository"
	"SignalBT/internal/handler/api"
	"SignalBT/internal/lexicon"
	mid "SignalBT/internal/middleware"
	internalrepo "SignalBT/internal/repository"
	"SignalBT/internal/service/cache"
	svcmetrics "SignalBT/internal/service/metrics"
	"SignalBT/internal/service/ratelimit"
	"SignalBT/internal/service/relay"
	"SignalBT/internal/services/extractor"
	"SignalBT/internal/services/normalizer"
	"SignalBT/internal/services/resolver"
	"SignalBT/internal/services/simulator"
	"SignalBT/internal/usecase"
	pkgch "SignalBT/pkg/clickhouse"
	"SignalBT/pkg/config"
	xhttp "SignalBT/pkg/http"
	pkgkafka "SignalBT/pkg/kafka"
	applogger "SignalBT/pkg/logger"
	"SignalBT/pkg/metrics"
	"SignalBT/pkg/server"
)

// ProvideLogger builds the application logger. When the collector is enabled
// and a producer exists, repeated errors are shipped to the logs topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval: cfg.Log.Collector.Interval,
			Topic:        cfg.Log.Collector.Topic,
			Publisher:    producer,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideLexicon builds the immutable lexicon from the extraction section.
func ProvideLexicon(cfg *config.Config) (*lexicon.Lexicon, error) {
	lex, err := lexicon.New(lexicon.Config{
		Extra:         cfg.Extraction.Keywords,
		Blacklist:     cfg.Extraction.Blacklist,
		QuoteAsset:    cfg.Extraction.QuoteAsset,
		QuoteSuffixes: cfg.Extraction.QuoteSuffixes,
	})
	if err != nil {
		return nil, fmt.Errorf("lexicon: %w", err)
	}
	return lex, nil
}

func ProvideNormalizer(lex *lexicon.Lexicon, cfg *config.Config) *normalizer.Normalizer {
	p := cfg.Extraction.Penalties
	return normalizer.New(lex, normalizer.Config{
		DefaultLeverage: cfg.Extraction.DefaultLeverage,
		MaxLeverage:     cfg.Extraction.MaxLeverage,
		Penalties: normalizer.Penalties{
			MissingTargets:  p.MissingTargets,
			MissingStop:     p.MissingStop,
			MissingLeverage: p.MissingLeverage,
			AmbiguousSide:   p.AmbiguousSide,
		},
	})
}

func ProvideRuleExtractor(lex *lexicon.Lexicon, norm *normalizer.Normalizer, cfg *config.Config) *normalizer.RuleExtractor {
	return normalizer.NewRuleExtractor(extractor.New(lex, extractor.WithLineCap(cfg.Extraction.LineCap)), norm)
}

// ProvideResolverCache returns nil when caching is disabled.
func ProvideResolverCache(cfg *config.Config) (cache.BytesCache, error) {
	c := cfg.Resolver.Cache
	if !cfg.Resolver.Enabled || !c.Enabled {
		return nil, nil
	}
	if c.Backend == "memory" {
		return cache.NewTTLCache(cache.WithMaxSize(c.MemorySize)), nil
	}
	rc, err := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("resolver cache: %w", err)
	}
	if c.Backend == "layered" {
		return cache.NewLayeredCache(rc, c.MemorySize, time.Minute), nil
	}
	return rc, nil
}

// ProvideAIResolver returns nil when no provider is enabled.
func ProvideAIResolver(cfg *config.Config, norm *normalizer.Normalizer, c cache.BytesCache, log *applogger.Logger) *resolver.Resolver {
	rc := cfg.Resolver
	if !rc.Enabled || len(rc.Providers) == 0 {
		return nil
	}
	svcmetrics.Register()

	providers := make([]resolver.Provider, 0, len(rc.Providers))
	for _, p := range rc.Providers {
		timeout := p.Timeout
		if timeout <= 0 {
			timeout = rc.RequestTimeout
		}
		providers = append(providers, resolver.NewCompletionClient(resolver.ProviderConfig{
			Name:    p.Name,
			BaseURL: p.BaseURL,
			APIKey:  p.APIKey,
			Model:   p.Model,
			Timeout: timeout,
		}))
	}
	pool := resolver.NewPool(providers, resolver.BreakerConfig{
		ConsecutiveFailures: rc.Breaker.ConsecutiveFailures,
		OpenTimeout:         rc.Breaker.OpenTimeout,
	}, log)

	policy := resolver.DefaultPolicy()
	policy.Attempts = rc.Attempts
	policy.BackoffMin = rc.BackoffMin
	policy.BackoffMax = rc.BackoffMax

	opts := []resolver.Option{
		resolver.WithThrottle(resolver.NewThrottle(rc.MaxConcurrent, rc.RPS, rc.Burst, rc.AcquireTimeout)),
		resolver.WithLogger(log),
	}
	if c != nil {
		opts = append(opts, resolver.WithCache(c, rc.Cache.TTL))
	}
	return resolver.New(pool, norm, resolver.Config{
		Policy:         policy,
		Temperature:    rc.Temperature,
		MaxTokens:      rc.MaxTokens,
		RequestTimeout: rc.RequestTimeout,
		CacheNamespace: rc.Providers[0].Model,
	}, opts...)
}

// ProvideSignalResolver combines rule extraction with the optional AI fallback.
func ProvideSignalResolver(
	cfg *config.Config,
	rule *normalizer.RuleExtractor,
	ai *resolver.Resolver,
	m repository.Metrics,
	log *applogger.Logger,
) (*usecase.SignalResolver, error) {
	policy, err := resolver.ParseMergePolicy(cfg.Extraction.MergePolicy)
	if err != nil {
		return nil, err
	}
	opts := []usecase.ResolverOption{
		usecase.WithMergePolicy(policy),
		usecase.WithConfidenceThreshold(cfg.Extraction.ConfidenceThreshold),
		usecase.WithDefaultLeverage(cfg.Extraction.DefaultLeverage),
		usecase.WithResolverMetrics(m),
		usecase.WithResolverLogger(log),
	}
	if ai != nil {
		opts = append(opts, usecase.WithAI(ai))
	}
	return usecase.NewSignalResolver(rule, opts...), nil
}

func ProvideSimulator(cfg *config.Config) (*simulator.Simulator, error) {
	tb, err := simulator.ParseTieBreak(cfg.Backtest.TieBreak)
	if err != nil {
		return nil, err
	}
	return simulator.New(
		simulator.WithTieBreak(tb),
		simulator.WithDefaultLeverage(cfg.Extraction.DefaultLeverage),
	), nil
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideStorage creates the signal/result storage and makes sure its tables exist.
func ProvideStorage(client *pkgch.Client) (repository.Storage, error) {
	store := internalrepo.NewClickHouseStorage(client.DB(), client.Database())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvidePriceSource reads bars from the market database.
func ProvidePriceSource(client *pkgch.Client, cfg *config.Config, log *applogger.Logger) repository.PriceSource {
	ps := internalrepo.NewCHPriceStore(client.DB(), cfg.Backtest.Database, repository.NormalizeTimeframe(cfg.Backtest.Timeframe))
	ps.SetLogger(log)
	return ps
}

func ProvideBacktester(
	prices repository.PriceSource,
	sim *simulator.Simulator,
	norm *normalizer.Normalizer,
	cfg *config.Config,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.Backtester {
	return usecase.NewBacktester(prices, sim,
		usecase.WithHorizon(cfg.Backtest.Horizon),
		usecase.WithWorkers(cfg.Backtest.Workers),
		usecase.WithBacktestMetrics(m),
		usecase.WithBacktestLogger(log),
		usecase.WithNormalizer(norm),
	)
}

func ProvideBacktestUseCase(
	store repository.Storage,
	pub repository.Publisher,
	bt *usecase.Backtester,
	sim *simulator.Simulator,
) *usecase.BacktestUseCase {
	return usecase.NewBacktestUseCase(store, pub, bt, sim)
}

// ProvideKafkaProducer returns nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher returns a nil Publisher when Kafka is not configured.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.SignalsTopic, cfg.Kafka.ResultsTopic)
}

func ProvideMessageProcessor(
	res *usecase.SignalResolver,
	pub repository.Publisher,
	store repository.Storage,
	m repository.Metrics,
	cfg *config.Config,
	log *applogger.Logger,
) (*usecase.MessageProcessor, error) {
	if pub == nil && cfg.Ingest.Sink != usecase.SinkClickHouse {
		return nil, fmt.Errorf("ingest.sink %q needs kafka.brokers", cfg.Ingest.Sink)
	}
	return usecase.NewMessageProcessor(res, pub, store, m, cfg.Ingest.Sink, cfg.Ingest.AllowAI, log), nil
}

func ProvideIngestPipeline(proc *usecase.MessageProcessor, m repository.Metrics, cfg *config.Config) *mid.IngestPipeline {
	return mid.NewIngestPipeline(proc, m,
		mid.WithChannelRate(cfg.Ingest.ChannelRate, 0),
		mid.WithBufferSize(cfg.Ingest.BufferSize),
		mid.WithMaxTextLen(cfg.Ingest.MaxTextLen),
	)
}

// ProvideMessageCollector returns nil when the relay is disabled.
func ProvideMessageCollector(
	cfg *config.Config,
	proc *usecase.MessageProcessor,
	pipe *mid.IngestPipeline,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.MessageCollector {
	if !cfg.Relay.Enabled {
		return nil
	}
	stream := relay.New(relay.Config{
		URL:            cfg.Relay.URL,
		Token:          cfg.Relay.Token,
		Channels:       cfg.Relay.Channels,
		ReconnectDelay: cfg.Relay.ReconnectDelay,
		PingInterval:   cfg.Relay.PingInterval,
	}, log)
	return usecase.NewMessageCollector(stream, proc, m, pipe, log)
}

// ProvideKafkaConsumer returns nil when the consumer is disabled.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TraceHook())
	return consumer, nil
}

func ProvideKafkaMessagesHandler(cfg *config.Config, proc *usecase.MessageProcessor, m repository.Metrics) *usecase.KafkaMessagesHandler {
	return usecase.NewKafkaMessagesHandler(cfg.Kafka.MessagesTopic, proc, m)
}

// ProvideHTTPServer registers the API, backtest and health handlers.
func ProvideHTTPServer(
	cfg *config.Config,
	log *applogger.Logger,
	res *usecase.SignalResolver,
	uc *usecase.BacktestUseCase,
	store repository.Storage,
	collector *usecase.MessageCollector,
) *xhttp.Server {
	health := api.NewHealthHandler().Require("clickhouse", store.Health)
	if collector != nil {
		health.Report("relay", func(context.Context) error {
			if !collector.IsConnected() {
				return fmt.Errorf("not connected")
			}
			return nil
		})
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(log),
	}
	if cfg.Server.RateLimit.RPS > 0 {
		opts = append(opts, xhttp.WithRateLimit(ratelimit.New(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)))
	}
	return xhttp.NewServer([]xhttp.Handler{
		api.NewSignalsHandler(log, res),
		api.NewBacktestHandler(log, uc),
		health,
	}, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaMessagesHandler,
	collector *usecase.MessageCollector,
	client *pkgch.Client,
	producer *pkgkafka.Producer,
) *server.App {
	opts := []server.Option{
		server.WithCollector(collector),
		server.WithCloser("clickhouse", client),
	}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer, kh))
	}
	if producer != nil {
		opts = append(opts, server.WithCloser("kafka producer", producer))
	}
	return server.New(log, httpServer, cfg.Server.ShutdownTimeout, opts...)
}
