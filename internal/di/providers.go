package di

import (
	"context"
	"fmt"
	"time"

	"AgriPull/internal/domain/repository"
	domsvc "AgriPull/internal/domain/service"
	"AgriPull/internal/handler/api"
	mid "AgriPull/internal/middleware"
	internalrepo "AgriPull/internal/repository"
	icache "AgriPull/internal/service/cache"
	"AgriPull/internal/service/feed"
	imetrics "AgriPull/internal/service/metrics"
	"AgriPull/internal/service/weather"
	"AgriPull/internal/services/pricing"
	"AgriPull/internal/usecase"
	pkgch "AgriPull/pkg/clickhouse"
	"AgriPull/pkg/config"
	pkgkafka "AgriPull/pkg/kafka"
	applogger "AgriPull/pkg/logger"
	"AgriPull/pkg/metrics"
	"AgriPull/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
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

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		"CREATE TABLE IF NOT EXISTS " + db + ".market_prices (market String, day Date, observed_at DateTime, price_kg Float64, source String) ENGINE=MergeTree ORDER BY (market, day, observed_at)",
		"CREATE TABLE IF NOT EXISTS " + db + ".weather_readings (market String, ts DateTime, rain_mm Float64, weather_code String, weather_index Float64) ENGINE=MergeTree ORDER BY (market, ts)",
		"CREATE TABLE IF NOT EXISTS " + db + ".model_state (key String, value Float64, updated_at DateTime) ENGINE=ReplacingMergeTree(updated_at) ORDER BY key",
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
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

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	imetrics.Register()
	return metrics.New()
}

// ProvideBytesCache creates the shared byte cache: Redis when configured,
// in-process TTL cache otherwise.
func ProvideBytesCache(cfg *config.Config) icache.BytesCache {
	if cfg.Cache.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideMarketRegistry builds the static market registry from config.
func ProvideMarketRegistry(cfg *config.Config) repository.MarketRegistry {
	return internalrepo.NewStaticMarketRegistry(cfg.Markets)
}

// ProvidePriceStore creates the ClickHouse price store.
func ProvidePriceStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.PriceStore {
	s := internalrepo.NewCHPriceStore(chClient, cfg.ClickHouse.Database+".market_prices")
	s.SetLogger(l)
	return s
}

// ProvideWeatherStore creates the ClickHouse weather store.
func ProvideWeatherStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.WeatherStore {
	s := internalrepo.NewCHWeatherStore(chClient, cfg.ClickHouse.Database+".weather_readings")
	s.SetLogger(l)
	return s
}

// ProvideStateStore creates the ClickHouse model-state store.
func ProvideStateStore(chClient *pkgch.Client, cfg *config.Config) repository.StateStore {
	return internalrepo.NewCHStateStore(chClient, cfg.ClickHouse.Database+".model_state")
}

// ProvidePublisher creates the Kafka observation publisher.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideMarketFeed creates the websocket market feed.
func ProvideMarketFeed(cfg *config.Config) repository.MarketStream {
	return feed.New(
		cfg.Feed.APIKey,
		cfg.Feed.WebSocketURL,
		cfg.Feed.Markets,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
	)
}

// ProvideWeatherProvider creates the weather API client.
func ProvideWeatherProvider(cfg *config.Config) domsvc.WeatherProvider {
	return weather.NewClient(cfg.Weather.BaseURL, cfg.Weather.APIKey, cfg.Weather.Timeout)
}

// ProvideObservationProcessor creates the observation processor use case.
func ProvideObservationProcessor(
	pub repository.Publisher,
	store repository.PriceStore,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.ObservationProcessor {
	return usecase.NewObservationProcessor(
		pub,
		store,
		m,
		cfg.Backend.Type,
		cfg.Backend.BatchSize,
		cfg.Backend.BatchTimeout,
	)
}

// ProvideObservationCollector creates the observation collector use case.
func ProvideObservationCollector(
	stream repository.MarketStream,
	processor *usecase.ObservationProcessor,
	m repository.Metrics,
) *usecase.ObservationCollector {
	// Build middleware pipeline between the websocket feed and the backend
	pipe := mid.NewObservationPipeline(processor, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewObservationCollector(stream, processor, m, pipe)
}

// ProvideKafkaObservationsHandler registers the handler for the observations topic.
func ProvideKafkaObservationsHandler(store repository.PriceStore, m repository.Metrics, cfg *config.Config) *usecase.KafkaObservationsHandler {
	return usecase.NewKafkaObservationsHandler(cfg.Kafka.Topic, store, m)
}

// ProvidePriceEstimator creates the estimate use case.
func ProvidePriceEstimator(
	registry repository.MarketRegistry,
	prices repository.PriceStore,
	weatherStore repository.WeatherStore,
	state repository.StateStore,
	bc icache.BytesCache,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.PriceEstimator {
	return usecase.NewPriceEstimator(
		registry, prices, weatherStore, state,
		cfg.Calibration.Markets,
		usecase.WithCache(bc, cfg.Cache.TTL.Estimate),
		usecase.WithParams(estimatorParams(cfg)),
		usecase.WithDefaultDistance(cfg.Estimator.DefaultDistance),
		usecase.WithLogger(l),
	)
}

// ProvideCalibrationRunner creates the sigma calibration use case.
func ProvideCalibrationRunner(
	registry repository.MarketRegistry,
	prices repository.PriceStore,
	weatherStore repository.WeatherStore,
	state repository.StateStore,
	bc icache.BytesCache,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.CalibrationRunner {
	return usecase.NewCalibrationRunner(
		registry, prices, weatherStore, state,
		cfg.Calibration.Locations,
		cfg.Calibration.Markets,
		usecase.WithSigmaCache(bc, cfg.Cache.TTL.Sigma),
		usecase.WithWindow(cfg.Calibration.WindowDays, cfg.Calibration.MinSamples),
		usecase.WithCalibrationLogger(l),
	)
}

// ProvideWeatherSyncer creates the weather sync use case.
func ProvideWeatherSyncer(
	registry repository.MarketRegistry,
	provider domsvc.WeatherProvider,
	store repository.WeatherStore,
	bc icache.BytesCache,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.WeatherSyncer {
	return usecase.NewWeatherSyncer(
		registry, provider, store,
		usecase.WithLatestCache(bc, cfg.Cache.TTL.Weather),
		usecase.WithRetention(cfg.Weather.RetentionDays),
		usecase.WithWeatherLogger(l),
	)
}

// ProvidePricesHandler creates the HTTP handler.
func ProvidePricesHandler(
	l *applogger.Logger,
	estimator *usecase.PriceEstimator,
	syncer *usecase.WeatherSyncer,
	registry repository.MarketRegistry,
	prices repository.PriceStore,
	weatherStore repository.WeatherStore,
) *api.PricesEchoHandler {
	return api.NewPricesEchoHandler(l, estimator, syncer, registry, prices, weatherStore)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.ObservationCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaObservationsHandler,
	chClient *pkgch.Client,
	bc icache.BytesCache,
	handler *api.PricesEchoHandler,
	calibration *usecase.CalibrationRunner,
	syncer *usecase.WeatherSyncer,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, l, collector, consumer, kh, chClient, handler)
	app.SetJobs(bc, calibration, syncer)
	if collector != nil {
		app.ObsProc = collector.Processor()
	}
	return app
}

func estimatorParams(cfg *config.Config) pricing.Params {
	return pricing.Params{
		Alpha:    cfg.Estimator.Alpha,
		SeasonK:  cfg.Estimator.SeasonK,
		ShockK:   cfg.Estimator.ShockK,
		WeatherK: cfg.Estimator.WeatherK,
	}
}
