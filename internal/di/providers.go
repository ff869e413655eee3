package di

import (
	"context"
	"fmt"
	"time"

	"SignalDesk/internal/domain/repository"
	"SignalDesk/internal/domain/service"
	"SignalDesk/internal/handler/api"
	mid "SignalDesk/internal/middleware"
	internalrepo "SignalDesk/internal/repository"
	"SignalDesk/internal/service/finnhub"
	"SignalDesk/internal/service/ratelimit"
	"SignalDesk/internal/services/analytics"
	"SignalDesk/internal/usecase"
	"SignalDesk/pkg/cache"
	pkgch "SignalDesk/pkg/clickhouse"
	"SignalDesk/pkg/config"
	xhttp "SignalDesk/pkg/http"
	pkgkafka "SignalDesk/pkg/kafka"
	"SignalDesk/pkg/logger"
	"SignalDesk/pkg/metrics"
	"SignalDesk/pkg/queue"
	"SignalDesk/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger builds the application logger from the logging section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient connects and creates the candle and event tables.
func ProvideClickHouseClient(cfg *config.Config, log *logger.Logger) (*pkgch.Client, func(), error) {
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, pkgch.Schema(cfg.ClickHouse.CandleTable, cfg.ClickHouse.EventTable)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	log.Info("clickhouse connected", logger.String("database", cfg.ClickHouse.Database))

	cleanup := func() {
		if err := client.Close(); err != nil {
			log.Warn("clickhouse close error", logger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideRedisClient connects to Redis. The signal store, cache, locks and
// job queue all share this client.
func ProvideRedisClient(cfg *config.Config, log *logger.Logger) (*redis.Client, func(), error) {
	client, err := cache.NewRedisClient(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2, 5*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis client: %w", err)
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			log.Warn("redis close error", logger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideCache layers an in-process LRU over Redis.
func ProvideCache(client *redis.Client, cfg *config.Config) cache.Service {
	remote := cache.NewRedisCache(client, cache.WithRedisPrefix(cfg.Redis.CachePrefix))
	return cache.NewLayeredCache(remote,
		cache.WithLayeredMemorySize(2000),
		cache.WithLayeredMemoryTTL(5*time.Minute),
	)
}

func ProvideSignalStore(client *redis.Client, cfg *config.Config) repository.SignalStore {
	return internalrepo.NewRedisSignalStore(client, cfg.Redis.StorePrefix)
}

func ProvideCHPriceHistory(ch *pkgch.Client, cfg *config.Config, log *logger.Logger) *internalrepo.CHPriceHistory {
	return internalrepo.NewCHPriceHistory(ch.DB(), cfg.ClickHouse.CandleTable, log)
}

// ProvidePriceHistory puts the read-through cache in front of ClickHouse.
func ProvidePriceHistory(src *internalrepo.CHPriceHistory, c cache.Service, cfg *config.Config, log *logger.Logger) repository.PriceHistory {
	return usecase.NewCachedPriceHistory(src, c, cfg.Engine.HistoryCacheTTL, log)
}

func ProvidePriceBook(cfg *config.Config) *internalrepo.PriceBook {
	return internalrepo.NewPriceBook(cfg.Engine.PriceStaleAfter)
}

// ProvideCurrentPrice prefers the live book and falls back to the last stored close.
func ProvideCurrentPrice(book *internalrepo.PriceBook, ch *internalrepo.CHPriceHistory) repository.CurrentPrice {
	return internalrepo.NewFallbackPrice(book, ch)
}

// ProvideCandleWriter returns nil when candle writing is switched off.
func ProvideCandleWriter(ch *pkgch.Client, cfg *config.Config, log *logger.Logger) *internalrepo.CHCandleWriter {
	if !cfg.ClickHouse.WriteCandles {
		return nil
	}
	return internalrepo.NewCHCandleWriter(ch.DB(), cfg.ClickHouse.CandleTable, log)
}

// ProvideTickSink fans live ticks out to the price book and the candle writer.
func ProvideTickSink(book *internalrepo.PriceBook, writer *internalrepo.CHCandleWriter) repository.TickSink {
	if writer == nil {
		return book
	}
	return internalrepo.TickFanout{book, writer}
}

// ProvideKafkaProducer returns a nil producer when Kafka is disabled. When a
// collect topic is configured, aggregated error logs are shipped through it.
func ProvideKafkaProducer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}

	if cfg.Logging.CollectTopic != "" {
		log.AddCollector(&logger.CollectionConfig{
			TimeInterval: cfg.Logging.CollectPeriod,
			Topic:        cfg.Logging.CollectTopic,
			Publisher:    producer,
		})
	}

	cleanup := func() {
		log.RemoveCollector()
		if err := producer.Close(); err != nil {
			log.Warn("kafka producer close error", logger.Error(err))
		}
	}
	return producer, cleanup, nil
}

func ProvideAuditLog(ch *pkgch.Client, cfg *config.Config) *internalrepo.CHAuditLog {
	return internalrepo.NewCHAuditLog(ch.DB(), cfg.ClickHouse.EventTable)
}

// ProvideEventSink publishes lifecycle events to Kafka (when enabled) and
// always records them in the ClickHouse audit log.
func ProvideEventSink(producer *pkgkafka.Producer, audit *internalrepo.CHAuditLog, m repository.Metrics, log *logger.Logger, cfg *config.Config) *usecase.EventSink {
	var pub repository.EventPublisher
	if producer != nil {
		pub = internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
	}
	return usecase.NewEventSink(pub, audit, m, log, cfg.Engine.CallTimeout)
}

// ProvideSentiment returns nil when no sentiment service is configured.
func ProvideSentiment(cfg *config.Config, c cache.Service) service.SentimentProvider {
	if cfg.Analytics.SentimentURL == "" {
		return nil
	}
	base := analytics.NewHTTPServiceBase(cfg.Analytics.SentimentURL, cfg.Analytics.Timeout, cfg.Analytics.Retries)
	return analytics.NewHTTPSentimentProvider(base, c, cfg.Analytics.CacheTTL)
}

// ProvidePredictor returns nil when no prediction service is configured.
func ProvidePredictor(cfg *config.Config) service.Predictor {
	if cfg.Analytics.PredictorURL == "" {
		return nil
	}
	base := analytics.NewHTTPServiceBase(cfg.Analytics.PredictorURL, cfg.Analytics.Timeout, cfg.Analytics.Retries)
	return analytics.NewHTTPPredictor(base)
}

func ProvideSignalGenerator(
	history repository.PriceHistory,
	sentiment service.SentimentProvider,
	predictor service.Predictor,
	m repository.Metrics,
	log *logger.Logger,
	cfg *config.Config,
) *usecase.SignalGenerator {
	return usecase.NewSignalGenerator(history, sentiment, predictor, m, log, usecase.GeneratorConfig{
		HistoryBars: cfg.Engine.HistoryBars,
		MinBars:     cfg.Engine.MinBars,
		CallTimeout: cfg.Engine.CallTimeout,
	})
}

func ProvideCandidateSource(gen *usecase.SignalGenerator, m repository.Metrics, log *logger.Logger, cfg *config.Config) *usecase.CandidateSource {
	return usecase.NewCandidateSource(gen, usecase.CandidateConfig{
		Universe:    cfg.Engine.Universe,
		MinPool:     cfg.Engine.MinCandidatePool,
		MaxBatches:  cfg.Engine.MaxBatches,
		Concurrency: cfg.Engine.Concurrency,
		Seed:        cfg.Engine.Seed,
	}, m, log)
}

// ProvideLifecycleManager uses the shared cache for per-signal locks.
func ProvideLifecycleManager(
	store repository.SignalStore,
	prices repository.CurrentPrice,
	events *usecase.EventSink,
	locks cache.Service,
	m repository.Metrics,
	log *logger.Logger,
	cfg *config.Config,
) *usecase.LifecycleManager {
	return usecase.NewLifecycleManager(store, prices, events, locks, m, log, usecase.LifecycleConfig{
		CallTimeout: cfg.Engine.CallTimeout,
		LockTTL:     cfg.Engine.LockTTL,
	})
}

func ProvideReplacementEngine(
	candidates *usecase.CandidateSource,
	store repository.SignalStore,
	events *usecase.EventSink,
	m repository.Metrics,
	log *logger.Logger,
	cfg *config.Config,
) *usecase.ReplacementEngine {
	return usecase.NewReplacementEngine(candidates, store, events, m, log, usecase.QualityThresholds{
		SuccessRate:    cfg.Engine.HighQualitySuccess,
		DirectionScore: cfg.Engine.HighQualityDirScore,
		RiskReward:     cfg.Engine.HighQualityRR,
	})
}

func ProvidePoolManager(
	store repository.SignalStore,
	lifecycle *usecase.LifecycleManager,
	replacement *usecase.ReplacementEngine,
	m repository.Metrics,
	log *logger.Logger,
	cfg *config.Config,
) *usecase.PoolManager {
	return usecase.NewPoolManager(store, lifecycle, replacement, m, log, usecase.PoolConfig{
		Target:   cfg.Engine.PoolTarget,
		Interval: cfg.Engine.Interval,
	})
}

// ProvideQueue returns nil when the job queue is disabled; refills then run inline.
func ProvideQueue(client *redis.Client, pool *usecase.PoolManager, log *logger.Logger, cfg *config.Config) *queue.RedisQueue {
	if !cfg.Queue.Enabled {
		return nil
	}
	q := queue.NewRedisQueue(log, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, client, queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Queue.KeyPrefix))
	q.RegisterJob(usecase.NewRefillJob(pool, log))
	return q
}

// ProvidePriceCollector returns nil when the Finnhub stream is disabled.
// Ticks are republished to the ticks topic when Kafka is on.
func ProvidePriceCollector(
	sink repository.TickSink,
	producer *pkgkafka.Producer,
	m repository.Metrics,
	log *logger.Logger,
	cfg *config.Config,
) *usecase.PriceCollector {
	if !cfg.Finnhub.Enabled {
		return nil
	}
	stream := finnhub.New(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		cfg.Finnhub.Symbols,
		cfg.Finnhub.ReconnectDelay,
		cfg.Finnhub.PingInterval,
		log,
	)

	var pub usecase.TickPublisher
	if producer != nil && cfg.Kafka.TicksTopic != "" {
		pub = producer
	}
	proc := usecase.NewTickProcessor(sink, pub, cfg.Kafka.TicksTopic, m)
	pipe := mid.NewRealtimePipeline(proc, m,
		mid.WithThrottleWindow(cfg.Finnhub.ThrottleWindow),
		mid.WithBufferSize(2000),
		mid.WithTransform(mid.UppercaseSymbols),
	)
	return usecase.NewPriceCollector(stream, pipe, m, log)
}

// ProvideKafkaConsumer feeds the price book of replicas that do not run the
// Finnhub collector. It returns nil unless Kafka is enabled with a ticks topic.
// Candles are written only by the collecting process.
func ProvideKafkaConsumer(book *internalrepo.PriceBook, m repository.Metrics, log *logger.Logger, cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.TicksTopic == "" || cfg.Finnhub.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerAutoOffsetReset("latest"),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook(), pkgkafka.JSONValidationHook()))
	consumer.RegisterHandler(usecase.NewKafkaTicksHandler(cfg.Kafka.TicksTopic, book, m))
	return consumer, nil
}

func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.EvaluateBurst, cfg.Server.EvaluatePerSecond)
}

func ProvideSignalsHandler(
	log *logger.Logger,
	store repository.SignalStore,
	gen *usecase.SignalGenerator,
	pool *usecase.PoolManager,
	audit *internalrepo.CHAuditLog,
	q *queue.RedisQueue,
	limiter *ratelimit.Limiter,
	ch *pkgch.Client,
) *api.SignalsEchoHandler {
	opts := []api.HandlerOption{
		api.WithHistory(audit),
		api.WithLimiter(limiter),
		api.WithHealthChecks(
			api.HealthCheck{Name: "signal_store", Check: store.Health},
			api.HealthCheck{Name: "clickhouse", Check: ch.Health},
		),
	}
	if q != nil {
		opts = append(opts, api.WithQueue(q))
	}
	return api.NewSignalsEchoHandler(log, store, gen, pool, opts...)
}

func ProvideHTTPServer(log *logger.Logger, h *api.SignalsEchoHandler, cfg *config.Config) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	return xhttp.NewServer(log, []xhttp.Handler{h}, opts...)
}

// ProvideApp assembles the runnable application.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	srv *xhttp.Server,
	pool *usecase.PoolManager,
	q *queue.RedisQueue,
	collector *usecase.PriceCollector,
	consumer *pkgkafka.Consumer,
	writer *internalrepo.CHCandleWriter,
) *server.App {
	app := server.New(cfg, log, srv, pool)
	if q != nil {
		app.WithQueue(q)
	}
	if collector != nil {
		app.WithCollector(collector)
	}
	if consumer != nil {
		app.WithConsumer(consumer)
	}
	if writer != nil {
		app.WithCandleWriter(writer, cfg.ClickHouse.FlushEvery)
	}
	return app
}
