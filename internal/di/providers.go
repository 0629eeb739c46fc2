package di

import (
	"context"
	"fmt"
	"time"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/repository"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/handler/api"
	internalrepo "github.com/louwilcox-cloud/Selling-optionscom/internal/repository"
	icache "github.com/louwilcox-cloud/Selling-optionscom/internal/service/cache"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/service/polygon"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/service/ratelimit"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/services/chain"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/services/marketclock"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/services/sentiment"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/usecase"
	pkgch "github.com/louwilcox-cloud/Selling-optionscom/pkg/clickhouse"
	"github.com/louwilcox-cloud/Selling-optionscom/pkg/config"
	pkgkafka "github.com/louwilcox-cloud/Selling-optionscom/pkg/kafka"
	applogger "github.com/louwilcox-cloud/Selling-optionscom/pkg/logger"
	"github.com/louwilcox-cloud/Selling-optionscom/pkg/metrics"
	"github.com/louwilcox-cloud/Selling-optionscom/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvidePolygonClient creates the market-data provider client.
func ProvidePolygonClient(cfg *config.Config, l *applogger.Logger) *polygon.Client {
	return polygon.New(cfg.Polygon.APIKey, cfg.Polygon.BaseURL,
		polygon.WithRateLimit(ratelimit.New(), cfg.Polygon.MaxRPS),
		polygon.WithPageLimit(cfg.Polygon.PageLimit),
		polygon.WithRequestTimeout(cfg.Polygon.RequestTimeout),
		polygon.WithLogger(l),
	)
}

// ProvideClock creates the market-phase clock from the configured calendar.
func ProvideClock(cfg *config.Config, provider *polygon.Client) (*marketclock.Clock, error) {
	cal, err := marketclock.NewCalendar(cfg.Market.Timezone, cfg.Market.Open, cfg.Market.Close, cfg.Market.Holidays)
	if err != nil {
		return nil, fmt.Errorf("market calendar: %w", err)
	}
	opts := []marketclock.ClockOption{marketclock.WithTTL(cfg.Market.StatusTTL)}
	if cfg.Market.UseProvider {
		opts = append(opts, marketclock.WithStatusSource(provider))
	}
	return marketclock.NewClock(cal, opts...), nil
}

// ProvideAssembler builds the chain assembly pipeline.
func ProvideAssembler(cfg *config.Config, provider *polygon.Client, clock *marketclock.Clock, l *applogger.Logger) *chain.Assembler {
	norm := chain.NewNormalizer()
	backfill := chain.NewBackfiller(provider.PrevSession, cfg.Chain.BackfillWorkers)
	backfill.SetLogger(l)
	return chain.NewAssembler(provider, clock, norm, backfill,
		chain.WithMaxPages(cfg.Polygon.MaxPages),
		chain.WithLogger(l),
	)
}

// ProvideCache selects Redis or in-process caching per config.
func ProvideCache(cfg *config.Config) icache.BytesCache {
	if cfg.Cache.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the
// snapshot schema. Returns nil when no component needs ClickHouse.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Backend.Type != "clickhouse" && !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SnapshotSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer when the backend uses one.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Backend.Type != "kafka" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
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

// ProvideKafkaConsumer creates the snapshot consumer when enabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideSnapshotStore creates ClickHouse snapshot storage, or nil.
func ProvideSnapshotStore(chClient *pkgch.Client, l *applogger.Logger) repository.SnapshotStorage {
	if chClient == nil {
		return nil
	}
	store := internalrepo.NewClickHouseSnapshotStore(chClient.DB(), internalrepo.SnapshotTable)
	store.SetLogger(l)
	return store
}

// ProvideSnapshotPublisher creates the Kafka snapshot publisher, or nil.
func ProvideSnapshotPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SnapshotPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSnapshotPublisher(producer, cfg.Kafka.Topic)
}

// ProvideSnapshotProcessor routes computed snapshots to the backend.
func ProvideSnapshotProcessor(
	pub repository.SnapshotPublisher,
	store repository.SnapshotStorage,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.SnapshotProcessor {
	return usecase.NewSnapshotProcessor(pub, store, m, cfg.Backend.Type)
}

// ProvideKafkaSnapshotsHandler registers the consumer-side snapshot handler.
func ProvideKafkaSnapshotsHandler(store repository.SnapshotStorage, m repository.Metrics, cfg *config.Config) *usecase.KafkaSnapshotsHandler {
	return usecase.NewKafkaSnapshotsHandler(cfg.Kafka.Topic, store, m)
}

// ProvideQuoteService creates the underlying-price service.
func ProvideQuoteService(provider *polygon.Client, cfg *config.Config) *usecase.QuoteService {
	return usecase.NewQuoteService(provider, cfg.Cache.TTL)
}

// ProvideQuoteStream creates the provider websocket stream, or nil when no
// symbols are configured for streaming.
func ProvideQuoteStream(cfg *config.Config) repository.QuoteStream {
	if len(cfg.Polygon.StreamSymbols) == 0 {
		return nil
	}
	return polygon.NewStream(
		cfg.Polygon.APIKey,
		cfg.Polygon.WebSocketURL,
		cfg.Polygon.StreamSymbols,
		cfg.Polygon.ReconnectDelay,
		cfg.Polygon.PingInterval,
	)
}

// ProvideQuoteCollector creates the stream collector, or nil.
func ProvideQuoteCollector(stream repository.QuoteStream, quotes *usecase.QuoteService, m repository.Metrics) *usecase.QuoteCollector {
	if stream == nil {
		return nil
	}
	return usecase.NewQuoteCollector(stream, quotes, m)
}

// ProvideAnalyzer creates the sentiment analysis use case.
func ProvideAnalyzer(
	assembler *chain.Assembler,
	quotes *usecase.QuoteService,
	proc *usecase.SnapshotProcessor,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.SentimentAnalyzer {
	return usecase.NewSentimentAnalyzer(assembler, sentiment.NewEngine(), quotes, proc, m, l)
}

// ProvideExpirationLister creates the expiration-date use case.
func ProvideExpirationLister(provider *polygon.Client, clock *marketclock.Clock, cfg *config.Config) *usecase.ExpirationLister {
	return usecase.NewExpirationLister(provider, clock, cfg.Chain.MaxExpirations)
}

// ProvideForecaster creates the multi-symbol forecast use case.
func ProvideForecaster(analyzer *usecase.SentimentAnalyzer, lister *usecase.ExpirationLister, cfg *config.Config) *usecase.Forecaster {
	return usecase.NewForecaster(analyzer, lister, cfg.Chain.ForecastWorkers)
}

// ProvideHandler assembles the HTTP handler with its optional wiring.
func ProvideHandler(
	l *applogger.Logger,
	analyzer *usecase.SentimentAnalyzer,
	lister *usecase.ExpirationLister,
	quotes *usecase.QuoteService,
	forecast *usecase.Forecaster,
	cacheStore icache.BytesCache,
	store repository.SnapshotStorage,
	collector *usecase.QuoteCollector,
	clock *marketclock.Clock,
	cfg *config.Config,
) *api.OptionsEchoHandler {
	h := api.NewOptionsEchoHandler(l, analyzer, lister, quotes, forecast)
	h.SetCache(cacheStore, cfg.Cache.TTL)
	h.SetClock(clock)
	if store != nil {
		h.SetHistory(usecase.NewSnapshotHistory(store, 0))
	}
	if collector != nil {
		h.SetCollector(collector)
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.OptionsEchoHandler,
	collector *usecase.QuoteCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSnapshotsHandler,
	proc *usecase.SnapshotProcessor,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, l, handler, collector, consumer, kh, proc, chClient)
}
