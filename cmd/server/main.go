package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"txn-insights/pkg/api"
	"txn-insights/pkg/cache"
	"txn-insights/pkg/cache/memory"
	"txn-insights/pkg/cache/redis"
	"txn-insights/pkg/chain"
	"txn-insights/pkg/config"
	"txn-insights/pkg/engine"
	"txn-insights/pkg/logging"
	"txn-insights/pkg/metrics"
	metricsmemory "txn-insights/pkg/metrics/memory"
	prommetrics "txn-insights/pkg/metrics/prometheus"
	"txn-insights/pkg/store"
	"txn-insights/pkg/writer"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger, err := logging.NewLoggerFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// Metrics: Prometheus for scraping, memory for /metrics/json
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promCollector := prommetrics.NewCollector(cfg.MetricsNamespace)
	if err := promCollector.Register(registry); err != nil {
		logger.Fatal("Failed to register metrics", zap.Error(err))
	}
	memCollector := metricsmemory.NewCollector()
	collector := metrics.Tee{promCollector, memCollector}

	snapshot := loadSnapshot(cfg, logger, collector)

	eng := engine.New(snapshot,
		engine.WithMetrics(collector),
		engine.WithLogger(logger.Named("engine")),
	)

	opts := []api.Option{
		api.WithGatherer(registry),
		api.WithRequestRecorder(promCollector),
		api.WithMetricsSnapshot(func() any { return memCollector.Snapshot() }),
		api.WithLogger(logger.Named("api")),
	}

	var async *writer.AsyncWriter
	if cfg.CacheEnabled {
		var c *chain.Chain
		c, async = buildChain(cfg, logger, collector)
		defer c.Close()
		opts = append(opts, api.WithChain(c))
	}

	server := api.NewServer(eng, api.ServerConfig{
		Address:      cfg.Address(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}, opts...)

	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
	logger.Info("Server started",
		zap.String("address", cfg.Address()),
		logging.SnapshotID(snapshot.ID()),
		logging.Records(snapshot.Len()),
	)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	if async != nil {
		if err := async.Flush(cfg.ShutdownTimeout); err != nil {
			logger.Warn("Pending Redis writes not flushed",
				zap.Error(err),
				zap.Any("stats", async.Stats()),
			)
		}
	}
	logger.Info("Server stopped gracefully")
}

// loadSnapshot reads the configured source. A load failure ends the process.
func loadSnapshot(cfg *config.Config, logger *logging.Logger, collector metrics.Collector) *store.Snapshot {
	var src store.Source
	switch cfg.DataSource {
	case config.SourcePostgres:
		pgConfig := store.DefaultPostgresConfig()
		pgConfig.DSN = cfg.PostgresDSN
		pg, err := store.NewPostgresSource(pgConfig)
		if err != nil {
			logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		defer pg.Close()
		src = pg
	default:
		src = store.NewFileSource(cfg.DataFile)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	snapshot, err := store.Load(ctx, src, store.WithFalsePositiveRate(cfg.BloomFalsePositiveRate))
	if err != nil {
		logger.Fatal("Failed to load transactions", zap.String("source", src.Name()), zap.Error(err))
	}
	collector.RecordSnapshotLoad(src.Name(), snapshot.Len(), time.Since(start))

	return snapshot
}

// buildChain creates the response cache: memory first, then Redis when an
// address is configured. An unreachable Redis is logged and skipped.
// Writes to Redis go through a write-behind queue unless disabled; that
// queue is returned so shutdown can flush it.
func buildChain(cfg *config.Config, logger *logging.Logger, collector metrics.Collector) (*chain.Chain, *writer.AsyncWriter) {
	var async *writer.AsyncWriter
	layers := []cache.Layer{
		memory.New(memory.Config{
			Name:       "memory",
			MaxEntries: cfg.CacheMaxEntries,
			DefaultTTL: cfg.CacheTTL,
			Logger:     logger,
		}),
	}

	if cfg.RedisAddr != "" {
		redisConfig := redis.DefaultConfig()
		redisConfig.Addr = cfg.RedisAddr
		redisConfig.KeyPrefix = cfg.RedisKeyPrefix
		redisConfig.DefaultTTL = cfg.CacheTTL

		redisCache, err := redis.New(redisConfig)
		if err != nil {
			logger.Warn("Redis unavailable, continuing with memory cache only", zap.Error(err))
		} else if cfg.RedisAsyncWrites {
			async = writer.NewAsyncWriter(redisCache, writer.AsyncWriterConfig{})
			layers = append(layers, async)
		} else {
			layers = append(layers, redisCache)
		}
	}

	c, err := chain.NewWithConfig(chain.Config{
		TTL:         cfg.CacheTTL,
		TTLStrategy: chain.PerLayerTTL{cfg.CacheL1TTL, cfg.CacheL2TTL},
		Metrics:     collector,
	}, layers...)
	if err != nil {
		logger.Fatal("Failed to create cache chain", zap.Error(err))
	}
	return c, async
}
