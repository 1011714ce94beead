package main

import (
	"context"
	"flag"
	"log"
	"time"

	"txn-insights/pkg/cache/redis"
	"txn-insights/pkg/logging"
	"txn-insights/pkg/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Command import copies a JSON transaction file into the Postgres table the
// server reads with DATA_SOURCE=postgres, replacing its previous contents.
// With -redis-addr it also drops the responses cached for the old data.
func main() {
	_ = godotenv.Load()

	logger, err := logging.NewLoggerFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	defaults := store.DefaultPostgresConfig()
	file := flag.String("file", "./data/transactions.json", "JSON array of transactions to import")
	dsn := flag.String("dsn", defaults.DSN, "lib/pq connection string")
	table := flag.String("table", defaults.Table, "destination table")
	redisAddr := flag.String("redis-addr", "", "Redis response cache to clear after the import (empty = skip)")
	redisPrefix := flag.String("redis-prefix", redis.DefaultConfig().KeyPrefix, "key prefix of the Redis response cache")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Validates the whole file before anything is written
	records, err := store.NewFileSource(*file).Load(ctx)
	if err != nil {
		logger.Fatal("Failed to read transactions", zap.String("file", *file), zap.Error(err))
	}

	pgConfig := defaults
	pgConfig.DSN = *dsn
	pgConfig.Table = *table

	pg, err := store.NewPostgresSource(pgConfig)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pg.Close()

	if err := pg.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to create schema", zap.Error(err))
	}
	if err := pg.Import(ctx, records); err != nil {
		logger.Fatal("Import failed", zap.Error(err))
	}

	logger.Info("Import completed",
		zap.String("file", *file),
		zap.String("table", *table),
		logging.Records(len(records)),
	)

	if *redisAddr != "" {
		clearResponseCache(ctx, logger, *redisAddr, *redisPrefix)
	}
}

// clearResponseCache removes cached responses of the replaced data. They are
// keyed by snapshot and would otherwise only age out with their TTL.
// Failure is logged: the import itself already succeeded.
func clearResponseCache(ctx context.Context, logger *logging.Logger, addr, prefix string) {
	redisConfig := redis.DefaultConfig()
	redisConfig.Addr = addr
	redisConfig.KeyPrefix = prefix

	r, err := redis.New(redisConfig)
	if err != nil {
		logger.Warn("Redis unavailable, cached responses not cleared", zap.Error(err))
		return
	}
	defer r.Close()

	removed, err := r.Clear(ctx)
	if err != nil {
		logger.Warn("Failed to clear cached responses", zap.Int("removed", removed), zap.Error(err))
		return
	}
	logger.Info("Cleared cached responses", zap.String("prefix", prefix), zap.Int("removed", removed))
}
