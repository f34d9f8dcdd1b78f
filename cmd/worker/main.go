package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"geoattend/internal/config"
	"geoattend/internal/logging"
	"geoattend/internal/queue"
	"geoattend/internal/store"
	"geoattend/internal/worker"
)

// The worker drains attendance events from redis into the audit table.
func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("error", true, os.Stderr)
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.LogLevel, !cfg.Production(), os.Stderr)

	if cfg.QueueBackend != "redis" || cfg.StoreBackend != "postgres" {
		log.Fatal().Str("queue", cfg.QueueBackend).Str("store", cfg.StoreBackend).
			Msg("worker needs the redis queue and the postgres store")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	rdb := store.NewRedis(cfg.RedisAddr)
	defer rdb.Close()
	if !rdb.Healthy(ctx) {
		log.Warn().Str("addr", cfg.RedisAddr).Msg("redis not reachable yet, will keep polling")
	}

	auditor := worker.NewAuditor(queue.NewRedisQueue(rdb.Client, cfg.QueueKey), store.NewPostgres(db.Client), log)
	if _, err := auditor.Run(ctx); err != nil {
		log.Error().Err(err).Msg("worker failed")
	}
}
