package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"membership/internal/config"
	"membership/internal/expenses"
	"membership/internal/logging"
	"membership/internal/members"
	"membership/internal/queue"
	"membership/internal/session"
	"membership/internal/store"
)

// Worker consumes change notifications and keeps the shared cache warm.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("worker")

	if cfg.QueueBackend == "memory" {
		logger.Fatal("worker needs a shared queue backend; the memory queue is consumed in-process by the api")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	rdb := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()

	var q queue.Queue
	if cfg.QueueBackend == "amqp" {
		aq, err := queue.NewAMQPQueue(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Fatal("amqp connect failed", zap.Error(err))
		}
		defer func() { _ = aq.Close() }()
		q = aq
	} else {
		q = queue.NewRedisQueue(rdb.Client, cfg.QueueKey, logger)
	}

	dir := members.NewService(db.Client, nil, nil, logger)
	ledgerSvc := expenses.NewService(db.Client, nil, nil, logger)
	cache := session.New(rdb.Client, dir, ledgerSvc, cfg.CacheTTL, nil, logger)

	if _, err := cache.Refresh(ctx); err != nil {
		logger.Warn("initial snapshot warm failed", zap.Error(err))
	}

	logger.Info("waiting for messages", zap.String("backend", cfg.QueueBackend))
	if err := session.NewRefresher(cache, q, logger).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("refresher failed", zap.Error(err))
	}
	logger.Info("worker stopped")
}
