package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"membership/internal/account"
	"membership/internal/api"
	"membership/internal/approval"
	"membership/internal/attendance"
	"membership/internal/auth"
	"membership/internal/config"
	"membership/internal/donations"
	"membership/internal/expenses"
	"membership/internal/httpmiddleware"
	"membership/internal/images"
	"membership/internal/logging"
	"membership/internal/members"
	"membership/internal/metrics"
	"membership/internal/queue"
	"membership/internal/session"
	"membership/internal/store"
)

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

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if cfg.MigrateOnBoot {
		if err := store.Migrate(ctx, db.Client); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	rdb := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()

	q, closeQueue, err := openQueue(cfg, rdb, logger)
	if err != nil {
		return err
	}
	defer closeQueue()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(reg)

	issuer := auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)

	dir := members.NewService(db.Client, q, mt, logger)
	ledgerSvc := expenses.NewService(db.Client, q, mt, logger)
	cache := session.New(rdb.Client, dir, ledgerSvc, cfg.CacheTTL, mt, logger)
	accounts := account.NewService(dir, approval.NewRepository(db.Client), auth.NewTokenRepository(db.Client), issuer, cache, logger)

	imageStore, err := openImages(ctx, cfg)
	if err != nil {
		return err
	}
	if imageStore == nil {
		logger.Warn("image storage not configured", zap.String("backend", cfg.ImageBackend))
	}

	router := api.NewRouter(api.Deps{
		Log:        logger,
		Issuer:     issuer,
		Accounts:   accounts,
		Approvals:  approval.NewService(db.Client, dir, logger),
		Members:    dir,
		Attendance: attendance.NewService(dir, mt, logger),
		Donations:  donations.NewService(dir, mt, logger),
		Expenses:   ledgerSvc,
		Cache:      cache,
		Images:     imageStore,
		Limiter:    httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin, mt.Limited),
		Gatherer:   reg,
		Checks: map[string]api.Check{
			"db":    db.Healthy,
			"redis": rdb.Healthy,
		},
		CORSOrigins: cfg.CORSOrigins,
		Production:  cfg.Production(),
	})

	// The in-memory queue cannot reach a separate worker process.
	if cfg.QueueBackend == "memory" {
		go func() {
			if err := session.NewRefresher(cache, q, logger).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("refresher stopped", zap.Error(err))
			}
		}()
	}

	if _, err := cache.Refresh(ctx); err != nil {
		logger.Warn("initial snapshot warm failed", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}

func openQueue(cfg config.App, rdb *store.Redis, logger *zap.Logger) (queue.Queue, func(), error) {
	switch cfg.QueueBackend {
	case "memory":
		return queue.NewInMemory(cfg.QueueCapacity), func() {}, nil
	case "amqp":
		q, err := queue.NewAMQPQueue(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return nil, nil, err
		}
		return q, func() { _ = q.Close() }, nil
	default:
		return queue.NewRedisQueue(rdb.Client, cfg.QueueKey, logger), func() {}, nil
	}
}

func openImages(ctx context.Context, cfg config.App) (images.Store, error) {
	if !cfg.ImagesConfigured() {
		return nil, nil
	}
	switch cfg.ImageBackend {
	case "s3":
		return images.NewS3(ctx, images.S3Config{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			PublicURL: cfg.S3PublicURL,
		})
	default:
		return images.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	}
}
