package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"template-pipeline/internal/config"
	"template-pipeline/internal/delivery"
	"template-pipeline/internal/handler"
	"template-pipeline/internal/infra/postgresql"
	"template-pipeline/internal/infra/postgresql/migrations"
	infraredis "template-pipeline/internal/infra/redis"
	"template-pipeline/internal/observability"
	"template-pipeline/internal/provider"
	"template-pipeline/internal/quality"
	"template-pipeline/internal/queue"
	"template-pipeline/internal/repository"
	"template-pipeline/internal/service"
	"template-pipeline/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	rmq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rmq.Close()

	publisher := queue.NewRabbitMQPublisher(rmq)
	consumer := queue.NewRabbitMQConsumer(rmq, cfg.WorkerConcurrency, logger)

	graphProvider, err := provider.NewGraphProvider(cfg.GraphAPIBaseURL, cfg.PhoneNumberID, cfg.GraphAPIToken)
	if err != nil {
		logger.Fatal("graph provider initialization failed", zap.Error(err))
	}

	telemetry, err := provider.NewGraphTelemetrySource(cfg.GraphAPIBaseURL, cfg.PhoneNumberID, cfg.GraphAPIToken)
	if err != nil {
		logger.Fatal("graph telemetry source initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	templateRepo := repository.NewGormTemplateRepo(db)
	sendRepo := repository.NewGormSendRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)
	qualityRepo := repository.NewGormQualityRepo(db)

	templateService, err := service.NewTemplateService(templateRepo, logger)
	if err != nil {
		logger.Fatal("template service initialization failed", zap.Error(err))
	}
	templateService.SetMetrics(metrics)

	sendService, err := service.NewSendService(sendRepo, templateRepo, publisher, logger)
	if err != nil {
		logger.Fatal("send service initialization failed", zap.Error(err))
	}

	// Validated at config load; a cycle or bad name never reaches here.
	pairs, err := cfg.FallbackPairs()
	if err != nil {
		logger.Fatal("invalid fallback map", zap.Error(err))
	}
	fallbacks, err := delivery.NewFallbackMapping(pairs)
	if err != nil {
		logger.Fatal("fallback mapping initialization failed", zap.Error(err))
	}

	dispatch := func(ctx context.Context, templateName, recipient string, attempt int) {
		if err := sendService.Redispatch(ctx, templateName, recipient, attempt); err != nil {
			logger.Error("redispatch failed",
				zap.String("template", templateName),
				zap.String("recipient", recipient),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
	}
	coordinator, err := delivery.NewCoordinator(delivery.Config{
		MaxRetries:         cfg.MaxRetries,
		BaseDelay:          cfg.BaseRetryDelay(),
		BackoffMultiplier:  cfg.BackoffMultiplier,
		PaymentDelayFactor: cfg.PaymentDelayFactor,
		FallbackAnyAttempt: cfg.FallbackAnyAttempt,
	}, fallbacks, dispatch, logger)
	if err != nil {
		logger.Fatal("retry coordinator initialization failed", zap.Error(err))
	}
	coordinator.SetMetrics(metrics)
	defer coordinator.Shutdown()

	workerService, err := service.NewWorkerService(
		sendRepo, templateRepo, attemptRepo, consumer,
		graphProvider, rateLimiter, coordinator,
		cfg.WorkerConcurrency, logger,
	)
	if err != nil {
		logger.Fatal("worker service initialization failed", zap.Error(err))
	}
	workerService.SetMetrics(metrics)

	refresher, err := quality.NewRefresher(
		templateRepo, telemetry, qualityRepo,
		quality.NewScorer(quality.Thresholds{}),
		cfg.QualityRefreshInterval, logger,
	)
	if err != nil {
		logger.Fatal("quality refresher initialization failed", zap.Error(err))
	}
	refresher.SetGauge(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(metrics.HTTPMiddleware())

	if err := handler.RegisterTemplateRoutes(app, templateService); err != nil {
		logger.Fatal("failed to register template routes", zap.Error(err))
	}
	if err := handler.RegisterSendRoutes(app, sendService); err != nil {
		logger.Fatal("failed to register send routes", zap.Error(err))
	}
	if err := handler.RegisterQualityRoutes(app, qualityRepo); err != nil {
		logger.Fatal("failed to register quality routes", zap.Error(err))
	}
	handler.RegisterHealthRoutes(app, sqlDB, rdb, rmq)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return workerService.Start(groupCtx)
	})
	g.Go(func() error {
		return refresher.Start(groupCtx)
	})
	g.Go(func() error {
		logger.Info("template-pipeline api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})
	g.Go(func() error {
		<-groupCtx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("service stopped with error", zap.Error(err))
	}

	coordinator.Shutdown()
	if err := consumer.Close(); err != nil {
		logger.Error("failed to close consumer", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		logger.Error("failed to close publisher", zap.Error(err))
	}

	logger.Info("shutdown complete")
}
