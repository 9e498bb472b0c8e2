package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/application/order"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/config"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/infrastructure/postgres"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/infrastructure/rabbitmq"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/infrastructure/redis"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/logger"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/transport/http/handlers"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/transport/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		_ = os.Setenv("LOG_LEVEL", cfg.LogLevel)
	}
	if cfg.LogFormat != "" {
		_ = os.Setenv("LOG_FORMAT", cfg.LogFormat)
	}

	logger.Init()
	log := logger.Logger.With().Str("env", cfg.AppEnv).Logger()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Postgres ----
	db, err := postgres.Connect(rootCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer db.Close()

	if err := postgres.EnsureSchema(rootCtx, db); err != nil {
		log.Fatal().Err(err).Msg("schema apply failed")
	}
	log.Info().Msg("postgres connected")

	repo := postgres.New(db)

	// ---- Redis (optional status cache) ----
	var cache order.Cache = order.NoopCache{}
	var rds *redis.Cache
	if cfg.RedisAddr != "" {
		rds = redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

		pingCtx, cancel := context.WithTimeout(rootCtx, 2*time.Second)
		if err := rds.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Msg("redis ping failed (continuing without warm cache)")
		} else {
			log.Info().Msg("redis connected")
		}
		cancel()

		cache = rds
	} else {
		log.Info().Msg("REDIS_ADDR empty: status cache disabled")
	}

	// ---- RabbitMQ publisher (outbox side) ----
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.OrderCreatedExchange, cfg.OrderCreatedRoutingKey, logger.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit publisher init failed")
	}
	log.Info().Str("exchange", cfg.OrderCreatedExchange).Msg("rabbit publisher ready")

	// ---- Application ----
	svc := order.New(
		repo,
		cache,
		order.SystemClock{},
		cfg.OrderCreatedExchange,
		cfg.OrderCreatedRoutingKey,
		cfg.StatusCacheTTL,
		logger.Logger,
	)

	// ---- Outbox worker ----
	worker := postgres.NewOutboxWorker(repo, pub, cfg.OutboxBatchSize, cfg.OutboxPollInterval, cfg.OutboxMaxRetries, logger.Logger)
	worker.Start(rootCtx)
	log.Info().Msg("outbox worker started")

	// ---- order.processed consumer ----
	consumer := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:        cfg.RabbitURL,
		Exchange:   cfg.OrderProcessedExchange,
		RoutingKey: cfg.OrderProcessedRoutingKey,
		Queue:      "orders_order_processed_queue",
		DLX:        cfg.DLXName,
		DLQ:        cfg.DLQName,
		Prefetch:   10,
		Tag:        "orders-service",
		MaxRetries: cfg.MaxRetryAttempts,
		RetryBase:  cfg.RetryDelayBaseSeconds,
	}, svc, logger.Logger)
	if err := consumer.Start(rootCtx); err != nil {
		log.Fatal().Err(err).Msg("consumer start failed")
	}
	log.Info().Msg("order.processed consumer started")

	// ---- HTTP server ----
	h := handlers.NewOrdersHandler(svc)
	z := handlers.NewHealthHandler(db, pub)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(h, z, cfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server crashed")
	}

	// Shutdown in reverse wiring order: stop taking requests, stop consuming,
	// drain the outbox loop, then drop connections.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)

	if err := consumer.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("consumer stop timed out")
	}
	worker.Stop()
	_ = pub.Close()
	if rds != nil {
		_ = rds.Close()
	}

	log.Info().Msg("shutdown complete")
}
