package bootstrap

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/processor/internal/application/processing"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/processor/internal/config"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/processor/internal/infrastructure/postgres"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/processor/internal/infrastructure/rabbitmq"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/processor/internal/web"
)

// App bundles the long-running pieces of the processor: the order.created
// consumer, the stuck-row sweeper and the ops HTTP server.
type App struct {
	cfg      *config.Config
	pool     *pgxpool.Pool
	pub      *rabbitmq.Publisher
	sweeper  *processing.Sweeper
	consumer *rabbitmq.Consumer
	web      *web.Server
}

func NewApp() (*App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Postgres
	pool, err := postgres.Connect(initCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.EnsureSchema(initCtx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Info().Msg("postgres connected")

	repo := postgres.New(pool)

	// Outcome publisher (order.processed)
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.OrderProcessedExchange, cfg.OrderProcessedRoutingKey, log.Logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Info().Str("exchange", cfg.OrderProcessedExchange).Msg("rabbit publisher ready")

	// Application
	svc := processing.New(
		repo,
		pub,
		processing.NewSimulatedWorker(cfg.ProcessingSuccessRate),
		processing.SystemClock{},
		log.Logger,
	)

	sweeper := processing.NewSweeper(repo, cfg.ProcessingStuckGrace, processing.SystemClock{}, log.Logger)

	// order.created consumer
	consumer := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:        cfg.RabbitURL,
		Exchange:   cfg.OrderCreatedExchange,
		RoutingKey: cfg.OrderCreatedRoutingKey,
		Queue:      "processor_order_created_queue",
		DLX:        cfg.DLXName,
		DLQ:        cfg.DLQName,
		Prefetch:   cfg.PrefetchCount,
		Tag:        "processor-service",
		MaxRetries: cfg.MaxRetryAttempts,
		RetryBase:  cfg.RetryDelayBaseSeconds,
	}, svc, log.Logger)

	// Ops server (healthz/readyz/metrics)
	webSrv := web.NewServer(cfg.OpsAddr, pool, pub, log.Logger)

	app := &App{
		cfg:      cfg,
		pool:     pool,
		pub:      pub,
		sweeper:  sweeper,
		consumer: consumer,
		web:      webSrv,
	}

	cleanup := func() {
		log.Info().Msg("performing final resource cleanup")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		_ = app.Stop(ctx)
		_ = pub.Close()
		pool.Close()
	}

	return app, cleanup, nil
}

func (a *App) Start(ctx context.Context) error {
	// Clear rows stranded in PROCESSING by a previous crash before taking
	// new deliveries; redeliveries of those orders would otherwise hit the
	// duplicate guard forever.
	if err := a.sweeper.SweepOnce(ctx); err != nil {
		return err
	}
	a.sweeper.Start(ctx)

	log.Info().Msg("starting order.created consumer")
	if err := a.consumer.Start(ctx); err != nil {
		return err
	}

	log.Info().Msg("starting ops server")
	return a.web.Start(ctx) // block
}

func (a *App) Stop(ctx context.Context) error {
	log.Info().Msg("shutting down processor gracefully")

	if a.web != nil {
		_ = a.web.Stop(ctx)
	}
	if a.consumer != nil {
		_ = a.consumer.Stop(ctx)
	}
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	return nil
}
