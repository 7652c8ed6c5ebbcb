package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pos-backoffice/wirepos/internal/api_gateway"
	"github.com/pos-backoffice/wirepos/internal/api_gateway/service"
	"github.com/pos-backoffice/wirepos/internal/config"
	"github.com/pos-backoffice/wirepos/internal/data/memory"
	"github.com/pos-backoffice/wirepos/internal/data/mongo"
	"github.com/pos-backoffice/wirepos/internal/data/postgres"
	redisstore "github.com/pos-backoffice/wirepos/internal/data/redis"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/pos-backoffice/wirepos/internal/logger"
	"github.com/pos-backoffice/wirepos/internal/platform/gateway"
	"github.com/pos-backoffice/wirepos/internal/platform/messaging/consumers"
	"github.com/pos-backoffice/wirepos/internal/platform/messaging/producers"
	"github.com/pos-backoffice/wirepos/internal/platform/persistence"
	"github.com/pos-backoffice/wirepos/internal/platform/tracing"
	"github.com/pos-backoffice/wirepos/internal/reconciler/consumer"
	"github.com/pos-backoffice/wirepos/internal/reconciler/poller"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("wirepos")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting WirePOS",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"store_backend", cfg.Store.Backend,
	)

	shutdownTracing, err := tracing.Init(appCtx, cfg.Application.Name, cfg.Application.Env, cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Transaction store
	var redisClient *goredis.Client
	var store payment.Store
	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		redisClient, err = persistence.NewRedisClient(appCtx, log, &cfg.Redis)
		if err != nil {
			log.Error("Failed to initialize Redis", "error", err)
			os.Exit(1)
		}
		store = redisstore.NewTransactionStore(redisClient, cfg.Redis.KeyPrefix, log)
	default:
		store = memory.NewTransactionStore()
	}

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	exchangeRepo := mongo.NewExchangeRepository(log, mongoDB.Database())
	if err := exchangeRepo.EnsureIndexes(appCtx); err != nil {
		log.Warn("Failed to ensure exchange indexes", "error", err)
	}
	recordRepo := postgres.NewPaymentRecordRepository(log, postgresDB)
	invoiceRepo := postgres.NewInvoiceRepository(log, postgresDB)

	// Kafka is optional; without it events and dead letters are dropped
	var eventPublisher producers.MessagePublisher = producers.NewNoopPublisher(log)
	var dlqPublisher producers.DeadLetterPublisher = producers.NewNoopPublisher(log)
	var callbackConsumer *consumers.KafkaConsumer
	if cfg.Kafka.Enabled {
		eventProducer, err := producers.NewTransactionEventProducer(appCtx, log, &cfg.Kafka)
		if err != nil {
			log.Error("Failed to initialize Kafka event producer", "error", err)
			os.Exit(1)
		}
		eventPublisher = eventProducer

		dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
		if err != nil {
			log.Error("Failed to initialize DLQ Kafka producer", "error", err)
			os.Exit(1)
		}
		// A nil producer means the DLQ topic is not configured
		if dlqProducer == nil {
			dlqPublisher = nil
		} else {
			dlqPublisher = dlqProducer
		}

		callbackConsumer = consumers.NewKafkaConsumer(log, &cfg.Kafka, cfg.Kafka.CallbackTopic)
	}

	// Reconciliation
	gatewayClient := gateway.NewClient(&cfg.Gateway, log)
	notifier := poller.NewNotifier(exchangeRepo, eventPublisher, log)
	txPoller := poller.NewPoller(&cfg.Poller, store, gatewayClient, notifier, log)
	scheduler, err := poller.NewScheduler(txPoller, &cfg.Poller, log)
	if err != nil {
		log.Error("Failed to initialize poller scheduler", "error", err)
		os.Exit(1)
	}

	// Initialize services
	chargeService := service.NewChargeService(log, cfg, store, gatewayClient, scheduler, notifier)
	statusService := service.NewStatusService(store, exchangeRepo)
	linkService := service.NewLinkService(log, store, recordRepo, invoiceRepo, postgresDB)

	recoveryJob := poller.NewRecoveryJob(&cfg.Recovery, &cfg.Store, store, scheduler, log)
	go recoveryJob.Start(appCtx)

	if callbackConsumer != nil {
		callbackHandler := consumer.NewCallbackHandler(log, chargeService, dlqPublisher)
		if err := callbackConsumer.Subscribe(appCtx, callbackHandler.HandleMessage); err != nil {
			log.Error("Failed to subscribe to callback topic", "error", err)
			os.Exit(1)
		}
	}

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, chargeService, statusService, linkService, scheduler)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")
	failed := shutdown(shutdownCtx, log, shutdownSteps{
		server:          server,
		scheduler:       scheduler,
		callbacks:       callbackConsumer,
		eventPublisher:  eventPublisher,
		dlqPublisher:    dlqPublisher,
		postgresDB:      postgresDB,
		mongoDB:         mongoDB,
		redisClient:     redisClient,
		shutdownTracing: shutdownTracing,
	})

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if failed || serverErr != nil {
		log.Error("Shutdown completed with errors")
		os.Exit(1)
	}
	log.Info("Shutdown completed successfully")
}

type shutdownSteps struct {
	server          *api_gateway.Server
	scheduler       *poller.Scheduler
	callbacks       *consumers.KafkaConsumer
	eventPublisher  producers.MessagePublisher
	dlqPublisher    producers.DeadLetterPublisher
	postgresDB      *persistence.PostgresDB
	mongoDB         *persistence.MongoDB
	redisClient     *goredis.Client
	shutdownTracing func(context.Context) error
}

// shutdown stops intake first, then pollers, then the infrastructure they write to.
// It reports whether any step failed.
func shutdown(ctx context.Context, log *slog.Logger, s shutdownSteps) bool {
	failed := false
	step := func(name string, err error) {
		if err != nil {
			failed = true
			log.Error("Error during shutdown", "step", name, "error", err)
		}
	}

	step("http server", s.server.Stop(ctx))
	step("pollers", s.scheduler.Shutdown(ctx))
	if s.callbacks != nil {
		step("callback consumer", s.callbacks.Close())
	}
	step("event publisher", s.eventPublisher.Close())
	if s.dlqPublisher != nil {
		step("dlq publisher", s.dlqPublisher.Close())
	}

	s.postgresDB.Close()
	step("mongodb", s.mongoDB.Close(ctx))
	if s.redisClient != nil {
		step("redis", s.redisClient.Close())
	}
	step("tracing", s.shutdownTracing(ctx))
	return failed
}
