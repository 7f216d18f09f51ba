package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RaikyD/mp-checkout-service/internal/application"
	"github.com/RaikyD/mp-checkout-service/internal/config"
	"github.com/RaikyD/mp-checkout-service/internal/gateway"
	"github.com/RaikyD/mp-checkout-service/internal/kafka"
	"github.com/RaikyD/mp-checkout-service/internal/logger"
	"github.com/RaikyD/mp-checkout-service/internal/migrate"
	"github.com/RaikyD/mp-checkout-service/internal/presentation"
	"github.com/RaikyD/mp-checkout-service/internal/repository"
)

type store interface {
	repository.OrderRepo
	Ping(ctx context.Context) error
}

func main() {
	if err := run(); err != nil {
		logger.Error("service stopped", "err", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		_ = logger.Init("info")
		return err
	}
	if err := logger.Init(cfg.LOG_LEVEL); err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	var (
		repo    store
		scratch repository.ScratchRepo
	)
	switch cfg.STORAGE_DRIVER {
	case config.StoragePostgres:
		if cfg.MIGRATE_ON_START {
			if err := migrate.Up(ctx, cfg.DB_STRING); err != nil {
				return err
			}
		}
		pool, err := pgxpool.New(ctx, cfg.DB_STRING)
		if err != nil {
			return err
		}
		defer pool.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = pool.Ping(pingCtx)
		cancel()
		if err != nil {
			return err
		}
		logger.Info("db connected")
		repo = repository.NewOrderRepository(pool)
		scratch = repository.NewScratchRepository(pool)
	default:
		logger.Warn("using in-memory storage, orders are lost on restart")
		repo = repository.NewMemoryOrderRepository()
		scratch = repository.NewMemoryScratchRepository()
	}

	// Correlation
	var resolver application.Resolver = application.NewTokenResolver(repo)
	if cfg.CORRELATION_STRATEGY == config.CorrelationScratch {
		logger.Warn("scratch correlation is deprecated and mis-assigns payments under concurrent checkouts")
		resolver = application.NewScratchResolver(scratch)
	} else {
		scratch = nil
	}

	mp := gateway.NewMercadoPagoClient(
		cfg.MP_BASE_URL,
		cfg.MP_ACCESS_TOKEN,
		cfg.MP_TIMEOUT,
		gateway.BackURLs{Success: cfg.BACK_URL_SUCCESS, Failure: cfg.BACK_URL_FAILURE},
		cfg.NOTIFICATION_URL,
	)

	// Kafka producer for OrderCompleted
	var events application.EventPublisher
	if cfg.KafkaEnabled() {
		prod := kafka.NewProducer(cfg.KAFKA_BROKERS, cfg.KAFKA_EVENTS_TOPIC)
		defer prod.Close()
		events = prod
	}

	checkout := application.NewCheckoutService(repo, mp, scratch)
	rec := application.NewReconciler(mp, resolver, repo, events)
	orders := application.NewOrdersService(repo)

	// Kafka consumer for relayed notifications
	var consumer *kafka.Consumer
	if cfg.KafkaEnabled() && cfg.KAFKA_NOTIFICATIONS_TOPIC != "" {
		consumer = kafka.StartConsumer(ctx, rec, kafka.ConsumerConfig{
			Brokers: cfg.KAFKA_BROKERS,
			Topic:   cfg.KAFKA_NOTIFICATIONS_TOPIC,
			GroupID: cfg.KAFKA_GROUP_ID,
			Timeout: cfg.RECONCILE_TIMEOUT,
		})
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.REQUEST_TIMEOUT))

	h := presentation.NewOrdersHandler(checkout, rec, orders, repo, cfg.WEBHOOK_SECRET, cfg.RECONCILE_TIMEOUT)
	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP_PORT,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.REQUEST_TIMEOUT + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http", "addr", srv.Addr, "storage", cfg.STORAGE_DRIVER, "correlation", cfg.CORRELATION_STRATEGY)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
	}
	stop()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	if consumer != nil {
		consumer.Wait()
	}
	if serveErr != nil {
		return serveErr
	}
	logger.Info("server stopped gracefully")
	return nil
}
