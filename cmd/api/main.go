package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angelmondragon/dailyledger/api/controllers"
	"github.com/angelmondragon/dailyledger/api/routes"
	"github.com/angelmondragon/dailyledger/internal/cutoff"
	"github.com/angelmondragon/dailyledger/internal/notifications"
	"github.com/angelmondragon/dailyledger/internal/orders"
	"github.com/angelmondragon/dailyledger/internal/sheets"
	"github.com/angelmondragon/dailyledger/pkg/config"
	"github.com/angelmondragon/dailyledger/pkg/db"
	"github.com/angelmondragon/dailyledger/pkg/instance"
	"github.com/angelmondragon/dailyledger/pkg/logger"
	"github.com/angelmondragon/dailyledger/pkg/metrics"
	"github.com/angelmondragon/dailyledger/pkg/migrate"
	"github.com/angelmondragon/dailyledger/pkg/pubsub"
	"github.com/angelmondragon/dailyledger/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	readiness := map[string]controllers.Pinger{}

	dbClient, err := db.New(rootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	closers = append(closers, dbClient.Close)
	readiness["database"] = dbClient

	if err := migrate.MaybeRunDev(rootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	var store sheets.Store = sheets.NewGormStore(dbClient.DB())
	var idempotencyStore redis.IdempotencyStore
	var lease orders.LeaseLocker

	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(rootCtx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		closers = append(closers, redisClient.Close)
		readiness["redis"] = redisClient
		idempotencyStore = redisClient
		if cfg.FeatureFlags.GridCache {
			store = sheets.NewCachedStore(store, redisClient, cfg.Ledger.CacheTTL, logg)
		}
		if cfg.FeatureFlags.RedisLock {
			lease = redisClient
		}
	} else if cfg.FeatureFlags.GridCache || cfg.FeatureFlags.RedisLock {
		logg.Warn(rootCtx, "redis features requested without a redis endpoint; running in-process only")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	var sender notifications.Sender = notifications.LogSender{Logger: logg}
	if cfg.Notify.Enabled {
		psClient, err := pubsub.NewClient(rootCtx, cfg.GCP, cfg.Notify, logg)
		if err != nil {
			return err
		}
		closers = append(closers, psClient.Close)
		readiness["pubsub"] = psClient
		pubSender, err := notifications.NewPubSubSender(psClient.NotificationPublisher(), "dailyledger-api")
		if err != nil {
			return err
		}
		sender = pubSender
	}
	notifier, err := notifications.NewNotifier(sender, cfg.Notify, logg, ledgerMetrics)
	if err != nil {
		return err
	}
	closers = append(closers, func() error {
		notifier.Wait()
		return nil
	})

	loc, err := cfg.Ledger.Location()
	if err != nil {
		return err
	}
	policy, err := cutoff.NewPolicy(loc, cfg.Ledger.DateLayout, cfg.Ledger.DefaultCutoff)
	if err != nil {
		return err
	}

	ordersSvc, err := orders.NewService(orders.Params{
		Store:    store,
		Ledger:   cfg.Ledger,
		Cart:     cfg.Cart,
		Policy:   policy,
		Notifier: notifier,
		Lease:    lease,
		Metrics:  ledgerMetrics,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(rootCtx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
		"tenants":  len(cfg.Ledger.Tenants),
	})
	logg.Info(ctx, "starting api server")

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, readiness, idempotencyStore, metricsHandler, ordersSvc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-rootCtx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
