// Command scheduler runs the Reminder Scheduler (C3): it reconciles
// the REST Data Plane's active-reminder list against an in-memory job
// set once per tick and emits trigger events onto queue:to_secretary,
// the same stream user messages arrive on. Grounded on cmd/orchestrator's
// bootstrap shape (config load -> logger/metrics -> dependency wiring
// -> run loop -> graceful shutdown on signal).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/vladmesh/secretary/internal/config"
	"github.com/vladmesh/secretary/internal/jobs"
	"github.com/vladmesh/secretary/internal/observability"
	"github.com/vladmesh/secretary/internal/queue"
	"github.com/vladmesh/secretary/internal/reminderscheduler"
	"github.com/vladmesh/secretary/internal/restclient"
	"github.com/vladmesh/secretary/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		panic(err)
	}

	logger := observability.NewLogger(observability.LogConfig{Level: cfg.Observability.LogLevel})
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), DB: cfg.Redis.DB})

	httpClient := &http.Client{Timeout: cfg.HTTPClient.OverallTimeout}
	restClient := restclient.New("rest-data-plane", cfg.Services.RESTServiceURL, httpClient, logger, metrics,
		restclient.WithMaxRetries(cfg.HTTPClient.MaxRetries))

	logStore := openQueueLogStore(cfg, logger)
	defer logStore.Close()
	execStore := openExecutionStore(cfg, logger)
	defer execStore.Close()

	outputQueue, err := queue.New(ctx, rdb, queue.Config{
		Stream:       cfg.Redis.QueueToSecretary,
		Group:        "scheduler-publisher",
		Consumer:     consumerName(cfg.Queue.ConsumerName),
		MaxRetries:   cfg.Queue.MaxRetries,
		RetryWindow:  cfg.Queue.RetryWindow,
		BlockTimeout: cfg.Queue.BlockTimeout,
	}, logger, metrics, queue.WithLogStore(logStore))
	if err != nil {
		panic(err)
	}

	sched := reminderscheduler.New(restClient, outputQueue, logger, metrics, reminderscheduler.Config{
		ReconcileInterval: cfg.Scheduler.ReconcileInterval,
		OneTimeGrace:      cfg.Scheduler.OneTimeGrace,
		RecurringGrace:    cfg.Scheduler.RecurringGrace,
	}, reminderscheduler.WithExecutionStore(execStore))

	logger.Info(ctx, observability.EventJobStart, "reminder scheduler starting", "reconcile_interval", cfg.Scheduler.ReconcileInterval.String())
	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error(ctx, observability.EventError, "reminder scheduler exited", "error", err)
	}
	logger.Info(ctx, observability.EventJobEnd, "reminder scheduler shutting down")
}

// openQueueLogStore opens the local Postgres observability log when a
// DSN is configured, falling back to a no-op so the queue never blocks
// on a database this deployment chose not to run.
func openQueueLogStore(cfg *config.Config, logger *observability.Logger) storage.QueueLogStore {
	if cfg.LocalDB.DSN == "" {
		return storage.NoopStore{}
	}
	store, err := storage.NewPostgresStore(cfg.LocalDB.DSN, storage.Config{
		MaxOpenConns: cfg.LocalDB.MaxOpenConns, MaxIdleConns: cfg.LocalDB.MaxIdleConns,
	})
	if err != nil {
		logger.Error(context.Background(), observability.EventError, "local queue log store unavailable, falling back to noop", "error", err)
		return storage.NoopStore{}
	}
	return store
}

func openExecutionStore(cfg *config.Config, logger *observability.Logger) jobs.ExecutionStore {
	if cfg.LocalDB.DSN == "" {
		return jobs.NoopStore{}
	}
	store, err := jobs.NewPostgresStore(cfg.LocalDB.DSN, jobs.Config{
		MaxOpenConns: cfg.LocalDB.MaxOpenConns, MaxIdleConns: cfg.LocalDB.MaxIdleConns,
	})
	if err != nil {
		logger.Error(context.Background(), observability.EventError, "local job execution store unavailable, falling back to noop", "error", err)
		return jobs.NoopStore{}
	}
	return store
}

func consumerName(configured string) string {
	if configured != "" {
		return configured
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "scheduler"
	}
	return "scheduler-" + host
}
