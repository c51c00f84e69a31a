// Command orchestrator runs the Orchestrator (C7): it drains
// queue:to_secretary, drives each envelope through the Agent Factory
// (C4) and Agent Graph (C6), and publishes the reply to
// queue:to_telegram. Grounded on the teacher's cmd/nexus entrypoint
// shape (config load -> logger/metrics -> dependency wiring -> run
// loop -> graceful shutdown on signal), adapted since the teacher's
// own entrypoint drives a Discord gateway, not a queue consumer.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladmesh/secretary/internal/config"
	"github.com/vladmesh/secretary/internal/factory"
	"github.com/vladmesh/secretary/internal/llm"
	"github.com/vladmesh/secretary/internal/observability"
	"github.com/vladmesh/secretary/internal/orchestrator"
	"github.com/vladmesh/secretary/internal/queue"
	"github.com/vladmesh/secretary/internal/restclient"
	"github.com/vladmesh/secretary/internal/reststore"
	"github.com/vladmesh/secretary/internal/sessions"
	"github.com/vladmesh/secretary/internal/storage"
	"github.com/vladmesh/secretary/internal/tools/calendar"
	"github.com/vladmesh/secretary/internal/tools/memorysearch"
	"github.com/vladmesh/secretary/internal/tools/reminders"
	"github.com/vladmesh/secretary/internal/tools/subagent"
	"github.com/vladmesh/secretary/internal/tools/timetool"
	"github.com/vladmesh/secretary/internal/tools/websearch"
	"github.com/vladmesh/secretary/internal/toolkit"
	"github.com/vladmesh/secretary/pkg/models"
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
	ragClient := restclient.New("rag-service", cfg.Services.RAGServiceURL, httpClient, logger, metrics,
		restclient.WithMaxRetries(cfg.HTTPClient.MaxRetries))

	locker := sessions.NewLocalLocker(2 * time.Minute)

	fac := factory.New(restClient, locker, logger, metrics, cfg.AgentFactory.RefreshInterval)

	store := reststore.NewMessageStore(restClient)
	memoryClient := reststore.NewMemoryClient(ragClient)
	llmClient := llm.New(cfg.Providers.OpenAIAPIKey, logger, metrics)

	runner := orchestrator.NewRunner(fac, store, memoryClient, llmClient, orchestrator.GraphConfig{
		HistoryLimit:        cfg.Graph.HistoryLimit,
		MemoryLimit:         cfg.Graph.MemoryLimit,
		MemoryThreshold:     cfg.Graph.MemoryThreshold,
		SummaryThreshold:    cfg.Graph.SummaryThreshold,
		MessagesToKeepTail:  cfg.Graph.MessagesToKeepTail,
		ModelStepTimeout:    cfg.Graph.ModelStepTimeout,
		WallClockMultiplier: cfg.Graph.WallClockMultiplier,
	}, logger, metrics)

	registerToolBuilders(fac, restClient, ragClient, runner)

	go fac.Start(ctx)

	logStore := openQueueLogStore(cfg, logger)
	defer logStore.Close()

	inputQueue, err := queue.New(ctx, rdb, queue.Config{
		Stream:       cfg.Redis.QueueToSecretary,
		Group:        "orchestrator",
		Consumer:     consumerName(cfg.Queue.ConsumerName),
		MaxRetries:   cfg.Queue.MaxRetries,
		RetryWindow:  cfg.Queue.RetryWindow,
		BlockTimeout: cfg.Queue.BlockTimeout,
	}, logger, metrics, queue.WithLogStore(logStore))
	if err != nil {
		panic(err)
	}

	outputQueue, err := queue.New(ctx, rdb, queue.Config{
		Stream:       cfg.Redis.QueueToTelegram,
		Group:        "orchestrator-publisher",
		Consumer:     consumerName(cfg.Queue.ConsumerName),
		MaxRetries:   cfg.Queue.MaxRetries,
		RetryWindow:  cfg.Queue.RetryWindow,
		BlockTimeout: cfg.Queue.BlockTimeout,
	}, logger, metrics, queue.WithLogStore(logStore))
	if err != nil {
		panic(err)
	}

	processor := &orchestrator.Processor{
		Input:   inputQueue,
		Output:  outputQueue,
		Runner:  runner,
		Logger:  logger,
		Metrics: metrics,
	}

	logger.Info(ctx, observability.EventJobStart, "orchestrator starting", "stream", cfg.Redis.QueueToSecretary)
	if err := processor.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error(ctx, observability.EventError, "orchestrator consume loop exited", "error", err)
	}
	logger.Info(ctx, observability.EventJobEnd, "orchestrator shutting down", "stream", cfg.Redis.QueueToSecretary)
}

// registerToolBuilders wires all nine spec §3 tool types (§4.5's Tool
// Factory table) to the Agent Factory. sub_assistant is registered
// last since its builder closes over runner, which itself depends on
// fac being constructed first — a construction-order cycle broken by
// registering the builder after both exist rather than threading fac
// into Runner's own dependencies.
func registerToolBuilders(fac *factory.Factory, restClient, ragClient *restclient.Client, runner *orchestrator.Runner) {
	fac.RegisterToolBuilder(models.ToolTypeTime, func(row models.Tool, assistantID string) (toolkit.Tool, error) {
		return timetool.New(row.Name, row.Description), nil
	})

	fac.RegisterToolBuilder(models.ToolTypeReminderCreate, func(row models.Tool, assistantID string) (toolkit.Tool, error) {
		return reminders.NewCreateTool(row.Name, row.Description, restClient), nil
	})
	fac.RegisterToolBuilder(models.ToolTypeReminderList, func(row models.Tool, assistantID string) (toolkit.Tool, error) {
		return reminders.NewListTool(row.Name, row.Description, restClient), nil
	})
	fac.RegisterToolBuilder(models.ToolTypeReminderDelete, func(row models.Tool, assistantID string) (toolkit.Tool, error) {
		return reminders.NewDeleteTool(row.Name, row.Description, restClient), nil
	})

	fac.RegisterToolBuilder(models.ToolTypeCalendar, func(row models.Tool, assistantID string) (toolkit.Tool, error) {
		return calendar.New(row.Name, row.Description, restClient), nil
	})

	fac.RegisterToolBuilder(models.ToolTypeWebSearch, func(row models.Tool, assistantID string) (toolkit.Tool, error) {
		return websearch.NewWebSearchTool(&websearch.Config{DefaultBackend: websearch.BackendDuckDuckGo}), nil
	})

	fac.RegisterToolBuilder(models.ToolTypeMemorySearch, func(row models.Tool, assistantID string) (toolkit.Tool, error) {
		return memorysearch.NewSearchTool(row.Name, row.Description, ragClient), nil
	})
	fac.RegisterToolBuilder(models.ToolTypeMemorySave, func(row models.Tool, assistantID string) (toolkit.Tool, error) {
		return memorysearch.NewSaveTool(row.Name, row.Description, ragClient), nil
	})

	fac.RegisterToolBuilder(models.ToolTypeSubAssistant, func(row models.Tool, assistantID string) (toolkit.Tool, error) {
		return subagent.New(row.Name, row.Description, row.SubAssistantID, assistantID, runner)
	})
}

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

func consumerName(configured string) string {
	if configured != "" {
		return configured
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "orchestrator"
	}
	return "orchestrator-" + host
}
