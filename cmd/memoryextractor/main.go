// Command memoryextractor runs the Memory Extractor (C8) on an
// interval: it scans recent conversations, submits a provider batch
// per conversation, and deduplicates extracted facts against stored
// memories. Grounded on cmd/orchestrator and cmd/scheduler's bootstrap
// shape.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vladmesh/secretary/internal/config"
	"github.com/vladmesh/secretary/internal/jobs"
	"github.com/vladmesh/secretary/internal/memoryextract"
	"github.com/vladmesh/secretary/internal/observability"
	"github.com/vladmesh/secretary/internal/restclient"
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

	httpClient := &http.Client{Timeout: cfg.HTTPClient.OverallTimeout}
	restClient := restclient.New("rest-data-plane", cfg.Services.RESTServiceURL, httpClient, logger, metrics,
		restclient.WithMaxRetries(cfg.HTTPClient.MaxRetries))
	ragClient := restclient.New("rag-service", cfg.Services.RAGServiceURL, httpClient, logger, metrics,
		restclient.WithMaxRetries(cfg.HTTPClient.MaxRetries))

	provider := memoryextract.NewOpenAIBatchProvider(cfg.Providers.OpenAIAPIKey)

	execStore := openExecutionStore(cfg, logger)
	defer execStore.Close()

	extractor := memoryextract.New(restClient, ragClient, provider, logger, metrics, memoryextract.Config{
		Provider:        "openai",
		Model:           "gpt-4o-mini",
		MinMessages:     cfg.MemoryExtractor.MinMessages,
		ConversationCap: cfg.MemoryExtractor.ConversationCap,
		DedupThreshold:  cfg.MemoryExtractor.DedupThreshold,
	}, memoryextract.WithExecutionStore(execStore))

	interval := cfg.MemoryExtractor.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	logger.Info(ctx, observability.EventJobStart, "memory extractor starting", "interval", interval.String())
	runOnce(ctx, extractor, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, observability.EventJobEnd, "memory extractor shutting down")
			return
		case <-ticker.C:
			runOnce(ctx, extractor, logger)
		}
	}
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

func runOnce(ctx context.Context, extractor *memoryextract.Extractor, logger *observability.Logger) {
	if err := extractor.Run(ctx); err != nil {
		logger.Error(ctx, observability.EventError, "memory extraction run failed", "error", err)
	}
}
