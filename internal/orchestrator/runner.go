package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/vladmesh/secretary/internal/agentgraph"
	"github.com/vladmesh/secretary/internal/factory"
	"github.com/vladmesh/secretary/internal/observability"
	"github.com/vladmesh/secretary/pkg/models"
)

// Resolver is the subset of factory.Factory the runner needs: resolve
// a user to their assigned secretary, or resolve a specific assistant
// directly (the sub_assistant delegate path).
type Resolver interface {
	Resolve(ctx context.Context, userID int64) (*factory.Instance, error)
	ResolveAssistant(ctx context.Context, assistantID string) (*factory.Instance, error)
}

// GraphConfig mirrors config.GraphConfig, narrowed to what the runner
// needs to assemble a Graph per call.
type GraphConfig struct {
	HistoryLimit        int
	MemoryLimit         int
	MemoryThreshold     float64
	SummaryThreshold    float64
	MessagesToKeepTail  int
	ModelStepTimeout    time.Duration
	WallClockMultiplier int
}

// Runner builds and drives the agent graph (C6) for a single
// (user_id, assistant_id) message, the unit of work the orchestrator's
// message path and the sub_assistant tool's delegate path both need.
// It implements subagent.AssistantProcessor directly: a sub-assistant
// delegation is just another call to Process with the sub-assistant's
// ID substituted for the caller's resolved assistant.
type Runner struct {
	resolver Resolver
	store    agentgraph.MessageStore
	memory   agentgraph.MemoryClient
	llm      LLM
	cfg      GraphConfig
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// LLM is the combined chat-completion + summarization surface the
// runner drives the graph with, satisfied by internal/llm.OpenAIClient.
type LLM interface {
	agentgraph.LLMClient
	agentgraph.Summarizer
}

// NewRunner builds a Runner.
func NewRunner(resolver Resolver, store agentgraph.MessageStore, memory agentgraph.MemoryClient, llm LLM, cfg GraphConfig, logger *observability.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		resolver: resolver,
		store:    store,
		memory:   memory,
		llm:      llm,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// ProcessMessage implements subagent.AssistantProcessor: resolve the
// named assistant directly (never the caller's own secretary
// assignment) and run it against text on behalf of userID.
func (r *Runner) ProcessMessage(ctx context.Context, assistantID string, userID int64, text string) (string, error) {
	instance, err := r.resolver.ResolveAssistant(ctx, assistantID)
	if err != nil {
		return "", fmt.Errorf("resolve assistant %s: %w", assistantID, err)
	}
	return r.run(ctx, instance, userID, text)
}

// ProcessForUser resolves the user's assigned secretary via C4 and
// runs it — the orchestrator's message-path entry point.
func (r *Runner) ProcessForUser(ctx context.Context, userID int64, text string) (string, error) {
	instance, err := r.resolver.Resolve(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("resolve secretary for user %d: %w", userID, err)
	}
	return r.run(ctx, instance, userID, text)
}

// ProcessTrigger drives a cron-originated reminder trigger through the
// agent named by assistantID, the trigger path resolve rule of spec
// §4.7 (assistant_id carried in envelope metadata rather than looked
// up via C4's user->secretary assignment).
func (r *Runner) ProcessTrigger(ctx context.Context, assistantID string, userID int64, text string) (string, error) {
	instance, err := r.resolver.ResolveAssistant(ctx, assistantID)
	if err != nil {
		return "", fmt.Errorf("resolve assistant %s: %w", assistantID, err)
	}
	return r.run(ctx, instance, userID, text)
}

func (r *Runner) run(ctx context.Context, instance *factory.Instance, userID int64, text string) (string, error) {
	graph := agentgraph.New([]agentgraph.Step{
		&agentgraph.ContextLoaderStep{Store: r.store, HistoryLimit: r.cfg.HistoryLimit},
		&agentgraph.MessageSaverStep{Store: r.store},
		&agentgraph.MemoryRetrievalStep{Client: r.memory, Limit: r.cfg.MemoryLimit, Threshold: r.cfg.MemoryThreshold},
		&agentgraph.DynamicPromptStep{},
		&agentgraph.SummarizationStep{
			Summarizer:         r.llm,
			ContextSize:        contextSizeFor(instance.Assistant.Model),
			SummaryThreshold:   r.cfg.SummaryThreshold,
			MessagesToKeepTail: r.cfg.MessagesToKeepTail,
			Metrics:            r.metrics,
		},
		&agentgraph.ToolLoopStep{LLM: r.llm, Model: instance.Assistant.Model, Tools: instance.Tools},
		&agentgraph.ResponseSaverStep{Store: r.store},
	}, &agentgraph.FinalizerStep{Store: r.store, Metrics: r.metrics, Provider: "openai"}, r.logger, r.metrics)

	st := &agentgraph.State{
		UserID:    userID,
		Assistant: instance.Assistant,
		Incoming: models.Message{
			UserID:      userID,
			AssistantID: instance.Assistant.ID,
			Role:        models.RoleHuman,
			Content:     text,
			ContentType: "text",
			Timestamp:   time.Now(),
			Status:      models.MessageStatusPendingProcessing,
		},
	}

	runCtx := ctx
	if r.cfg.ModelStepTimeout > 0 {
		multiplier := r.cfg.WallClockMultiplier
		if multiplier <= 0 {
			multiplier = 1
		}
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.ModelStepTimeout*time.Duration(multiplier))
		defer cancel()
	}

	if err := graph.Run(runCtx, st); err != nil {
		return "", err
	}
	return st.Response.Content, nil
}

// contextSizeFor returns the model's context window in characters-
// equivalent tokens for the summarization ratio (approxTokens in
// agentgraph uses ~4 chars/token); unknown models fall back to a
// conservative default rather than disabling summarization entirely.
func contextSizeFor(model string) int {
	switch model {
	case "gpt-4o", "gpt-4o-mini", "gpt-4-turbo":
		return 128000
	case "gpt-4":
		return 8192
	default:
		return 16000
	}
}
