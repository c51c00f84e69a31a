// Package agentgraph implements the agent graph (C6): a fixed,
// ordered pipeline of middleware steps a single incoming message runs
// through — context load, message persistence, memory retrieval,
// dynamic system prompt assembly, summarization, the LLM/tool loop
// itself, response persistence, and finalization. Grounded on the
// original Python implementation's langgraph middleware chain
// (assistants/langgraph/middleware/*.py), reshaped into an explicit
// Go interface chain since this module carries no langgraph
// equivalent.
package agentgraph

import (
	"context"
	"fmt"
	"time"

	"github.com/vladmesh/secretary/internal/observability"
	"github.com/vladmesh/secretary/internal/toolkit"
	"github.com/vladmesh/secretary/pkg/models"
)

// State threads through every step of the pipeline. Steps read and
// write the fields relevant to their concern; nothing is hidden behind
// private accessors because every step needs visibility into what ran
// before it (e.g. Summarization needs History, Finalizer needs the
// LLM's token usage).
type State struct {
	UserID      int64
	Assistant   models.Assistant
	Incoming    models.Message
	History     []models.Message
	Summary     *models.UserSummary
	Memories    []models.MemorySearchResult
	SystemPrompt string
	Response    models.Message
	ToolCalls   []ToolCallRecord
	PromptTokens     int
	CompletionTokens int
	Summarized  bool

	// InitialMessageID is the persisted id of Incoming, set by
	// MessageSaverStep once it has been saved. The Finalizer uses it to
	// update the message's terminal status; zero means it was never
	// saved, and the Finalizer treats that as a no-op.
	InitialMessageID int64

	// ErrorOccurred is set by Graph.Run when any step before the
	// Finalizer fails, so the Finalizer can mark the initial message
	// `error` instead of `processed` (spec §4.6 step 8, §7).
	ErrorOccurred bool
}

// ToolCallRecord records one tool invocation made during the LLM/tool
// loop, kept on State for the Finalizer and for tests.
type ToolCallRecord struct {
	ToolName string
	Args     string
	Result   string
	IsError  bool
}

// Step is one stage of the pipeline.
type Step interface {
	Name() string
	Run(ctx context.Context, st *State) error
}

// Graph runs a fixed ordered list of Steps against a State, followed
// unconditionally by a finalizer step.
type Graph struct {
	steps     []Step
	finalizer Step
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// New builds a Graph from the seven ordered pipeline steps spec §4.6
// requires before finalization — ContextLoader, MessageSaver,
// MemoryRetrieval, DynamicPrompt, Summarization, the LLM/tool loop,
// ResponseSaver — plus a finalizer that Run always executes last, even
// when one of those steps fails (spec §4.6 step 8 and §7: "errors
// short-circuit the remaining middlewares except the Finalizer, which
// must always run").
func New(steps []Step, finalizer Step, logger *observability.Logger, metrics *observability.Metrics) *Graph {
	return &Graph{steps: steps, finalizer: finalizer, logger: logger, metrics: metrics}
}

// Run executes every step in order, stopping at the first error, then
// always runs the finalizer — marking st.ErrorOccurred first so the
// finalizer can tell a tainted run from a clean one. The original
// step error takes precedence over a subsequent finalizer error.
func (g *Graph) Run(ctx context.Context, st *State) error {
	runErr := g.runSteps(ctx, st)
	if runErr != nil {
		st.ErrorOccurred = true
	}

	if g.finalizer == nil {
		return runErr
	}
	if finalizeErr := g.runStep(ctx, st, g.finalizer); finalizeErr != nil && runErr == nil {
		return finalizeErr
	}
	return runErr
}

func (g *Graph) runSteps(ctx context.Context, st *State) error {
	for _, step := range g.steps {
		if err := g.runStep(ctx, st, step); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) runStep(ctx context.Context, st *State, step Step) error {
	start := time.Now()
	if g.logger != nil {
		g.logger.Debug(ctx, observability.EventInfo, "agent graph step starting", "step", step.Name())
	}
	err := step.Run(ctx, st)
	if g.metrics != nil {
		g.metrics.RecordJob("agent_graph:"+step.Name(), time.Since(start).Seconds(), nil)
	}
	if err != nil {
		if g.logger != nil {
			g.logger.Error(ctx, observability.EventError, "agent graph step failed",
				"step", step.Name(), "error", err)
		}
		return fmt.Errorf("step %s: %w", step.Name(), err)
	}
	return nil
}

// toolkitInvocation builds the toolkit.Invocation carried into tool
// Execute calls for this State.
func toolkitInvocation(st *State) toolkit.Invocation {
	return toolkit.Invocation{UserID: st.UserID, AssistantID: st.Assistant.ID}
}
