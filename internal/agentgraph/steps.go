package agentgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladmesh/secretary/internal/observability"
	"github.com/vladmesh/secretary/internal/toolkit"
	"github.com/vladmesh/secretary/pkg/models"
)

// MessageStore is the REST Data Plane surface the graph needs for
// conversation history and persistence.
type MessageStore interface {
	LoadHistory(ctx context.Context, userID int64, assistantID string, limit int) ([]models.Message, *models.UserSummary, error)
	SaveMessage(ctx context.Context, msg models.Message) (models.Message, error)
	SaveSummary(ctx context.Context, summary models.UserSummary) error
	// UpdateStatus patches a previously saved message's status (spec
	// §6's PATCH /api/messages/{id}), used by the Finalizer to record
	// `processed` or `error` on the run's initial message.
	UpdateStatus(ctx context.Context, messageID int64, status models.MessageStatus) error
}

// MemoryClient is the RAG service surface the graph needs (C8's
// counterpart on the retrieval side).
type MemoryClient interface {
	Search(ctx context.Context, req models.MemorySearchRequest) ([]models.MemorySearchResult, error)
}

// LLMClient is the single-provider chat completion surface the
// LLM/tool loop drives.
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// CompletionRequest is a provider-agnostic chat completion call.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Messages     []models.Message
	ToolSchemas  []ToolSchema
}

// ToolSchema is the (name, description, schema) triple surfaced to the
// LLM for one registered tool.
type ToolSchema struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// ToolInvocationRequest is one tool call the model asked for.
type ToolInvocationRequest struct {
	ToolName string
	Args     json.RawMessage
	CallID   string
}

// CompletionResponse is what the provider returned for one turn.
type CompletionResponse struct {
	Content          string
	ToolCalls        []ToolInvocationRequest
	PromptTokens     int
	CompletionTokens int
}

// ContextLoaderStep loads the message history and active summary for
// this (user, assistant) pair, grounded on the original Python
// middleware's context_loader.py: only the most recent HistoryLimit
// messages not yet covered by a summary are loaded in full; anything
// older relies on the summary text instead.
type ContextLoaderStep struct {
	Store        MessageStore
	HistoryLimit int
}

func (s *ContextLoaderStep) Name() string { return "context_loader" }

func (s *ContextLoaderStep) Run(ctx context.Context, st *State) error {
	limit := s.HistoryLimit
	if limit <= 0 {
		limit = 50
	}
	history, summary, err := s.Store.LoadHistory(ctx, st.UserID, st.Assistant.ID, limit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	st.History = history
	st.Summary = summary
	return nil
}

// MessageSaverStep persists the incoming human/tool message before any
// further processing, so a crash mid-pipeline never loses the
// inbound message itself (spec §4.6's at-least-once guarantee extends
// to conversation history, not just queue delivery).
type MessageSaverStep struct {
	Store MessageStore
}

func (s *MessageSaverStep) Name() string { return "message_saver" }

func (s *MessageSaverStep) Run(ctx context.Context, st *State) error {
	saved, err := s.Store.SaveMessage(ctx, st.Incoming)
	if err != nil {
		return fmt.Errorf("save incoming message: %w", err)
	}
	st.Incoming = saved
	st.InitialMessageID = saved.ID
	st.History = append(st.History, saved)
	return nil
}

// MemoryRetrievalStep queries the RAG service for memories relevant to
// the incoming message, grounded on the original memory_retrieval.py
// middleware's similarity search + threshold filter.
type MemoryRetrievalStep struct {
	Client    MemoryClient
	Limit     int
	Threshold float64
}

func (s *MemoryRetrievalStep) Name() string { return "memory_retrieval" }

func (s *MemoryRetrievalStep) Run(ctx context.Context, st *State) error {
	if s.Client == nil {
		return nil
	}
	results, err := s.Client.Search(ctx, models.MemorySearchRequest{
		Query:       st.Incoming.Content,
		UserID:      st.UserID,
		AssistantID: st.Assistant.ID,
		Limit:       s.Limit,
		Threshold:   s.Threshold,
	})
	if err != nil {
		return fmt.Errorf("memory search: %w", err)
	}
	st.Memories = results
	return nil
}

// DynamicPromptStep assembles the final system prompt from the
// assistant's base instructions plus retrieved memories and the active
// summary, grounded on the original dynamic_prompt.py middleware.
type DynamicPromptStep struct{}

func (s *DynamicPromptStep) Name() string { return "dynamic_prompt" }

func (s *DynamicPromptStep) Run(ctx context.Context, st *State) error {
	prompt := st.Assistant.Instructions

	if st.Summary != nil && st.Summary.SummaryText != "" {
		prompt += "\n\nConversation summary so far:\n" + st.Summary.SummaryText
	}

	if len(st.Memories) > 0 {
		prompt += "\n\nRelevant memories:"
		for _, m := range st.Memories {
			prompt += fmt.Sprintf("\n- %s", m.Memory.Text)
		}
	}

	st.SystemPrompt = prompt
	return nil
}

// Summarizer produces a rolling summary of everything in toSummarize,
// folded onto any prior summary text.
type Summarizer interface {
	Summarize(ctx context.Context, priorSummary string, toSummarize []models.Message) (string, error)
}

// SummarizationStep collapses history into a summary once the context
// ratio crosses SummaryThreshold, keeping the most recent
// MessagesToKeepTail messages verbatim. Grounded on the original
// summarization.py middleware's ratio formula:
//
//	ratio = (system_prompt_tokens + history_tokens) / llm_context_size
type SummarizationStep struct {
	Summarizer         Summarizer
	ContextSize        int
	SummaryThreshold    float64
	MessagesToKeepTail int
	Metrics            *observability.Metrics
}

func (s *SummarizationStep) Name() string { return "summarization" }

// approxTokens estimates token count at roughly 4 characters per
// token, the heuristic carried over from the original implementation
// (see DESIGN.md's Open Questions: summary tokenizer choice).
func approxTokens(s2 string) int {
	return len(s2) / 4
}

func (s *SummarizationStep) Run(ctx context.Context, st *State) error {
	if s.ContextSize <= 0 {
		return nil
	}

	systemTokens := approxTokens(st.SystemPrompt)
	historyTokens := 0
	for _, m := range st.History {
		historyTokens += approxTokens(m.Content)
	}

	ratio := float64(systemTokens+historyTokens) / float64(s.ContextSize)
	threshold := s.SummaryThreshold
	if threshold <= 0 {
		threshold = 0.6
	}
	if ratio < threshold {
		return nil
	}

	tail := s.MessagesToKeepTail
	if tail <= 0 {
		tail = 5
	}
	if len(st.History) <= tail {
		return nil
	}

	toSummarize := st.History[:len(st.History)-tail]
	kept := st.History[len(st.History)-tail:]

	priorText := ""
	if st.Summary != nil {
		priorText = st.Summary.SummaryText
	}

	summaryText, err := s.Summarizer.Summarize(ctx, priorText, toSummarize)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	lastCovered := toSummarize[len(toSummarize)-1].ID
	st.Summary = &models.UserSummary{
		UserID:               st.UserID,
		AssistantID:          st.Assistant.ID,
		SummaryText:          summaryText,
		LastMessageIDCovered: lastCovered,
		TokenCount:           approxTokens(summaryText),
	}
	st.History = kept
	st.Summarized = true
	if s.Metrics != nil {
		s.Metrics.RecordSummarizationTriggered(st.Assistant.ID)
	}
	return nil
}

// ToolLoopStep drives the LLM, dispatching any tool calls it requests
// through the registry and feeding results back until the model
// returns a final, tool-free response or MaxSteps is reached.
type ToolLoopStep struct {
	LLM      LLMClient
	Model    string
	Tools    *toolkit.Registry
	MaxSteps int
}

func (s *ToolLoopStep) Name() string { return "llm_tool_loop" }

func (s *ToolLoopStep) Run(ctx context.Context, st *State) error {
	maxSteps := s.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 8
	}

	ctx = toolkit.WithInvocation(ctx, toolkitInvocation(st))

	messages := append([]models.Message{}, st.History...)
	schemas := s.toolSchemas()

	for step := 0; step < maxSteps; step++ {
		resp, err := s.LLM.Complete(ctx, CompletionRequest{
			Model:        s.Model,
			SystemPrompt: st.SystemPrompt,
			Messages:     messages,
			ToolSchemas:  schemas,
		})
		if err != nil {
			return fmt.Errorf("llm completion: %w", err)
		}
		st.PromptTokens += resp.PromptTokens
		st.CompletionTokens += resp.CompletionTokens

		if len(resp.ToolCalls) == 0 {
			st.Response = models.Message{
				UserID:      st.UserID,
				AssistantID: st.Assistant.ID,
				Role:        models.RoleAssistant,
				Content:     resp.Content,
				ContentType: "text",
				Timestamp:   time.Now(),
				Status:      models.MessageStatusProcessed,
			}
			return nil
		}

		for _, call := range resp.ToolCalls {
			result, err := s.Tools.Invoke(ctx, call.ToolName, call.Args)
			record := ToolCallRecord{ToolName: call.ToolName, Args: string(call.Args)}
			if err != nil {
				record.IsError = true
				record.Result = err.Error()
			} else {
				record.IsError = result.IsError
				record.Result = result.Content
			}
			st.ToolCalls = append(st.ToolCalls, record)

			messages = append(messages, models.Message{
				UserID:      st.UserID,
				AssistantID: st.Assistant.ID,
				Role:        models.RoleTool,
				Content:     record.Result,
				ContentType: "text",
				ToolCallID:  call.CallID,
				Timestamp:   time.Now(),
				Status:      models.MessageStatusProcessed,
			})
		}
	}

	return fmt.Errorf("tool loop exceeded %d steps without a final response", maxSteps)
}

func (s *ToolLoopStep) toolSchemas() []ToolSchema {
	if s.Tools == nil {
		return nil
	}
	names := s.Tools.Names()
	schemas := make([]ToolSchema, 0, len(names))
	for _, name := range names {
		tool, ok := s.Tools.Get(name)
		if !ok {
			continue
		}
		schemas = append(schemas, ToolSchema{Name: tool.Name(), Description: tool.Description(), Schema: tool.Schema()})
	}
	return schemas
}

// ResponseSaverStep persists the assistant's final response and, if
// Summarization produced a new summary this turn, the updated summary
// row too.
type ResponseSaverStep struct {
	Store MessageStore
}

func (s *ResponseSaverStep) Name() string { return "response_saver" }

func (s *ResponseSaverStep) Run(ctx context.Context, st *State) error {
	saved, err := s.Store.SaveMessage(ctx, st.Response)
	if err != nil {
		return fmt.Errorf("save response: %w", err)
	}
	st.Response = saved

	if st.Summarized && st.Summary != nil {
		if err := s.Store.SaveSummary(ctx, *st.Summary); err != nil {
			return fmt.Errorf("save summary: %w", err)
		}
	}
	return nil
}

// FinalizerStep records LLM usage metrics for the turn and updates the
// initial message's terminal status: `processed` on a clean run,
// `error` when Graph.Run marked st.ErrorOccurred. It always runs
// (Graph.Run invokes it unconditionally) and is idempotent when no
// message was ever saved (spec §4.6 step 8: "missing
// initial_message_id is a no-op").
type FinalizerStep struct {
	Store    MessageStore
	Metrics  *observability.Metrics
	Provider string
}

func (s *FinalizerStep) Name() string { return "finalizer" }

func (s *FinalizerStep) Run(ctx context.Context, st *State) error {
	if s.Metrics != nil {
		s.Metrics.RecordLLMRequest(s.Provider, st.Assistant.Model, 0, st.PromptTokens, st.CompletionTokens)
	}

	if s.Store == nil || st.InitialMessageID == 0 {
		return nil
	}

	status := models.MessageStatusProcessed
	if st.ErrorOccurred {
		status = models.MessageStatusError
	}
	if err := s.Store.UpdateStatus(ctx, st.InitialMessageID, status); err != nil {
		return fmt.Errorf("update initial message %d status: %w", st.InitialMessageID, err)
	}
	return nil
}
