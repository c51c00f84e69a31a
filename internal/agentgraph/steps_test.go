package agentgraph

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladmesh/secretary/internal/toolkit"
	"github.com/vladmesh/secretary/pkg/models"
)

type fakeMessageStore struct {
	history       []models.Message
	summary       *models.UserSummary
	saved         []models.Message
	savedSummary  *models.UserSummary
	nextID        int64
	statusUpdates map[int64]models.MessageStatus
}

func (f *fakeMessageStore) LoadHistory(ctx context.Context, userID int64, assistantID string, limit int) ([]models.Message, *models.UserSummary, error) {
	return f.history, f.summary, nil
}

func (f *fakeMessageStore) SaveMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	f.nextID++
	msg.ID = f.nextID
	f.saved = append(f.saved, msg)
	return msg, nil
}

func (f *fakeMessageStore) SaveSummary(ctx context.Context, summary models.UserSummary) error {
	f.savedSummary = &summary
	return nil
}

func (f *fakeMessageStore) UpdateStatus(ctx context.Context, messageID int64, status models.MessageStatus) error {
	if f.statusUpdates == nil {
		f.statusUpdates = make(map[int64]models.MessageStatus)
	}
	f.statusUpdates[messageID] = status
	return nil
}

func TestContextLoaderStep(t *testing.T) {
	store := &fakeMessageStore{
		history: []models.Message{{ID: 1, Content: "hi"}},
		summary: &models.UserSummary{SummaryText: "prior summary"},
	}
	step := &ContextLoaderStep{Store: store, HistoryLimit: 10}
	st := &State{}

	require.NoError(t, step.Run(context.Background(), st))
	require.Len(t, st.History, 1)
	require.Equal(t, "prior summary", st.Summary.SummaryText)
}

func TestMessageSaverStepAssignsID(t *testing.T) {
	store := &fakeMessageStore{}
	step := &MessageSaverStep{Store: store}
	st := &State{Incoming: models.Message{Content: "hello"}}

	require.NoError(t, step.Run(context.Background(), st))
	require.NotZero(t, st.Incoming.ID)
	require.Len(t, st.History, 1)
}

type fakeMemoryClient struct {
	results []models.MemorySearchResult
}

func (f *fakeMemoryClient) Search(ctx context.Context, req models.MemorySearchRequest) ([]models.MemorySearchResult, error) {
	return f.results, nil
}

func TestMemoryRetrievalStep(t *testing.T) {
	client := &fakeMemoryClient{results: []models.MemorySearchResult{
		{Memory: models.Memory{Text: "likes tea"}, Score: 0.9},
	}}
	step := &MemoryRetrievalStep{Client: client, Limit: 5, Threshold: 0.5}
	st := &State{Incoming: models.Message{Content: "what do I drink"}}

	require.NoError(t, step.Run(context.Background(), st))
	require.Len(t, st.Memories, 1)
	require.Equal(t, "likes tea", st.Memories[0].Memory.Text)
}

func TestDynamicPromptStepIncludesSummaryAndMemories(t *testing.T) {
	step := &DynamicPromptStep{}
	st := &State{
		Assistant: models.Assistant{Instructions: "You are a secretary."},
		Summary:   &models.UserSummary{SummaryText: "user likes concise replies"},
		Memories:  []models.MemorySearchResult{{Memory: models.Memory{Text: "prefers mornings"}}},
	}

	require.NoError(t, step.Run(context.Background(), st))
	require.Contains(t, st.SystemPrompt, "You are a secretary.")
	require.Contains(t, st.SystemPrompt, "user likes concise replies")
	require.Contains(t, st.SystemPrompt, "prefers mornings")
}

type fakeSummarizer struct {
	result string
}

func (f *fakeSummarizer) Summarize(ctx context.Context, priorSummary string, toSummarize []models.Message) (string, error) {
	return f.result, nil
}

func TestSummarizationStepSkipsBelowThreshold(t *testing.T) {
	step := &SummarizationStep{Summarizer: &fakeSummarizer{}, ContextSize: 1_000_000, SummaryThreshold: 0.6}
	st := &State{History: []models.Message{{ID: 1, Content: "short"}}}

	require.NoError(t, step.Run(context.Background(), st))
	require.False(t, st.Summarized)
}

func TestSummarizationStepTriggersAboveThreshold(t *testing.T) {
	longContent := make([]byte, 400)
	for i := range longContent {
		longContent[i] = 'a'
	}

	var history []models.Message
	for i := 0; i < 10; i++ {
		history = append(history, models.Message{ID: int64(i + 1), Content: string(longContent)})
	}

	step := &SummarizationStep{
		Summarizer:         &fakeSummarizer{result: "condensed"},
		ContextSize:        1000,
		SummaryThreshold:    0.1,
		MessagesToKeepTail: 3,
	}
	st := &State{History: history}

	require.NoError(t, step.Run(context.Background(), st))
	require.True(t, st.Summarized)
	require.Equal(t, "condensed", st.Summary.SummaryText)
	require.Len(t, st.History, 3)
	require.Equal(t, history[6].ID, st.Summary.LastMessageIDCovered)
}

type echoLLM struct {
	calls     int
	responses []CompletionResponse
}

func (e *echoLLM) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	resp := e.responses[e.calls]
	e.calls++
	return resp, nil
}

type upperTool struct{}

func (upperTool) Name() string           { return "upper" }
func (upperTool) Description() string    { return "uppercases the input" }
func (upperTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`)
}
func (upperTool) Execute(ctx context.Context, params json.RawMessage) (*toolkit.Result, error) {
	return &toolkit.Result{Content: "HELLO"}, nil
}

func TestToolLoopStepDispatchesToolCallThenReturnsFinal(t *testing.T) {
	registry := toolkit.NewRegistry()
	require.NoError(t, registry.Register(upperTool{}))

	llm := &echoLLM{responses: []CompletionResponse{
		{ToolCalls: []ToolInvocationRequest{{ToolName: "upper", Args: json.RawMessage(`{"text":"hello"}`), CallID: "call-1"}}},
		{Content: "done", PromptTokens: 10, CompletionTokens: 4},
	}}

	step := &ToolLoopStep{LLM: llm, Model: "gpt-test", Tools: registry}
	st := &State{Assistant: models.Assistant{ID: "asst-1"}}

	require.NoError(t, step.Run(context.Background(), st))
	require.Equal(t, "done", st.Response.Content)
	require.Equal(t, models.RoleAssistant, st.Response.Role)
	require.Len(t, st.ToolCalls, 1)
	require.Equal(t, "HELLO", st.ToolCalls[0].Result)
	require.Equal(t, 2, llm.calls)
}

func TestToolLoopStepExceedsMaxSteps(t *testing.T) {
	registry := toolkit.NewRegistry()
	require.NoError(t, registry.Register(upperTool{}))

	loopingCall := ToolInvocationRequest{ToolName: "upper", Args: json.RawMessage(`{"text":"x"}`), CallID: "call"}
	llm := &echoLLM{responses: []CompletionResponse{
		{ToolCalls: []ToolInvocationRequest{loopingCall}},
		{ToolCalls: []ToolInvocationRequest{loopingCall}},
	}}

	step := &ToolLoopStep{LLM: llm, Model: "gpt-test", Tools: registry, MaxSteps: 2}
	st := &State{Assistant: models.Assistant{ID: "asst-1"}}

	err := step.Run(context.Background(), st)
	require.Error(t, err)
}

func TestResponseSaverStepPersistsSummaryWhenSummarized(t *testing.T) {
	store := &fakeMessageStore{}
	step := &ResponseSaverStep{Store: store}
	st := &State{
		Response:   models.Message{Content: "reply"},
		Summarized: true,
		Summary:    &models.UserSummary{SummaryText: "new summary"},
	}

	require.NoError(t, step.Run(context.Background(), st))
	require.Len(t, store.saved, 1)
	require.NotNil(t, store.savedSummary)
	require.Equal(t, "new summary", store.savedSummary.SummaryText)
}

func TestFinalizerStepNoopsWithoutMetrics(t *testing.T) {
	step := &FinalizerStep{}
	st := &State{}
	require.NoError(t, step.Run(context.Background(), st))
}

func TestFinalizerStepNoopsWithoutInitialMessageID(t *testing.T) {
	store := &fakeMessageStore{}
	step := &FinalizerStep{Store: store}
	st := &State{}
	require.NoError(t, step.Run(context.Background(), st))
	require.Empty(t, store.statusUpdates)
}

func TestFinalizerStepMarksProcessedOnCleanRun(t *testing.T) {
	store := &fakeMessageStore{}
	step := &FinalizerStep{Store: store}
	st := &State{InitialMessageID: 7}

	require.NoError(t, step.Run(context.Background(), st))
	require.Equal(t, models.MessageStatusProcessed, store.statusUpdates[7])
}

func TestFinalizerStepMarksErrorWhenRunTainted(t *testing.T) {
	store := &fakeMessageStore{}
	step := &FinalizerStep{Store: store}
	st := &State{InitialMessageID: 7, ErrorOccurred: true}

	require.NoError(t, step.Run(context.Background(), st))
	require.Equal(t, models.MessageStatusError, store.statusUpdates[7])
}
