package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladmesh/secretary/internal/agentgraph"
	"github.com/vladmesh/secretary/internal/factory"
	"github.com/vladmesh/secretary/internal/toolkit"
	"github.com/vladmesh/secretary/pkg/models"
)

type fakeResolver struct {
	byUser      map[int64]*factory.Instance
	byAssistant map[string]*factory.Instance
}

func (f *fakeResolver) Resolve(ctx context.Context, userID int64) (*factory.Instance, error) {
	return f.byUser[userID], nil
}

func (f *fakeResolver) ResolveAssistant(ctx context.Context, assistantID string) (*factory.Instance, error) {
	return f.byAssistant[assistantID], nil
}

type fakeStore struct {
	history []models.Message
	saved   []models.Message
}

func (s *fakeStore) LoadHistory(ctx context.Context, userID int64, assistantID string, limit int) ([]models.Message, *models.UserSummary, error) {
	return s.history, nil, nil
}

func (s *fakeStore) SaveMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	msg.ID = int64(len(s.saved) + 1)
	s.saved = append(s.saved, msg)
	return msg, nil
}

func (s *fakeStore) SaveSummary(ctx context.Context, summary models.UserSummary) error { return nil }

func (s *fakeStore) UpdateStatus(ctx context.Context, messageID int64, status models.MessageStatus) error {
	return nil
}

type fakeLLM struct {
	reply string
}

func (f *fakeLLM) Complete(ctx context.Context, req agentgraph.CompletionRequest) (agentgraph.CompletionResponse, error) {
	return agentgraph.CompletionResponse{Content: f.reply}, nil
}

func (f *fakeLLM) Summarize(ctx context.Context, prior string, msgs []models.Message) (string, error) {
	return "summary", nil
}

func newTestRunner(reply string) (*Runner, *fakeResolver) {
	resolver := &fakeResolver{byUser: map[int64]*factory.Instance{}, byAssistant: map[string]*factory.Instance{}}
	assistant := models.Assistant{ID: "asst-1", Model: "gpt-4o-mini", Instructions: "be helpful"}
	instance := &factory.Instance{Assistant: assistant, Tools: toolkit.NewRegistry()}
	resolver.byUser[1] = instance
	resolver.byAssistant["asst-1"] = instance
	resolver.byAssistant["asst-child"] = instance

	runner := NewRunner(resolver, &fakeStore{}, nil, &fakeLLM{reply: reply}, GraphConfig{}, nil, nil)
	return runner, resolver
}

func TestProcessForUserReturnsReply(t *testing.T) {
	runner, _ := newTestRunner("hello there")
	reply, err := runner.ProcessForUser(context.Background(), 1, "hi")
	require.NoError(t, err)
	require.Equal(t, "hello there", reply)
}

func TestProcessMessageResolvesNamedAssistant(t *testing.T) {
	runner, _ := newTestRunner("delegated reply")
	reply, err := runner.ProcessMessage(context.Background(), "asst-child", 1, "task")
	require.NoError(t, err)
	require.Equal(t, "delegated reply", reply)
}

func TestProcessTriggerRunsNamedAssistant(t *testing.T) {
	runner, _ := newTestRunner("reminder fired")
	reply, err := runner.ProcessTrigger(context.Background(), "asst-1", 1, "time to stand up")
	require.NoError(t, err)
	require.Equal(t, "reminder fired", reply)
}
