package subagent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladmesh/secretary/internal/toolkit"
)

type fakeProcessor struct {
	lastAssistantID string
	lastUserID      int64
	lastText        string
	reply           string
	err             error
}

func (f *fakeProcessor) ProcessMessage(ctx context.Context, assistantID string, userID int64, text string) (string, error) {
	f.lastAssistantID = assistantID
	f.lastUserID = userID
	f.lastText = text
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestNewRejectsSelfReference(t *testing.T) {
	_, err := New("sub_researcher", "delegate research", "asst-parent", "asst-parent", &fakeProcessor{})
	require.Error(t, err)
}

func TestNewRejectsMissingSubAssistantID(t *testing.T) {
	_, err := New("sub_researcher", "delegate research", "", "asst-parent", &fakeProcessor{})
	require.Error(t, err)
}

func TestExecuteDelegatesAndReturnsReply(t *testing.T) {
	proc := &fakeProcessor{reply: "the answer is 42"}
	tool, err := New("sub_researcher", "delegate research", "asst-child", "asst-parent", proc)
	require.NoError(t, err)

	ctx := toolkit.WithInvocation(context.Background(), toolkit.Invocation{UserID: 7, AssistantID: "asst-parent"})
	input, _ := json.Marshal(Input{Task: "what is the meaning of life"})

	result, err := tool.Execute(ctx, input)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, "the answer is 42", result.Content)
	require.Equal(t, "asst-child", proc.lastAssistantID)
	require.Equal(t, int64(7), proc.lastUserID)
	require.Equal(t, "what is the meaning of life", proc.lastText)
}

func TestExecuteRequiresTask(t *testing.T) {
	proc := &fakeProcessor{}
	tool, err := New("sub_researcher", "delegate research", "asst-child", "asst-parent", proc)
	require.NoError(t, err)

	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	require.True(t, result.IsError)
}
