package llm

import (
	"encoding/json"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/vladmesh/secretary/internal/agentgraph"
	"github.com/vladmesh/secretary/pkg/models"
)

func TestToOpenAIMessages(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleHuman, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
		{Role: models.RoleTool, Content: "result", ToolCallID: "call-1"},
	}

	out := toOpenAIMessages("be helpful", messages)

	require.Len(t, out, 4)
	require.Equal(t, openai.ChatMessageRoleSystem, out[0].Role)
	require.Equal(t, openai.ChatMessageRoleUser, out[1].Role)
	require.Equal(t, openai.ChatMessageRoleAssistant, out[2].Role)
	require.Equal(t, openai.ChatMessageRoleTool, out[3].Role)
	require.Equal(t, "call-1", out[3].ToolCallID)
}

func TestToOpenAIMessagesNoSystemPrompt(t *testing.T) {
	out := toOpenAIMessages("", []models.Message{{Role: models.RoleHuman, Content: "hi"}})
	require.Len(t, out, 1)
}

func TestToOpenAIToolsFallsBackOnInvalidSchema(t *testing.T) {
	schemas := []agentgraph.ToolSchema{
		{Name: "good", Description: "a good tool", Schema: json.RawMessage(`{"type":"object"}`)},
		{Name: "bad", Description: "a malformed tool", Schema: json.RawMessage(`not-json`)},
	}

	out := toOpenAITools(schemas)

	require.Len(t, out, 2)
	require.Equal(t, "good", out[0].Function.Name)
	require.Equal(t, "bad", out[1].Function.Name)
	require.NotNil(t, out[1].Function.Parameters)
}

func TestIsRetryableOpenAIError(t *testing.T) {
	require.True(t, isRetryableOpenAIError(&openai.APIError{HTTPStatusCode: 429}))
	require.True(t, isRetryableOpenAIError(&openai.APIError{HTTPStatusCode: 503}))
	require.False(t, isRetryableOpenAIError(&openai.APIError{HTTPStatusCode: 400}))
	require.False(t, isRetryableOpenAIError(errors.New("some other error")))
}
