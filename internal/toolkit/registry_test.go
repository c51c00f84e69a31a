package toolkit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echoes its input message" }
func (echoTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"message": {"type": "string"}},
		"required": ["message"]
	}`)
}
func (echoTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var in struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	return &Result{Content: in.Message}, nil
}

func TestRegistryInvokeValid(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool{}))

	result, err := r.Invoke(context.Background(), "echo", []byte(`{"message":"hi"}`))
	require.NoError(t, err)
	require.Equal(t, "hi", result.Content)
}

func TestRegistryInvokeSchemaViolation(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool{}))

	_, err := r.Invoke(context.Background(), "echo", []byte(`{}`))
	require.Error(t, err)
}

func TestRegistryInvokeUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke(context.Background(), "nope", []byte(`{}`))
	require.Error(t, err)
}

func TestInvocationRoundTrip(t *testing.T) {
	ctx := WithInvocation(context.Background(), Invocation{UserID: 7, AssistantID: "sec-1"})
	inv := InvocationFromContext(ctx)
	require.Equal(t, int64(7), inv.UserID)
	require.Equal(t, "sec-1", inv.AssistantID)
}
