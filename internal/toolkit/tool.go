// Package toolkit defines the contract every tool callable from the
// agent graph (C6) must implement, and the registry the Agent Factory
// (C4) uses to resolve a sealed Tool's input_schema against an
// invocation's arguments before execution.
package toolkit

import (
	"context"
	"encoding/json"
)

// Tool is implemented by every one of the nine sealed tool types in
// spec §3's ToolType enum. A Tool never mutates its own registration
// state during Execute; state belongs to whatever backing client the
// constructor closed over (REST Data Plane client, RAG client, ...).
type Tool interface {
	// Name returns the tool's registration name, matching a models.Tool
	// row's Name field (e.g. "reminder_create", "web_search").
	Name() string

	// Description returns the natural-language description surfaced to
	// the LLM alongside the schema.
	Description() string

	// Schema returns the JSON schema describing Execute's params.
	Schema() json.RawMessage

	// Execute runs the tool against already-schema-validated params,
	// drawing caller identity (user_id, assistant_id) from ctx via
	// ContextFromInvocation.
	Execute(ctx context.Context, params json.RawMessage) (*Result, error)
}

// Result is the outcome of a tool invocation, fed back into the agent
// graph's message history as a tool-role message.
type Result struct {
	Content string
	IsError bool
}

// InvocationKey is the context key type used to carry the calling
// user/assistant identity into a Tool's Execute without changing every
// tool's signature.
type InvocationKey string

const (
	UserIDKey      InvocationKey = "toolkit_user_id"
	AssistantIDKey InvocationKey = "toolkit_assistant_id"
)

// Invocation describes who is calling a tool, threaded through ctx.
type Invocation struct {
	UserID      int64
	AssistantID string
}

// WithInvocation attaches the calling user/assistant identity to ctx.
func WithInvocation(ctx context.Context, inv Invocation) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, inv.UserID)
	ctx = context.WithValue(ctx, AssistantIDKey, inv.AssistantID)
	return ctx
}

// InvocationFromContext recovers the calling user/assistant identity.
func InvocationFromContext(ctx context.Context) Invocation {
	var inv Invocation
	if uid, ok := ctx.Value(UserIDKey).(int64); ok {
		inv.UserID = uid
	}
	if aid, ok := ctx.Value(AssistantIDKey).(string); ok {
		inv.AssistantID = aid
	}
	return inv
}
