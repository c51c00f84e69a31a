// Package subagent implements the sub_assistant tool type (spec §4.5):
// delegate a task to another configured assistant and return its
// reply. The teacher's version of this package coordinated an entire
// fleet of concurrently running sub-agents of its own invention
// (announce.go's chat-visible spawn announcements, queue.go's
// cross-agent message queue, spawn.go's Manager with its own
// status/cancel tool trio) — none of which spec §4.5 asks for. Spec
// §4.5 describes exactly one synchronous call: look up the
// sub-assistant via the Agent Factory (C4), run it against the given
// text, return its reply, and never recurse into the same assistant as
// its own parent.
package subagent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vladmesh/secretary/internal/toolkit"
)

// AssistantProcessor runs a single message through another assistant's
// full agent graph (C6) and returns its reply text. The orchestrator
// wires this to Factory.Resolve-by-assistant-ID plus agentgraph.Graph.Run;
// the tool itself stays decoupled from both.
type AssistantProcessor interface {
	ProcessMessage(ctx context.Context, assistantID string, userID int64, text string) (string, error)
}

// Tool implements the sub_assistant tool type. One Tool instance is
// built per assistant-tool row, so SubAssistantID and the parent's own
// assistant ID are both fixed at construction time; only the calling
// user varies per invocation and is read from ctx.
type Tool struct {
	name           string
	description    string
	subAssistantID string
	parentID       string
	processor      AssistantProcessor
}

// New builds the sub_assistant handler for one assistant-tool row.
// parentID is the assistant this tool is attached to; a sub-assistant
// configured to point back at its own parent is rejected at
// construction time rather than looping at call time.
func New(name, description, subAssistantID, parentID string, processor AssistantProcessor) (*Tool, error) {
	if subAssistantID == "" {
		return nil, fmt.Errorf("sub_assistant tool %q: sub_assistant_id is required", name)
	}
	if subAssistantID == parentID {
		return nil, fmt.Errorf("sub_assistant tool %q: sub_assistant_id cannot reference its own parent assistant %q", name, parentID)
	}
	return &Tool{
		name:           name,
		description:    description,
		subAssistantID: subAssistantID,
		parentID:       parentID,
		processor:      processor,
	}, nil
}

func (t *Tool) Name() string        { return t.name }
func (t *Tool) Description() string { return t.description }

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task": {"type": "string", "description": "The task or question to delegate to the sub-assistant"}
		},
		"required": ["task"]
	}`)
}

// Input is the parsed tool call payload.
type Input struct {
	Task string `json:"task"`
}

// Execute delegates task to the configured sub-assistant and returns
// its reply as the tool result content.
func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*toolkit.Result, error) {
	var input Input
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	if input.Task == "" {
		return &toolkit.Result{Content: "task is required", IsError: true}, nil
	}

	inv := toolkit.InvocationFromContext(ctx)
	reply, err := t.processor.ProcessMessage(ctx, t.subAssistantID, inv.UserID, input.Task)
	if err != nil {
		return nil, fmt.Errorf("sub-assistant %s: %w", t.subAssistantID, err)
	}

	return &toolkit.Result{Content: reply}, nil
}
