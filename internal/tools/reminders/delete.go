package reminders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vladmesh/secretary/internal/restclient"
	"github.com/vladmesh/secretary/internal/toolkit"
)

// DeleteTool implements the reminder_delete tool type: DELETE a
// reminder by UUID via the REST Data Plane.
type DeleteTool struct {
	name        string
	description string
	rest        RESTClient
}

// NewDeleteTool builds the reminder_delete handler.
func NewDeleteTool(name, description string, rest RESTClient) *DeleteTool {
	return &DeleteTool{name: name, description: description, rest: rest}
}

func (t *DeleteTool) Name() string        { return t.name }
func (t *DeleteTool) Description() string { return t.description }

func (t *DeleteTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"reminder_id": {"type": "string", "description": "The UUID of the reminder to delete"}
		},
		"required": ["reminder_id"]
	}`)
}

// DeleteInput is the parsed tool call payload.
type DeleteInput struct {
	ReminderID string `json:"reminder_id"`
}

// Execute deletes a reminder.
func (t *DeleteTool) Execute(ctx context.Context, params json.RawMessage) (*toolkit.Result, error) {
	var input DeleteInput
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	if input.ReminderID == "" {
		return &toolkit.Result{Content: "reminder_id is required", IsError: true}, nil
	}

	err := t.rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/reminders/{id}",
		Method:           "DELETE",
		Path:             "/reminders/" + input.ReminderID,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("delete reminder: %w", err)
	}

	return &toolkit.Result{Content: fmt.Sprintf("Reminder %s deleted.", input.ReminderID)}, nil
}
