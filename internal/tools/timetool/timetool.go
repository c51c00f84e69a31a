// Package timetool implements the time tool type (spec §4.5): return
// the current time in a requested IANA timezone, defaulting to UTC. It
// is a pure function with no REST Data Plane dependency, unlike every
// other tool in this module.
package timetool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladmesh/secretary/internal/toolkit"
)

// Tool implements the time tool type.
type Tool struct {
	name        string
	description string
}

// New builds the time handler.
func New(name, description string) *Tool {
	return &Tool{name: name, description: description}
}

func (t *Tool) Name() string        { return t.name }
func (t *Tool) Description() string { return t.description }

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"timezone": {"type": "string", "description": "IANA timezone, e.g. America/New_York (default UTC)"}
		}
	}`)
}

// Input is the parsed tool call payload.
type Input struct {
	Timezone string `json:"timezone"`
}

// Execute returns the current time in the requested timezone.
func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*toolkit.Result, error) {
	var input Input
	if len(params) > 0 {
		if err := json.Unmarshal(params, &input); err != nil {
			return nil, fmt.Errorf("parse input: %w", err)
		}
	}

	tz := input.Timezone
	if tz == "" {
		tz = "UTC"
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return &toolkit.Result{Content: fmt.Sprintf("unknown timezone %q", tz), IsError: true}, nil
	}

	now := time.Now().In(loc)
	return &toolkit.Result{Content: fmt.Sprintf("%s (%s)", now.Format("2006-01-02 15:04:05 MST"), tz)}, nil
}
