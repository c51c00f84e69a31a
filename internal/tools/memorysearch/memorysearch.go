// Package memorysearch implements the memory_search and memory_save
// tool types: querying and writing long-term memories through the RAG
// service via the REST Data Plane client (C2). The teacher's own
// memory search tool worked entirely against a local lexical/TF-IDF
// index over on-disk memory files — dropped here since spec §1 treats
// the embedding/vector store backing long-term memory as an external
// collaborator this service only ever calls over HTTP, never hosts.
package memorysearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vladmesh/secretary/internal/restclient"
	"github.com/vladmesh/secretary/internal/toolkit"
	"github.com/vladmesh/secretary/pkg/models"
)

// RESTClient is the subset of restclient.Client the memory tools need.
type RESTClient interface {
	Do(ctx context.Context, opts restclient.CallOptions, out any) error
}

// SearchTool implements memory_search: query-top-k semantic search
// against the RAG service, rendered as a formatted result list.
type SearchTool struct {
	name        string
	description string
	rag         RESTClient
}

// NewSearchTool builds the memory_search handler.
func NewSearchTool(name, description string, rag RESTClient) *SearchTool {
	return &SearchTool{name: name, description: description, rag: rag}
}

func (t *SearchTool) Name() string        { return t.name }
func (t *SearchTool) Description() string { return t.description }

func (t *SearchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "What to search for in long-term memory"},
			"limit": {"type": "integer", "description": "Maximum number of results (default 5)"}
		},
		"required": ["query"]
	}`)
}

// SearchInput is the parsed tool call payload.
type SearchInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (t *SearchTool) Execute(ctx context.Context, params json.RawMessage) (*toolkit.Result, error) {
	var input SearchInput
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	if input.Query == "" {
		return &toolkit.Result{Content: "query is required", IsError: true}, nil
	}
	if input.Limit <= 0 {
		input.Limit = 5
	}

	inv := toolkit.InvocationFromContext(ctx)
	req := models.MemorySearchRequest{
		Query:       input.Query,
		UserID:      inv.UserID,
		AssistantID: inv.AssistantID,
		Limit:       input.Limit,
	}

	var results []models.MemorySearchResult
	err := t.rag.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/api/memory/search",
		Method:           "POST",
		Path:             "/api/memory/search",
		Body:             req,
	}, &results)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}

	if len(results) == 0 {
		return &toolkit.Result{Content: "No matching memories found."}, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d memor%s:\n\n", len(results), plural(len(results))))
	for i, r := range results {
		sb.WriteString(fmt.Sprintf("%d. %s (score %.2f)\n", i+1, r.Memory.Text, r.Score))
	}
	return &toolkit.Result{Content: sb.String()}, nil
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

// SaveTool implements memory_save: POST a new memory via the RAG
// service using the current (user_id, assistant_id).
type SaveTool struct {
	name        string
	description string
	rag         RESTClient
}

// NewSaveTool builds the memory_save handler.
func NewSaveTool(name, description string, rag RESTClient) *SaveTool {
	return &SaveTool{name: name, description: description, rag: rag}
}

func (t *SaveTool) Name() string        { return t.name }
func (t *SaveTool) Description() string { return t.description }

func (t *SaveTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"text": {"type": "string", "description": "The fact, preference, or event to remember"},
			"memory_type": {"type": "string", "enum": ["user_fact", "preference", "event", "conversation_insight", "extracted_knowledge"]},
			"importance": {"type": "integer", "description": "Importance from 1 (trivial) to 10 (critical), default 5"}
		},
		"required": ["text"]
	}`)
}

// SaveInput is the parsed tool call payload.
type SaveInput struct {
	Text       string            `json:"text"`
	MemoryType models.MemoryType `json:"memory_type"`
	Importance int               `json:"importance"`
}

func (t *SaveTool) Execute(ctx context.Context, params json.RawMessage) (*toolkit.Result, error) {
	var input SaveInput
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	if input.Text == "" {
		return &toolkit.Result{Content: "text is required", IsError: true}, nil
	}
	if input.MemoryType == "" {
		input.MemoryType = models.MemoryTypeUserFact
	}

	inv := toolkit.InvocationFromContext(ctx)
	memory := models.Memory{
		UserID:      inv.UserID,
		AssistantID: inv.AssistantID,
		Text:        input.Text,
		MemoryType:  input.MemoryType,
		Importance:  models.ClampImportance(importanceOrDefault(input.Importance)),
	}

	var saved models.Memory
	err := t.rag.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/api/memory",
		Method:           "POST",
		Path:             "/api/memory",
		Body:             memory,
	}, &saved)
	if err != nil {
		return nil, fmt.Errorf("save memory: %w", err)
	}

	return &toolkit.Result{Content: fmt.Sprintf("Remembered: %s", input.Text)}, nil
}

func importanceOrDefault(v int) int {
	if v == 0 {
		return 5
	}
	return v
}
