// Package reststore implements agentgraph.MessageStore against the
// REST Data Plane (C2) and agentgraph.MemoryClient against the RAG
// service, the two dependencies the agent graph (C6) needs to load
// conversation history and retrieve memories. Grounded on
// internal/factory's narrowed RESTClient idiom: both clients are
// interfaces so the graph's steps can be tested without a live REST
// Data Plane or RAG service.
package reststore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/vladmesh/secretary/internal/restclient"
	"github.com/vladmesh/secretary/pkg/models"
)

// RESTClient is the subset of restclient.Client the store needs.
type RESTClient interface {
	Do(ctx context.Context, opts restclient.CallOptions, out any) error
}

// MessageStore implements agentgraph.MessageStore against the REST
// Data Plane's message and summary endpoints (spec §6).
type MessageStore struct {
	rest RESTClient
}

// NewMessageStore builds a MessageStore.
func NewMessageStore(rest RESTClient) *MessageStore {
	return &MessageStore{rest: rest}
}

// LoadHistory fetches the most recent messages not yet covered by a
// summary, plus the active summary row if one exists.
func (s *MessageStore) LoadHistory(ctx context.Context, userID int64, assistantID string, limit int) ([]models.Message, *models.UserSummary, error) {
	var messages []models.Message
	err := s.rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/api/messages",
		Method:           "GET",
		Path: fmt.Sprintf("/api/messages?user_id=%d&assistant_id=%s&limit=%d&sort_by=id&sort_order=desc",
			userID, assistantID, limit),
	}, &messages)
	if err != nil {
		return nil, nil, fmt.Errorf("load messages for user %d assistant %s: %w", userID, assistantID, err)
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].ID < messages[j].ID })

	var summary models.UserSummary
	err = s.rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/api/users/{user_id}/assistants/{assistant_id}/summary",
		Method:           "GET",
		Path:             fmt.Sprintf("/api/users/%d/assistants/%s/summary", userID, assistantID),
	}, &summary)
	if err != nil {
		var respErr *restclient.ServiceResponseError
		if errors.As(err, &respErr) && respErr.Status == http.StatusNotFound {
			return messages, nil, nil
		}
		return nil, nil, fmt.Errorf("load summary for user %d assistant %s: %w", userID, assistantID, err)
	}
	return messages, &summary, nil
}

// SaveMessage persists one message and returns it with its server-
// assigned ID.
func (s *MessageStore) SaveMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	var saved models.Message
	err := s.rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/api/messages",
		Method:           "POST",
		Path:             "/api/messages",
		Body:             msg,
	}, &saved)
	if err != nil {
		return models.Message{}, fmt.Errorf("save message: %w", err)
	}
	return saved, nil
}

// UpdateStatus transitions a message's processing status (spec §4.1's
// processed/error states), used by the agent graph's finalizer step to
// mark the triggering message once a run completes.
func (s *MessageStore) UpdateStatus(ctx context.Context, messageID int64, status models.MessageStatus) error {
	err := s.rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/api/messages/{id}",
		Method:           "PATCH",
		Path:             fmt.Sprintf("/api/messages/%d", messageID),
		Body:             map[string]models.MessageStatus{"status": status},
	}, nil)
	if err != nil {
		return fmt.Errorf("update message %d status to %s: %w", messageID, status, err)
	}
	return nil
}

// SaveSummary persists a new rolling summary row.
func (s *MessageStore) SaveSummary(ctx context.Context, summary models.UserSummary) error {
	err := s.rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/api/user-summaries",
		Method:           "POST",
		Path:             "/api/user-summaries",
		Body:             summary,
	}, nil)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// MemoryClient implements agentgraph.MemoryClient against the RAG
// service's similarity search endpoint.
type MemoryClient struct {
	rag RESTClient
}

// NewMemoryClient builds a MemoryClient.
func NewMemoryClient(rag RESTClient) *MemoryClient {
	return &MemoryClient{rag: rag}
}

// Search implements agentgraph.MemoryClient.
func (c *MemoryClient) Search(ctx context.Context, req models.MemorySearchRequest) ([]models.MemorySearchResult, error) {
	var results []models.MemorySearchResult
	err := c.rag.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/api/memory/search",
		Method:           "POST",
		Path:             "/api/memory/search",
		Body:             req,
	}, &results)
	if err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}
	return results, nil
}
