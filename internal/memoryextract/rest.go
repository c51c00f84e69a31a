package memoryextract

import (
	"context"
	"fmt"
	"time"

	"github.com/vladmesh/secretary/internal/restclient"
	"github.com/vladmesh/secretary/pkg/models"
)

// RESTClient is the subset of restclient.Client the extractor needs
// against the REST Data Plane; the RAG client narrows the same way
// for memory search/create.
type RESTClient interface {
	Do(ctx context.Context, opts restclient.CallOptions, out any) error
}

func fetchGlobalSettings(ctx context.Context, rest RESTClient) (models.GlobalSettings, error) {
	var settings models.GlobalSettings
	err := rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/settings/global",
		Method:           "GET",
		Path:             "/api/settings/global",
	}, &settings)
	if err != nil {
		return models.GlobalSettings{}, fmt.Errorf("fetch global settings: %w", err)
	}
	return settings, nil
}

type conversationsResponse struct {
	Conversations []models.Conversation `json:"conversations"`
}

func fetchConversationsSince(ctx context.Context, rest RESTClient, since time.Time, minMessages, cap int) ([]models.Conversation, error) {
	var resp conversationsResponse
	err := rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/conversations/recent",
		Method:           "GET",
		Path: fmt.Sprintf("/api/conversations/recent?since=%s&min_messages=%d&limit=%d",
			since.UTC().Format(time.RFC3339), minMessages, cap),
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch recent conversations: %w", err)
	}
	return resp.Conversations, nil
}

type userMemoriesResponse struct {
	Memories []models.Memory `json:"memories"`
}

func fetchUserMemories(ctx context.Context, rest RESTClient, userID int64, limit int) ([]models.Memory, error) {
	var resp userMemoriesResponse
	err := rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/users/{id}/memories",
		Method:           "GET",
		Path:             fmt.Sprintf("/api/users/%d/memories?limit=%d&threshold=0", userID, limit),
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch existing memories for user %d: %w", userID, err)
	}
	return resp.Memories, nil
}

type batchJobsResponse struct {
	BatchJobs []models.BatchJob `json:"batch_jobs"`
}

func fetchOpenBatchJobs(ctx context.Context, rest RESTClient) ([]models.BatchJob, error) {
	var resp batchJobsResponse
	err := rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/batch-jobs",
		Method:           "GET",
		Path:             "/api/batch-jobs?status=pending,processing",
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch open batch jobs: %w", err)
	}
	return resp.BatchJobs, nil
}

func createBatchJob(ctx context.Context, rest RESTClient, job models.BatchJob) (models.BatchJob, error) {
	var saved models.BatchJob
	err := rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/batch-jobs",
		Method:           "POST",
		Path:             "/api/batch-jobs",
		Body:             job,
	}, &saved)
	if err != nil {
		return models.BatchJob{}, fmt.Errorf("create batch job: %w", err)
	}
	return saved, nil
}

func updateBatchJob(ctx context.Context, rest RESTClient, job models.BatchJob) error {
	err := rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/batch-jobs/{id}",
		Method:           "PATCH",
		Path:             "/api/batch-jobs/" + job.ID,
		Body:             job,
	}, nil)
	if err != nil {
		return fmt.Errorf("update batch job %s: %w", job.ID, err)
	}
	return nil
}

func searchMemories(ctx context.Context, rag RESTClient, req models.MemorySearchRequest) ([]models.MemorySearchResult, error) {
	var results []models.MemorySearchResult
	err := rag.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/memory/search",
		Method:           "POST",
		Path:             "/api/memory/search",
		Body:             req,
	}, &results)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	return results, nil
}

func createMemory(ctx context.Context, rag RESTClient, memory models.Memory) error {
	err := rag.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/memory",
		Method:           "POST",
		Path:             "/api/memory",
		Body:             memory,
	}, nil)
	if err != nil {
		return fmt.Errorf("create memory: %w", err)
	}
	return nil
}
