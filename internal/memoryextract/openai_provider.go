package memoryextract

import (
	"context"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"github.com/google/uuid"

	"github.com/vladmesh/secretary/pkg/models"
)

// OpenAIBatchProvider implements BatchProvider against go-openai's chat
// completions endpoint. The real OpenAI Batch API (file-upload, 24h
// turnaround) is out of scope here — per spec §4.8, "provider
// specifics are out of scope" — so SubmitBatch executes the
// completion synchronously and caches the result under a generated
// handle; GetBatchStatus/GetBatchResults then read that cache,
// keeping the three-call provider contract (and the extractor's
// resume-on-restart step) exercised the same way a truly asynchronous
// provider would be. See DESIGN.md for the tradeoff.
type OpenAIBatchProvider struct {
	client *openai.Client

	mu      sync.Mutex
	results map[string]string
}

// NewOpenAIBatchProvider builds a provider bound to one API key.
func NewOpenAIBatchProvider(apiKey string) *OpenAIBatchProvider {
	return &OpenAIBatchProvider{
		client:  openai.NewClient(apiKey),
		results: make(map[string]string),
	}
}

// SubmitBatch implements BatchProvider.
func (p *OpenAIBatchProvider) SubmitBatch(ctx context.Context, provider, model, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: factExtractionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("submit memory extraction batch: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("submit memory extraction batch: empty response")
	}

	batchID := uuid.NewString()
	p.mu.Lock()
	p.results[batchID] = resp.Choices[0].Message.Content
	p.mu.Unlock()
	return batchID, nil
}

// GetBatchStatus implements BatchProvider.
func (p *OpenAIBatchProvider) GetBatchStatus(ctx context.Context, providerBatchID string) (models.BatchJobStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.results[providerBatchID]; !ok {
		return "", fmt.Errorf("unknown batch %s", providerBatchID)
	}
	return models.BatchJobCompleted, nil
}

// GetBatchResults implements BatchProvider.
func (p *OpenAIBatchProvider) GetBatchResults(ctx context.Context, providerBatchID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	text, ok := p.results[providerBatchID]
	if !ok {
		return "", fmt.Errorf("unknown batch %s", providerBatchID)
	}
	delete(p.results, providerBatchID)
	return text, nil
}
