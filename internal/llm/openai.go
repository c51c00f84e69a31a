// Package llm provides the go-openai-backed implementation of
// agentgraph.LLMClient and agentgraph.Summarizer, grounded on the
// teacher's deleted internal/agent/providers/openai.go provider (its
// message/tool conversion logic, kept; its streaming chunk-channel
// shape, dropped since the agent graph's tool loop needs one
// request-response pair per turn, not incremental tokens).
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vladmesh/secretary/internal/agentgraph"
	"github.com/vladmesh/secretary/internal/backoff"
	"github.com/vladmesh/secretary/internal/observability"
	"github.com/vladmesh/secretary/pkg/models"
)

// OpenAIClient drives chat completions through the OpenAI API,
// satisfying both agentgraph.LLMClient (the tool loop) and
// agentgraph.Summarizer (the summarization step).
type OpenAIClient struct {
	client     *openai.Client
	maxRetries int
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// New constructs an OpenAIClient. apiKey must be non-empty; the
// teacher's provider tolerated an empty key for a disabled provider,
// but this module has exactly one provider wired so there is no
// disabled-provider case to support.
func New(apiKey string, logger *observability.Logger, metrics *observability.Metrics) *OpenAIClient {
	return &OpenAIClient{
		client:     openai.NewClient(apiKey),
		maxRetries: 3,
		logger:     logger,
		metrics:    metrics,
	}
}

// Complete implements agentgraph.LLMClient.
func (c *OpenAIClient) Complete(ctx context.Context, req agentgraph.CompletionRequest) (agentgraph.CompletionResponse, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: toOpenAIMessages(req.SystemPrompt, req.Messages),
	}
	if len(req.ToolSchemas) > 0 {
		chatReq.Tools = toOpenAITools(req.ToolSchemas)
	}

	start := time.Now()
	resp, err := c.createWithRetry(ctx, chatReq)
	if c.metrics != nil {
		c.metrics.RecordRESTCall("openai", "/chat/completions", "POST", time.Since(start).Seconds(), err)
	}
	if err != nil {
		return agentgraph.CompletionResponse{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return agentgraph.CompletionResponse{}, errors.New("openai chat completion: no choices returned")
	}

	choice := resp.Choices[0]
	out := agentgraph.CompletionResponse{
		Content:          choice.Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, agentgraph.ToolInvocationRequest{
			ToolName: tc.Function.Name,
			Args:     json.RawMessage(tc.Function.Arguments),
			CallID:   tc.ID,
		})
	}
	return out, nil
}

// Summarize implements agentgraph.Summarizer, folding priorSummary and
// toSummarize into one condensed paragraph via a dedicated system
// prompt. Grounded on the original summarization.py middleware's
// prompt shape (read from original_source/ in a prior session).
func (c *OpenAIClient) Summarize(ctx context.Context, priorSummary string, toSummarize []models.Message) (string, error) {
	var transcript string
	for _, m := range toSummarize {
		transcript += fmt.Sprintf("%s: %s\n", m.Role, m.Content)
	}

	systemPrompt := "You maintain a rolling summary of a conversation between a user and their assistant. " +
		"Given the prior summary and a new batch of messages, produce one updated summary paragraph " +
		"that preserves every fact, decision, and preference worth remembering. Be concise."

	userContent := transcript
	if priorSummary != "" {
		userContent = "Prior summary:\n" + priorSummary + "\n\nNew messages:\n" + transcript
	}

	chatReq := openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userContent},
		},
	}

	resp, err := c.createWithRetry(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("openai summarize: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai summarize: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) createWithRetry(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var lastErr error
	policy := backoff.DefaultPolicy()

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return openai.ChatCompletionResponse{}, ctx.Err()
			case <-time.After(backoff.ComputeBackoff(policy, attempt)):
			}
		}

		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryableOpenAIError(err) {
			return openai.ChatCompletionResponse{}, err
		}
		if c.logger != nil {
			c.logger.Warn(ctx, observability.EventError, "openai request failed, retrying", "attempt", attempt, "error", err)
		}
	}
	return openai.ChatCompletionResponse{}, lastErr
}

func isRetryableOpenAIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429, 500, 502, 503, 504:
			return true
		default:
			return false
		}
	}
	var reqErr *openai.RequestError
	return errors.As(err, &reqErr)
}

func toOpenAIMessages(systemPrompt string, messages []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, m := range messages {
		switch m.Role {
		case models.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		case models.RoleAssistant:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content})
		default:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		}
	}
	return out
}

func toOpenAITools(schemas []agentgraph.ToolSchema) []openai.Tool {
	out := make([]openai.Tool, 0, len(schemas))
	for _, s := range schemas {
		var params map[string]any
		if err := json.Unmarshal(s.Schema, &params); err != nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
