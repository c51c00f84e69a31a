package models

import (
	"encoding/json"
	"time"
)

// MessageRole is the author kind of a persisted conversation message.
type MessageRole string

const (
	RoleHuman     MessageRole = "human"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// MessageStatus tracks where a message sits in the processing pipeline.
type MessageStatus string

const (
	MessageStatusPendingProcessing MessageStatus = "pending_processing"
	MessageStatusProcessed         MessageStatus = "processed"
	MessageStatusSummarized        MessageStatus = "summarized"
	MessageStatusError             MessageStatus = "error"
)

// Message is one row of the canonical conversation history for a
// (user_id, assistant_id) pair. Ordering within that pair is the ID
// sequence.
type Message struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	AssistantID string          `json:"assistant_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Role        MessageRole     `json:"role"`
	Content     string          `json:"content"`
	ContentType string          `json:"content_type,omitempty"`
	ToolCallID  string          `json:"tool_call_id,omitempty"`
	Status      MessageStatus   `json:"status"`
	SummaryID   *int64          `json:"summary_id,omitempty"`
	MetaData    json.RawMessage `json:"meta_data,omitempty"`
}

// UserSummary is an append-only rolling summary of a conversation's oldest
// messages. The most recent row by CreatedAt is authoritative.
type UserSummary struct {
	ID                   int64     `json:"id"`
	UserID               int64     `json:"user_id"`
	AssistantID          string    `json:"assistant_id"`
	SummaryText          string    `json:"summary_text"`
	LastMessageIDCovered int64     `json:"last_message_id_covered"`
	TokenCount           int       `json:"token_count"`
	CreatedAt            time.Time `json:"created_at"`
}
