// Package models defines the core domain entities shared across the
// secretary platform. These types mirror records owned by the REST Data
// Plane; every other component treats them as read-mostly projections
// fetched over HTTP, never as locally-authoritative rows.
package models

import "time"

// User is a person known to the platform, identified primarily by their
// Telegram id. Users are created on first contact and are never
// hard-deleted while anything still references them.
type User struct {
	ID            int64     `json:"id"`
	TelegramID    int64     `json:"telegram_id"`
	Username      string    `json:"username,omitempty"`
	Timezone      string    `json:"timezone,omitempty"`
	PreferredName string    `json:"preferred_name,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AssistantType distinguishes a top-level secretary from a sub-assistant
// invoked only through the sub_assistant tool.
type AssistantType string

const (
	AssistantTypeSecretary   AssistantType = "secretary"
	AssistantTypeSubAgent    AssistantType = "sub_agent"
	AssistantTypeUnspecified AssistantType = ""
)

// Assistant is a configured agent definition: a model, an instructions
// template, and (via AssistantToolLink) a set of capabilities.
type Assistant struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Model        string        `json:"model"`
	Instructions string        `json:"instructions"`
	IsSecretary  bool          `json:"is_secretary"`
	AssistantType AssistantType `json:"assistant_type"`
	IsActive     bool          `json:"is_active"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ToolType enumerates the closed set of capability kinds the Tool Factory
// knows how to instantiate.
type ToolType string

const (
	ToolTypeTime            ToolType = "time"
	ToolTypeReminderCreate  ToolType = "reminder_create"
	ToolTypeReminderList    ToolType = "reminder_list"
	ToolTypeReminderDelete  ToolType = "reminder_delete"
	ToolTypeCalendar        ToolType = "calendar"
	ToolTypeSubAssistant    ToolType = "sub_assistant"
	ToolTypeWebSearch       ToolType = "web_search"
	ToolTypeMemorySave      ToolType = "memory_save"
	ToolTypeMemorySearch    ToolType = "memory_search"
)

// Tool is a named capability definition that can be attached to an
// assistant via AssistantToolLink.
type Tool struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	ToolType        ToolType        `json:"tool_type"`
	Description     string          `json:"description"`
	InputSchema     []byte          `json:"input_schema,omitempty"`
	SubAssistantID  string          `json:"sub_assistant_id,omitempty"`
}

// AssistantToolLink is the ordered membership of a tool in an assistant's
// capability set.
type AssistantToolLink struct {
	AssistantID string `json:"assistant_id"`
	ToolID      string `json:"tool_id"`
	IsActive    bool   `json:"is_active"`
}

// UserSecretaryAssignment binds a user to their current top-level
// secretary. At most one row may be active per user at any instant;
// reassignment deactivates the previous link atomically on the REST Data
// Plane side.
type UserSecretaryAssignment struct {
	UserID      int64     `json:"user_id"`
	SecretaryID string    `json:"secretary_id"`
	IsActive    bool      `json:"is_active"`
	UpdatedAt   time.Time `json:"updated_at"`
}
