package models

import (
	"encoding/json"
	"time"
)

// QueueSource identifies what originated a queue message.
type QueueSource string

const (
	SourceUser     QueueSource = "user"
	SourceTelegram QueueSource = "telegram"
	SourceCron     QueueSource = "cron"
)

// QueueType is the canonical payload type field.
type QueueType string

const (
	QueueTypeHuman     QueueType = "human"
	QueueTypeTool      QueueType = "tool"
	QueueTypeAssistant QueueType = "assistant"
	QueueTypeError     QueueType = "error"
)

// QueuePayload is the canonical JSON body carried on stream entries,
// exactly as defined in spec §6.
type QueuePayload struct {
	UserID    int64           `json:"user_id"`
	Source    QueueSource     `json:"source"`
	Type      QueueType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Content   QueueContent    `json:"content"`
}

// QueueContent is the message body plus optional routing metadata.
type QueueContent struct {
	Message  string           `json:"message"`
	Metadata *QueueMetadata   `json:"metadata,omitempty"`
}

// QueueMetadata carries tool/reminder routing information. ToolName
// "reminder_trigger" marks a scheduler-originated trigger event.
type QueueMetadata struct {
	ToolName          string          `json:"tool_name,omitempty"`
	AssistantID       string          `json:"assistant_id,omitempty"`
	ReminderID        string          `json:"reminder_id,omitempty"`
	ReminderType      ReminderType    `json:"reminder_type,omitempty"`
	Payload           json.RawMessage `json:"payload,omitempty"`
	TriggeredAtEvent  *time.Time      `json:"triggered_at_event,omitempty"`
}

// IsReminderTrigger reports whether this payload is a scheduler trigger
// event per spec §4.7 step 2's classification rule.
func (p *QueuePayload) IsReminderTrigger() bool {
	return p.Source == SourceCron && p.Type == QueueTypeTool &&
		p.Content.Metadata != nil && p.Content.Metadata.ToolName == "reminder_trigger"
}

// ResponsePayload is what the orchestrator pushes onto the output stream.
type ResponsePayload struct {
	UserID   int64     `json:"user_id"`
	Status   string    `json:"status"` // "success" | "error"
	Response string    `json:"response"`
	Type     QueueType `json:"type"`
	Source   string    `json:"source,omitempty"` // e.g. "reminder_trigger" for scenario 2
	Metadata *QueueMetadata `json:"metadata,omitempty"`
}

// QueueMessageLog is an append-only observability record of one stream
// entry's processing outcome, owned locally by this service (not the REST
// Data Plane).
type QueueMessageLog struct {
	ID            int64     `json:"id"`
	Stream        string    `json:"stream"`
	MessageID     string    `json:"message_id"`
	UserID        int64     `json:"user_id,omitempty"`
	Outcome       string    `json:"outcome"` // "acked" | "error_acked" | "retried" | "dlq"
	RetryCount    int       `json:"retry_count"`
	ErrorType     string    `json:"error_type,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// JobExecution is an append-only observability record of one scheduled or
// batch job run, owned locally by this service.
type JobExecution struct {
	ID         int64      `json:"id"`
	JobID      string     `json:"job_id"`
	JobKind    string     `json:"job_kind"` // "reminder" | "memory_extraction"
	Status     string     `json:"status"`   // "running" | "success" | "error"
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}
