package reminderscheduler

import (
	"encoding/json"
	"time"
)

// triggerMetadata mirrors the "content.metadata" shape of the canonical
// queue payload (spec §6) for the fields a cron-fired reminder sets.
// Duplicated rather than imported from internal/orchestrator: the
// canonical payload is a wire contract between independent services,
// not a shared Go type, and internal/orchestrator depends on the
// queue package the same way this package does — neither should
// depend on the other.
type triggerMetadata struct {
	ToolName         string          `json:"tool_name"`
	AssistantID      string          `json:"assistant_id"`
	ReminderID       string          `json:"reminder_id"`
	ReminderType     string          `json:"reminder_type"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	TriggeredAtEvent string          `json:"triggered_at_event"`
}

type triggerContent struct {
	Message  string          `json:"message"`
	Metadata triggerMetadata `json:"metadata"`
}

type triggerEnvelope struct {
	UserID    int64          `json:"user_id"`
	Source    string         `json:"source"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Content   triggerContent `json:"content"`
}

func buildTriggerEnvelope(j *job, firedAt time.Time) triggerEnvelope {
	r := j.reminder
	return triggerEnvelope{
		UserID:    r.UserID,
		Source:    "cron",
		Type:      "tool",
		Timestamp: firedAt,
		Content: triggerContent{
			Message: "reminder_trigger",
			Metadata: triggerMetadata{
				ToolName:         "reminder_trigger",
				AssistantID:      r.AssistantID,
				ReminderID:       r.ID,
				ReminderType:     string(r.Type),
				Payload:          r.Payload,
				TriggeredAtEvent: firedAt.UTC().Format(time.RFC3339),
			},
		},
	}
}
