// Package orchestrator implements the Orchestrator (C7): classify and
// dispatch one canonical queue payload (spec §6) to the agent graph,
// publish its reply, and apply the at-least-once failure policy
// (malformed payload -> ack + error reply, no retry; any other
// failure -> leave for redelivery or dead-letter once retries are
// exhausted). Grounded on spec §4.7's exact algorithm; the teacher has
// no equivalent component since it is a Discord gateway, not a queue
// consumer, so this package is new, built in the teacher's ambient
// idiom (narrowed interfaces, structured logging, explicit error
// wrapping).
package orchestrator

import (
	"encoding/json"
	"time"
)

// Metadata carries the optional trigger-specific fields of an incoming
// envelope, populated only for cron-originated payloads.
type Metadata struct {
	ToolName         string          `json:"tool_name,omitempty"`
	AssistantID      string          `json:"assistant_id,omitempty"`
	ReminderID       string          `json:"reminder_id,omitempty"`
	ReminderType     string          `json:"reminder_type,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	TriggeredAtEvent string          `json:"triggered_at_event,omitempty"`
}

// Content is the envelope's inner payload.
type Content struct {
	Message  string   `json:"message"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Envelope is the canonical queue:to_secretary payload (spec §6).
type Envelope struct {
	UserID    int64     `json:"user_id"`
	Source    string    `json:"source"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Content   Content   `json:"content"`
}

// isReminderTrigger reports whether this envelope is the cron
// reminder-fired path, per spec §4.7's classify rule.
func (e Envelope) isReminderTrigger() bool {
	return e.Source == "cron" && e.Type == "tool" && e.Content.Metadata.ToolName == "reminder_trigger"
}

// OutputStatus is the closed set of outcomes an output envelope can
// report.
type OutputStatus string

const (
	OutputStatusSuccess OutputStatus = "success"
	OutputStatusError   OutputStatus = "error"
)

// OutputEnvelope is the canonical queue:to_telegram payload.
type OutputEnvelope struct {
	UserID   int64        `json:"user_id"`
	Status   OutputStatus `json:"status"`
	Response string       `json:"response,omitempty"`
	Type     string       `json:"type"`
	Source   string       `json:"source,omitempty"`
	Metadata *Metadata    `json:"metadata,omitempty"`
}
