package models

import (
	"encoding/json"
	"time"
)

// ReminderType distinguishes a single-fire reminder from a recurring one.
type ReminderType string

const (
	ReminderOneTime   ReminderType = "one_time"
	ReminderRecurring ReminderType = "recurring"
)

// ReminderStatus tracks a reminder's position in its lifecycle.
type ReminderStatus string

const (
	ReminderStatusActive    ReminderStatus = "active"
	ReminderStatusPaused    ReminderStatus = "paused"
	ReminderStatusCompleted ReminderStatus = "completed"
	ReminderStatusCancelled ReminderStatus = "cancelled"
)

// Reminder is a user-owned scheduled trigger. Exactly one of TriggerAt /
// CronExpression is set, matching Type.
type Reminder struct {
	ID              string          `json:"id"`
	UserID          int64           `json:"user_id"`
	AssistantID     string          `json:"assistant_id"`
	Type            ReminderType    `json:"type"`
	TriggerAt       *time.Time      `json:"trigger_at,omitempty"`
	CronExpression  string          `json:"cron_expression,omitempty"`
	Timezone        string          `json:"timezone,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	Status          ReminderStatus  `json:"status"`
	LastTriggeredAt *time.Time      `json:"last_triggered_at,omitempty"`
}

// Valid reports whether the reminder's type-dependent fields are
// consistent with spec §3's invariants.
func (r *Reminder) Valid() bool {
	switch r.Type {
	case ReminderOneTime:
		return r.TriggerAt != nil && r.CronExpression == ""
	case ReminderRecurring:
		return r.CronExpression != "" && r.TriggerAt == nil
	default:
		return false
	}
}
