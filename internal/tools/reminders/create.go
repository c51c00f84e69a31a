package reminders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladmesh/secretary/internal/datetime"
	"github.com/vladmesh/secretary/internal/restclient"
	"github.com/vladmesh/secretary/internal/toolkit"
	"github.com/vladmesh/secretary/pkg/models"
)

// CreateTool implements the reminder_create tool type: validate input,
// translate local time to UTC, and POST a new Reminder via the REST
// Data Plane. The calling user and assistant are never baked into the
// tool at construction time — a tool instance lives on a shared,
// per-assistant toolkit.Registry (internal/factory.Instance), so caller
// identity is read fresh from ctx on every Execute via
// toolkit.InvocationFromContext.
type CreateTool struct {
	name        string
	description string
	rest        RESTClient
}

// NewCreateTool builds the reminder_create handler, carrying the row's
// configured name and description through to the registry.
func NewCreateTool(name, description string, rest RESTClient) *CreateTool {
	return &CreateTool{name: name, description: description, rest: rest}
}

func (t *CreateTool) Name() string        { return t.name }
func (t *CreateTool) Description() string { return t.description }

func (t *CreateTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"message": {"type": "string", "description": "The reminder message to send when triggered"},
			"when": {"type": "string", "description": "When to send the reminder: 'in X minutes/hours/days', or an absolute time"},
			"title": {"type": "string", "description": "Optional short title for the reminder"},
			"timezone": {"type": "string", "description": "IANA timezone the 'when' value should be interpreted in, e.g. America/New_York"},
			"cron_expression": {"type": "string", "description": "5-field cron expression for a recurring reminder, interpreted in 'timezone'"}
		},
		"required": ["message"]
	}`)
}

// CreateInput is the parsed tool call payload.
type CreateInput struct {
	Message        string `json:"message"`
	When           string `json:"when"`
	Title          string `json:"title"`
	Timezone       string `json:"timezone"`
	CronExpression string `json:"cron_expression"`
}

type reminderPayload struct {
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

// Execute creates a reminder.
func (t *CreateTool) Execute(ctx context.Context, params json.RawMessage) (*toolkit.Result, error) {
	var input CreateInput
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	if input.Message == "" {
		return &toolkit.Result{Content: "message is required", IsError: true}, nil
	}

	payload, err := json.Marshal(reminderPayload{Title: input.Title, Message: input.Message})
	if err != nil {
		return nil, fmt.Errorf("marshal reminder payload: %w", err)
	}

	inv := toolkit.InvocationFromContext(ctx)
	reminder := models.Reminder{
		UserID:      inv.UserID,
		AssistantID: inv.AssistantID,
		Payload:     payload,
		Status:      models.ReminderStatusActive,
	}

	var summary string
	if input.CronExpression != "" {
		cronUTC, err := translateCronHourToUTC(input.CronExpression, input.Timezone)
		if err != nil {
			return &toolkit.Result{Content: fmt.Sprintf("invalid cron expression: %v", err), IsError: true}, nil
		}
		reminder.Type = models.ReminderRecurring
		reminder.CronExpression = cronUTC
		reminder.Timezone = input.Timezone
		summary = fmt.Sprintf("Recurring reminder set (%s): %s", cronUTC, input.Message)
	} else {
		if input.When == "" {
			return &toolkit.Result{Content: "when is required for a one-time reminder", IsError: true}, nil
		}
		triggerAt, err := parseWhen(input.When)
		if err != nil {
			return &toolkit.Result{Content: fmt.Sprintf("invalid time: %v", err), IsError: true}, nil
		}
		if triggerAt.Before(time.Now()) {
			return &toolkit.Result{Content: "cannot set reminder in the past", IsError: true}, nil
		}
		utcTrigger := triggerAt.UTC()
		reminder.Type = models.ReminderOneTime
		reminder.TriggerAt = &utcTrigger
		reminder.Timezone = input.Timezone

		tz := datetime.ResolveUserTimezone(input.Timezone)
		format := datetime.ResolveUserTimeFormat(datetime.TimeFormatAuto)
		when := datetime.FormatUserTimeWithTimezone(triggerAt, tz, format)
		if when == "" {
			when = triggerAt.Format("Mon Jan 2 3:04 PM")
		}
		summary = fmt.Sprintf("Reminder set for %s (%s): %s", when, datetime.FormatRelativeTime(triggerAt, time.Now()), input.Message)
	}

	var created models.Reminder
	err = t.rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/reminders",
		Method:           "POST",
		Path:             "/reminders",
		Body:             reminder,
	}, &created)
	if err != nil {
		return nil, fmt.Errorf("create reminder: %w", err)
	}

	return &toolkit.Result{Content: fmt.Sprintf("%s\nID: %s", summary, created.ID)}, nil
}
