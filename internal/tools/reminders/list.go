package reminders

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vladmesh/secretary/internal/datetime"
	"github.com/vladmesh/secretary/internal/restclient"
	"github.com/vladmesh/secretary/internal/toolkit"
	"github.com/vladmesh/secretary/pkg/models"
)

// ListTool implements the reminder_list tool type: GET active
// reminders for the user and render a human-readable list.
type ListTool struct {
	name        string
	description string
	rest        RESTClient
}

// NewListTool builds the reminder_list handler.
func NewListTool(name, description string, rest RESTClient) *ListTool {
	return &ListTool{name: name, description: description, rest: rest}
}

func (t *ListTool) Name() string        { return t.name }
func (t *ListTool) Description() string { return t.description }

func (t *ListTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

// Execute lists the user's active reminders.
func (t *ListTool) Execute(ctx context.Context, params json.RawMessage) (*toolkit.Result, error) {
	inv := toolkit.InvocationFromContext(ctx)
	var reminders []models.Reminder
	err := t.rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/users/{id}/reminders",
		Method:           "GET",
		Path:             fmt.Sprintf("/users/%d/reminders?status=active", inv.UserID),
	}, &reminders)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}

	if len(reminders) == 0 {
		return &toolkit.Result{Content: "No active reminders found."}, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d reminder(s):\n\n", len(reminders)))
	for i, r := range reminders {
		var payload reminderPayload
		_ = json.Unmarshal(r.Payload, &payload)

		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, payload.Message))
		sb.WriteString(fmt.Sprintf("   ID: %s\n", r.ID))
		switch r.Type {
		case models.ReminderOneTime:
			if r.TriggerAt != nil {
				tz := datetime.ResolveUserTimezone(r.Timezone)
				format := datetime.ResolveUserTimeFormat(datetime.TimeFormatAuto)
				when := datetime.FormatUserTimeWithTimezone(*r.TriggerAt, tz, format)
				if when == "" {
					when = r.TriggerAt.Format(time.RFC3339)
				}
				sb.WriteString(fmt.Sprintf("   Fires: %s (%s)\n", when, datetime.FormatRelativeTime(*r.TriggerAt, time.Now())))
			}
		case models.ReminderRecurring:
			sb.WriteString(fmt.Sprintf("   Schedule: %s (%s)\n", r.CronExpression, r.Timezone))
		}
		sb.WriteString("\n")
	}

	return &toolkit.Result{Content: sb.String()}, nil
}
