package reminderscheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/vladmesh/secretary/internal/restclient"
	"github.com/vladmesh/secretary/pkg/models"
)

// RESTClient is the subset of restclient.Client the scheduler needs,
// narrowed the same way internal/factory.RESTClient is.
type RESTClient interface {
	Do(ctx context.Context, opts restclient.CallOptions, out any) error
}

type scheduledReminders struct {
	Reminders []models.Reminder `json:"reminders"`
}

func fetchActiveReminders(ctx context.Context, rest RESTClient) ([]models.Reminder, error) {
	var resp scheduledReminders
	err := rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/reminders/scheduled",
		Method:           "GET",
		Path:             "/api/reminders/scheduled",
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch active reminders: %w", err)
	}
	return resp.Reminders, nil
}

type completeReminderBody struct {
	Status          models.ReminderStatus `json:"status"`
	LastTriggeredAt time.Time             `json:"last_triggered_at"`
}

func markOneTimeCompleted(ctx context.Context, rest RESTClient, reminderID string, triggeredAt time.Time) error {
	err := rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/reminders/{id}",
		Method:           "PATCH",
		Path:             "/api/reminders/" + reminderID,
		Body: completeReminderBody{
			Status:          models.ReminderStatusCompleted,
			LastTriggeredAt: triggeredAt,
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("mark reminder %s completed: %w", reminderID, err)
	}
	return nil
}

func markLastTriggered(ctx context.Context, rest RESTClient, reminderID string, triggeredAt time.Time) error {
	err := rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/reminders/{id}",
		Method:           "PATCH",
		Path:             "/api/reminders/" + reminderID,
		Body: struct {
			LastTriggeredAt time.Time `json:"last_triggered_at"`
		}{LastTriggeredAt: triggeredAt},
	}, nil)
	if err != nil {
		return fmt.Errorf("mark reminder %s last_triggered_at: %w", reminderID, err)
	}
	return nil
}
