package reminders

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladmesh/secretary/internal/restclient"
	"github.com/vladmesh/secretary/pkg/models"
)

type fakeRESTClient struct {
	lastOpts restclient.CallOptions
	reminder models.Reminder
	list     []models.Reminder
	deleted  string
}

func (f *fakeRESTClient) Do(ctx context.Context, opts restclient.CallOptions, out any) error {
	f.lastOpts = opts
	switch opts.Method {
	case "POST":
		f.reminder.ID = "reminder-1"
		*out.(*models.Reminder) = f.reminder
	case "GET":
		*out.(*[]models.Reminder) = f.list
	case "DELETE":
		f.deleted = opts.Path
	}
	return nil
}

func TestCreateToolOneTime(t *testing.T) {
	rest := &fakeRESTClient{}
	tool := NewCreateTool("reminder_create", "create a reminder", rest)

	input, err := json.Marshal(CreateInput{Message: "pick up groceries", When: "in 1 hour"})
	require.NoError(t, err)

	result, err := tool.Execute(context.Background(), input)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Contains(t, result.Content, "reminder-1")
	require.Equal(t, "POST", rest.lastOpts.Method)
}

func TestCreateToolRejectsPastTime(t *testing.T) {
	rest := &fakeRESTClient{}
	tool := NewCreateTool("reminder_create", "create a reminder", rest)

	input, _ := json.Marshal(CreateInput{Message: "too late", When: "2020-01-01T00:00:00Z"})
	result, err := tool.Execute(context.Background(), input)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestCreateToolRecurringTranslatesHourToUTC(t *testing.T) {
	rest := &fakeRESTClient{}
	tool := NewCreateTool("reminder_create", "create a reminder", rest)

	input, _ := json.Marshal(CreateInput{
		Message:        "standup",
		CronExpression: "0 9 * * 1-5",
		Timezone:       "UTC",
	})
	result, err := tool.Execute(context.Background(), input)
	require.NoError(t, err)
	require.False(t, result.IsError)
}

func TestListToolFormatsReminders(t *testing.T) {
	payload, _ := json.Marshal(reminderPayload{Message: "call mom"})
	trigger := time.Now().Add(time.Hour)
	rest := &fakeRESTClient{list: []models.Reminder{
		{ID: "r1", Type: models.ReminderOneTime, TriggerAt: &trigger, Payload: payload},
	}}
	tool := NewListTool("reminder_list", "list reminders", rest)

	result, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	require.Contains(t, result.Content, "call mom")
	require.Contains(t, result.Content, "r1")
}

func TestListToolEmpty(t *testing.T) {
	rest := &fakeRESTClient{}
	tool := NewListTool("reminder_list", "list reminders", rest)

	result, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	require.Contains(t, result.Content, "No active reminders")
}

func TestDeleteToolRequiresID(t *testing.T) {
	rest := &fakeRESTClient{}
	tool := NewDeleteTool("reminder_delete", "delete a reminder", rest)

	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestDeleteToolSucceeds(t *testing.T) {
	rest := &fakeRESTClient{}
	tool := NewDeleteTool("reminder_delete", "delete a reminder", rest)

	input, _ := json.Marshal(DeleteInput{ReminderID: "r1"})
	result, err := tool.Execute(context.Background(), input)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, "/reminders/r1", rest.deleted)
}

func TestTranslateCronHourToUTCPassesThroughNonNumeric(t *testing.T) {
	out, err := translateCronHourToUTC("0 * * * *", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, "0 * * * *", out)
}

func TestParseWhenRelative(t *testing.T) {
	before := time.Now()
	got, err := parseWhen("in 5 minutes")
	require.NoError(t, err)
	require.True(t, got.After(before))
}
