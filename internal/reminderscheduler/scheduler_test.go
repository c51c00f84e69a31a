package reminderscheduler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladmesh/secretary/internal/restclient"
	"github.com/vladmesh/secretary/pkg/models"
)

type fakeREST struct {
	mu        sync.Mutex
	reminders []models.Reminder
	patches   map[string][]byte
	fetchErr  error
}

func (f *fakeREST) Do(ctx context.Context, opts restclient.CallOptions, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if opts.Method == "GET" {
		if f.fetchErr != nil {
			return f.fetchErr
		}
		resp := out.(*scheduledReminders)
		resp.Reminders = append([]models.Reminder(nil), f.reminders...)
		return nil
	}
	if opts.Method == "PATCH" {
		body, _ := json.Marshal(opts.Body)
		if f.patches == nil {
			f.patches = make(map[string][]byte)
		}
		f.patches[opts.Path] = body
		for i := range f.reminders {
			if "/api/reminders/"+f.reminders[i].ID == opts.Path {
				var patch struct {
					Status          models.ReminderStatus `json:"status"`
					LastTriggeredAt time.Time             `json:"last_triggered_at"`
				}
				_ = json.Unmarshal(body, &patch)
				if patch.Status != "" {
					f.reminders[i].Status = patch.Status
				}
				f.reminders[i].LastTriggeredAt = &patch.LastTriggeredAt
			}
		}
		return nil
	}
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads []triggerEnvelope
}

func (f *fakePublisher) Publish(ctx context.Context, payload any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload.(triggerEnvelope))
	return "1-0", nil
}

func TestScheduler_OneTimeFiresOnceAndCompletes(t *testing.T) {
	trigger := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rest := &fakeREST{reminders: []models.Reminder{
		{ID: "r1", UserID: 42, AssistantID: "a1", Type: models.ReminderOneTime, TriggerAt: &trigger, Status: models.ReminderStatusActive, Payload: json.RawMessage(`{"text":"call"}`)},
	}}
	pub := &fakePublisher{}
	now := trigger.Add(time.Second)
	sched := New(rest, pub, nil, nil, Config{}, WithNow(func() time.Time { return now }))

	sched.Tick(context.Background())

	require.Len(t, pub.payloads, 1)
	assert.Equal(t, "r1", pub.payloads[0].Content.Metadata.ReminderID)
	assert.Equal(t, "cron", pub.payloads[0].Source)
	assert.Equal(t, "reminder_trigger", pub.payloads[0].Content.Metadata.ToolName)
	assert.Equal(t, 0, sched.JobCount(), "one_time job removed after firing")
	assert.Equal(t, models.ReminderStatusCompleted, rest.reminders[0].Status)

	// A second tick must not refire: REST no longer reports it active.
	rest.mu.Lock()
	rest.reminders = nil
	rest.mu.Unlock()
	sched.Tick(context.Background())
	assert.Len(t, pub.payloads, 1, "one_time reminder never fires twice")
}

func TestScheduler_RecurringReschedulesAfterFiring(t *testing.T) {
	rest := &fakeREST{reminders: []models.Reminder{
		{ID: "r2", UserID: 7, AssistantID: "a1", Type: models.ReminderRecurring, CronExpression: "0 9 * * *", Status: models.ReminderStatusActive},
	}}
	pub := &fakePublisher{}
	now := time.Date(2025, 3, 1, 9, 0, 30, 0, time.UTC)
	sched := New(rest, pub, nil, nil, Config{}, WithNow(func() time.Time { return now }))

	sched.Tick(context.Background())
	require.Len(t, pub.payloads, 1)
	assert.Equal(t, 1, sched.JobCount(), "recurring job persists across fires")

	// Still within the same minute: must not refire.
	sched.Tick(context.Background())
	assert.Len(t, pub.payloads, 1)

	// Next day's trigger time: fires again.
	now = now.Add(24 * time.Hour)
	sched.Tick(context.Background())
	assert.Len(t, pub.payloads, 2)
}

func TestScheduler_UnschedulesRemovedReminder(t *testing.T) {
	trigger := time.Now().Add(time.Hour).UTC()
	rest := &fakeREST{reminders: []models.Reminder{
		{ID: "r3", UserID: 1, Type: models.ReminderOneTime, TriggerAt: &trigger, Status: models.ReminderStatusActive},
	}}
	pub := &fakePublisher{}
	sched := New(rest, pub, nil, nil, Config{})

	sched.Tick(context.Background())
	assert.Equal(t, 1, sched.JobCount())

	rest.mu.Lock()
	rest.reminders = nil
	rest.mu.Unlock()
	sched.Tick(context.Background())
	assert.Equal(t, 0, sched.JobCount(), "reminder absent from fetch is unscheduled")
}

func TestScheduler_ReconcileFetchFailureDoesNotExit(t *testing.T) {
	rest := &fakeREST{fetchErr: assert.AnError}
	pub := &fakePublisher{}
	sched := New(rest, pub, nil, nil, Config{})

	assert.NotPanics(t, func() { sched.Tick(context.Background()) })
	assert.Equal(t, 0, sched.JobCount())
}

func TestBuildDescriptor_RejectsInconsistentReminder(t *testing.T) {
	_, err := buildDescriptor(models.Reminder{ID: "bad", Type: models.ReminderOneTime}, Config{})
	require.Error(t, err)

	_, err = buildDescriptor(models.Reminder{ID: "bad2", Type: models.ReminderRecurring}, Config{})
	require.Error(t, err)
}
