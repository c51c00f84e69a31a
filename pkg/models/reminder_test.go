package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReminderValid(t *testing.T) {
	now := time.Now().UTC()
	oneTime := &Reminder{Type: ReminderOneTime, TriggerAt: &now}
	require.True(t, oneTime.Valid())

	recurring := &Reminder{Type: ReminderRecurring, CronExpression: "0 9 * * *"}
	require.True(t, recurring.Valid())

	require.False(t, (&Reminder{Type: ReminderOneTime}).Valid(), "one_time without trigger_at is invalid")
	require.False(t, (&Reminder{Type: ReminderOneTime, TriggerAt: &now, CronExpression: "* * * * *"}).Valid())
	require.False(t, (&Reminder{Type: ReminderRecurring}).Valid(), "recurring without cron_expression is invalid")
}
