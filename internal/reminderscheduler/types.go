// Package reminderscheduler implements the Reminder Scheduler (C3):
// it turns the REST Data Plane's view of active reminders into timed
// triggers and emits them onto the same queue fabric the Orchestrator
// (C7) consumes from. Grounded on the teacher's internal/cron package
// for cron-expression parsing (robfig/cron/v3) and its Scheduler's
// tick-driven run loop shape, but the reconciliation algorithm itself
// — diff active reminders against an in-memory job set, keyed
// reminder:<uuid>, rebuild trigger descriptors, fire with a grace
// window — is new: the teacher's cron jobs are static config entries,
// not REST-backed domain rows, so there is nothing in
// internal/cron to reuse beyond the cron-parsing primitive.
package reminderscheduler

import (
	"time"

	"github.com/vladmesh/secretary/pkg/models"
)

// triggerDescriptor is the piece of a Reminder that determines when it
// fires, compared across reconciliation cycles to detect "present in
// both but changed" (spec §4.3 case 3).
type triggerDescriptor struct {
	kind     models.ReminderType
	fireAt   time.Time // one_time only
	cronExpr string    // recurring only
	grace    time.Duration
}

func (d triggerDescriptor) equal(o triggerDescriptor) bool {
	return d.kind == o.kind && d.fireAt.Equal(o.fireAt) && d.cronExpr == o.cronExpr
}

// job is the scheduler's in-memory record for one active reminder.
type job struct {
	reminder   models.Reminder
	descriptor triggerDescriptor
	nextRun    time.Time
}
