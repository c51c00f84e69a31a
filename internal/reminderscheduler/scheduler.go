package reminderscheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vladmesh/secretary/internal/jobs"
	"github.com/vladmesh/secretary/internal/observability"
	"github.com/vladmesh/secretary/pkg/models"
)

// cronParser parses the 5-field UTC cron expressions reminders store
// (spec §4.3): recurring reminders are translated to UTC once, at
// creation time (internal/tools/reminders.translateCronHourToUTC), so
// the scheduler only ever evaluates already-UTC expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Publisher is the subset of queue.StreamClient the scheduler needs to
// emit trigger events.
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// Config configures reconciliation cadence and per-kind grace windows.
type Config struct {
	ReconcileInterval time.Duration
	OneTimeGrace      time.Duration
	RecurringGrace    time.Duration
}

// Scheduler reconciles the REST Data Plane's active-reminder list
// against an in-memory job set every ReconcileInterval and fires due
// jobs, per spec §4.3.
type Scheduler struct {
	rest    RESTClient
	publish Publisher
	logger  *observability.Logger
	metrics *observability.Metrics
	cfg     Config
	now     func() time.Time
	execs   jobs.ExecutionStore

	mu   sync.Mutex
	jobs map[string]*job
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithExecutionStore records one JobExecution row per fired reminder
// in the local Postgres-backed job log (internal/jobs).
func WithExecutionStore(execs jobs.ExecutionStore) Option {
	return func(s *Scheduler) {
		if execs != nil {
			s.execs = execs
		}
	}
}

// New builds a Scheduler.
func New(rest RESTClient, publish Publisher, logger *observability.Logger, metrics *observability.Metrics, cfg Config, opts ...Option) *Scheduler {
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = time.Minute
	}
	if cfg.OneTimeGrace <= 0 {
		cfg.OneTimeGrace = 5 * time.Minute
	}
	if cfg.RecurringGrace <= 0 {
		cfg.RecurringGrace = time.Minute
	}
	s := &Scheduler{
		rest:    rest,
		publish: publish,
		logger:  logger,
		metrics: metrics,
		cfg:     cfg,
		now:     time.Now,
		execs:   jobs.NoopStore{},
		jobs:    make(map[string]*job),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks, reconciling on every tick until ctx is cancelled. It
// never returns on a transient REST failure — per spec §4.3, "the
// scheduler never exits on transient errors" — only on context
// cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.ReconcileInterval)
	defer ticker.Stop()
	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one reconciliation cycle: fetch, diff, fire due jobs.
// Exported so cmd/scheduler and tests can drive it deterministically.
func (s *Scheduler) Tick(ctx context.Context) {
	if s.logger != nil {
		s.logger.Debug(ctx, observability.EventJobStart, "reminder scheduler tick")
	}
	s.reconcile(ctx)
	s.fireDue(ctx)
}

// JobCount reports the number of reminders currently scheduled
// in-memory, for tests and health introspection.
func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) reconcile(ctx context.Context) {
	reminders, err := fetchActiveReminders(ctx, s.rest)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn(ctx, observability.EventError, "reminder reconciliation fetch failed, retrying next tick", "error", err)
		}
		return
	}

	now := s.now()
	seen := make(map[string]bool, len(reminders))
	for _, r := range reminders {
		seen[r.ID] = true
		desc, err := buildDescriptor(r, s.cfg)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn(ctx, observability.EventError, "reminder skipped, invalid trigger descriptor", "reminder_id", r.ID, "error", err)
			}
			continue
		}

		s.mu.Lock()
		existing, ok := s.jobs[r.ID]
		switch {
		case !ok:
			// Case 2: present in fetch, absent locally -> schedule.
			s.jobs[r.ID] = &job{reminder: r, descriptor: desc, nextRun: nextRunFor(desc, r, now)}
		case !existing.descriptor.equal(desc):
			// Case 3: present in both, descriptor changed -> reschedule.
			existing.reminder = r
			existing.descriptor = desc
			existing.nextRun = nextRunFor(desc, r, now)
		default:
			existing.reminder = r
		}
		s.mu.Unlock()
	}

	// Case 1: present locally, absent from fetch -> unschedule.
	s.mu.Lock()
	for id := range s.jobs {
		if !seen[id] {
			delete(s.jobs, id)
		}
	}
	s.mu.Unlock()
}

func (s *Scheduler) fireDue(ctx context.Context) {
	now := s.now()
	s.mu.Lock()
	due := make([]*job, 0)
	for _, j := range s.jobs {
		if !now.Before(j.nextRun) {
			due = append(due, j)
		}
	}
	s.mu.Unlock()

	for _, j := range due {
		s.fire(ctx, j, now)
	}
}

func (s *Scheduler) fire(ctx context.Context, j *job, now time.Time) {
	exec, execErr := s.execs.Start(ctx, j.reminder.ID, "reminder")
	if execErr != nil && s.logger != nil {
		s.logger.Warn(ctx, observability.EventError, "job execution log start failed", "reminder_id", j.reminder.ID, "error", execErr)
	}

	env := buildTriggerEnvelope(j, now)
	if _, err := s.publish.Publish(ctx, env); err != nil {
		if s.logger != nil {
			s.logger.Warn(ctx, observability.EventError, "reminder trigger publish failed, retrying next tick", "reminder_id", j.reminder.ID, "error", err)
		}
		if execErr == nil {
			_ = s.execs.Finish(ctx, exec.ID, "error", err.Error())
		}
		return
	}
	if s.logger != nil {
		s.logger.Info(ctx, observability.EventQueuePush, "reminder trigger emitted", "reminder_id", j.reminder.ID, "reminder_type", string(j.descriptor.kind))
	}
	if execErr == nil {
		_ = s.execs.Finish(ctx, exec.ID, "success", "")
	}

	switch j.descriptor.kind {
	case models.ReminderOneTime:
		if err := markOneTimeCompleted(ctx, s.rest, j.reminder.ID, now); err != nil && s.logger != nil {
			s.logger.Warn(ctx, observability.EventError, "mark reminder completed failed", "reminder_id", j.reminder.ID, "error", err)
		}
		s.mu.Lock()
		delete(s.jobs, j.reminder.ID)
		s.mu.Unlock()
	case models.ReminderRecurring:
		next, err := nextCronRun(j.descriptor.cronExpr, now)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn(ctx, observability.EventError, "recurring reminder cron re-evaluation failed", "reminder_id", j.reminder.ID, "error", err)
			}
			return
		}
		if err := markLastTriggered(ctx, s.rest, j.reminder.ID, now); err != nil && s.logger != nil {
			s.logger.Warn(ctx, observability.EventError, "mark reminder last_triggered_at failed", "reminder_id", j.reminder.ID, "error", err)
		}
		s.mu.Lock()
		j.nextRun = next
		s.mu.Unlock()
	}
}

func buildDescriptor(r models.Reminder, cfg Config) (triggerDescriptor, error) {
	switch r.Type {
	case models.ReminderOneTime:
		if r.TriggerAt == nil {
			return triggerDescriptor{}, fmt.Errorf("one_time reminder %s missing trigger_at", r.ID)
		}
		return triggerDescriptor{kind: models.ReminderOneTime, fireAt: r.TriggerAt.UTC(), grace: cfg.OneTimeGrace}, nil
	case models.ReminderRecurring:
		if r.CronExpression == "" {
			return triggerDescriptor{}, fmt.Errorf("recurring reminder %s missing cron_expression", r.ID)
		}
		if _, err := cronParser.Parse(r.CronExpression); err != nil {
			return triggerDescriptor{}, fmt.Errorf("recurring reminder %s invalid cron expression: %w", r.ID, err)
		}
		return triggerDescriptor{kind: models.ReminderRecurring, cronExpr: r.CronExpression, grace: cfg.RecurringGrace}, nil
	default:
		return triggerDescriptor{}, fmt.Errorf("reminder %s has unknown type %q", r.ID, r.Type)
	}
}

// nextRunFor computes the next scheduled fire time for a freshly built
// or rescheduled job. Recurring reminders resume from LastTriggeredAt
// when present so a scheduler restart does not fire an extra cycle.
func nextRunFor(desc triggerDescriptor, r models.Reminder, now time.Time) time.Time {
	switch desc.kind {
	case models.ReminderOneTime:
		return desc.fireAt
	case models.ReminderRecurring:
		// With no prior fire recorded, anchor the search just inside the
		// grace window so a reminder whose scheduled minute already
		// started (e.g. the scheduler just started at 09:00:30 for a
		// "0 9 * * *" job) is still recognized as due now, without
		// replaying occurrences from further in the past.
		anchor := now.Add(-desc.grace)
		if r.LastTriggeredAt != nil {
			anchor = r.LastTriggeredAt.UTC()
		}
		next, err := nextCronRun(desc.cronExpr, anchor)
		if err != nil {
			return now.Add(24 * time.Hour) // unreachable: desc already validated in buildDescriptor
		}
		return next
	default:
		return now.Add(24 * time.Hour)
	}
}

func nextCronRun(cronExpr string, after time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(after.UTC()), nil
}
