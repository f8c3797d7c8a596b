package remind

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"planreminder/internal/jobs"
	"planreminder/internal/model"
	"planreminder/internal/queue"
	"planreminder/internal/storage"
)

const (
	cleanupJobID   = "daily_cleanup"
	cleanupHour    = 2
	defaultTime3d  = "09:00"
	defaultTimePay = "10:00"
)

// Orchestrator owns the reminder schedule: it replans from the current client
// snapshot, registers timed jobs and feeds fired reminders into the queue.
// SetupReminders must not be invoked concurrently with itself; callers
// serialize it behind whatever triggers a re-plan.
type Orchestrator struct {
	store     storage.ClientStore
	queue     *queue.Queue
	runner    jobs.Runner
	generator Generator
	log       *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

func NewOrchestrator(store storage.ClientStore, q *queue.Queue, runner jobs.Runner, gen Generator, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		store:     store,
		queue:     q,
		runner:    runner,
		generator: gen,
		log:       log,
		loc:       time.Local,
		now:       time.Now,
	}
}

// WithClock overrides the time source and location, mainly for tests.
func (o *Orchestrator) WithClock(now func() time.Time, loc *time.Location) *Orchestrator {
	if now != nil {
		o.now = now
	}
	if loc != nil {
		o.loc = loc
	}
	return o
}

// SetupReminders rebuilds the whole schedule from the current client
// snapshot. A failed snapshot fetch keeps the previous schedule in place;
// stale jobs are better than none.
func (o *Orchestrator) SetupReminders(ctx context.Context) error {
	o.queue.Start()

	clients, err := o.store.Clients(ctx)
	if err != nil {
		o.log.Error("cannot fetch clients, keeping previous schedule", zap.Error(err))
		return err
	}

	removed := o.removeReminderJobs("")
	o.log.Info("cleared existing reminder jobs", zap.Int("removed", removed))

	if len(clients) == 0 {
		o.log.Info("no clients found, nothing to schedule")
		return nil
	}

	today := midnight(o.now().In(o.loc))
	grouped := GroupByReminderDate(clients, o.loc, o.log)

	total := 0
	for key, group := range grouped {
		date, err := time.ParseInLocation(model.DateLayout, key, o.loc)
		if err != nil {
			o.log.Error("bad plan date key", zap.String("date", key), zap.Error(err))
			continue
		}
		if date.Before(today) {
			continue
		}

		if len(group.ThreeDays) > 0 {
			hour, minute := baseTime(group.ThreeDays[0].ReminderTime3Days, defaultTime3d, o.log)
			total += o.scheduleBatch(group.ThreeDays, model.KindThreeDays, hour, minute, date)
		}
		if len(group.Payment) > 0 {
			hour, minute := baseTime(group.Payment[0].ReminderTimePayment, defaultTimePay, o.log)
			total += o.scheduleBatch(group.Payment, model.KindPayment, hour, minute, date)
		}
	}

	o.log.Info("reminder schedule rebuilt",
		zap.Int("jobs", total),
		zap.Int("clients", len(clients)),
	)

	o.scheduleDailyCleanup()
	return nil
}

// SendReminder is the scheduled entry point invoked when a reminder job
// fires. The paid/expired skip happens here, not at planning time.
func (o *Orchestrator) SendReminder(clientID string, kind model.Kind) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := o.store.ClientByID(ctx, clientID)
	if err != nil {
		o.log.Error("client lookup failed", zap.String("client_id", clientID), zap.Error(err))
		return false
	}
	if client == nil {
		o.log.Error("client not found", zap.String("client_id", clientID))
		return false
	}

	today := o.now().In(o.loc)
	if !client.ShouldSendReminder(today) {
		o.log.Info("skipping reminder",
			zap.String("client", client.Name),
			zap.String("payment_status", string(client.PaymentStatus)),
			zap.String("plan_status", string(client.Status(today))),
		)
		return false
	}

	body := o.reminderBody(ctx, *client, kind)

	priority := model.PriorityNormal
	switch {
	case kind == model.KindPayment:
		priority = model.PriorityHigh
	case client.Status(today) == model.PlanExpired:
		priority = model.PriorityUrgent
	}

	ok := o.queue.Add(&model.QueuedMessage{
		Phone:      client.Phone,
		Body:       body,
		ClientID:   client.ID,
		ClientName: client.Name,
		Kind:       kind,
		Priority:   priority,
	})
	if !ok {
		o.log.Error("failed to queue reminder",
			zap.String("client", client.Name),
			zap.String("kind", string(kind)),
		)
	}
	return ok
}

// ForceSendReminder bypasses the schedule and queues the reminder now. The
// send-time business check still applies.
func (o *Orchestrator) ForceSendReminder(clientID string, kind model.Kind) bool {
	o.log.Info("force sending reminder",
		zap.String("client_id", clientID),
		zap.String("kind", string(kind)),
	)
	return o.SendReminder(clientID, kind)
}

// PauseClient cancels the client's queued messages and drops their scheduled
// jobs. Messages already parked for retry still fire later.
func (o *Orchestrator) PauseClient(clientID string) (cancelled, removedJobs int) {
	cancelled = o.queue.CancelForClient(clientID)
	removedJobs = o.removeReminderJobs(clientID)
	o.log.Info("paused reminders",
		zap.String("client_id", clientID),
		zap.Int("cancelled", cancelled),
		zap.Int("jobs_removed", removedJobs),
	)
	return cancelled, removedJobs
}

// ResumeClient re-enables a paused client by rebuilding the full schedule.
func (o *Orchestrator) ResumeClient(ctx context.Context, clientID string) error {
	o.log.Info("resuming reminders", zap.String("client_id", clientID))
	return o.SetupReminders(ctx)
}

// removeReminderJobs drops reminder-owned jobs, optionally narrowed to one
// client. Unrelated jobs are left alone.
func (o *Orchestrator) removeReminderJobs(clientID string) int {
	removed := 0
	for _, j := range o.runner.Jobs() {
		if !strings.HasPrefix(j.ID, jobPrefix) {
			continue
		}
		if clientID != "" && !strings.Contains(j.ID, "_"+clientID+"_") {
			continue
		}
		if o.runner.RemoveJob(j.ID) {
			removed++
		}
	}
	return removed
}

func (o *Orchestrator) scheduleDailyCleanup() {
	now := o.now().In(o.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), cleanupHour, 0, 0, 0, o.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}

	err := o.runner.AddJob(cleanupJobID, next, func() {
		o.CleanupExpiredJobs()
		o.scheduleDailyCleanup()
	})
	if err != nil {
		o.log.Error("failed to schedule daily cleanup", zap.Error(err))
		return
	}
	o.log.Info("daily cleanup scheduled", zap.Time("at", next))
}

// CleanupExpiredJobs drops reminder jobs whose fire time is more than one day
// in the past.
func (o *Orchestrator) CleanupExpiredJobs() int {
	cutoff := midnight(o.now().In(o.loc)).AddDate(0, 0, -1)

	removed := 0
	for _, j := range o.runner.Jobs() {
		if !strings.HasPrefix(j.ID, jobPrefix) {
			continue
		}
		if j.RunAt.Before(cutoff) && o.runner.RemoveJob(j.ID) {
			removed++
		}
	}
	o.log.Info("cleaned up expired reminder jobs", zap.Int("removed", removed))
	return removed
}

func baseTime(raw, def string, log *zap.Logger) (int, int) {
	hour, minute, err := model.ParseClockTime(raw, def)
	if err != nil {
		log.Warn("bad reminder time, using default", zap.String("value", raw), zap.Error(err))
		hour, minute, _ = model.ParseClockTime(def, def)
	}
	return hour, minute
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
