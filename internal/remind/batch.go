package remind

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"planreminder/internal/model"
)

// jobPrefix marks every job owned by the reminder orchestrator. Jobs without
// it (maintenance and friends) are never touched during re-setup.
const jobPrefix = "reminder_"

// JobID builds the deterministic id for a client's reminder job. Registering
// the same id twice replaces the earlier job.
func JobID(kind model.Kind, clientID string, date time.Time, hour, minute int) string {
	return fmt.Sprintf("%s%s_%s_%s_%d%02d", jobPrefix, kind, clientID, date.Format("20060102"), hour, minute)
}

// staggerSlot spreads client index across one-minute strides from the base
// time, rolling minutes into hours and hours into days.
func staggerSlot(date time.Time, baseHour, baseMinute, index int) (time.Time, int, int) {
	minute := baseMinute + index
	hour := baseHour
	for minute >= 60 {
		minute -= 60
		hour++
	}
	for hour >= 24 {
		hour -= 24
		date = date.AddDate(0, 0, 1)
	}
	return date, hour, minute
}

// scheduleBatch registers one timed job per client in a (date, kind) group,
// staggered a minute apart from the base time. A failed registration logs and
// moves on; one bad client must not sink the batch. Returns how many jobs
// were registered.
func (o *Orchestrator) scheduleBatch(clients []model.Client, kind model.Kind, baseHour, baseMinute int, date time.Time) int {
	scheduled := 0
	for i, c := range clients {
		fireDate, hour, minute := staggerSlot(date, baseHour, baseMinute, i)
		at := time.Date(fireDate.Year(), fireDate.Month(), fireDate.Day(), hour, minute, 0, 0, o.loc)
		id := JobID(kind, c.ID, fireDate, hour, minute)

		clientID := c.ID
		err := o.runner.AddJob(id, at, func() {
			o.SendReminder(clientID, kind)
		})
		if err != nil {
			o.log.Error("failed to schedule reminder",
				zap.String("client", c.Name),
				zap.String("job_id", id),
				zap.Error(err),
			)
			continue
		}

		scheduled++
		o.log.Info("reminder scheduled",
			zap.String("client", c.Name),
			zap.String("kind", string(kind)),
			zap.Time("at", at),
		)
	}
	return scheduled
}
