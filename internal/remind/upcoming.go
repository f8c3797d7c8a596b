package remind

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"planreminder/internal/model"
	"planreminder/internal/queue"
)

// UpcomingReminder is one dashboard row for a reminder due within the window.
type UpcomingReminder struct {
	ClientName    string              `json:"client"`
	Kind          model.Kind          `json:"kind"`
	Date          string              `json:"date"`
	Time          string              `json:"time"`
	PlanType      string              `json:"plan_type"`
	Value         float64             `json:"value"`
	Phone         string              `json:"phone"`
	PlanStatus    model.PlanStatus    `json:"status"`
	DaysUntil     int                 `json:"days_until"`
	WillSend      bool                `json:"will_send"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
}

// UpcomingReminders lists reminders falling due in the next seven days,
// soonest first.
func (o *Orchestrator) UpcomingReminders(ctx context.Context) []UpcomingReminder {
	clients, err := o.store.Clients(ctx)
	if err != nil {
		o.log.Error("cannot fetch clients for upcoming reminders", zap.Error(err))
		return nil
	}

	now := o.now().In(o.loc)
	today := midnight(now)
	horizon := today.AddDate(0, 0, 7)

	var upcoming []UpcomingReminder
	for _, c := range clients {
		exp, err := c.ExpirationDate(o.loc)
		if err != nil {
			o.log.Error("skipping client in upcoming list", zap.String("client", c.Name), zap.Error(err))
			continue
		}

		entries := []struct {
			kind model.Kind
			date time.Time
			at   string
		}{
			{model.KindThreeDays, exp.AddDate(0, 0, -3), orDefault(c.ReminderTime3Days, defaultTime3d)},
			{model.KindPayment, exp, orDefault(c.ReminderTimePayment, defaultTimePay)},
		}

		for _, e := range entries {
			if e.date.Before(today) || e.date.After(horizon) {
				continue
			}
			upcoming = append(upcoming, UpcomingReminder{
				ClientName:    c.Name,
				Kind:          e.kind,
				Date:          e.date.Format(model.DateLayout),
				Time:          e.at,
				PlanType:      c.PlanType,
				Value:         c.Value,
				Phone:         c.Phone,
				PlanStatus:    c.Status(now),
				DaysUntil:     daysBetween(today, e.date),
				WillSend:      c.ShouldSendReminder(now),
				PaymentStatus: c.PaymentStatus,
			})
		}
	}

	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].DaysUntil < upcoming[j].DaysUntil })
	return upcoming
}

// Statistics aggregates queue state and the upcoming schedule for monitoring.
type Statistics struct {
	Queue         queue.StatusReport `json:"queue_status"`
	RecentSent    int                `json:"recent_sent"`
	RecentFailed  int                `json:"recent_failed"`
	RecentPending int                `json:"recent_pending"`
	RecentTotal   int                `json:"recent_total"`
	UpcomingCount int                `json:"upcoming_count"`
	UpcomingToday int                `json:"upcoming_today"`
	Upcoming3Days int                `json:"upcoming_3days"`
}

func (o *Orchestrator) Statistics(ctx context.Context) Statistics {
	recent := o.queue.Recent(100)

	stats := Statistics{
		Queue:       o.queue.Status(),
		RecentTotal: len(recent),
	}
	for _, m := range recent {
		switch model.Status(m.Status) {
		case model.Sent:
			stats.RecentSent++
		case model.Failed:
			stats.RecentFailed++
		case model.Pending:
			stats.RecentPending++
		}
	}

	for _, u := range o.UpcomingReminders(ctx) {
		stats.UpcomingCount++
		if u.DaysUntil == 0 {
			stats.UpcomingToday++
		}
		if u.DaysUntil <= 3 {
			stats.Upcoming3Days++
		}
	}
	return stats
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Round(24*time.Hour) / (24 * time.Hour))
}
