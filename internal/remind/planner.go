// Package remind computes when reminder messages must fire and turns that
// plan into timed jobs feeding the message queue.
package remind

import (
	"time"

	"go.uber.org/zap"

	"planreminder/internal/model"
)

// Group holds the clients sharing one fire date, split by reminder kind.
type Group struct {
	ThreeDays []model.Client
	Payment   []model.Client
}

// GroupByReminderDate maps fire dates (model.DateLayout keys) to the clients
// due that day. Every client contributes two candidates: expiration minus
// three days and the expiration date itself. Clients that should currently be
// skipped are still planned; the business check runs at send time so a
// payment-status flip never requires a re-plan. A client with an unparseable
// expiration date is dropped from the plan, not the whole batch.
func GroupByReminderDate(clients []model.Client, loc *time.Location, log *zap.Logger) map[string]*Group {
	if log == nil {
		log = zap.NewNop()
	}
	grouped := make(map[string]*Group)

	for _, c := range clients {
		exp, err := c.ExpirationDate(loc)
		if err != nil {
			log.Error("skipping client in plan", zap.String("client", c.Name), zap.Error(err))
			continue
		}
		threeDays := exp.AddDate(0, 0, -3)

		g := groupFor(grouped, threeDays)
		g.ThreeDays = append(g.ThreeDays, c)

		g = groupFor(grouped, exp)
		g.Payment = append(g.Payment, c)
	}
	return grouped
}

func groupFor(grouped map[string]*Group, date time.Time) *Group {
	key := date.Format(model.DateLayout)
	g, ok := grouped[key]
	if !ok {
		g = &Group{}
		grouped[key] = g
	}
	return g
}
