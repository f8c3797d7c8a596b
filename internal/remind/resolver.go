package remind

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"planreminder/internal/model"
)

// Generator produces a personalized message body for a client, best effort.
// Errors are non-fatal; the resolver falls through to the default templates.
type Generator interface {
	Generate(ctx context.Context, c model.Client, kind model.Kind) (string, error)
}

// reminderBody resolves the message text in priority order: the client's
// custom template, then the generator, then the hardcoded default.
func (o *Orchestrator) reminderBody(ctx context.Context, c model.Client, kind model.Kind) string {
	custom := ""
	switch kind {
	case model.KindThreeDays:
		custom = c.CustomMessage3Days
	case model.KindPayment:
		custom = c.CustomMessagePayment
	}
	if custom != "" {
		return FormatTemplate(custom, c, o.now().In(o.loc))
	}

	if o.generator != nil {
		body, err := o.generator.Generate(ctx, c, kind)
		if err != nil {
			o.log.Warn("message generation failed, using default template",
				zap.String("client", c.Name),
				zap.Error(err),
			)
		} else if strings.TrimSpace(body) != "" {
			return body
		}
	}

	return DefaultBody(c, kind)
}

// FormatTemplate substitutes the client placeholders a template may carry.
// Unknown placeholders pass through untouched.
func FormatTemplate(tpl string, c model.Client, today time.Time) string {
	paymentDay := 1
	if exp, err := c.ExpirationDate(today.Location()); err == nil {
		paymentDay = exp.Day()
	}
	return strings.NewReplacer(
		"{name}", c.Name,
		"{plan_type}", c.PlanType,
		"{value}", fmt.Sprintf("%.2f", c.Value),
		"{payment_day}", strconv.Itoa(paymentDay),
		"{plan_duration}", c.PlanExpiration,
		"{days_until_expiration}", strconv.Itoa(c.DaysUntilExpiration(today)),
	).Replace(tpl)
}

// DefaultBody is the last-resort message text per reminder kind.
func DefaultBody(c model.Client, kind model.Kind) string {
	switch kind {
	case model.KindThreeDays:
		return fmt.Sprintf("Hi %s! Your %s plan of $%.2f expires in 3 days. Don't forget to renew!", c.Name, c.PlanType, c.Value)
	case model.KindPayment:
		return fmt.Sprintf("Hi %s! Your %s plan of $%.2f is due today. Please complete the payment to keep the service active.", c.Name, c.PlanType, c.Value)
	default:
		return fmt.Sprintf("Hi %s! A reminder about your %s plan.", c.Name, c.PlanType)
	}
}
