package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentOverdue PaymentStatus = "overdue"
)

type PlanStatus string

const (
	PlanActive   PlanStatus = "active"
	PlanExpiring PlanStatus = "expiring"
	PlanExpired  PlanStatus = "expired"
)

// DateLayout is the wire format for plan expiration dates.
const DateLayout = "2006-01-02"

type Client struct {
	ID                   string
	Name                 string
	Phone                string
	PlanType             string
	Value                float64
	PlanExpiration       string // DateLayout
	ReminderTime3Days    string // "HH:MM"
	ReminderTimePayment  string // "HH:MM"
	CustomMessage3Days   string
	CustomMessagePayment string
	PaymentStatus        PaymentStatus
	CreatedAt            time.Time
}

// ExpirationDate parses PlanExpiration in the location of today.
func (c Client) ExpirationDate(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, c.PlanExpiration, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("client %s: invalid plan expiration %q: %w", c.ID, c.PlanExpiration, err)
	}
	return t, nil
}

// DaysUntilExpiration returns the whole calendar days between today and the
// plan expiration date. Negative once the plan is past due. An unparseable
// expiration date counts as expiring today.
func (c Client) DaysUntilExpiration(today time.Time) int {
	exp, err := c.ExpirationDate(today.Location())
	if err != nil {
		return 0
	}
	return daysBetween(midnight(today), exp)
}

func (c Client) Status(today time.Time) PlanStatus {
	days := c.DaysUntilExpiration(today)
	switch {
	case days < 0:
		return PlanExpired
	case days <= 3:
		return PlanExpiring
	default:
		return PlanActive
	}
}

// ShouldSendReminder is the authoritative send-time business check: paid
// clients and clients whose plan already lapsed get no reminder.
func (c Client) ShouldSendReminder(today time.Time) bool {
	return c.PaymentStatus != PaymentPaid && c.Status(today) != PlanExpired
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func daysBetween(from, to time.Time) int {
	// Both are midnights in the same location; round covers DST shifts.
	return int(to.Sub(from).Round(24*time.Hour) / (24 * time.Hour))
}

// ParseClockTime parses an "HH:MM" reminder time. A blank value falls back to
// def so schedules survive clients created before the field existed.
func ParseClockTime(s, def string) (hour, minute int, err error) {
	if s == "" {
		s = def
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	hour, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	minute, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock time %q out of range", s)
	}
	return hour, minute, nil
}
