package model

import "time"

type Status string

const (
	Pending   Status = "pending"
	Sent      Status = "sent"
	Failed    Status = "failed"
	Retrying  Status = "retrying"
	Cancelled Status = "cancelled"
)

// Terminal reports whether a message in this status will never be attempted again.
func (s Status) Terminal() bool {
	return s == Sent || s == Failed || s == Cancelled
}

type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// Kind is the reminder category a message belongs to.
type Kind string

const (
	KindThreeDays Kind = "3days"
	KindPayment   Kind = "payment"
	KindPromo     Kind = "promo"
	KindManual    Kind = "manual"
)

func (k Kind) Valid() bool {
	switch k {
	case KindThreeDays, KindPayment, KindPromo, KindManual:
		return true
	}
	return false
}

// QueuedMessage is one notification moving through the queue.
// ID is assigned at enqueue time and is unique per enqueue.
type QueuedMessage struct {
	ID            string
	Phone         string
	Body          string
	ClientID      string
	ClientName    string
	Kind          Kind
	Priority      Priority
	ScheduledTime time.Time
	MaxRetries    int
	RetryCount    int
	Status        Status
	CreatedAt     time.Time
	SentAt        *time.Time
	ErrorMessage  string
}
