package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesQueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_messages_queued_total",
			Help: "Total messages accepted into the queue",
		},
	)

	MessagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_messages_sent_total",
			Help: "Total messages delivered successfully",
		},
	)

	MessagesFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_messages_failed_total",
			Help: "Total messages that exhausted their retries",
		},
	)

	MessagesRetried = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_messages_retried_total",
			Help: "Total retry attempts scheduled after a failed send",
		},
	)

	MessagesCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_messages_cancelled_total",
			Help: "Total pending messages cancelled before delivery",
		},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reminder_queue_depth",
			Help: "Messages currently waiting in the pending queue",
		},
	)

	JobsScheduled = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reminder_jobs_scheduled",
			Help: "Timer jobs currently registered with the job runner",
		},
	)
)

func Init() {
	prometheus.MustRegister(
		MessagesQueued,
		MessagesSent,
		MessagesFailed,
		MessagesRetried,
		MessagesCancelled,
		QueueDepth,
		JobsScheduled,
	)
}
