// Package queue implements the paced, retrying delivery queue behind every
// outgoing reminder. A single background worker drains the pending queue so
// the minimum gap between consecutive sends never needs cross-goroutine
// coordination.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"planreminder/internal/metrics"
	"planreminder/internal/model"
	"planreminder/internal/validate"
)

// Sender is the delivery channel contract. Connected is consulted before
// every attempt; a disconnected channel that cannot be brought back counts as
// a failed attempt and feeds the retry path.
type Sender interface {
	Connected() bool
	Send(ctx context.Context, phone, body string) error
}

// Reconnecter is implemented by senders that can probe a lost channel and
// restore it. The worker gives it one chance before counting a disconnected
// skip as a failed attempt.
type Reconnecter interface {
	Reconnect(ctx context.Context) error
}

// Callback observes a message reaching a terminal sent/failed state for its
// kind. ok is true on successful delivery.
type Callback func(msg model.QueuedMessage, ok bool)

// ErrNotConnected marks a send attempted while the delivery channel was down.
var ErrNotConnected = errors.New("delivery channel not connected")

type Stats struct {
	TotalSent    int64      `json:"total_sent"`
	TotalFailed  int64      `json:"total_failed"`
	TotalRetries int64      `json:"total_retries"`
	LastSent     *time.Time `json:"last_sent,omitempty"`
	QueueSize    int        `json:"queue_size"`
}

type StatusReport struct {
	Processing     bool  `json:"processing"`
	QueueSize      int   `json:"queue_size"`
	RetryQueueSize int   `json:"retry_queue_size"`
	HistorySize    int   `json:"history_size"`
	FailedCount    int   `json:"failed_count"`
	Stats          Stats `json:"stats"`
}

// MessageView is the monitoring projection of a queued message.
type MessageView struct {
	ID           string     `json:"id"`
	ClientName   string     `json:"client_name"`
	Phone        string     `json:"phone"`
	Kind         model.Kind `json:"message_type"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	CreatedAt    time.Time  `json:"created_at"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	RetryCount   int        `json:"retry_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

type Options struct {
	// DelayBetweenMessages is the pacing floor between consecutive
	// successful sends. Zero means the 60s default.
	DelayBetweenMessages time.Duration
	// MaxQueueSize bounds the pending queue; Add rejects beyond it.
	MaxQueueSize int
	// MaxRetries is the default per-message retry budget.
	MaxRetries int
	// RetryBaseDelay and RetryMaxDelay shape the exponential backoff
	// min(RetryMaxDelay, RetryBaseDelay * 2^retryCount).
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// PollInterval bounds how long the worker blocks waiting for work, and
	// therefore how long a due retry can sit unpromoted.
	PollInterval time.Duration
	// FaultCooldown is how long the worker sleeps after an unexpected fault.
	FaultCooldown time.Duration
	// HistoryLimit caps the terminal/retry transition log.
	HistoryLimit int
	// FailedLimit caps the informational failed-message list.
	FailedLimit int
	// ManualStart disables the lazy worker start in Add; the owner drives
	// the lifecycle through Start and Stop alone.
	ManualStart bool
}

func (o Options) withDefaults() Options {
	if o.DelayBetweenMessages <= 0 {
		o.DelayBetweenMessages = 60 * time.Second
	}
	if o.MaxQueueSize <= 0 {
		o.MaxQueueSize = 1000
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = 60 * time.Second
	}
	if o.RetryMaxDelay <= 0 {
		o.RetryMaxDelay = 300 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.FaultCooldown <= 0 {
		o.FaultCooldown = 5 * time.Second
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 1000
	}
	if o.FailedLimit <= 0 {
		o.FailedLimit = 200
	}
	return o
}

// Queue is safe for concurrent use; all exported methods may be called while
// the worker is running. The delivery call itself never holds the lock.
type Queue struct {
	sender Sender
	log    *zap.Logger
	opts   Options
	now    func() time.Time

	mu        sync.Mutex
	pending   []*model.QueuedMessage
	retrying  []*model.QueuedMessage
	history   []*model.QueuedMessage
	failed    []*model.QueuedMessage
	callbacks map[model.Kind]Callback
	stats     Stats

	notify chan struct{}

	running atomic.Bool
	lifeMu  sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(sender Sender, log *zap.Logger, opts Options) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		sender:    sender,
		log:       log,
		opts:      opts.withDefaults(),
		now:       time.Now,
		callbacks: make(map[model.Kind]Callback),
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// RetryDelay computes the backoff before attempt retryCount is retried.
func (q *Queue) RetryDelay(retryCount int) time.Duration {
	d := q.opts.RetryBaseDelay << uint(retryCount)
	if d <= 0 || d > q.opts.RetryMaxDelay {
		return q.opts.RetryMaxDelay
	}
	return d
}

// Add validates and enqueues a message, lazily starting the worker. It
// returns false and leaves the queue untouched when validation fails or the
// queue is full.
func (q *Queue) Add(msg *model.QueuedMessage) bool {
	if msg == nil {
		return false
	}
	if msg.Phone == "" || msg.Body == "" || msg.ClientID == "" {
		msg.ErrorMessage = "missing required fields (phone, body, client_id)"
		q.log.Error("rejecting message", zap.String("client", msg.ClientName), zap.String("reason", msg.ErrorMessage))
		return false
	}
	phone, err := validate.NormalizePhone(msg.Phone)
	if err != nil {
		msg.ErrorMessage = err.Error()
		q.log.Error("rejecting message", zap.String("client", msg.ClientName), zap.Error(err))
		return false
	}
	msg.Phone = phone
	if err := validate.Body(msg.Body); err != nil {
		msg.ErrorMessage = err.Error()
		q.log.Error("rejecting message", zap.String("client", msg.ClientName), zap.Error(err))
		return false
	}

	now := q.now()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	if msg.ScheduledTime.IsZero() {
		msg.ScheduledTime = now
	}
	if msg.MaxRetries <= 0 {
		msg.MaxRetries = q.opts.MaxRetries
	}
	if msg.Priority == 0 {
		msg.Priority = model.PriorityNormal
	}
	msg.Status = model.Pending

	q.mu.Lock()
	if len(q.pending) >= q.opts.MaxQueueSize {
		q.mu.Unlock()
		q.log.Error("queue is full, dropping message",
			zap.Int("max", q.opts.MaxQueueSize),
			zap.String("client", msg.ClientName),
		)
		return false
	}
	q.pending = append(q.pending, msg)
	q.stats.QueueSize = len(q.pending)
	depth := len(q.pending)
	q.mu.Unlock()

	metrics.MessagesQueued.Inc()
	metrics.QueueDepth.Set(float64(depth))

	q.log.Info("message queued",
		zap.String("client", msg.ClientName),
		zap.String("phone", msg.Phone),
		zap.String("kind", string(msg.Kind)),
		zap.String("priority", msg.Priority.String()),
	)

	q.wake()
	if !q.opts.ManualStart && !q.running.Load() {
		q.Start()
	}
	return true
}

// OnResult registers the terminal-state callback for a reminder kind,
// replacing any previous one.
func (q *Queue) OnResult(kind model.Kind, cb Callback) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.callbacks[kind] = cb
}

// Start launches the background worker. It returns false when already running.
func (q *Queue) Start() bool {
	q.lifeMu.Lock()
	defer q.lifeMu.Unlock()

	if q.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.done = make(chan struct{})
	q.running.Store(true)

	go func() {
		defer close(q.done)
		q.log.Info("message queue worker started")
		q.run(ctx)
		q.log.Info("message queue worker stopped")
	}()

	return true
}

// Stop shuts the worker down and waits for the in-flight iteration to finish.
func (q *Queue) Stop() bool {
	q.lifeMu.Lock()
	defer q.lifeMu.Unlock()

	if !q.running.Load() {
		return false
	}

	q.cancel()
	<-q.done
	q.running.Store(false)
	return true
}

func (q *Queue) Running() bool {
	return q.running.Load()
}

func (q *Queue) run(ctx context.Context) {
	for ctx.Err() == nil {
		q.step(ctx)
	}
}

// step executes one worker iteration. Unexpected faults are contained here so
// the loop never dies.
func (q *Queue) step(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("worker fault recovered", zap.Any("panic", r))
			sleepCtx(ctx, q.opts.FaultCooldown)
		}
	}()

	q.promoteDueRetries()

	msg, ok := q.next(ctx)
	if !ok {
		return
	}

	// Pacing floor: never send sooner than DelayBetweenMessages after the
	// previous successful send, regardless of backlog, priority, or worker
	// restarts.
	q.mu.Lock()
	last := q.stats.LastSent
	q.mu.Unlock()
	if last != nil {
		if since := q.now().Sub(*last); since < q.opts.DelayBetweenMessages {
			wait := q.opts.DelayBetweenMessages - since
			q.log.Info("pacing before next send", zap.Duration("wait", wait))
			if !sleepCtx(ctx, wait) {
				q.requeueFront(msg)
				return
			}
		}
	}

	if err := q.deliver(ctx, msg); err != nil {
		q.handleFailure(msg, err)
	} else {
		q.handleSuccess(msg)
	}

	q.appendHistory(msg)
}

// next blocks up to PollInterval for a pending message so due retries are
// promoted at least once a poll interval.
func (q *Queue) next(ctx context.Context) (*model.QueuedMessage, bool) {
	if m, ok := q.popPending(); ok {
		return m, true
	}

	timer := time.NewTimer(q.opts.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, false
	case <-q.notify:
		return q.popPending()
	case <-timer.C:
		return nil, false
	}
}

func (q *Queue) popPending() (*model.QueuedMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, false
	}
	m := q.pending[0]
	q.pending = q.pending[1:]
	q.stats.QueueSize = len(q.pending)
	metrics.QueueDepth.Set(float64(len(q.pending)))
	return m, true
}

func (q *Queue) requeueFront(msg *model.QueuedMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append([]*model.QueuedMessage{msg}, q.pending...)
	q.stats.QueueSize = len(q.pending)
}

func (q *Queue) promoteDueRetries() {
	now := q.now()

	q.mu.Lock()
	defer q.mu.Unlock()

	var parked []*model.QueuedMessage
	for _, m := range q.retrying {
		if !m.ScheduledTime.After(now) {
			m.Status = model.Pending
			q.pending = append(q.pending, m)
		} else {
			parked = append(parked, m)
		}
	}
	q.retrying = parked
	q.stats.QueueSize = len(q.pending)
}

func (q *Queue) deliver(ctx context.Context, msg *model.QueuedMessage) error {
	if !q.sender.Connected() {
		if rc, ok := q.sender.(Reconnecter); ok {
			if err := rc.Reconnect(ctx); err != nil {
				q.log.Warn("delivery channel reconnect failed", zap.Error(err))
			}
		}
	}
	if !q.sender.Connected() {
		msg.ErrorMessage = ErrNotConnected.Error()
		return ErrNotConnected
	}
	if err := q.sender.Send(ctx, msg.Phone, msg.Body); err != nil {
		msg.ErrorMessage = err.Error()
		return err
	}
	return nil
}

func (q *Queue) handleSuccess(msg *model.QueuedMessage) {
	now := q.now()
	msg.Status = model.Sent
	msg.SentAt = &now
	msg.ErrorMessage = ""

	q.mu.Lock()
	q.stats.TotalSent++
	q.stats.LastSent = &now
	cb := q.callbacks[msg.Kind]
	q.mu.Unlock()

	metrics.MessagesSent.Inc()
	q.log.Info("message sent",
		zap.String("client", msg.ClientName),
		zap.String("phone", msg.Phone),
		zap.String("kind", string(msg.Kind)),
	)

	q.invoke(cb, *msg, true)
}

func (q *Queue) handleFailure(msg *model.QueuedMessage, cause error) {
	if msg.RetryCount < msg.MaxRetries {
		msg.RetryCount++
		msg.Status = model.Retrying
		delay := q.RetryDelay(msg.RetryCount)
		msg.ScheduledTime = q.now().Add(delay)

		q.mu.Lock()
		q.retrying = append(q.retrying, msg)
		q.stats.TotalRetries++
		q.mu.Unlock()

		metrics.MessagesRetried.Inc()
		q.log.Warn("send failed, retry scheduled",
			zap.String("client", msg.ClientName),
			zap.Int("retry", msg.RetryCount),
			zap.Int("max_retries", msg.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(cause),
		)
		return
	}

	msg.Status = model.Failed

	q.mu.Lock()
	q.failed = append(q.failed, msg)
	if len(q.failed) > q.opts.FailedLimit {
		q.failed = q.failed[len(q.failed)-q.opts.FailedLimit:]
	}
	q.stats.TotalFailed++
	cb := q.callbacks[msg.Kind]
	q.mu.Unlock()

	metrics.MessagesFailed.Inc()
	q.log.Error("message failed permanently",
		zap.String("client", msg.ClientName),
		zap.Int("retries", msg.MaxRetries),
		zap.Error(cause),
	)

	q.invoke(cb, *msg, false)
}

func (q *Queue) invoke(cb Callback, msg model.QueuedMessage, ok bool) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("message callback panicked", zap.Any("panic", r))
		}
	}()
	cb(msg, ok)
}

func (q *Queue) appendHistory(msg *model.QueuedMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.appendHistoryLocked(msg)
}

func (q *Queue) appendHistoryLocked(msg *model.QueuedMessage) {
	q.history = append(q.history, msg)
	if len(q.history) > q.opts.HistoryLimit {
		q.history = q.history[len(q.history)-q.opts.HistoryLimit:]
	}
}

// CancelForClient drains the pending queue, cancels every message belonging
// to the client and requeues the rest preserving order. Messages parked for
// retry or already sent are not touched.
func (q *Queue) CancelForClient(clientID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.pending[:0]
	cancelled := 0
	for _, m := range q.pending {
		if m.ClientID == clientID {
			m.Status = model.Cancelled
			q.appendHistoryLocked(m)
			cancelled++
			continue
		}
		kept = append(kept, m)
	}
	q.pending = kept
	q.stats.QueueSize = len(q.pending)
	metrics.QueueDepth.Set(float64(len(q.pending)))

	if cancelled > 0 {
		metrics.MessagesCancelled.Add(float64(cancelled))
		q.log.Info("cancelled pending messages",
			zap.String("client_id", clientID),
			zap.Int("count", cancelled),
		)
	}
	return cancelled
}

// ClearFailed drops the informational failed-message list and returns how
// many entries were removed.
func (q *Queue) ClearFailed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.failed)
	q.failed = nil
	return n
}

func (q *Queue) Status() StatusReport {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.QueueSize = len(q.pending)
	return StatusReport{
		Processing:     q.running.Load(),
		QueueSize:      len(q.pending),
		RetryQueueSize: len(q.retrying),
		HistorySize:    len(q.history),
		FailedCount:    len(q.failed),
		Stats:          stats,
	}
}

// Recent returns up to limit history entries, newest first.
func (q *Queue) Recent(limit int) []MessageView {
	q.mu.Lock()
	defer q.mu.Unlock()

	hist := q.history
	if limit > 0 && len(hist) > limit {
		hist = hist[len(hist)-limit:]
	}

	out := make([]MessageView, 0, len(hist))
	for i := len(hist) - 1; i >= 0; i-- {
		m := hist[i]
		out = append(out, MessageView{
			ID:           m.ID,
			ClientName:   m.ClientName,
			Phone:        m.Phone,
			Kind:         m.Kind,
			Status:       string(m.Status),
			Priority:     m.Priority.String(),
			CreatedAt:    m.CreatedAt,
			SentAt:       m.SentAt,
			RetryCount:   m.RetryCount,
			ErrorMessage: m.ErrorMessage,
		})
	}
	return out
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
