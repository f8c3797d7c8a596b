// Package delivery adapts the external messaging channel behind the queue's
// Sender contract.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Webhook delivers messages through an HTTP gateway. It tracks channel
// health: a run of consecutive failures marks the channel disconnected until
// Reconnect probes it back up. The gateway-side rate limit here is
// independent of the queue's pacing floor.
type Webhook struct {
	url       string
	healthURL string
	client    *http.Client
	limiter   *rate.Limiter
	log       *zap.Logger

	mu           sync.Mutex
	connected    bool
	failures     int
	maxFailures  int
	lastError    string
	lastAttempt  time.Time
	lastRemoteID string
}

type Option func(*Webhook)

// WithRateLimit caps outbound sends per minute on the channel side.
func WithRateLimit(perMinute int) Option {
	return func(w *Webhook) {
		if perMinute > 0 {
			w.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
		}
	}
}

// WithHealthURL sets the connectivity probe endpoint used by Reconnect.
func WithHealthURL(url string) Option {
	return func(w *Webhook) { w.healthURL = url }
}

func WithMaxFailures(n int) Option {
	return func(w *Webhook) {
		if n > 0 {
			w.maxFailures = n
		}
	}
}

func NewWebhook(url string, log *zap.Logger, opts ...Option) *Webhook {
	if log == nil {
		log = zap.NewNop()
	}
	w := &Webhook{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log:         log,
		connected:   true,
		maxFailures: 3,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type sendRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

type sendResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

// Connected reports whether the channel is believed healthy. The queue
// consults this before every attempt.
func (w *Webhook) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

// LastRemoteID returns the gateway message id of the most recent successful
// send.
func (w *Webhook) LastRemoteID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRemoteID
}

func (w *Webhook) Send(ctx context.Context, phone, body string) error {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	remoteID, err := w.post(ctx, phone, body)
	if err != nil {
		w.recordFailure(err)
		return err
	}
	w.recordSuccess(remoteID)
	return nil
}

func (w *Webhook) post(ctx context.Context, phone, body string) (string, error) {
	reqBody, err := json.Marshal(sendRequest{
		PhoneNumber: phone,
		Message:     body,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(raw))
	}

	var sr sendResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return "", fmt.Errorf("failed to decode json: %w body=%q", err, string(raw))
	}
	if sr.MessageID == "" {
		return "", fmt.Errorf("missing messageId in response body=%q", string(raw))
	}
	return sr.MessageID, nil
}

func (w *Webhook) recordFailure(cause error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.failures++
	w.lastError = cause.Error()
	w.lastAttempt = time.Now()
	if w.connected && w.failures >= w.maxFailures {
		w.connected = false
		w.log.Error("marking delivery channel disconnected",
			zap.Int("consecutive_failures", w.failures),
			zap.Error(cause),
		)
	}
}

func (w *Webhook) recordSuccess(remoteID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.failures = 0
	w.lastError = ""
	w.lastAttempt = time.Now()
	w.lastRemoteID = remoteID
	if !w.connected {
		w.connected = true
		w.log.Info("delivery channel reconnected")
	}
}

// Reconnect probes the gateway health endpoint with exponential backoff until
// it answers or the budget runs out, then flips the channel back to
// connected.
func (w *Webhook) Reconnect(ctx context.Context) error {
	if w.healthURL == "" {
		// No probe available; optimistically reset.
		w.mu.Lock()
		w.connected = true
		w.failures = 0
		w.mu.Unlock()
		return nil
	}

	probe := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.healthURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := w.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("health probe status %d", resp.StatusCode)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxElapsedTime = 2 * time.Minute

	if err := backoff.Retry(probe, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("gateway still unreachable: %w", err)
	}

	w.mu.Lock()
	w.connected = true
	w.failures = 0
	w.mu.Unlock()
	w.log.Info("delivery channel reconnected after probe")
	return nil
}

// Status describes channel health for the monitoring surface.
func (w *Webhook) Status() map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()

	status := map[string]any{
		"connected":            w.connected,
		"consecutive_failures": w.failures,
	}
	if w.lastError != "" {
		status["last_error"] = w.lastError
	}
	if !w.lastAttempt.IsZero() {
		status["last_attempt"] = w.lastAttempt
	}
	return status
}
