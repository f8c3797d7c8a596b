package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"planreminder/internal/cache"
	"planreminder/internal/model"
	"planreminder/internal/queue"
	"planreminder/internal/remind"
)

// Channel exposes delivery-channel health and recovery to the API surface.
type Channel interface {
	Status() map[string]any
	Reconnect(ctx context.Context) error
}

type Handler struct {
	orch    *remind.Orchestrator
	queue   *queue.Queue
	channel Channel
	sentLog cache.SentLog
	log     *zap.Logger
}

// NewHandler builds the API surface. channel and sentLog are optional; the
// corresponding endpoints degrade gracefully when they are nil.
func NewHandler(orch *remind.Orchestrator, q *queue.Queue, channel Channel, sentLog cache.SentLog, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{orch: orch, queue: q, channel: channel, sentLog: sentLog, log: log}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queue.Status())
}

func (h *Handler) ChannelStatus(w http.ResponseWriter, r *http.Request) {
	if h.channel == nil {
		writeJSON(w, http.StatusOK, map[string]any{"connected": false})
		return
	}
	writeJSON(w, http.StatusOK, h.channel.Status())
}

// ReconnectChannel probes the delivery channel back up after it latched
// disconnected, then reports its health.
func (h *Handler) ReconnectChannel(w http.ResponseWriter, r *http.Request) {
	if h.channel == nil {
		http.Error(w, "delivery channel is not configured", http.StatusNotFound)
		return
	}
	if err := h.channel.Reconnect(r.Context()); err != nil {
		h.log.Error("channel reconnect failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, h.channel.Status())
}

// ClearFailed drops the informational failed-message list.
func (h *Handler) ClearFailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"cleared": h.queue.ClearFailed()})
}

func (h *Handler) RecentMessages(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	writeJSON(w, http.StatusOK, map[string]any{"items": h.queue.Recent(limit)})
}

func (h *Handler) SetupReminders(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.SetupReminders(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type forceSendRequest struct {
	ClientID string     `json:"client_id"`
	Kind     model.Kind `json:"kind"`
}

func (h *Handler) ForceSend(w http.ResponseWriter, r *http.Request) {
	var req forceSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ClientID == "" || !req.Kind.Valid() {
		http.Error(w, "client_id and a valid kind are required", http.StatusBadRequest)
		return
	}

	queued := h.orch.ForceSendReminder(req.ClientID, req.Kind)
	writeJSON(w, http.StatusOK, map[string]any{"queued": queued})
}

func (h *Handler) CancelClientMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "client id is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": h.queue.CancelForClient(id)})
}

func (h *Handler) PauseClient(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "client id is required", http.StatusBadRequest)
		return
	}
	cancelled, removed := h.orch.PauseClient(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"cancelled":    cancelled,
		"jobs_removed": removed,
	})
}

func (h *Handler) ResumeClient(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "client id is required", http.StatusBadRequest)
		return
	}
	if err := h.orch.ResumeClient(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// LastSent reports when each reminder kind was last delivered to a client,
// read from the sent log.
func (h *Handler) LastSent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "client id is required", http.StatusBadRequest)
		return
	}
	if h.sentLog == nil {
		http.Error(w, "sent log is not configured", http.StatusNotFound)
		return
	}

	items := make(map[string]*cache.SentRecord)
	for _, kind := range []model.Kind{model.KindThreeDays, model.KindPayment} {
		rec, err := h.sentLog.LastSent(r.Context(), id, kind)
		if err != nil {
			h.log.Error("sent log lookup failed", zap.String("client_id", id), zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if rec != nil {
			items[string(kind)] = rec
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) UpcomingReminders(w http.ResponseWriter, r *http.Request) {
	items := h.orch.UpcomingReminders(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.Statistics(r.Context()))
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
