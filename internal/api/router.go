package api

import "net/http"

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)

	mux.HandleFunc("GET /v1/queue/status", h.QueueStatus)
	mux.HandleFunc("GET /v1/channel/status", h.ChannelStatus)
	mux.HandleFunc("POST /v1/channel/reconnect", h.ReconnectChannel)
	mux.HandleFunc("GET /v1/messages/recent", h.RecentMessages)
	mux.HandleFunc("DELETE /v1/messages/failed", h.ClearFailed)

	mux.HandleFunc("POST /v1/reminders/setup", h.SetupReminders)
	mux.HandleFunc("POST /v1/reminders/force", h.ForceSend)
	mux.HandleFunc("GET /v1/reminders/upcoming", h.UpcomingReminders)
	mux.HandleFunc("GET /v1/reminders/stats", h.Statistics)

	mux.HandleFunc("DELETE /v1/clients/{id}/messages", h.CancelClientMessages)
	mux.HandleFunc("GET /v1/clients/{id}/last-sent", h.LastSent)
	mux.HandleFunc("POST /v1/clients/{id}/pause", h.PauseClient)
	mux.HandleFunc("POST /v1/clients/{id}/resume", h.ResumeClient)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("plan-reminder"))
	})

	return mux
}
