package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
)

// Handler exposes the hub over HTTP: the websocket upgrade plus two
// read-only JSON endpoints for the SPA.
type Handler struct {
	hub        *Hub
	upgrader   websocket.Upgrader
	sendBuffer int
	logger     *slog.Logger
}

// NewHandler builds the upgrade handler. An empty origins list accepts any origin.
func NewHandler(hub *Hub, allowedOrigins []string, sendBuffer int) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		sendBuffer: sendBuffer,
		logger:     hub.logger,
	}
}

func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(h.hub, conn, h.sendBuffer)
	// The request context ends with this handler; the connection outlives it.
	ctx := context.WithoutCancel(r.Context())

	go client.WritePump()
	h.hub.Connect(ctx, client)
	go client.ReadPump(ctx)
}

// GetHistory serves the same oldest-first history a new connection receives.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.hub.History(r.Context())
	if err != nil {
		h.logger.Error("History unavailable", "error", err)
		http.Error(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.hub.stats.Compute(r.Context())
	if err != nil {
		h.logger.Error("Stats unavailable", "error", err)
		http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totalMessages": stats.TotalMessages,
		"uniquePosters": stats.UniquePosters,
		"clients":       h.hub.registry.Count(),
	})
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
