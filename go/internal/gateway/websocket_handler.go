package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler serves /ws/session?token=… and /ws/stats.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	resolver          TokenResolver
}

func NewWebSocketHandler(cm *ConnectionManager, resolver TokenResolver) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		resolver:          resolver,
	}
}

func (h *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}

	sessionID, role, err := h.resolver.Resolve(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAuth):
			http.Error(w, "unknown token", http.StatusUnauthorized)
		case errors.Is(err, models.ErrSessionInactive):
			http.Error(w, "session inactive", http.StatusForbidden)
		default:
			log.Error().Err(err).Msg("failed to resolve websocket token")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	// Upgrade writes its own error response on failure.
	if err := h.connectionManager.UpgradeConnection(w, r, sessionID, role); err != nil {
		log.Error().
			Err(err).
			Str("session_id", sessionID).
			Msg("failed to upgrade WebSocket connection")
	}
}

func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/session", h.HandleSessionConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
