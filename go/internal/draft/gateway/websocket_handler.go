package gateway

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kestrelcg/draftroom/go/internal/models"
	"github.com/kestrelcg/draftroom/go/internal/rooms"
)

// RoomResolver resolves room codes to rooms for WebSocket subscriptions.
type RoomResolver interface {
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
}

// WebSocketHandler handles WebSocket upgrade requests for room connections
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	resolver          RoomResolver
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, resolver RoomResolver) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		resolver:          resolver,
	}
}

// HandleRoomConnection handles WebSocket connections for a specific room
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "code is required", http.StatusBadRequest)
		return
	}

	room, err := h.resolver.GetRoomByCode(r.Context(), code)
	if err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	// Token is optional: spectators subscribe without one.
	var token *uuid.UUID
	if tokenStr := r.URL.Query().Get("token"); tokenStr != "" {
		parsed, err := uuid.Parse(tokenStr)
		if err != nil {
			http.Error(w, "invalid token format", http.StatusBadRequest)
			return
		}
		token = &parsed
	}
	role := rooms.ResolveRole(room, token)

	if err := h.connectionManager.UpgradeConnection(w, r, string(role), room.ID); err != nil {
		log.Error().
			Err(err).
			Str("room_id", room.ID.String()).
			Str("code", code).
			Str("role", string(role)).
			Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	stats := h.connectionManager.GetConnectionStats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	w.Write([]byte("{"))
	w.Write([]byte("\"total_connections\":" + strconv.Itoa(stats["total_connections"].(int)) + ","))
	w.Write([]byte("\"active_rooms\":" + strconv.Itoa(stats["active_rooms"].(int))))
	w.Write([]byte("}"))
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/room", h.HandleRoomConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
