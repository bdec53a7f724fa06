package handlers

import (
	"encoding/json"
	"net/http"

	"collab-server/internal/store"
	"collab-server/pkg/logger"
)

type RoomHandlers struct {
	store *store.Service
}

func NewRoomHandlers(stateStore *store.Service) *RoomHandlers {
	return &RoomHandlers{store: stateStore}
}

func (h *RoomHandlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ActiveRooms lists rooms with live cached state, feeding the room-list view.
func (h *RoomHandlers) ActiveRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.store.ActiveRooms(r.Context())
	if err != nil {
		logger.Error("Error listing active rooms: %v", err)
		http.Error(w, "error listing rooms", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"rooms": rooms,
		"count": len(rooms),
	})
}
