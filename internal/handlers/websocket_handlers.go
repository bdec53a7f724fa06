package handlers

import (
	"net/http"

	"collab-server/internal/auth"
	"collab-server/internal/gateway"
	"collab-server/pkg/logger"

	"github.com/gorilla/websocket"
)

type CollabHandlers struct {
	authService *auth.Service
	gw          *gateway.Gateway
	upgrader    websocket.Upgrader
}

func NewCollabHandlers(authService *auth.Service, gw *gateway.Gateway) *CollabHandlers {
	return &CollabHandlers{
		authService: authService,
		gw:          gw,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

// HandleCollab authenticates the handshake and upgrades to the collaboration
// socket. A bad token is rejected before any room state is touched.
func (h *CollabHandlers) HandleCollab(w http.ResponseWriter, r *http.Request) {
	tokenStr := auth.TokenFromRequest(r)
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	userID, err := h.authService.UserIDFromToken(tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	var responseHeader http.Header
	if auth.BearerSubprotocol(r) {
		responseHeader = http.Header{"Sec-WebSocket-Protocol": []string{"bearer"}}
	}

	conn, err := h.upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	client := gateway.NewClient(h.gw.Hub(), conn, userID)
	h.gw.Hub().Register <- client

	h.gw.HandleConnect(client)

	go client.WritePump()
	go client.ReadPump(h.gw)
}
