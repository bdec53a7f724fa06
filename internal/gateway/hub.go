package gateway

import (
	"sync"

	"collab-server/pkg/logger"
)

// Message is an outbound relay to every member of a room except the sender.
type Message struct {
	RoomID string
	Data   []byte
	Sender *Client
}

// Hub tracks connected sockets and room membership and relays messages.
// Membership changes and relays flow through the Run loop; targeted sends and
// reads go straight through the mutex.
type Hub struct {
	rooms   map[string]map[*Client]bool
	sockets map[string]*Client

	Broadcast  chan *Message
	Register   chan *Client
	Unregister chan *Client

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		sockets:    make(map[string]*Client),
		Broadcast:  make(chan *Message, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.sockets[client.socketID] = client
			h.mu.Unlock()
			logger.Debug("Socket %s connected", client.socketID)

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.sockets[client.socketID]; ok {
				delete(h.sockets, client.socketID)
				h.removeFromRoomLocked(client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.Broadcast:
			h.mu.RLock()
			h.relayLocked(message)
			h.mu.RUnlock()
		}
	}
}

// JoinRoom adds the client to a room's relay set. A client belongs to at most
// one room; rejoining moves it.
func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoomLocked(client)

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.roomID = roomID

	logger.Info("Socket %s joined room %s (total: %d)", client.socketID, roomID, len(h.rooms[roomID]))
}

// SendToSocket delivers directly to one connection, bypassing room relay.
// The read lock is held across the send: Unregister closes the channel under
// the write lock, so a lock-held sender can never hit a closed channel.
func (h *Hub) SendToSocket(socketID string, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.sockets[socketID]
	if !ok {
		return false
	}

	select {
	case client.send <- data:
		return true
	default:
		return false
	}
}

func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) relayLocked(message *Message) {
	clients, ok := h.rooms[message.RoomID]
	if !ok {
		return
	}
	for client := range clients {
		if client == message.Sender {
			continue
		}
		select {
		case client.send <- message.Data:
		default:
			// Slow consumer: drop the frame rather than stall the room.
			logger.Debug("Dropped frame for slow socket %s", client.socketID)
		}
	}
}

func (h *Hub) removeFromRoomLocked(client *Client) {
	if client.roomID == "" {
		return
	}
	if clients, ok := h.rooms[client.roomID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, client.roomID)
			logger.Info("Room %s channel closed (empty)", client.roomID)
		}
	}
}
