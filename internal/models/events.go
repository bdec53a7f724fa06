package models

import (
	"encoding/json"
	"fmt"
)

// EventKind enumerates every event carried over the collaboration socket.
type EventKind string

const (
	// Connection lifecycle
	EventWelcome          EventKind = "welcome"
	EventJoinRoom         EventKind = "join-room"
	EventJoinedRoom       EventKind = "joined-room"
	EventRequestUserList  EventKind = "request-user-list"
	EventUserInfoResponse EventKind = "user-info-response"
	EventUserJoin         EventKind = "user-join"
	EventInitialRoomState EventKind = "initial-room-state"
	EventUserLeft         EventKind = "user-left"

	// Model mutations
	EventModelMoved       EventKind = "model-moved"
	EventModelRotated     EventKind = "model-rotated"
	EventModelScaled      EventKind = "model-scaled"
	EventModelAdded       EventKind = "model-added"
	EventModelAddedWithID EventKind = "model-added-with-id"
	EventModelRemoved     EventKind = "model-removed"

	// Wall mutations
	EventWallAdded       EventKind = "wall-added"
	EventWallAddedWithID EventKind = "wall-added-with-id"
	EventWallRemoved     EventKind = "wall-removed"
	EventWallUpdated     EventKind = "wall-updated"

	// Selection (soft-lock advisory)
	EventModelSelected   EventKind = "model-selected"
	EventModelDeselected EventKind = "model-deselected"

	// Chat relay
	EventChatMessage EventKind = "chat-message"
)

// Continuous reports whether the event carries a high-frequency gesture frame
// and should be throttled rather than emitted immediately.
func (k EventKind) Continuous() bool {
	switch k {
	case EventModelMoved, EventModelRotated, EventModelScaled, EventWallUpdated:
		return true
	}
	return false
}

// Envelope is the wire framing for every socket message.
type Envelope struct {
	Event EventKind       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(kind EventKind, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Envelope{Event: kind, Data: data}, nil
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

type WelcomePayload struct {
	SocketID string `json:"id"`
	Time     string `json:"time"`
}

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

type JoinedRoomPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type RequestUserListPayload struct {
	NewUserID string `json:"newUserId"`
}

type UserJoinPayload struct {
	UserID   string   `json:"userId"`
	UserData UserData `json:"userData"`
}

type UserInfoResponsePayload struct {
	UserID         string   `json:"userId"`
	UserData       UserData `json:"userData"`
	TargetSocketID string   `json:"targetSocketId,omitempty"`
}

// PresenceEntry marshals as a [userId, presence] pair so the snapshot matches
// the Map-entries shape clients already consume.
type PresenceEntry struct {
	UserID string
	Data   Presence
}

func (e PresenceEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{e.UserID, e.Data})
}

func (e *PresenceEntry) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("presence entry must be a [userId, data] pair: %w", err)
	}
	if err := json.Unmarshal(raw[0], &e.UserID); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &e.Data)
}

type InitialRoomStatePayload struct {
	Models         []Model         `json:"models"`
	Walls          []Wall          `json:"walls"`
	ConnectedUsers []PresenceEntry `json:"connectedUsers"`
	Version        uint64          `json:"version"`
}

type UserLeftPayload struct {
	UserID   string    `json:"userId"`
	UserData *UserData `json:"userData,omitempty"`
}

type ModelMovedPayload struct {
	UserID   string `json:"userId"`
	ModelID  string `json:"modelId"`
	Position Vec3   `json:"position"`
}

type ModelRotatedPayload struct {
	UserID   string `json:"userId"`
	ModelID  string `json:"modelId"`
	Rotation Vec3   `json:"rotation"`
}

type ModelScaledPayload struct {
	UserID  string `json:"userId"`
	ModelID string `json:"modelId"`
	Scale   Scale  `json:"scale"`
}

type ModelAddedPayload struct {
	UserID    string `json:"userId"`
	ModelData Model  `json:"modelData"`
}

type ModelRemovedPayload struct {
	UserID  string `json:"userId"`
	ModelID string `json:"modelId"`
}

type WallAddedPayload struct {
	UserID   string `json:"userId"`
	WallData Wall   `json:"wallData"`
}

type WallRemovedPayload struct {
	UserID string `json:"userId"`
	WallID string `json:"wallId"`
}

type WallUpdatedPayload struct {
	UserID     string      `json:"userId"`
	WallID     string      `json:"wallId"`
	Position   *Vec3       `json:"position,omitempty"`
	Rotation   *Vec3       `json:"rotation,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
}

type SelectionPayload struct {
	UserID  string `json:"userId"`
	ModelID string `json:"modelId,omitempty"`
}

type ChatMessagePayload struct {
	UserID  string `json:"userId"`
	Name    string `json:"name"`
	Message string `json:"message"`
}
