package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"collab-server/internal/database"
	"collab-server/internal/models"
	"collab-server/internal/store"
	"collab-server/pkg/logger"
)

// ErrValidation marks malformed payloads. The offending event is dropped
// before any state mutation; peers never see it.
var ErrValidation = errors.New("validation error")

// Gateway owns the event semantics of the collaboration socket: it updates
// the Room State Store on mutations and relays events to room peers. It is a
// relay plus cache, not a conflict resolver.
type Gateway struct {
	hub       *Hub
	store     *store.Service
	snapshots database.SnapshotRepository
}

func New(hub *Hub, stateStore *store.Service, snapshots database.SnapshotRepository) *Gateway {
	return &Gateway{
		hub:       hub,
		store:     stateStore,
		snapshots: snapshots,
	}
}

func (g *Gateway) Hub() *Hub {
	return g.hub
}

// HandleConnect greets the freshly upgraded connection.
func (g *Gateway) HandleConnect(c *Client) {
	env, err := models.NewEnvelope(models.EventWelcome, models.WelcomePayload{
		SocketID: c.socketID,
		Time:     time.Now().Format(time.RFC3339),
	})
	if err != nil {
		logger.Error("Error building welcome event: %v", err)
		return
	}
	c.Send(env)
}

// HandleEvent decodes one inbound frame and dispatches it. Store failures are
// logged and swallowed: the relay still runs so peers stay live, and the
// hydrate-on-join path repairs divergence later.
func (g *Gateway) HandleEvent(c *Client, raw []byte) error {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: malformed envelope: %v", ErrValidation, err)
	}

	ctx := context.Background()

	switch env.Event {
	case models.EventJoinRoom:
		return g.onJoinRoom(c, env.Data)

	case models.EventUserJoin:
		return g.onUserJoin(ctx, c, env.Data)

	case models.EventUserInfoResponse:
		return g.onUserInfoResponse(c, env.Data)

	case models.EventModelMoved:
		var p models.ModelMovedPayload
		if err := decode(env.Event, env.Data, &p); err != nil {
			return err
		}
		if p.ModelID == "" {
			return fmt.Errorf("%w: %s requires modelId", ErrValidation, env.Event)
		}
		return g.applyMutation(c, env.Event, raw, func() error {
			_, err := g.store.UpsertModel(ctx, c.roomID, models.ModelPatch{ID: p.ModelID, Position: &p.Position})
			return err
		})

	case models.EventModelRotated:
		var p models.ModelRotatedPayload
		if err := decode(env.Event, env.Data, &p); err != nil {
			return err
		}
		if p.ModelID == "" {
			return fmt.Errorf("%w: %s requires modelId", ErrValidation, env.Event)
		}
		return g.applyMutation(c, env.Event, raw, func() error {
			_, err := g.store.UpsertModel(ctx, c.roomID, models.ModelPatch{ID: p.ModelID, Rotation: &p.Rotation})
			return err
		})

	case models.EventModelScaled:
		var p models.ModelScaledPayload
		if err := decode(env.Event, env.Data, &p); err != nil {
			return err
		}
		if p.ModelID == "" {
			return fmt.Errorf("%w: %s requires modelId", ErrValidation, env.Event)
		}
		return g.applyMutation(c, env.Event, raw, func() error {
			_, err := g.store.UpsertModel(ctx, c.roomID, models.ModelPatch{ID: p.ModelID, Scale: &p.Scale})
			return err
		})

	case models.EventModelAdded, models.EventModelAddedWithID:
		var p models.ModelAddedPayload
		if err := decode(env.Event, env.Data, &p); err != nil {
			return err
		}
		if p.ModelData.ID == "" {
			return fmt.Errorf("%w: %s requires modelData.id", ErrValidation, env.Event)
		}
		return g.applyMutation(c, env.Event, raw, func() error {
			_, err := g.store.UpsertModel(ctx, c.roomID, models.PatchFromModel(p.ModelData))
			return err
		})

	case models.EventModelRemoved:
		var p models.ModelRemovedPayload
		if err := decode(env.Event, env.Data, &p); err != nil {
			return err
		}
		if p.ModelID == "" {
			return fmt.Errorf("%w: %s requires modelId", ErrValidation, env.Event)
		}
		return g.applyMutation(c, env.Event, raw, func() error {
			_, err := g.store.RemoveModel(ctx, c.roomID, p.ModelID)
			return err
		})

	case models.EventWallAdded, models.EventWallAddedWithID:
		var p models.WallAddedPayload
		if err := decode(env.Event, env.Data, &p); err != nil {
			return err
		}
		if p.WallData.ID == "" {
			return fmt.Errorf("%w: %s requires wallData.id", ErrValidation, env.Event)
		}
		return g.applyMutation(c, env.Event, raw, func() error {
			_, err := g.store.UpsertWall(ctx, c.roomID, models.PatchFromWall(p.WallData))
			return err
		})

	case models.EventWallUpdated:
		var p models.WallUpdatedPayload
		if err := decode(env.Event, env.Data, &p); err != nil {
			return err
		}
		if p.WallID == "" {
			return fmt.Errorf("%w: %s requires wallId", ErrValidation, env.Event)
		}
		return g.applyMutation(c, env.Event, raw, func() error {
			patch := models.WallPatch{ID: p.WallID, Position: p.Position, Rotation: p.Rotation, Dimensions: p.Dimensions}
			_, err := g.store.UpsertWall(ctx, c.roomID, patch)
			return err
		})

	case models.EventWallRemoved:
		var p models.WallRemovedPayload
		if err := decode(env.Event, env.Data, &p); err != nil {
			return err
		}
		if p.WallID == "" {
			return fmt.Errorf("%w: %s requires wallId", ErrValidation, env.Event)
		}
		return g.applyMutation(c, env.Event, raw, func() error {
			_, err := g.store.RemoveWall(ctx, c.roomID, p.WallID)
			return err
		})

	case models.EventModelSelected:
		var p models.SelectionPayload
		if err := decode(env.Event, env.Data, &p); err != nil {
			return err
		}
		return g.applyMutation(c, env.Event, raw, func() error {
			_, err := g.store.UpsertPresence(ctx, c.roomID, p.UserID, models.PresencePatch{SelectedModelID: &p.ModelID})
			return err
		})

	case models.EventModelDeselected:
		var p models.SelectionPayload
		if err := decode(env.Event, env.Data, &p); err != nil {
			return err
		}
		none := ""
		return g.applyMutation(c, env.Event, raw, func() error {
			_, err := g.store.UpsertPresence(ctx, c.roomID, p.UserID, models.PresencePatch{SelectedModelID: &none})
			return err
		})

	case models.EventUserLeft, models.EventChatMessage:
		// Relay only. Presence cleanup belongs to the disconnect path, which
		// must not assume a cooperating user-left ever arrived.
		if c.roomID == "" {
			return fmt.Errorf("%w: %s before join-room", ErrValidation, env.Event)
		}
		g.hub.Broadcast <- &Message{RoomID: c.roomID, Data: raw, Sender: c}
		return nil

	default:
		return fmt.Errorf("%w: unknown event %q", ErrValidation, env.Event)
	}
}

func (g *Gateway) onJoinRoom(c *Client, data json.RawMessage) error {
	var p models.JoinRoomPayload
	// The original client sends the roomId either bare or wrapped.
	if err := json.Unmarshal(data, &p); err != nil {
		if err := json.Unmarshal(data, &p.RoomID); err != nil {
			return fmt.Errorf("%w: malformed join-room payload", ErrValidation)
		}
	}
	if p.RoomID == "" {
		return fmt.Errorf("%w: roomId is required", ErrValidation)
	}

	g.hub.JoinRoom(c, p.RoomID)

	// Ask existing members to self-report so the joiner learns live peer
	// identity without a server-side registry.
	req, err := models.NewEnvelope(models.EventRequestUserList, models.RequestUserListPayload{NewUserID: c.socketID})
	if err != nil {
		return err
	}
	reqData, err := req.Encode()
	if err != nil {
		return err
	}
	g.hub.Broadcast <- &Message{RoomID: p.RoomID, Data: reqData, Sender: c}

	ack, err := models.NewEnvelope(models.EventJoinedRoom, models.JoinedRoomPayload{RoomID: p.RoomID, UserID: c.authUserID})
	if err != nil {
		return err
	}
	c.Send(ack)

	logger.Info("User %s joined collaboration room %s", c.authUserID, p.RoomID)
	return nil
}

func (g *Gateway) onUserJoin(ctx context.Context, c *Client, data json.RawMessage) error {
	var p models.UserJoinPayload
	if err := decode(models.EventUserJoin, data, &p); err != nil {
		return err
	}
	if p.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrValidation)
	}
	if c.roomID == "" {
		return fmt.Errorf("%w: user-join before join-room", ErrValidation)
	}

	// Recorded once; the disconnect path depends on it.
	c.identity = &identity{userID: p.UserID, userData: p.UserData}

	state := g.hydrate(ctx, c.roomID)

	newState, err := g.store.UpsertPresence(ctx, c.roomID, p.UserID, models.PresenceFromUserData(p.UserData))
	if err != nil {
		logger.Error("Error updating presence for user %s in room %s: %v", p.UserID, c.roomID, err)
	} else {
		state = newState
	}

	if state == nil {
		state = models.NewRoomState()
	}

	initial, err := models.NewEnvelope(models.EventInitialRoomState, models.InitialRoomStatePayload{
		Models:         state.Models,
		Walls:          state.Walls,
		ConnectedUsers: presenceEntries(state.ConnectedUsers),
		Version:        state.Version,
	})
	if err != nil {
		return err
	}
	c.Send(initial)

	relay, err := models.NewEnvelope(models.EventUserJoin, p)
	if err != nil {
		return err
	}
	relayData, err := relay.Encode()
	if err != nil {
		return err
	}
	g.hub.Broadcast <- &Message{RoomID: c.roomID, Data: relayData, Sender: c}

	logger.Info("User %s (%s) joined room %s", p.UserID, p.UserData.Name, c.roomID)
	return nil
}

func (g *Gateway) onUserInfoResponse(c *Client, data json.RawMessage) error {
	var p models.UserInfoResponsePayload
	if err := decode(models.EventUserInfoResponse, data, &p); err != nil {
		return err
	}
	if p.TargetSocketID == "" {
		return fmt.Errorf("%w: targetSocketId is required", ErrValidation)
	}

	forward, err := models.NewEnvelope(models.EventUserInfoResponse, models.UserInfoResponsePayload{
		UserID:   p.UserID,
		UserData: p.UserData,
	})
	if err != nil {
		return err
	}
	forwardData, err := forward.Encode()
	if err != nil {
		return err
	}

	if !g.hub.SendToSocket(p.TargetSocketID, forwardData) {
		logger.Debug("Dropped user-info-response for unknown socket %s", p.TargetSocketID)
	}
	return nil
}

// HandleDisconnect runs for every teardown, graceful or not. Identity comes
// from the connection's own metadata because no payload is guaranteed.
func (g *Gateway) HandleDisconnect(c *Client) {
	if c.roomID == "" || c.identity == nil {
		return
	}

	ctx := context.Background()

	state, err := g.store.RemovePresence(ctx, c.roomID, c.identity.userID)
	if err != nil {
		logger.Error("Error removing presence for user %s in room %s: %v", c.identity.userID, c.roomID, err)
	}

	left, envErr := models.NewEnvelope(models.EventUserLeft, models.UserLeftPayload{
		UserID:   c.identity.userID,
		UserData: &c.identity.userData,
	})
	if envErr == nil {
		if data, encErr := left.Encode(); encErr == nil {
			g.hub.Broadcast <- &Message{RoomID: c.roomID, Data: data, Sender: c}
		}
	}

	if err == nil && state != nil && len(state.ConnectedUsers) == 0 {
		if err := g.store.Clear(ctx, c.roomID); err != nil {
			logger.Error("Error clearing empty room %s: %v", c.roomID, err)
		} else {
			logger.Info("Room %s state cleared (last user left)", c.roomID)
		}
	}

	logger.Info("User %s disconnected from room %s", c.identity.userID, c.roomID)
}

// hydrate seeds the cache from the durable snapshot when the room is cold.
// Returns the current state, or nil when both the cache and the durable read
// failed; callers fall back to an empty state.
func (g *Gateway) hydrate(ctx context.Context, roomID string) *models.RoomState {
	state, err := g.store.Get(ctx, roomID)
	if err != nil {
		logger.Error("Error reading room state for %s: %v", roomID, err)
		return nil
	}
	if state != nil {
		return state
	}

	snapshot, err := g.snapshots.LoadRoomSnapshot(ctx, roomID)
	if err != nil {
		logger.Error("Error loading durable snapshot for room %s: %v", roomID, err)
		snapshot = &models.RoomSnapshot{RoomID: roomID}
	}

	state, err = g.store.Initialize(ctx, roomID, snapshot.Models, snapshot.Walls)
	if err != nil {
		logger.Error("Error initializing room %s: %v", roomID, err)
		return nil
	}

	logger.Info("Room %s hydrated with %d models and %d walls", roomID, len(snapshot.Models), len(snapshot.Walls))
	return state
}

// applyMutation updates the store and relays the raw event verbatim to every
// other socket in the room. Store failures do not stop the relay; mutations
// before join-room are validation errors.
func (g *Gateway) applyMutation(c *Client, kind models.EventKind, raw []byte, update func() error) error {
	if c.roomID == "" {
		return fmt.Errorf("%w: %s before join-room", ErrValidation, kind)
	}
	if err := update(); err != nil {
		logger.Error("Error updating room state for %s: %v", c.roomID, err)
	}
	g.hub.Broadcast <- &Message{RoomID: c.roomID, Data: raw, Sender: c}
	return nil
}

func decode(kind models.EventKind, data json.RawMessage, out interface{}) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: malformed %s payload: %v", ErrValidation, kind, err)
	}
	return nil
}

func presenceEntries(users map[string]models.Presence) []models.PresenceEntry {
	entries := make([]models.PresenceEntry, 0, len(users))
	for id, data := range users {
		entries = append(entries, models.PresenceEntry{UserID: id, Data: data})
	}
	return entries
}
