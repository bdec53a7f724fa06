// Package mirror holds a client's local copy of room state. Local gestures
// mutate it optimistically; remote events apply idempotently via wholesale
// field replacement, so re-delivery converges to the same state.
package mirror

import (
	"encoding/json"
	"fmt"
	"sync"

	"collab-server/internal/models"
)

type Mirror struct {
	mu      sync.RWMutex
	selfID  string
	models  []models.Model
	walls   []models.Wall
	users   map[string]models.Presence
	version uint64
}

func New(selfID string) *Mirror {
	return &Mirror{
		selfID: selfID,
		models: []models.Model{},
		walls:  []models.Wall{},
		users:  make(map[string]models.Presence),
	}
}

// ApplySnapshot replaces the entire mirror with a server snapshot.
func (m *Mirror) ApplySnapshot(p models.InitialRoomStatePayload) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.models = append([]models.Model{}, p.Models...)
	m.walls = append([]models.Wall{}, p.Walls...)
	m.users = make(map[string]models.Presence, len(p.ConnectedUsers))
	for _, e := range p.ConnectedUsers {
		m.users[e.UserID] = e.Data
	}
	m.version = p.Version
}

func (m *Mirror) UpsertModel(patch models.ModelPatch) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.models {
		if m.models[i].ID == patch.ID {
			patch.Apply(&m.models[i])
			return
		}
	}
	var model models.Model
	patch.Apply(&model)
	m.models = append(m.models, model)
}

func (m *Mirror) RemoveModel(modelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.models[:0]
	for _, model := range m.models {
		if model.ID != modelID {
			kept = append(kept, model)
		}
	}
	m.models = kept
}

func (m *Mirror) UpsertWall(patch models.WallPatch) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.walls {
		if m.walls[i].ID == patch.ID {
			patch.Apply(&m.walls[i])
			return
		}
	}
	var wall models.Wall
	patch.Apply(&wall)
	m.walls = append(m.walls, wall)
}

func (m *Mirror) RemoveWall(wallID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.walls[:0]
	for _, wall := range m.walls {
		if wall.ID != wallID {
			kept = append(kept, wall)
		}
	}
	m.walls = kept
}

func (m *Mirror) SetPresence(userID string, patch models.PresencePatch) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.users[userID]
	entry.UserID = userID
	patch.Apply(&entry)
	m.users[userID] = entry
}

func (m *Mirror) RemovePresence(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
}

func (m *Mirror) ClearPresence() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = make(map[string]models.Presence)
}

func (m *Mirror) Model(modelID string) (models.Model, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, model := range m.models {
		if model.ID == modelID {
			return model, true
		}
	}
	return models.Model{}, false
}

func (m *Mirror) Wall(wallID string) (models.Wall, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, wall := range m.walls {
		if wall.ID == wallID {
			return wall, true
		}
	}
	return models.Wall{}, false
}

func (m *Mirror) Models() []models.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Model{}, m.models...)
}

func (m *Mirror) Walls() []models.Wall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Wall{}, m.walls...)
}

func (m *Mirror) ConnectedUsers() map[string]models.Presence {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make(map[string]models.Presence, len(m.users))
	for id, data := range m.users {
		users[id] = data
	}
	return users
}

func (m *Mirror) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// IsLocked reports whether some other connected user currently has the model
// selected. Advisory only: nothing stops a concurrent edit.
func (m *Mirror) IsLocked(modelID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for userID, data := range m.users {
		if userID == m.selfID {
			continue
		}
		if data.SelectedModelID == modelID {
			return true
		}
	}
	return false
}

// ApplyRemote folds one server event into the mirror. Events originated by
// this client are skipped; the gateway never echoes to the sender, but the
// guard keeps a misbehaving relay from double-applying.
func (m *Mirror) ApplyRemote(env models.Envelope) error {
	switch env.Event {
	case models.EventInitialRoomState:
		var p models.InitialRoomStatePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		m.ApplySnapshot(p)

	case models.EventUserJoin:
		var p models.UserJoinPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		m.SetPresence(p.UserID, models.PresenceFromUserData(p.UserData))

	case models.EventUserInfoResponse:
		var p models.UserInfoResponsePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		m.SetPresence(p.UserID, models.PresenceFromUserData(p.UserData))

	case models.EventUserLeft:
		var p models.UserLeftPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		m.RemovePresence(p.UserID)

	case models.EventModelMoved:
		var p models.ModelMovedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		if p.UserID == m.selfID {
			return nil
		}
		m.UpsertModel(models.ModelPatch{ID: p.ModelID, Position: &p.Position})

	case models.EventModelRotated:
		var p models.ModelRotatedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		if p.UserID == m.selfID {
			return nil
		}
		m.UpsertModel(models.ModelPatch{ID: p.ModelID, Rotation: &p.Rotation})

	case models.EventModelScaled:
		var p models.ModelScaledPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		if p.UserID == m.selfID {
			return nil
		}
		m.UpsertModel(models.ModelPatch{ID: p.ModelID, Scale: &p.Scale})

	case models.EventModelAdded, models.EventModelAddedWithID:
		var p models.ModelAddedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		if p.UserID == m.selfID {
			return nil
		}
		m.UpsertModel(models.PatchFromModel(p.ModelData))

	case models.EventModelRemoved:
		var p models.ModelRemovedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		if p.UserID == m.selfID {
			return nil
		}
		m.RemoveModel(p.ModelID)

	case models.EventWallAdded, models.EventWallAddedWithID:
		var p models.WallAddedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		if p.UserID == m.selfID {
			return nil
		}
		m.UpsertWall(models.PatchFromWall(p.WallData))

	case models.EventWallUpdated:
		var p models.WallUpdatedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		if p.UserID == m.selfID {
			return nil
		}
		m.UpsertWall(models.WallPatch{ID: p.WallID, Position: p.Position, Rotation: p.Rotation, Dimensions: p.Dimensions})

	case models.EventWallRemoved:
		var p models.WallRemovedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		if p.UserID == m.selfID {
			return nil
		}
		m.RemoveWall(p.WallID)

	case models.EventModelSelected:
		var p models.SelectionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		if p.UserID == m.selfID {
			return nil
		}
		m.SetPresence(p.UserID, models.PresencePatch{SelectedModelID: &p.ModelID})

	case models.EventModelDeselected:
		var p models.SelectionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		if p.UserID == m.selfID {
			return nil
		}
		none := ""
		m.SetPresence(p.UserID, models.PresencePatch{SelectedModelID: &none})

	case models.EventWelcome, models.EventJoinedRoom, models.EventRequestUserList, models.EventChatMessage:
		// Nothing to fold into room state.

	default:
		return fmt.Errorf("unknown event %q", env.Event)
	}

	return nil
}
