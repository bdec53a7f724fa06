package store

import (
	"context"
	"time"

	"collab-server/internal/models"
)

// Service implements the room-scoped operations of the Room State Store on
// top of a Cache. Every mutation is a read-modify-write: load the current
// state (or synthesize an empty one), apply, bump the version and write back.
// There is deliberately no lock across the read and the write; when two
// gateway processes race on the same entity the later arrival wins.
type Service struct {
	cache Cache
}

func NewService(cache Cache) *Service {
	return &Service{cache: cache}
}

func (s *Service) Get(ctx context.Context, roomID string) (*models.RoomState, error) {
	return s.cache.GetRoomState(ctx, roomID)
}

// Initialize seeds the cache from a durable snapshot. Called when Get
// returned nil; if two joins race, the last writer wins, which is safe
// because both hydrate from the same durable snapshot.
func (s *Service) Initialize(ctx context.Context, roomID string, modelList []models.Model, walls []models.Wall) (*models.RoomState, error) {
	state := models.NewRoomState()
	state.Models = append(state.Models, modelList...)
	state.Walls = append(state.Walls, walls...)
	state.LastUpdated = time.Now().UnixMilli()
	state.Version = 1

	if err := s.cache.SetRoomState(ctx, roomID, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *Service) UpsertModel(ctx context.Context, roomID string, patch models.ModelPatch) (*models.RoomState, error) {
	return s.mutate(ctx, roomID, func(state *models.RoomState) {
		for i := range state.Models {
			if state.Models[i].ID == patch.ID {
				patch.Apply(&state.Models[i])
				return
			}
		}
		var m models.Model
		patch.Apply(&m)
		state.Models = append(state.Models, m)
	})
}

func (s *Service) RemoveModel(ctx context.Context, roomID, modelID string) (*models.RoomState, error) {
	return s.mutate(ctx, roomID, func(state *models.RoomState) {
		kept := state.Models[:0]
		for _, m := range state.Models {
			if m.ID != modelID {
				kept = append(kept, m)
			}
		}
		state.Models = kept
	})
}

func (s *Service) UpsertWall(ctx context.Context, roomID string, patch models.WallPatch) (*models.RoomState, error) {
	return s.mutate(ctx, roomID, func(state *models.RoomState) {
		for i := range state.Walls {
			if state.Walls[i].ID == patch.ID {
				patch.Apply(&state.Walls[i])
				return
			}
		}
		var w models.Wall
		patch.Apply(&w)
		state.Walls = append(state.Walls, w)
	})
}

func (s *Service) RemoveWall(ctx context.Context, roomID, wallID string) (*models.RoomState, error) {
	return s.mutate(ctx, roomID, func(state *models.RoomState) {
		kept := state.Walls[:0]
		for _, w := range state.Walls {
			if w.ID != wallID {
				kept = append(kept, w)
			}
		}
		state.Walls = kept
	})
}

// UpsertPresence merges into the user's existing entry; fields absent from
// the patch survive. Presence is bookkeeping, not document content, so it
// refreshes lastUpdated and the TTL without bumping the version.
func (s *Service) UpsertPresence(ctx context.Context, roomID, userID string, patch models.PresencePatch) (*models.RoomState, error) {
	state, err := s.cache.GetRoomState(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = models.NewRoomState()
	}

	entry := state.ConnectedUsers[userID]
	entry.UserID = userID
	patch.Apply(&entry)
	state.ConnectedUsers[userID] = entry
	state.LastUpdated = time.Now().UnixMilli()

	if err := s.cache.SetRoomState(ctx, roomID, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *Service) RemovePresence(ctx context.Context, roomID, userID string) (*models.RoomState, error) {
	state, err := s.cache.GetRoomState(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}

	delete(state.ConnectedUsers, userID)
	state.LastUpdated = time.Now().UnixMilli()

	if err := s.cache.SetRoomState(ctx, roomID, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Clear hard-deletes the cached snapshot. The gateway calls this exactly when
// the presence map empties; the durable store remains authoritative.
func (s *Service) Clear(ctx context.Context, roomID string) error {
	return s.cache.DeleteRoomState(ctx, roomID)
}

func (s *Service) ActiveRooms(ctx context.Context) ([]string, error) {
	return s.cache.ActiveRooms(ctx)
}

func (s *Service) mutate(ctx context.Context, roomID string, apply func(*models.RoomState)) (*models.RoomState, error) {
	state, err := s.cache.GetRoomState(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = models.NewRoomState()
	}

	apply(state)
	state.Version++
	state.LastUpdated = time.Now().UnixMilli()

	if err := s.cache.SetRoomState(ctx, roomID, state); err != nil {
		return nil, err
	}
	return state, nil
}
