package store

import (
	"context"

	"collab-server/internal/models"
)

// Cache is the raw room-state backend shared by every gateway process.
// GetRoomState returns (nil, nil) when the room is cold.
type Cache interface {
	GetRoomState(ctx context.Context, roomID string) (*models.RoomState, error)
	SetRoomState(ctx context.Context, roomID string, state *models.RoomState) error
	DeleteRoomState(ctx context.Context, roomID string) error
	ActiveRooms(ctx context.Context) ([]string, error)
}
