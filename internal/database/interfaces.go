package database

import (
	"context"

	"collab-server/internal/models"
)

// SnapshotRepository reads full room snapshots from the durable store. The
// collaboration core only ever reads; saving is owned by the external
// autosave process.
type SnapshotRepository interface {
	LoadRoomSnapshot(ctx context.Context, roomID string) (*models.RoomSnapshot, error)
}

type Database interface {
	SnapshotRepository
	Close() error
}
