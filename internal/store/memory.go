package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"collab-server/internal/models"
)

type memoryEntry struct {
	fields    map[string]string
	expiresAt time.Time
}

// MemoryCache is an in-process Cache for development without Redis and for
// tests. Entries go through the same hash encoding as the Redis backend so
// callers always get isolated copies back.
type MemoryCache struct {
	mu    sync.Mutex
	rooms map[string]memoryEntry
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		rooms: make(map[string]memoryEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *MemoryCache) GetRoomState(_ context.Context, roomID string) (*models.RoomState, error) {
	c.mu.Lock()
	entry, ok := c.rooms[roomID]
	if ok && c.now().After(entry.expiresAt) {
		delete(c.rooms, roomID)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return nil, nil
	}
	return decodeRoomState(entry.fields)
}

func (c *MemoryCache) SetRoomState(_ context.Context, roomID string, state *models.RoomState) error {
	raw, err := encodeRoomState(state)
	if err != nil {
		return err
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("unexpected field type for %s", k)
		}
		fields[k] = s
	}

	c.mu.Lock()
	c.rooms[roomID] = memoryEntry{fields: fields, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) DeleteRoomState(_ context.Context, roomID string) error {
	c.mu.Lock()
	delete(c.rooms, roomID)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) ActiveRooms(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rooms := make([]string, 0, len(c.rooms))
	for roomID, entry := range c.rooms {
		if c.now().After(entry.expiresAt) {
			delete(c.rooms, roomID)
			continue
		}
		rooms = append(rooms, roomID)
	}
	return rooms, nil
}
