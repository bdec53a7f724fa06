package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"collab-server/internal/models"
	"collab-server/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const roomKeyPattern = "room:*:state"

// RedisCache stores one hash per room. Every write refreshes the TTL so an
// abandoned room eventually falls out on its own even if eviction is missed.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("Connected to redis successfully")
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func roomKey(roomID string) string {
	return fmt.Sprintf("room:%s:state", roomID)
}

func (c *RedisCache) GetRoomState(ctx context.Context, roomID string) (*models.RoomState, error) {
	fields, err := c.client.HGetAll(ctx, roomKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read room state: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeRoomState(fields)
}

func (c *RedisCache) SetRoomState(ctx context.Context, roomID string, state *models.RoomState) error {
	fields, err := encodeRoomState(state)
	if err != nil {
		return err
	}

	key := roomKey(roomID)
	if err := c.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("failed to write room state: %w", err)
	}
	if err := c.client.Expire(ctx, key, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to refresh room TTL: %w", err)
	}
	return nil
}

func (c *RedisCache) DeleteRoomState(ctx context.Context, roomID string) error {
	if err := c.client.Del(ctx, roomKey(roomID)).Err(); err != nil {
		return fmt.Errorf("failed to delete room state: %w", err)
	}
	return nil
}

func (c *RedisCache) ActiveRooms(ctx context.Context) ([]string, error) {
	keys, err := c.client.Keys(ctx, roomKeyPattern).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	rooms := make([]string, 0, len(keys))
	for _, key := range keys {
		parts := strings.Split(key, ":")
		if len(parts) == 3 {
			rooms = append(rooms, parts[1])
		}
	}
	return rooms, nil
}

func encodeRoomState(state *models.RoomState) (map[string]interface{}, error) {
	modelsJSON, err := json.Marshal(state.Models)
	if err != nil {
		return nil, fmt.Errorf("failed to encode models: %w", err)
	}
	wallsJSON, err := json.Marshal(state.Walls)
	if err != nil {
		return nil, fmt.Errorf("failed to encode walls: %w", err)
	}
	usersJSON, err := json.Marshal(presenceEntries(state.ConnectedUsers))
	if err != nil {
		return nil, fmt.Errorf("failed to encode presence: %w", err)
	}

	return map[string]interface{}{
		"models":         string(modelsJSON),
		"walls":          string(wallsJSON),
		"connectedUsers": string(usersJSON),
		"lastUpdated":    strconv.FormatInt(state.LastUpdated, 10),
		"version":        strconv.FormatUint(state.Version, 10),
	}, nil
}

func decodeRoomState(fields map[string]string) (*models.RoomState, error) {
	state := models.NewRoomState()

	if raw := fields["models"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &state.Models); err != nil {
			return nil, fmt.Errorf("failed to decode models: %w", err)
		}
	}
	if raw := fields["walls"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &state.Walls); err != nil {
			return nil, fmt.Errorf("failed to decode walls: %w", err)
		}
	}
	if raw := fields["connectedUsers"]; raw != "" {
		var entries []models.PresenceEntry
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			return nil, fmt.Errorf("failed to decode presence: %w", err)
		}
		for _, e := range entries {
			state.ConnectedUsers[e.UserID] = e.Data
		}
	}
	if raw := fields["lastUpdated"]; raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode lastUpdated: %w", err)
		}
		state.LastUpdated = ts
	}
	if raw := fields["version"]; raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode version: %w", err)
		}
		state.Version = v
	}

	return state, nil
}

func presenceEntries(users map[string]models.Presence) []models.PresenceEntry {
	entries := make([]models.PresenceEntry, 0, len(users))
	for id, data := range users {
		entries = append(entries, models.PresenceEntry{UserID: id, Data: data})
	}
	return entries
}
