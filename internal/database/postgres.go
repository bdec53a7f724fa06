package database

import (
	"context"
	"fmt"

	"collab-server/internal/models"
	"collab-server/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// LoadRoomSnapshot reads the furniture placements and walls of one room.
// Used once per cold hydration of the Room State Store.
func (db *PostgresDB) LoadRoomSnapshot(ctx context.Context, roomID string) (*models.RoomSnapshot, error) {
	snapshot := &models.RoomSnapshot{
		RoomID: roomID,
		Models: []models.Model{},
		Walls:  []models.Wall{},
	}

	objectQuery := `
		SELECT o.object_id, o.furniture_id,
		       o.position_x, o.position_y, o.position_z,
		       o.rotation_x, o.rotation_y, o.rotation_z,
		       o.scale_x, o.scale_y, o.scale_z,
		       COALESCE(f.cached_model_url, f.model_url, ''),
		       o.is_city_kit, COALESCE(o.texture_path, ''), o.object_type
		FROM room_objects o
		LEFT JOIN furnitures f ON f.furniture_id = o.furniture_id
		WHERE o.room_id = $1
		ORDER BY o.object_id`

	rows, err := db.pool.Query(ctx, objectQuery, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load room objects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.Model
		var scale models.Vec3
		if err := rows.Scan(
			&m.ID, &m.FurnitureRef,
			&m.Position[0], &m.Position[1], &m.Position[2],
			&m.Rotation[0], &m.Rotation[1], &m.Rotation[2],
			&scale[0], &scale[1], &scale[2],
			&m.URL, &m.IsCityKit, &m.TexturePath, &m.Type,
		); err != nil {
			return nil, fmt.Errorf("failed to scan room object: %w", err)
		}
		m.Scale = models.VectorScale(scale)
		snapshot.Models = append(snapshot.Models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read room objects: %w", err)
	}

	wallQuery := `
		SELECT wall_id,
		       position_x, position_y, position_z,
		       rotation_x, rotation_y, rotation_z,
		       width, height, depth
		FROM room_walls
		WHERE room_id = $1
		ORDER BY wall_order NULLS LAST, wall_id`

	wallRows, err := db.pool.Query(ctx, wallQuery, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load room walls: %w", err)
	}
	defer wallRows.Close()

	for wallRows.Next() {
		var w models.Wall
		if err := wallRows.Scan(
			&w.ID,
			&w.Position[0], &w.Position[1], &w.Position[2],
			&w.Rotation[0], &w.Rotation[1], &w.Rotation[2],
			&w.Dimensions.Width, &w.Dimensions.Height, &w.Dimensions.Depth,
		); err != nil {
			return nil, fmt.Errorf("failed to scan room wall: %w", err)
		}
		snapshot.Walls = append(snapshot.Walls, w)
	}
	if err := wallRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read room walls: %w", err)
	}

	return snapshot, nil
}
