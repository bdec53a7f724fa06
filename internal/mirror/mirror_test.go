package mirror

import (
	"testing"

	"collab-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEnvelope(t *testing.T, kind models.EventKind, payload interface{}) models.Envelope {
	t.Helper()
	env, err := models.NewEnvelope(kind, payload)
	require.NoError(t, err)
	return env
}

func TestApplySnapshot(t *testing.T) {
	m := New("user-b")

	m.ApplySnapshot(models.InitialRoomStatePayload{
		Models: []models.Model{{ID: "object-1"}, {ID: "object-2"}},
		Walls:  []models.Wall{{ID: "wall-1"}},
		ConnectedUsers: []models.PresenceEntry{
			{UserID: "user-a", Data: models.Presence{UserID: "user-a", Name: "Ana"}},
		},
		Version: 1,
	})

	assert.Len(t, m.Models(), 2)
	assert.Len(t, m.Walls(), 1)
	assert.Contains(t, m.ConnectedUsers(), "user-a")
	assert.Equal(t, uint64(1), m.Version())
}

func TestIdempotentApply(t *testing.T) {
	m := New("user-b")
	m.UpsertModel(models.ModelPatch{ID: "object-12"})

	env := mustEnvelope(t, models.EventModelMoved, models.ModelMovedPayload{
		UserID:   "user-a",
		ModelID:  "object-12",
		Position: models.Vec3{1, 0, 2},
	})

	require.NoError(t, m.ApplyRemote(env))
	require.NoError(t, m.ApplyRemote(env))

	model, ok := m.Model("object-12")
	require.True(t, ok)
	assert.Equal(t, models.Vec3{1, 0, 2}, model.Position, "replaying a move is a pure field replace, not a delta")
	assert.Len(t, m.Models(), 1)
}

func TestApplyRemoteSkipsOwnEvents(t *testing.T) {
	m := New("user-a")
	m.UpsertModel(models.ModelPatch{ID: "object-1", Position: &models.Vec3{5, 0, 5}})

	env := mustEnvelope(t, models.EventModelMoved, models.ModelMovedPayload{
		UserID:   "user-a",
		ModelID:  "object-1",
		Position: models.Vec3{0, 0, 0},
	})
	require.NoError(t, m.ApplyRemote(env))

	model, _ := m.Model("object-1")
	assert.Equal(t, models.Vec3{5, 0, 5}, model.Position, "echoed own events must not clobber newer local state")
}

func TestApplyRemoteAddRemove(t *testing.T) {
	m := New("user-b")

	add := mustEnvelope(t, models.EventModelAddedWithID, models.ModelAddedPayload{
		UserID:    "user-a",
		ModelData: models.Model{ID: "object-9", URL: "https://cdn.example.com/lamp.glb", Type: models.ModelTypeGLB},
	})
	require.NoError(t, m.ApplyRemote(add))
	require.Len(t, m.Models(), 1)

	remove := mustEnvelope(t, models.EventModelRemoved, models.ModelRemovedPayload{UserID: "user-a", ModelID: "object-9"})
	require.NoError(t, m.ApplyRemote(remove))
	require.NoError(t, m.ApplyRemote(remove))
	assert.Empty(t, m.Models())
}

func TestApplyRemoteWalls(t *testing.T) {
	m := New("user-b")

	add := mustEnvelope(t, models.EventWallAdded, models.WallAddedPayload{
		UserID:   "user-a",
		WallData: models.Wall{ID: "wall-3", Dimensions: models.Dimensions{Width: 4, Height: 2.5, Depth: 0.2}},
	})
	require.NoError(t, m.ApplyRemote(add))

	pos := models.Vec3{0, 0, 3}
	update := mustEnvelope(t, models.EventWallUpdated, models.WallUpdatedPayload{
		UserID:   "user-a",
		WallID:   "wall-3",
		Position: &pos,
	})
	require.NoError(t, m.ApplyRemote(update))

	wall, ok := m.Wall("wall-3")
	require.True(t, ok)
	assert.Equal(t, pos, wall.Position)
	assert.Equal(t, 2.5, wall.Dimensions.Height, "untouched wall fields survive the update")
}

func TestPresenceLifecycle(t *testing.T) {
	m := New("user-b")

	join := mustEnvelope(t, models.EventUserJoin, models.UserJoinPayload{
		UserID:   "user-a",
		UserData: models.UserData{Name: "Ana", Color: "#3B82F6"},
	})
	require.NoError(t, m.ApplyRemote(join))
	assert.Contains(t, m.ConnectedUsers(), "user-a")

	left := mustEnvelope(t, models.EventUserLeft, models.UserLeftPayload{UserID: "user-a"})
	require.NoError(t, m.ApplyRemote(left))
	assert.NotContains(t, m.ConnectedUsers(), "user-a")
}

func TestIsLocked(t *testing.T) {
	m := New("user-b")

	sel := mustEnvelope(t, models.EventModelSelected, models.SelectionPayload{UserID: "user-a", ModelID: "object-12"})
	require.NoError(t, m.ApplyRemote(sel))
	assert.True(t, m.IsLocked("object-12"))
	assert.False(t, m.IsLocked("object-99"))

	// Own selection never locks.
	m.SetPresence("user-b", models.PresencePatch{SelectedModelID: strPtr("object-50")})
	assert.False(t, m.IsLocked("object-50"))

	desel := mustEnvelope(t, models.EventModelDeselected, models.SelectionPayload{UserID: "user-a"})
	require.NoError(t, m.ApplyRemote(desel))
	assert.False(t, m.IsLocked("object-12"))
}

func strPtr(s string) *string {
	return &s
}
