package store

import (
	"testing"

	"collab-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The hash codec is shared by both cache backends; the presence pair encoding
// in particular has to match the Map-entries shape clients consume.
func TestRoomStateHashCodec(t *testing.T) {
	state := models.NewRoomState()
	state.Models = []models.Model{{
		ID:       "object-12",
		Position: models.Vec3{1, 0, 2},
		Scale:    models.UniformScale(1.5),
		Type:     models.ModelTypeGLB,
	}}
	state.Walls = []models.Wall{{ID: "wall-1", Dimensions: models.Dimensions{Width: 4, Height: 2.5, Depth: 0.2}}}
	state.ConnectedUsers["user-a"] = models.Presence{UserID: "user-a", Name: "Ana", Color: "#3B82F6", SelectedModelID: "object-12"}
	state.LastUpdated = 1712345678901
	state.Version = 7

	fields, err := encodeRoomState(state)
	require.NoError(t, err)
	assert.Equal(t, "7", fields["version"])
	assert.Equal(t, "1712345678901", fields["lastUpdated"])

	strFields := make(map[string]string, len(fields))
	for k, v := range fields {
		strFields[k] = v.(string)
	}

	decoded, err := decodeRoomState(strFields)
	require.NoError(t, err)
	assert.Equal(t, state.Models, decoded.Models)
	assert.Equal(t, state.Walls, decoded.Walls)
	assert.Equal(t, state.ConnectedUsers, decoded.ConnectedUsers)
	assert.Equal(t, state.Version, decoded.Version)
	assert.Equal(t, state.LastUpdated, decoded.LastUpdated)
}

// A half-written hash (missing fields) decodes to a usable empty state rather
// than failing the read path.
func TestDecodePartialHash(t *testing.T) {
	decoded, err := decodeRoomState(map[string]string{"version": "3"})
	require.NoError(t, err)
	assert.Empty(t, decoded.Models)
	assert.Empty(t, decoded.Walls)
	assert.Empty(t, decoded.ConnectedUsers)
	assert.Equal(t, uint64(3), decoded.Version)
}
