package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaleAcceptsScalarAndVector(t *testing.T) {
	var s Scale
	require.NoError(t, json.Unmarshal([]byte(`1.5`), &s))
	assert.True(t, s.Uniform)
	assert.Equal(t, 1.5, s.Value)

	require.NoError(t, json.Unmarshal([]byte(`[1,2,0.5]`), &s))
	assert.False(t, s.Uniform)
	assert.Equal(t, Vec3{1, 2, 0.5}, s.Vector)

	assert.Error(t, json.Unmarshal([]byte(`"big"`), &s))
}

func TestScaleMarshalsItsOwnShape(t *testing.T) {
	out, err := json.Marshal(UniformScale(2))
	require.NoError(t, err)
	assert.JSONEq(t, `2`, string(out))

	out, err = json.Marshal(VectorScale(Vec3{1, 2, 3}))
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2,3]`, string(out))
}

func TestPresenceEntryIsAPair(t *testing.T) {
	entry := PresenceEntry{
		UserID: "user-a",
		Data:   Presence{UserID: "user-a", Name: "Ana", Color: "#3B82F6"},
	}

	out, err := json.Marshal(entry)
	require.NoError(t, err)
	assert.JSONEq(t, `["user-a",{"userId":"user-a","name":"Ana","color":"#3B82F6"}]`, string(out))

	var back PresenceEntry
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, entry, back)

	assert.Error(t, json.Unmarshal([]byte(`{"userId":"user-a"}`), &back))
}
