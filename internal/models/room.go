package models

import (
	"encoding/json"
	"fmt"
)

type ModelType string

const (
	ModelTypeGLB      ModelType = "glb"
	ModelTypeBuilding ModelType = "building"
)

// Vec3 is an xyz triple used for positions, rotations and vector scales.
type Vec3 [3]float64

// Scale accepts either a uniform scalar or a per-axis vector on the wire;
// the client emits both shapes.
type Scale struct {
	Uniform bool
	Value   float64
	Vector  Vec3
}

func UniformScale(v float64) Scale {
	return Scale{Uniform: true, Value: v}
}

func VectorScale(v Vec3) Scale {
	return Scale{Vector: v}
}

func (s Scale) MarshalJSON() ([]byte, error) {
	if s.Uniform {
		return json.Marshal(s.Value)
	}
	return json.Marshal(s.Vector)
}

func (s *Scale) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*s = Scale{Uniform: true, Value: v}
		return nil
	}
	var vec Vec3
	if err := json.Unmarshal(data, &vec); err != nil {
		return fmt.Errorf("scale must be a number or a 3-element array: %w", err)
	}
	*s = Scale{Vector: vec}
	return nil
}

// Model is one placed furniture object. Mutations replace fields wholesale,
// keyed by ID; there is no deep merge.
type Model struct {
	ID           string    `json:"id"`
	FurnitureRef string    `json:"furnitureRef,omitempty"`
	Position     Vec3      `json:"position"`
	Rotation     Vec3      `json:"rotation"`
	Scale        Scale     `json:"scale"`
	URL          string    `json:"url"`
	IsCityKit    bool      `json:"isCityKit"`
	TexturePath  string    `json:"texturePath,omitempty"`
	Type         ModelType `json:"type"`
}

type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Depth  float64 `json:"depth"`
}

type Wall struct {
	ID         string     `json:"id"`
	Position   Vec3       `json:"position"`
	Rotation   Vec3       `json:"rotation"`
	Dimensions Dimensions `json:"dimensions"`
}

// Presence is one connected user's collaborative state within a room.
type Presence struct {
	UserID          string `json:"userId"`
	Name            string `json:"name"`
	Color           string `json:"color"`
	SelectedModelID string `json:"selectedModelId,omitempty"`
}

// UserData is the identity payload a client sends at user-join.
type UserData struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// RoomState is the cached, versioned snapshot of one room. Version strictly
// increases on every model or wall mutation; presence changes do not bump it.
type RoomState struct {
	Models         []Model             `json:"models"`
	Walls          []Wall              `json:"walls"`
	ConnectedUsers map[string]Presence `json:"connectedUsers"`
	LastUpdated    int64               `json:"lastUpdated"`
	Version        uint64              `json:"version"`
}

func NewRoomState() *RoomState {
	return &RoomState{
		Models:         []Model{},
		Walls:          []Wall{},
		ConnectedUsers: make(map[string]Presence),
	}
}

// RoomSnapshot is what the durable store hands back for cold hydration.
type RoomSnapshot struct {
	RoomID string  `json:"roomId"`
	Models []Model `json:"models"`
	Walls  []Wall  `json:"walls"`
}
