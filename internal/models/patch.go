package models

// ModelPatch is a keyed partial update for a model. Nil fields are left
// untouched; set fields replace the stored value wholesale.
type ModelPatch struct {
	ID           string
	FurnitureRef *string
	Position     *Vec3
	Rotation     *Vec3
	Scale        *Scale
	URL          *string
	IsCityKit    *bool
	TexturePath  *string
	Type         *ModelType
}

// PatchFromModel produces a patch that sets every field, used when a full
// model is added or replaced.
func PatchFromModel(m Model) ModelPatch {
	return ModelPatch{
		ID:           m.ID,
		FurnitureRef: &m.FurnitureRef,
		Position:     &m.Position,
		Rotation:     &m.Rotation,
		Scale:        &m.Scale,
		URL:          &m.URL,
		IsCityKit:    &m.IsCityKit,
		TexturePath:  &m.TexturePath,
		Type:         &m.Type,
	}
}

// Apply merges the patch into m, field by field.
func (p ModelPatch) Apply(m *Model) {
	m.ID = p.ID
	if p.FurnitureRef != nil {
		m.FurnitureRef = *p.FurnitureRef
	}
	if p.Position != nil {
		m.Position = *p.Position
	}
	if p.Rotation != nil {
		m.Rotation = *p.Rotation
	}
	if p.Scale != nil {
		m.Scale = *p.Scale
	}
	if p.URL != nil {
		m.URL = *p.URL
	}
	if p.IsCityKit != nil {
		m.IsCityKit = *p.IsCityKit
	}
	if p.TexturePath != nil {
		m.TexturePath = *p.TexturePath
	}
	if p.Type != nil {
		m.Type = *p.Type
	}
}

// WallPatch is the wall counterpart of ModelPatch.
type WallPatch struct {
	ID         string
	Position   *Vec3
	Rotation   *Vec3
	Dimensions *Dimensions
}

func PatchFromWall(w Wall) WallPatch {
	return WallPatch{
		ID:         w.ID,
		Position:   &w.Position,
		Rotation:   &w.Rotation,
		Dimensions: &w.Dimensions,
	}
}

func (p WallPatch) Apply(w *Wall) {
	w.ID = p.ID
	if p.Position != nil {
		w.Position = *p.Position
	}
	if p.Rotation != nil {
		w.Rotation = *p.Rotation
	}
	if p.Dimensions != nil {
		w.Dimensions = *p.Dimensions
	}
}

// PresencePatch merges into an existing presence entry; selection uses a
// pointer so "deselect" (empty string) is distinguishable from "unchanged".
type PresencePatch struct {
	Name            *string
	Color           *string
	SelectedModelID *string
}

func PresenceFromUserData(d UserData) PresencePatch {
	return PresencePatch{Name: &d.Name, Color: &d.Color}
}

func (p PresencePatch) Apply(pr *Presence) {
	if p.Name != nil {
		pr.Name = *p.Name
	}
	if p.Color != nil {
		pr.Color = *p.Color
	}
	if p.SelectedModelID != nil {
		pr.SelectedModelID = *p.SelectedModelID
	}
}
