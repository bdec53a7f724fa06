// Package dispatch keeps local interaction latency at render speed while
// bounding the outbound network rate of continuous gestures. Every mutation
// lands on the local mirror synchronously; emission to the wire goes through
// a trailing-edge throttle so the most recent frame always wins.
package dispatch

import (
	"sync"
	"time"

	"collab-server/internal/mirror"
	"collab-server/internal/models"
	"collab-server/pkg/logger"

	"github.com/google/uuid"
)

// Broadcaster is the injected transport seam. Emission failures are the
// caller's to swallow; the dispatcher never retries.
type Broadcaster interface {
	Send(env models.Envelope) error
}

// Key identifies one throttle slot per (event kind, entity).
type Key struct {
	Kind     models.EventKind
	EntityID string
}

type pending struct {
	timer *time.Timer
	env   models.Envelope
}

type Dispatcher struct {
	mirror   *mirror.Mirror
	b        Broadcaster
	userID   string
	window   time.Duration
	mu       sync.Mutex
	pendings map[Key]*pending
	closed   bool
}

func New(m *mirror.Mirror, b Broadcaster, userID string, window time.Duration) *Dispatcher {
	return &Dispatcher{
		mirror:   m,
		b:        b,
		userID:   userID,
		window:   window,
		pendings: make(map[Key]*pending),
	}
}

// AddModel places a new model, minting an id when the caller has none.
// Returns the id actually used.
func (d *Dispatcher) AddModel(model models.Model, shouldBroadcast bool) string {
	kind := models.EventModelAddedWithID
	if model.ID == "" {
		model.ID = uuid.NewString()
		kind = models.EventModelAdded
	}

	d.mirror.UpsertModel(models.PatchFromModel(model))

	if shouldBroadcast {
		d.schedule(kind, model.ID, models.ModelAddedPayload{UserID: d.userID, ModelData: model})
	}
	return model.ID
}

func (d *Dispatcher) RemoveModel(modelID string, shouldBroadcast bool) {
	d.mirror.RemoveModel(modelID)

	if shouldBroadcast {
		d.schedule(models.EventModelRemoved, modelID, models.ModelRemovedPayload{UserID: d.userID, ModelID: modelID})
	}
}

func (d *Dispatcher) MoveModel(modelID string, position models.Vec3, shouldBroadcast bool) {
	d.mirror.UpsertModel(models.ModelPatch{ID: modelID, Position: &position})

	if shouldBroadcast {
		d.schedule(models.EventModelMoved, modelID, models.ModelMovedPayload{UserID: d.userID, ModelID: modelID, Position: position})
	}
}

func (d *Dispatcher) RotateModel(modelID string, rotation models.Vec3, shouldBroadcast bool) {
	d.mirror.UpsertModel(models.ModelPatch{ID: modelID, Rotation: &rotation})

	if shouldBroadcast {
		d.schedule(models.EventModelRotated, modelID, models.ModelRotatedPayload{UserID: d.userID, ModelID: modelID, Rotation: rotation})
	}
}

func (d *Dispatcher) ScaleModel(modelID string, scale models.Scale, shouldBroadcast bool) {
	d.mirror.UpsertModel(models.ModelPatch{ID: modelID, Scale: &scale})

	if shouldBroadcast {
		d.schedule(models.EventModelScaled, modelID, models.ModelScaledPayload{UserID: d.userID, ModelID: modelID, Scale: scale})
	}
}

func (d *Dispatcher) AddWall(wall models.Wall, shouldBroadcast bool) string {
	kind := models.EventWallAddedWithID
	if wall.ID == "" {
		wall.ID = uuid.NewString()
		kind = models.EventWallAdded
	}

	d.mirror.UpsertWall(models.PatchFromWall(wall))

	if shouldBroadcast {
		d.schedule(kind, wall.ID, models.WallAddedPayload{UserID: d.userID, WallData: wall})
	}
	return wall.ID
}

func (d *Dispatcher) RemoveWall(wallID string, shouldBroadcast bool) {
	d.mirror.RemoveWall(wallID)

	if shouldBroadcast {
		d.schedule(models.EventWallRemoved, wallID, models.WallRemovedPayload{UserID: d.userID, WallID: wallID})
	}
}

func (d *Dispatcher) UpdateWall(wallID string, position *models.Vec3, rotation *models.Vec3, dimensions *models.Dimensions, shouldBroadcast bool) {
	d.mirror.UpsertWall(models.WallPatch{ID: wallID, Position: position, Rotation: rotation, Dimensions: dimensions})

	if shouldBroadcast {
		d.schedule(models.EventWallUpdated, wallID, models.WallUpdatedPayload{
			UserID:     d.userID,
			WallID:     wallID,
			Position:   position,
			Rotation:   rotation,
			Dimensions: dimensions,
		})
	}
}

// SelectModel broadcasts immediately: the soft-lock advisory is only useful
// if peers see selections with low latency.
func (d *Dispatcher) SelectModel(modelID string, shouldBroadcast bool) {
	d.mirror.SetPresence(d.userID, models.PresencePatch{SelectedModelID: &modelID})

	if shouldBroadcast {
		d.schedule(models.EventModelSelected, modelID, models.SelectionPayload{UserID: d.userID, ModelID: modelID})
	}
}

func (d *Dispatcher) DeselectModel(shouldBroadcast bool) {
	none := ""
	d.mirror.SetPresence(d.userID, models.PresencePatch{SelectedModelID: &none})

	if shouldBroadcast {
		d.schedule(models.EventModelDeselected, "", models.SelectionPayload{UserID: d.userID})
	}
}

// Close cancels every pending timer without flushing. Matches teardown on the
// client: a closing session has no transport left to emit on.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	for key, p := range d.pendings {
		p.timer.Stop()
		delete(d.pendings, key)
	}
}

// schedule queues one emission per (kind, entity). Continuous gestures re-arm
// the pending timer with the newest payload; only the timer firing touches
// the wire, so the frame that goes out is always the most recent one.
func (d *Dispatcher) schedule(kind models.EventKind, entityID string, payload interface{}) {
	env, err := models.NewEnvelope(kind, payload)
	if err != nil {
		logger.Error("Error encoding %s event: %v", kind, err)
		return
	}

	if !kind.Continuous() || d.window <= 0 {
		d.emit(env)
		return
	}

	key := Key{Kind: kind, EntityID: entityID}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	if p, ok := d.pendings[key]; ok {
		// Trailing edge: cancel and re-arm with the newer payload. A timer
		// already mid-fire loses the pointer comparison in fire and yields.
		p.timer.Stop()
	}

	p := &pending{env: env}
	p.timer = time.AfterFunc(d.window, func() { d.fire(key, p) })
	d.pendings[key] = p
}

func (d *Dispatcher) fire(key Key, p *pending) {
	d.mu.Lock()
	current, ok := d.pendings[key]
	if !ok || current != p {
		// A newer timer replaced this one while it was firing.
		d.mu.Unlock()
		return
	}
	delete(d.pendings, key)
	env := current.env
	d.mu.Unlock()

	d.emit(env)
}

func (d *Dispatcher) emit(env models.Envelope) {
	if err := d.b.Send(env); err != nil {
		// Fire and forget: the next mutation or the next full hydration
		// resynchronizes any observer that missed this frame.
		logger.Debug("Dropped %s emission: %v", env.Event, err)
	}
}
