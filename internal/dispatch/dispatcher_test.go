package dispatch

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"collab-server/internal/mirror"
	"collab-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureBroadcaster struct {
	mu   sync.Mutex
	sent []models.Envelope
	err  error
}

func (b *captureBroadcaster) Send(env models.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.sent = append(b.sent, env)
	return nil
}

func (b *captureBroadcaster) emissions() []models.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Envelope{}, b.sent...)
}

func (b *captureBroadcaster) waitFor(t *testing.T, n int) []models.Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := b.emissions(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d emissions, have %d", n, len(b.emissions()))
	return nil
}

const window = 20 * time.Millisecond

func newTestDispatcher() (*Dispatcher, *mirror.Mirror, *captureBroadcaster) {
	m := mirror.New("user-a")
	b := &captureBroadcaster{}
	return New(m, b, "user-a", window), m, b
}

func TestOptimisticLocalApply(t *testing.T) {
	d, m, b := newTestDispatcher()

	d.MoveModel("object-1", models.Vec3{1, 0, 2}, true)

	// Mirror reflects the gesture immediately, before any emission.
	model, ok := m.Model("object-1")
	require.True(t, ok)
	assert.Equal(t, models.Vec3{1, 0, 2}, model.Position)
	assert.Empty(t, b.emissions(), "continuous gesture must not hit the wire before the window elapses")
}

func TestTrailingEdgeThrottle(t *testing.T) {
	d, _, b := newTestDispatcher()

	// k rapid mutations to the same key inside one window.
	for i := 0; i < 10; i++ {
		d.MoveModel("object-1", models.Vec3{float64(i), 0, 0}, true)
	}

	sent := b.waitFor(t, 1)
	time.Sleep(3 * window)
	require.Len(t, b.emissions(), 1, "exactly one emission per key per window")

	var p models.ModelMovedPayload
	require.NoError(t, json.Unmarshal(sent[0].Data, &p))
	assert.Equal(t, models.Vec3{9, 0, 0}, p.Position, "the last-armed payload wins, never an earlier one")
}

func TestThrottleKeysAreIndependent(t *testing.T) {
	d, _, b := newTestDispatcher()

	// Same entity, different kinds; and same kind, different entities.
	d.MoveModel("object-1", models.Vec3{1, 0, 0}, true)
	d.RotateModel("object-1", models.Vec3{0, 1, 0}, true)
	d.MoveModel("object-2", models.Vec3{2, 0, 0}, true)

	sent := b.waitFor(t, 3)
	kinds := make(map[models.EventKind]int)
	for _, env := range sent {
		kinds[env.Event]++
	}
	assert.Equal(t, 2, kinds[models.EventModelMoved])
	assert.Equal(t, 1, kinds[models.EventModelRotated])
}

func TestDiscreteEventsEmitImmediately(t *testing.T) {
	d, _, b := newTestDispatcher()

	id := d.AddModel(models.Model{URL: "https://cdn.example.com/chair.glb", Type: models.ModelTypeGLB}, true)
	require.NotEmpty(t, id, "a missing id is minted")
	d.SelectModel(id, true)
	d.DeselectModel(true)
	d.RemoveModel(id, true)

	sent := b.emissions()
	require.Len(t, sent, 4, "structural and selection events bypass the throttle")
	assert.Equal(t, models.EventModelAdded, sent[0].Event)
	assert.Equal(t, models.EventModelSelected, sent[1].Event)
	assert.Equal(t, models.EventModelDeselected, sent[2].Event)
	assert.Equal(t, models.EventModelRemoved, sent[3].Event)
}

func TestAddModelWithIDKeepsID(t *testing.T) {
	d, _, b := newTestDispatcher()

	id := d.AddModel(models.Model{ID: "object-42"}, true)
	assert.Equal(t, "object-42", id)

	sent := b.emissions()
	require.Len(t, sent, 1)
	assert.Equal(t, models.EventModelAddedWithID, sent[0].Event)
}

func TestShouldBroadcastFalseStaysLocal(t *testing.T) {
	d, m, b := newTestDispatcher()

	d.MoveModel("object-1", models.Vec3{1, 0, 2}, false)
	time.Sleep(3 * window)

	_, ok := m.Model("object-1")
	assert.True(t, ok)
	assert.Empty(t, b.emissions())
}

func TestWallUpdateThrottled(t *testing.T) {
	d, _, b := newTestDispatcher()

	for i := 0; i < 5; i++ {
		pos := models.Vec3{float64(i), 0, 0}
		d.UpdateWall("wall-1", &pos, nil, nil, true)
	}

	sent := b.waitFor(t, 1)
	time.Sleep(3 * window)
	require.Len(t, b.emissions(), 1)

	var p models.WallUpdatedPayload
	require.NoError(t, json.Unmarshal(sent[0].Data, &p))
	require.NotNil(t, p.Position)
	assert.Equal(t, models.Vec3{4, 0, 0}, *p.Position)
}

func TestEmissionFailureIsSilent(t *testing.T) {
	m := mirror.New("user-a")
	b := &captureBroadcaster{err: errors.New("transport not connected")}
	d := New(m, b, "user-a", window)

	// Must not panic or surface the error; the next mutation resyncs peers.
	d.RemoveModel("object-1", true)
	d.MoveModel("object-1", models.Vec3{1, 0, 0}, true)
	time.Sleep(3 * window)
}

func TestCloseCancelsPending(t *testing.T) {
	d, _, b := newTestDispatcher()

	d.MoveModel("object-1", models.Vec3{1, 0, 0}, true)
	d.Close()
	time.Sleep(3 * window)

	assert.Empty(t, b.emissions(), "closing drops armed timers without flushing")

	// Scheduling after close is a no-op for continuous gestures.
	d.MoveModel("object-1", models.Vec3{2, 0, 0}, true)
	time.Sleep(3 * window)
	assert.Empty(t, b.emissions())
}
