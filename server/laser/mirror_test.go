package laser

import (
	"testing"
	"time"

	"github.com/automoto/galaxia-mp/server/events"
	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/automoto/galaxia-mp/shared/messages"
	"github.com/automoto/galaxia-mp/shared/netconfig"
)

func TestMirrorAdoptsPrediction(t *testing.T) {
	m := NewMirror(4, 0)
	predicted := m.Predict(1, gamemath.V(0, 0), gamemath.V(1, 0), 100)
	m.Advance(100 * time.Millisecond)

	got := m.ApplySpawned(messages.LaserSpawned{
		ID: 9, Shooter: 4, Seq: 1,
		Position: gamemath.V(2, 0), Direction: gamemath.V(1, 0),
		Speed: 100, BouncesLeft: 3,
	})

	if got != predicted {
		t.Error("authoritative spawn should adopt the predicted laser")
	}
	if got.Predicted || got.ID != 9 || got.Position != gamemath.V(2, 0) {
		t.Errorf("got %+v", got)
	}
	if m.Len() != 1 {
		t.Errorf("got len %d, want 1", m.Len())
	}
}

func TestMirrorForeignSpawnDoesNotAdopt(t *testing.T) {
	m := NewMirror(4, 0)
	m.Predict(1, gamemath.V(0, 0), gamemath.V(1, 0), 100)
	m.ApplySpawned(messages.LaserSpawned{ID: 3, Shooter: 5, Seq: 1, Speed: 100})
	if m.Len() != 2 {
		t.Errorf("got len %d, want 2", m.Len())
	}
}

func TestMirrorExtrapolatesAndDestroys(t *testing.T) {
	m := NewMirror(4, 0)
	m.ApplySpawned(messages.LaserSpawned{ID: 1, Shooter: 5, Direction: gamemath.V(0, 1), Speed: 50})
	m.Advance(time.Second)

	var pos gamemath.Vec2
	m.Each(func(l *Mirrored) { pos = l.Position })
	if pos != gamemath.V(0, 50) {
		t.Errorf("got %v, want (0,50)", pos)
	}

	m.ApplyBounced(messages.LaserBounced{ID: 1, Position: gamemath.V(0, 40), Direction: gamemath.V(0, -1), BouncesLeft: 2})
	final, ok := m.ApplyDestroyed(messages.LaserDestroyed{ID: 1, Position: gamemath.V(0, 30)})
	if !ok || final.Position != gamemath.V(0, 30) || final.BouncesLeft != 2 {
		t.Errorf("got %+v ok=%v", final, ok)
	}
	if _, ok := m.ApplyDestroyed(messages.LaserDestroyed{ID: 1}); ok {
		t.Error("double destroy should report false")
	}
}

func TestMirrorPredictionExpires(t *testing.T) {
	m := NewMirror(4, 200*time.Millisecond)
	m.Predict(1, gamemath.V(0, 0), gamemath.V(1, 0), 100)
	m.Advance(100 * time.Millisecond)
	if m.Len() != 1 {
		t.Fatal("prediction expired early")
	}
	m.Advance(100 * time.Millisecond)
	if m.Len() != 0 {
		t.Errorf("got len %d, want 0", m.Len())
	}
}

const frame = time.Second / 30

func simulatedMirror(col *boxCollider, ps players) *Mirror {
	m := NewMirror(4, 0)
	m.Simulate(testConfig(), col, ps, nil)
	return m
}

func TestMirrorSimulatedPredictionBouncesOffWall(t *testing.T) {
	m := simulatedMirror(&boxCollider{boxes: []box{wallBox(7, 384)}}, players{})
	l := m.Predict(1, gamemath.V(200, 0), gamemath.V(1, 0), 240)
	if l.BouncesLeft != 3 {
		t.Fatalf("got bounces %d at fire time, want 3", l.BouncesLeft)
	}

	for i := 0; i < 25; i++ {
		m.Advance(frame)
	}

	if l.Position.X >= 384 {
		t.Errorf("got x %v, want back inside the wall face at 384", l.Position.X)
	}
	if l.Direction.X >= 0 || l.BouncesLeft != 2 {
		t.Errorf("got dir %v bounces %d, want heading west with 2 left", l.Direction, l.BouncesLeft)
	}
	if l.Ended {
		t.Error("laser ended after one bounce")
	}
}

func TestMirrorKeepsAgreeingBounceAndCorrectsOthers(t *testing.T) {
	m := simulatedMirror(&boxCollider{boxes: []box{wallBox(7, 384)}}, players{})
	l := m.Predict(1, gamemath.V(200, 0), gamemath.V(1, 0), 240)
	m.ApplySpawned(messages.LaserSpawned{
		ID: 9, Shooter: 4, Seq: 1,
		Position: gamemath.V(200, 0), Direction: gamemath.V(1, 0),
		Speed: 240, BouncesLeft: 3,
	})
	for i := 0; i < 25; i++ {
		m.Advance(frame)
	}
	ahead := l.Position

	m.ApplyBounced(messages.LaserBounced{ID: 9, Position: gamemath.V(384, 0), Direction: gamemath.V(-1, 0), BouncesLeft: 2, Surface: 7})
	if l.Position != ahead {
		t.Errorf("agreeing bounce moved the laser from %v to %v", ahead, l.Position)
	}

	m.ApplyBounced(messages.LaserBounced{ID: 9, Position: gamemath.V(300, 50), Direction: gamemath.V(0, 1), BouncesLeft: 1, Surface: 3})
	if l.Position != gamemath.V(300, 50) || l.BouncesLeft != 1 {
		t.Fatalf("got %+v, want snapped to the reported bounce", l)
	}
	m.Advance(frame)
	if l.Position.X != 300 || l.Position.Y <= 50 {
		t.Errorf("got %v, want the local copy moving south from the correction", l.Position)
	}
}

func TestMirrorSimulatedHitIsOnlyPredicted(t *testing.T) {
	ps := newPlayersAs(netconfig.RoleObserver, events.NewBus(), 4, 2)
	m := simulatedMirror(&boxCollider{boxes: []box{playerBox(2, 100, 0)}}, ps)
	l := m.Predict(1, gamemath.V(20, 0), gamemath.V(1, 0), 240)
	for i := 0; i < 15; i++ {
		m.Advance(frame)
	}

	if !l.Ended || !l.HitPlayer || l.Victim != 2 {
		t.Fatalf("got %+v, want ended on player 2", l)
	}
	if !near(l.Position, gamemath.V(100, 0)) {
		t.Errorf("got %v, want stopped at (100,0)", l.Position)
	}
	if got := ps[2].Health().Current(); got != 100 {
		t.Errorf("got victim health %d, want 100", got)
	}
	if m.Len() != 1 {
		t.Errorf("got len %d, want the ended prediction kept until confirmed", m.Len())
	}

	m.ApplySpawned(messages.LaserSpawned{ID: 9, Shooter: 4, Seq: 1, Speed: 240, BouncesLeft: 3})
	if _, ok := m.ApplyDestroyed(messages.LaserDestroyed{ID: 9, Position: gamemath.V(100, 0), Hit: true, Victim: 2}); !ok {
		t.Fatal("confirmed laser not found")
	}
	if m.Len() != 0 {
		t.Errorf("got len %d, want 0", m.Len())
	}
}

func TestMirrorEarlyEndCorrectedByBounce(t *testing.T) {
	ps := newPlayersAs(netconfig.RoleObserver, events.NewBus(), 4, 2)
	m := simulatedMirror(&boxCollider{boxes: []box{playerBox(2, 100, 0)}}, ps)
	l := m.Predict(1, gamemath.V(20, 0), gamemath.V(1, 0), 240)
	m.ApplySpawned(messages.LaserSpawned{ID: 9, Shooter: 4, Seq: 1, Speed: 240, BouncesLeft: 3})
	for i := 0; i < 15; i++ {
		m.Advance(frame)
	}
	if !l.Ended {
		t.Fatal("expected the local copy to end on player 2")
	}

	m.ApplyBounced(messages.LaserBounced{ID: 9, Position: gamemath.V(384, 0), Direction: gamemath.V(-1, 0), BouncesLeft: 2, Surface: 4})
	if l.Ended || l.HitPlayer {
		t.Errorf("got %+v, want the server path to win", l)
	}
	m.Advance(frame)
	if l.Position.X >= 384 {
		t.Errorf("got x %v, want extrapolated west of 384", l.Position.X)
	}
}
