package arena

import (
	"math"
	"testing"

	"github.com/automoto/galaxia-mp/server/laser"
	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/automoto/galaxia-mp/shared/leveldata"
)

// boxArena is a 400x300 box walled on every side.
func boxArena() *leveldata.Arena {
	return &leveldata.Arena{
		Name:      "box",
		MapWidth:  400,
		MapHeight: 300,
		Walls: []leveldata.Wall{
			{ID: 1, Rect: gamemath.Rect{X: 0, Y: 0, W: 400, H: 16}},
			{ID: 2, Rect: gamemath.Rect{X: 0, Y: 284, W: 400, H: 16}},
			{ID: 3, Rect: gamemath.Rect{X: 0, Y: 16, W: 16, H: 268}},
			{ID: 4, Rect: gamemath.Rect{X: 384, Y: 16, W: 16, H: 268}},
		},
	}
}

func TestSweepHitsNearestWall(t *testing.T) {
	l := NewLevel(boxArena(), 16, 16)

	hit, ok := l.Sweep(gamemath.V(200, 100), gamemath.V(200, -20), nil)
	if !ok {
		t.Fatal("expected a wall hit")
	}
	if hit.IsPlayer || hit.Surface != 1 {
		t.Errorf("hit = %+v, want north wall", hit)
	}
	if math.Abs(hit.Point.Y-16) > 1e-9 || hit.Normal != gamemath.V(0, 1) {
		t.Errorf("point=%+v normal=%+v", hit.Point, hit.Normal)
	}
}

func TestSweepPrefersPlayerInFront(t *testing.T) {
	l := NewLevel(boxArena(), 16, 16)
	l.AddBody(3, gamemath.V(200, 150))

	hit, ok := l.Sweep(gamemath.V(100, 150), gamemath.V(390, 150), nil)
	if !ok || !hit.IsPlayer || hit.Player != 3 {
		t.Fatalf("hit = %+v, want player client-3", hit)
	}
	if math.Abs(hit.Point.X-192) > 1e-9 {
		t.Errorf("hit x = %v, want 192", hit.Point.X)
	}

	hit, ok = l.Sweep(gamemath.V(100, 150), gamemath.V(390, 150), func(h laser.Hit) bool { return h.IsPlayer })
	if !ok || hit.IsPlayer || hit.Surface != 4 {
		t.Errorf("filtered hit = %+v, want east wall", hit)
	}
}

func TestBodiesMoveAndLeave(t *testing.T) {
	l := NewLevel(boxArena(), 16, 16)
	l.AddBody(1, gamemath.V(200, 150))
	l.MoveBody(1, gamemath.V(200, 60))

	if _, ok := l.Sweep(gamemath.V(100, 150), gamemath.V(300, 150), nil); ok {
		t.Error("moved body still hit at its old position")
	}
	if hit, ok := l.Sweep(gamemath.V(100, 60), gamemath.V(300, 60), nil); !ok || hit.Player != 1 {
		t.Errorf("hit = %+v, want moved body", hit)
	}

	l.RemoveBody(1)
	if l.HasBody(1) {
		t.Fatal("body not removed")
	}
	if _, ok := l.Sweep(gamemath.V(100, 60), gamemath.V(300, 60), nil); ok {
		t.Error("removed body still collides")
	}
}

func TestSpawnsAndBoundsComeFromArena(t *testing.T) {
	a := boxArena()
	a.Spawns = []gamemath.Pose{{Position: gamemath.V(100, 150), Facing: gamemath.V(1, 0)}}
	l := NewLevel(a, 16, 16)

	if got := l.Spawns(); len(got) != 1 || got[0].Position != gamemath.V(100, 150) {
		t.Errorf("spawns = %+v", got)
	}
	if got, want := l.Bounds(), a.Bounds(); got != want {
		t.Errorf("bounds = %+v, want %+v", got, want)
	}
}
