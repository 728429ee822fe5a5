package laser

import (
	"math"
	"testing"
	"time"

	"github.com/automoto/galaxia-mp/server/events"
	"github.com/automoto/galaxia-mp/server/player"
	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/automoto/galaxia-mp/shared/netconfig"
)

type box struct {
	rect     gamemath.Rect
	surface  SurfaceID
	isPlayer bool
	player   netconfig.Identity
}

type boxCollider struct {
	boxes []box
}

func (c *boxCollider) Sweep(from, to gamemath.Vec2, ignore func(Hit) bool) (Hit, bool) {
	var best Hit
	bestT := 2.0
	for _, b := range c.boxes {
		sh, ok := gamemath.SweepAABB(from, to, b.rect)
		if !ok || sh.T >= bestT {
			continue
		}
		h := Hit{Point: sh.Point, Normal: sh.Normal, Surface: b.surface, IsPlayer: b.isPlayer, Player: b.player}
		if ignore != nil && ignore(h) {
			continue
		}
		best, bestT = h, sh.T
	}
	return best, bestT <= 1
}

type players map[netconfig.Identity]*player.Player

func (p players) Target(id netconfig.Identity) (Target, bool) {
	pl, ok := p[id]
	if !ok {
		return nil, false
	}
	return pl, true
}

type recorder struct {
	spawned, bounced, destroyed int
}

func (r *recorder) Spawned(*Laser) { r.spawned++ }

func (r *recorder) Bounced(*Laser, Hit) { r.bounced++ }

func (r *recorder) Destroyed(*Laser) { r.destroyed++ }

func near(a, b gamemath.Vec2) bool {
	return math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9
}

func newPlayers(bus *events.Bus, ids ...netconfig.Identity) players {
	return newPlayersAs(netconfig.RoleAuthoritative, bus, ids...)
}

func newPlayersAs(role netconfig.Role, bus *events.Bus, ids ...netconfig.Identity) players {
	out := make(players)
	for _, id := range ids {
		out[id] = player.New(player.Config{MaxHealth: 100, TimeBetweenFire: 300 * time.Millisecond}, player.Options{
			Identity: id,
			Role:     role,
			Bus:      bus,
		})
	}
	return out
}

func playerBox(id netconfig.Identity, x, y float64) box {
	return box{rect: gamemath.Rect{X: x, Y: y - 8, W: 16, H: 16}, isPlayer: true, player: id}
}

func wallBox(id SurfaceID, x float64) box {
	return box{rect: gamemath.Rect{X: x, Y: -100, W: 10, H: 200}, surface: id}
}

func testConfig() Config {
	return Config{Speed: 240, MaxBounces: 3, Damage: 100}
}

func TestSelfHitSuppressedBeforeFirstBounce(t *testing.T) {
	bus := events.NewBus()
	ps := newPlayers(bus, 1)
	rec := &recorder{}
	col := &boxCollider{boxes: []box{playerBox(1, -8, 0)}}
	sim := NewSimulation(testConfig(), netconfig.RoleAuthoritative, col, ps, rec, nil)

	l := sim.Spawn(Spawn{Shooter: 1, Origin: gamemath.V(-30, 0), Direction: gamemath.V(1, 0)})
	sim.Tick(100 * time.Millisecond)

	if l.Destroyed || rec.destroyed != 0 {
		t.Error("self hit should not destroy the laser")
	}
	if got := ps[1].Health().Current(); got != 100 {
		t.Errorf("got shooter health %d, want 100", got)
	}
	if !near(l.Position, gamemath.V(-6, 0)) {
		t.Errorf("got position %v, want (-6,0)", l.Position)
	}
}

func TestDirectHitKillsAndScores(t *testing.T) {
	bus := events.NewBus()
	ps := newPlayers(bus, 1, 2)
	var died []netconfig.Identity
	bus.PlayerDied.Subscribe(func(id netconfig.Identity) { died = append(died, id) })
	rec := &recorder{}
	col := &boxCollider{boxes: []box{playerBox(1, -8, 0), playerBox(2, 40, 0)}}
	sim := NewSimulation(testConfig(), netconfig.RoleAuthoritative, col, ps, rec, nil)

	l := sim.Spawn(Spawn{Shooter: 1, Origin: gamemath.V(10, 0), Direction: gamemath.V(1, 0)})
	sim.Tick(250 * time.Millisecond)

	if !l.Destroyed || !l.HitPlayer || l.Victim != 2 {
		t.Errorf("got laser %+v, want destroyed by hitting 2", l)
	}
	if !near(l.Position, gamemath.V(40, 0)) {
		t.Errorf("got final position %v, want (40,0)", l.Position)
	}
	if got := ps[2].Health().Current(); got != 0 {
		t.Errorf("got victim health %d, want 0", got)
	}
	if ps[2].Lifecycle() != netconfig.Dead {
		t.Errorf("got victim state %v, want dead", ps[2].Lifecycle())
	}
	if len(died) != 1 || died[0] != 2 {
		t.Errorf("got PlayerDied %v, want [2]", died)
	}
	if got := ps[1].Score(); got != 1 {
		t.Errorf("got shooter score %d, want 1", got)
	}
	if sim.Len() != 0 || rec.destroyed != 1 {
		t.Errorf("got len=%d destroyed=%d, want 0 and 1", sim.Len(), rec.destroyed)
	}
}

func TestObserverHitOnlyPredictsDamage(t *testing.T) {
	bus := events.NewBus()
	ps := newPlayersAs(netconfig.RoleObserver, bus, 1, 2)
	var died []netconfig.Identity
	bus.PlayerDied.Subscribe(func(id netconfig.Identity) { died = append(died, id) })
	rec := &recorder{}
	col := &boxCollider{boxes: []box{playerBox(1, -8, 0), playerBox(2, 40, 0)}}
	sim := NewSimulation(testConfig(), netconfig.RoleObserver, col, ps, rec, nil)

	l := sim.Spawn(Spawn{Shooter: 1, Origin: gamemath.V(10, 0), Direction: gamemath.V(1, 0)})
	sim.Tick(250 * time.Millisecond)

	if !l.Destroyed || !l.HitPlayer || l.Victim != 2 {
		t.Errorf("got laser %+v, want destroyed by hitting 2", l)
	}
	if rec.destroyed != 1 || sim.Len() != 0 {
		t.Errorf("got destroyed=%d len=%d, want 1 and 0", rec.destroyed, sim.Len())
	}
	if got := ps[2].Health().Current(); got != 100 {
		t.Errorf("got victim health %d, want 100", got)
	}
	if ps[2].Lifecycle() != netconfig.Alive {
		t.Errorf("got victim state %v, want alive", ps[2].Lifecycle())
	}
	if len(died) != 0 {
		t.Errorf("got PlayerDied %v, want none", died)
	}
	if got := ps[1].Score(); got != 0 {
		t.Errorf("got shooter score %d, want 0", got)
	}
}

func TestRemoveSkipsEffects(t *testing.T) {
	rec := &recorder{}
	sim := NewSimulation(testConfig(), netconfig.RoleObserver, &boxCollider{}, players{}, rec, nil)
	a := sim.Spawn(Spawn{Shooter: 1, Direction: gamemath.V(1, 0)})
	b := sim.Spawn(Spawn{Shooter: 1, Direction: gamemath.V(0, 1)})

	if !sim.Remove(a) {
		t.Fatal("remove of a live laser reported false")
	}
	if sim.Remove(a) {
		t.Error("second remove reported true")
	}
	if sim.Len() != 1 || rec.destroyed != 0 {
		t.Errorf("got len=%d destroyed=%d, want 1 and 0", sim.Len(), rec.destroyed)
	}
	sim.Each(func(l *Laser) {
		if l != b {
			t.Errorf("got laser %d left, want %d", l.ID, b.ID)
		}
	})
}

func TestBounceTermination(t *testing.T) {
	bus := events.NewBus()
	rec := &recorder{}
	col := &boxCollider{boxes: []box{wallBox(1, 100), wallBox(2, -110)}}
	sim := NewSimulation(testConfig(), netconfig.RoleAuthoritative, col, newPlayers(bus), rec, nil)

	l := sim.Spawn(Spawn{Shooter: 1, Origin: gamemath.V(0, 0), Direction: gamemath.V(1, 0)})
	for i := 0; i < 20; i++ {
		sim.Tick(500 * time.Millisecond)
	}

	if !l.Destroyed {
		t.Fatal("laser should be destroyed after its bounce budget")
	}
	if rec.bounced != 3 || rec.destroyed != 1 {
		t.Errorf("got bounced=%d destroyed=%d, want 3 and 1", rec.bounced, rec.destroyed)
	}
	if l.BouncesLeft != 0 {
		t.Errorf("got bounces left %d, want 0", l.BouncesLeft)
	}
}

func TestBounceReflectsAndSnaps(t *testing.T) {
	rec := &recorder{}
	col := &boxCollider{boxes: []box{wallBox(7, 100)}}
	sim := NewSimulation(testConfig(), netconfig.RoleAuthoritative, col, players{}, rec, nil)

	l := sim.Spawn(Spawn{Shooter: 1, Origin: gamemath.V(0, 0), Direction: gamemath.V(1, 0)})
	sim.Tick(time.Second)

	if !near(l.Position, gamemath.V(100, 0)) {
		t.Errorf("got position %v, want (100,0)", l.Position)
	}
	if !near(l.Direction, gamemath.V(-1, 0)) {
		t.Errorf("got direction %v, want (-1,0)", l.Direction)
	}
	if l.LastSurface != 7 || l.BouncesLeft != 2 {
		t.Errorf("got surface=%d bounces=%d", l.LastSurface, l.BouncesLeft)
	}
}

func TestSameSurfaceIgnored(t *testing.T) {
	rec := &recorder{}
	col := &boxCollider{boxes: []box{wallBox(7, 100)}}
	sim := NewSimulation(testConfig(), netconfig.RoleAuthoritative, col, players{}, rec, nil)

	l := sim.Spawn(Spawn{Shooter: 1, Origin: gamemath.V(0, 0), Direction: gamemath.V(1, 0)})
	sim.Tick(time.Second)

	// grazing re-entry into the surface it just left
	l.Direction = gamemath.V(1, 0)
	sim.Tick(100 * time.Millisecond)

	if rec.bounced != 1 || l.BouncesLeft != 2 {
		t.Errorf("got bounced=%d left=%d, want 1 and 2", rec.bounced, l.BouncesLeft)
	}
	if l.Destroyed {
		t.Error("laser should survive an ignored surface")
	}
}

func TestSelfHitAfterBounceDamagesWithoutScore(t *testing.T) {
	bus := events.NewBus()
	ps := newPlayers(bus, 1)
	col := &boxCollider{boxes: []box{playerBox(1, -40, 0), wallBox(3, 50)}}
	sim := NewSimulation(testConfig(), netconfig.RoleAuthoritative, col, ps, nil, nil)

	l := sim.Spawn(Spawn{Shooter: 1, Origin: gamemath.V(0, 0), Direction: gamemath.V(1, 0)})
	sim.Tick(500 * time.Millisecond)
	sim.Tick(500 * time.Millisecond)

	if !l.Destroyed || l.Victim != 1 {
		t.Fatalf("got %+v, want destroyed on shooter", l)
	}
	if ps[1].IsAlive() {
		t.Error("shooter should be dead")
	}
	if got := ps[1].Score(); got != 0 {
		t.Errorf("got score %d, want 0", got)
	}
}

func TestDeadOrMissingPlayersIgnored(t *testing.T) {
	bus := events.NewBus()
	ps := newPlayers(bus, 1, 2)
	ps[2].Kill()
	col := &boxCollider{boxes: []box{playerBox(2, 40, 0), playerBox(9, 80, 0)}}
	sim := NewSimulation(testConfig(), netconfig.RoleAuthoritative, col, ps, nil, nil)

	l := sim.Spawn(Spawn{Shooter: 1, Origin: gamemath.V(0, 0), Direction: gamemath.V(1, 0)})
	sim.Tick(500 * time.Millisecond)

	if l.Destroyed {
		t.Error("laser should pass dead and unknown players")
	}
	if !near(l.Position, gamemath.V(120, 0)) {
		t.Errorf("got position %v, want (120,0)", l.Position)
	}
}

func TestOutOfBoundsDestroyed(t *testing.T) {
	cfg := testConfig()
	cfg.Bounds = gamemath.Rect{X: 0, Y: -50, W: 100, H: 100}
	rec := &recorder{}
	sim := NewSimulation(cfg, netconfig.RoleAuthoritative, &boxCollider{}, players{}, rec, nil)

	sim.Spawn(Spawn{Shooter: 1, Origin: gamemath.V(50, 0), Direction: gamemath.V(1, 0)})
	sim.Tick(time.Second)

	if sim.Len() != 0 || rec.destroyed != 1 {
		t.Errorf("got len=%d destroyed=%d", sim.Len(), rec.destroyed)
	}
}

func TestClear(t *testing.T) {
	rec := &recorder{}
	sim := NewSimulation(testConfig(), netconfig.RoleAuthoritative, &boxCollider{}, players{}, rec, nil)
	sim.Spawn(Spawn{Shooter: 1, Direction: gamemath.V(0, 1)})
	sim.Spawn(Spawn{Shooter: 2, Direction: gamemath.V(0, -1)})

	sim.Clear()

	if sim.Len() != 0 || rec.destroyed != 2 || rec.spawned != 2 {
		t.Errorf("got len=%d spawned=%d destroyed=%d", sim.Len(), rec.spawned, rec.destroyed)
	}
}
