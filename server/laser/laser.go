// Package laser simulates bouncing laser projectiles. The authoritative
// Simulation sweeps each laser once per tick. Observers run a Mirror that
// extrapolates what the server reports and sweeps their own shots through an
// observer-role Simulation.
package laser

import (
	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/automoto/galaxia-mp/shared/netconfig"
)

// SurfaceID identifies a piece of static geometry. Zero means no surface.
type SurfaceID uint64

// Hit is the nearest collision found by a sweep.
type Hit struct {
	Point    gamemath.Vec2
	Normal   gamemath.Vec2
	Surface  SurfaceID
	IsPlayer bool
	Player   netconfig.Identity
}

// Collider casts segments against the arena.
type Collider interface {
	// Sweep returns the nearest hit along from->to that ignore does not reject.
	Sweep(from, to gamemath.Vec2, ignore func(Hit) bool) (Hit, bool)
}

// Target is a player that lasers can damage.
type Target interface {
	IsAlive() bool
	TakeDamage(amount int, reason netconfig.DamageReason, instigator netconfig.Identity) bool
	AddScore(n int)
}

// Targets resolves identities to damageable players. A missing identity is
// a normal result, not an error.
type Targets interface {
	Target(id netconfig.Identity) (Target, bool)
}

// Effects receives side effects of the simulation. Calls are fire-and-forget.
type Effects interface {
	Spawned(l *Laser)
	Bounced(l *Laser, hit Hit)
	Destroyed(l *Laser)
}

type nopEffects struct{}

func (nopEffects) Spawned(*Laser)      {}
func (nopEffects) Bounced(*Laser, Hit) {}
func (nopEffects) Destroyed(*Laser)    {}

// Laser is one live projectile.
type Laser struct {
	ID          uint64
	Shooter     netconfig.Identity
	Seq         uint32
	Position    gamemath.Vec2
	Direction   gamemath.Vec2 // unit length
	Speed       float64       // pixels per second
	BouncesLeft int
	MaxBounces  int
	LastSurface SurfaceID

	Destroyed bool
	HitPlayer bool
	Victim    netconfig.Identity
}

// Unbounced reports whether the laser has not reflected off anything yet.
func (l *Laser) Unbounced() bool { return l.BouncesLeft == l.MaxBounces }
