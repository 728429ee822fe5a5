package laser

import (
	"time"

	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/automoto/galaxia-mp/shared/netconfig"
	"go.uber.org/zap"
)

// Config holds the laser tuning values.
type Config struct {
	Speed      float64
	MaxBounces int
	Damage     int
	// Bounds, when non-empty, destroys lasers that leave it.
	Bounds gamemath.Rect
}

// Spawn describes a laser to create.
type Spawn struct {
	Shooter   netconfig.Identity
	Seq       uint32
	Origin    gamemath.Vec2
	Direction gamemath.Vec2
}

// Simulation owns the live lasers of one session.
type Simulation struct {
	cfg      Config
	role     netconfig.Role
	collider Collider
	targets  Targets
	effects  Effects
	log      *zap.Logger

	lasers []*Laser
	nextID uint64
}

func NewSimulation(cfg Config, role netconfig.Role, collider Collider, targets Targets, effects Effects, log *zap.Logger) *Simulation {
	if effects == nil {
		effects = nopEffects{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Simulation{
		cfg:      cfg,
		role:     role,
		collider: collider,
		targets:  targets,
		effects:  effects,
		log:      log,
	}
}

// Spawn creates a laser and reports it to Effects.
func (s *Simulation) Spawn(sp Spawn) *Laser {
	s.nextID++
	dir := sp.Direction.Normalize()
	if dir.IsZero() {
		dir = gamemath.V(1, 0)
	}
	l := &Laser{
		ID:          s.nextID,
		Shooter:     sp.Shooter,
		Seq:         sp.Seq,
		Position:    sp.Origin,
		Direction:   dir,
		Speed:       s.cfg.Speed,
		BouncesLeft: s.cfg.MaxBounces,
		MaxBounces:  s.cfg.MaxBounces,
	}
	s.lasers = append(s.lasers, l)
	s.effects.Spawned(l)
	return l
}

// Len returns the number of live lasers.
func (s *Simulation) Len() int { return len(s.lasers) }

// Each calls fn for every live laser in spawn order.
func (s *Simulation) Each(fn func(*Laser)) {
	for _, l := range s.lasers {
		fn(l)
	}
}

// Tick advances every laser once. Lasers destroyed during the tick are
// removed after all lasers have stepped.
func (s *Simulation) Tick(dt time.Duration) {
	secs := dt.Seconds()
	for _, l := range s.lasers {
		if l.Destroyed {
			continue
		}
		s.step(l, secs)
	}
	s.removeDestroyed()
}

// Remove drops l without reporting it to Effects.
func (s *Simulation) Remove(l *Laser) bool {
	for i, cur := range s.lasers {
		if cur == l {
			s.lasers = append(s.lasers[:i], s.lasers[i+1:]...)
			return true
		}
	}
	return false
}

// Clear destroys every live laser.
func (s *Simulation) Clear() {
	for _, l := range s.lasers {
		if !l.Destroyed {
			s.destroy(l)
		}
	}
	s.lasers = nil
}

func (s *Simulation) step(l *Laser, secs float64) {
	from := l.Position
	to := from.Add(l.Direction.Scale(l.Speed * secs))

	hit, ok := s.collider.Sweep(from, to, func(h Hit) bool { return s.ignore(l, h) })
	if !ok {
		l.Position = to
		if s.outOfBounds(l.Position) {
			s.destroy(l)
		}
		return
	}

	if hit.IsPlayer {
		l.Position = hit.Point
		l.HitPlayer = true
		l.Victim = hit.Player
		s.destroy(l)
		s.hitPlayer(l, hit.Player)
		return
	}

	l.Direction = l.Direction.Reflect(hit.Normal).Normalize()
	l.Position = hit.Point
	l.BouncesLeft--
	l.LastSurface = hit.Surface
	s.effects.Bounced(l, hit)
	if l.BouncesLeft <= 0 {
		s.destroy(l)
	}
}

// ignore filters sweep hits that must not affect the laser.
func (s *Simulation) ignore(l *Laser, h Hit) bool {
	if !h.IsPlayer {
		return h.Surface != 0 && h.Surface == l.LastSurface
	}
	if h.Player == l.Shooter && l.Unbounced() {
		return true
	}
	t, ok := s.targets.Target(h.Player)
	return !ok || !t.IsAlive()
}

func (s *Simulation) hitPlayer(l *Laser, victim netconfig.Identity) {
	t, ok := s.targets.Target(victim)
	if !ok {
		return
	}
	killed := t.TakeDamage(s.cfg.Damage, netconfig.ReasonLaser, l.Shooter)
	s.log.Debug("laser hit",
		zap.Uint64("laser", l.ID),
		zap.Stringer("shooter", l.Shooter),
		zap.Stringer("victim", victim),
		zap.Bool("killed", killed))

	if s.role != netconfig.RoleAuthoritative || l.Shooter == victim {
		return
	}
	if shooter, ok := s.targets.Target(l.Shooter); ok {
		shooter.AddScore(1)
	}
}

func (s *Simulation) outOfBounds(p gamemath.Vec2) bool {
	b := s.cfg.Bounds
	if b.W <= 0 || b.H <= 0 {
		return false
	}
	return !b.Contains(p)
}

func (s *Simulation) destroy(l *Laser) {
	l.Destroyed = true
	s.effects.Destroyed(l)
}

func (s *Simulation) removeDestroyed() {
	live := s.lasers[:0]
	for _, l := range s.lasers {
		if !l.Destroyed {
			live = append(live, l)
		}
	}
	for i := len(live); i < len(s.lasers); i++ {
		s.lasers[i] = nil
	}
	s.lasers = live
}
