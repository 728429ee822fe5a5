package laser

import (
	"sort"
	"time"

	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/automoto/galaxia-mp/shared/messages"
	"github.com/automoto/galaxia-mp/shared/netconfig"
	"go.uber.org/zap"
)

// DefaultPredictionTTL is how long an unconfirmed local laser is kept.
const DefaultPredictionTTL = time.Second

// Mirrored is an observer-side laser.
type Mirrored struct {
	ID          uint64 // zero while only predicted
	Shooter     netconfig.Identity
	Seq         uint32
	Position    gamemath.Vec2
	Direction   gamemath.Vec2
	Speed       float64
	BouncesLeft int
	Predicted   bool
	// Ended is set when the local simulation finished the laser before the
	// server reported its destruction.
	Ended     bool
	HitPlayer bool
	Victim    netconfig.Identity

	age time.Duration
	sim *Laser // local simulation copy, nil when extrapolated
}

// Mirror keeps observers visually in step with the authoritative lasers by
// extrapolating between server reports. The local shooter's own lasers are
// predicted at fire time and adopted when the server confirms them. With a
// simulation attached, those lasers are swept against the arena locally so
// they bounce instead of sliding through walls.
type Mirror struct {
	local     netconfig.Identity
	ttl       time.Duration
	byID      map[uint64]*Mirrored
	predicted map[uint32]*Mirrored

	sim   *Simulation
	bySim map[*Laser]*Mirrored
}

func NewMirror(local netconfig.Identity, ttl time.Duration) *Mirror {
	if ttl <= 0 {
		ttl = DefaultPredictionTTL
	}
	return &Mirror{
		local:     local,
		ttl:       ttl,
		byID:      make(map[uint64]*Mirrored),
		predicted: make(map[uint32]*Mirrored),
		bySim:     make(map[*Laser]*Mirrored),
	}
}

// Simulate runs the local shooter's lasers through an observer-role
// Simulation. Damage dealt there is only predicted and no score is awarded.
func (m *Mirror) Simulate(cfg Config, collider Collider, targets Targets, log *zap.Logger) {
	m.sim = NewSimulation(cfg, netconfig.RoleObserver, collider, targets, mirrorEffects{m}, log)
}

// Simulating reports whether local lasers are swept against the arena.
func (m *Mirror) Simulating() bool { return m.sim != nil }

// Predict adds a local laser ahead of the server's confirmation. Without a
// simulation the laser travels at speed with no bounces.
func (m *Mirror) Predict(seq uint32, origin, dir gamemath.Vec2, speed float64) *Mirrored {
	l := &Mirrored{
		Shooter:   m.local,
		Seq:       seq,
		Position:  origin,
		Direction: dir.Normalize(),
		Speed:     speed,
		Predicted: true,
	}
	if m.sim != nil {
		sl := m.sim.Spawn(Spawn{Shooter: m.local, Seq: seq, Origin: origin, Direction: dir})
		l.sim = sl
		l.Direction = sl.Direction
		l.Speed = sl.Speed
		l.BouncesLeft = sl.BouncesLeft
		m.bySim[sl] = l
	}
	if prev, ok := m.predicted[seq]; ok {
		m.detach(prev)
	}
	m.predicted[seq] = l
	return l
}

// ApplySpawned records an authoritative spawn, adopting a matching prediction.
func (m *Mirror) ApplySpawned(msg messages.LaserSpawned) *Mirrored {
	if _, ok := m.byID[msg.ID]; ok {
		return m.byID[msg.ID]
	}
	l, ok := m.predicted[msg.Seq]
	if ok && msg.Shooter == m.local {
		delete(m.predicted, msg.Seq)
	} else {
		l = &Mirrored{Shooter: msg.Shooter, Seq: msg.Seq}
	}
	l.ID = msg.ID
	l.Predicted = false
	m.byID[msg.ID] = l
	if l.sim != nil {
		// The local copy is ahead of the spawn report and already on the
		// same path, so only the identity is taken.
		return l
	}
	l.Position = msg.Position
	l.Direction = msg.Direction
	l.Speed = msg.Speed
	l.BouncesLeft = msg.BouncesLeft
	return l
}

// ApplyBounced snaps a laser to its reported bounce. A locally simulated
// laser that already took the same bounce keeps its state; one that
// disagrees is moved onto the reported path.
func (m *Mirror) ApplyBounced(msg messages.LaserBounced) bool {
	l, ok := m.byID[msg.ID]
	if !ok {
		return false
	}
	surface := SurfaceID(msg.Surface)
	if sl := l.sim; sl != nil && !l.Ended {
		if sl.BouncesLeft == msg.BouncesLeft && sl.LastSurface == surface {
			return true
		}
		sl.Position = msg.Position
		sl.Direction = msg.Direction.Normalize()
		sl.BouncesLeft = msg.BouncesLeft
		sl.LastSurface = surface
	} else if l.Ended {
		// The local copy ended early, the server laser is still flying.
		m.detach(l)
		l.Ended = false
		l.HitPlayer = false
		l.Victim = 0
	}
	l.Position = msg.Position
	l.Direction = msg.Direction
	l.BouncesLeft = msg.BouncesLeft
	return true
}

// ApplyPosition corrects a laser from a periodic position report. Locally
// simulated lasers run ahead of these reports and ignore them.
func (m *Mirror) ApplyPosition(id uint64, pos, dir gamemath.Vec2) bool {
	l, ok := m.byID[id]
	if !ok {
		return false
	}
	if l.sim != nil {
		return true
	}
	l.Position = pos
	if !dir.IsZero() {
		l.Direction = dir.Normalize()
	}
	return true
}

// ApplyDestroyed removes a laser and returns its final state.
func (m *Mirror) ApplyDestroyed(msg messages.LaserDestroyed) (Mirrored, bool) {
	l, ok := m.byID[msg.ID]
	if !ok {
		return Mirrored{}, false
	}
	delete(m.byID, msg.ID)
	m.detach(l)
	l.Position = msg.Position
	l.HitPlayer = msg.Hit
	l.Victim = msg.Victim
	return *l, true
}

// Advance steps the local simulation, extrapolates every other laser along
// its direction and expires stale predictions.
func (m *Mirror) Advance(dt time.Duration) {
	if m.sim != nil {
		m.sim.Tick(dt)
	}
	secs := dt.Seconds()
	for _, l := range m.byID {
		m.move(l, secs)
	}
	for seq, l := range m.predicted {
		m.move(l, secs)
		l.age += dt
		if l.age >= m.ttl {
			m.detach(l)
			delete(m.predicted, seq)
		}
	}
}

func (m *Mirror) move(l *Mirrored, secs float64) {
	if l.sim == nil {
		l.Position = l.Position.Add(l.Direction.Scale(l.Speed * secs))
		return
	}
	if !l.Ended {
		l.copyFrom(l.sim)
	}
}

// detach drops the local simulation copy of l.
func (m *Mirror) detach(l *Mirrored) {
	if l.sim == nil {
		return
	}
	if m.sim != nil {
		m.sim.Remove(l.sim)
	}
	delete(m.bySim, l.sim)
	l.sim = nil
}

func (l *Mirrored) copyFrom(sl *Laser) {
	l.Position = sl.Position
	l.Direction = sl.Direction
	l.BouncesLeft = sl.BouncesLeft
}

// Len counts confirmed and predicted lasers.
func (m *Mirror) Len() int { return len(m.byID) + len(m.predicted) }

// Each visits confirmed lasers by ID, then predictions by sequence.
func (m *Mirror) Each(fn func(*Mirrored)) {
	ids := make([]uint64, 0, len(m.byID))
	for id := range m.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(m.byID[id])
	}

	seqs := make([]uint32, 0, len(m.predicted))
	for seq := range m.predicted {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for _, seq := range seqs {
		fn(m.predicted[seq])
	}
}

// Clear drops everything, used on session teardown.
func (m *Mirror) Clear() {
	clear(m.byID)
	clear(m.predicted)
	clear(m.bySim)
	if m.sim != nil {
		m.sim.Clear()
	}
}

// mirrorEffects marks mirrored lasers whose local copy ended.
type mirrorEffects struct{ m *Mirror }

func (mirrorEffects) Spawned(*Laser)      {}
func (mirrorEffects) Bounced(*Laser, Hit) {}

func (e mirrorEffects) Destroyed(sl *Laser) {
	l, ok := e.m.bySim[sl]
	if !ok {
		return
	}
	delete(e.m.bySim, sl)
	l.copyFrom(sl)
	l.Ended = true
	l.HitPlayer = sl.HitPlayer
	l.Victim = sl.Victim
}
